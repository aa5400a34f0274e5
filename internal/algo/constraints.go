package algo

import (
	"math"

	"github.com/paulmach/orb"

	"github.com/elektrokombinacija/mapf-kinodyn/internal/config"
	"github.com/elektrokombinacija/mapf-kinodyn/internal/core"
)

// GlobalAgent addresses the global constraint layer, which applies to
// every agent regardless of id.
const GlobalAgent = -1

// Constraint forbids one agent from occupying a body pose that conflicts
// with the recorded pose at the recorded tick.
type Constraint struct {
	Agent int
	Pos   orb.Point
	Angle float64
	Tick  int
}

// equal reports constraint identity: same agent, same tick, same
// (quantised) pose.
func (c Constraint) equal(o Constraint, cfg *config.Config) bool {
	if c.Agent != o.Agent || c.Tick != o.Tick {
		return false
	}
	p1 := core.Pose{Position: c.Pos, Angle: c.Angle}
	p2 := core.Pose{Position: o.Pos, Angle: o.Angle}
	return p1.Equal(p2, cfg)
}

// ConstraintStore is the per-branch bag of forbidden (pose, tick)
// occupancies: one lane per agent plus an optional global layer. Stores
// are cloned on every CBS split; a branch never mutates its parent's
// store.
type ConstraintStore struct {
	cfg      *config.Config
	perAgent map[int]map[int][]Constraint
	global   map[int][]Constraint
}

// NewConstraintStore returns an empty store.
func NewConstraintStore(cfg *config.Config) *ConstraintStore {
	return &ConstraintStore{
		cfg:      cfg,
		perAgent: make(map[int]map[int][]Constraint),
		global:   make(map[int][]Constraint),
	}
}

// Add records a constraint. A GlobalAgent constraint (or global=true)
// lands in the global layer and applies to every agent.
func (s *ConstraintStore) Add(c Constraint, global bool) {
	if global || c.Agent == GlobalAgent {
		c.Agent = GlobalAgent
		s.global[c.Tick] = append(s.global[c.Tick], c)
		return
	}
	lane := s.perAgent[c.Agent]
	if lane == nil {
		lane = make(map[int][]Constraint)
		s.perAgent[c.Agent] = lane
	}
	lane[c.Tick] = append(lane[c.Tick], c)
}

// Has reports membership with a tolerance window of w = CBSPrecisionFactor
// ticks: a stored constraint at tick s counts as present for a query at
// tick q when q-w <= s < q+w.
func (s *ConstraintStore) Has(c Constraint, global bool) bool {
	w := s.cfg.CBSPrecisionFactor
	if global || c.Agent == GlobalAgent {
		c.Agent = GlobalAgent
		for t := c.Tick - w; t < c.Tick+w; t++ {
			for _, have := range s.global[t] {
				q := c
				q.Tick = t
				if have.equal(q, s.cfg) {
					return true
				}
			}
		}
		return false
	}
	lane := s.perAgent[c.Agent]
	if lane == nil {
		return false
	}
	for t := c.Tick - w; t < c.Tick+w; t++ {
		for _, have := range lane[t] {
			q := c
			q.Tick = t
			if have.equal(q, s.cfg) {
				return true
			}
		}
	}
	return false
}

// Clone deep-copies the store, global layer included.
func (s *ConstraintStore) Clone() *ConstraintStore {
	out := NewConstraintStore(s.cfg)
	for agent, lane := range s.perAgent {
		newLane := make(map[int][]Constraint, len(lane))
		for t, cs := range lane {
			newLane[t] = append([]Constraint(nil), cs...)
		}
		out.perAgent[agent] = newLane
	}
	for t, cs := range s.global {
		out.global[t] = append([]Constraint(nil), cs...)
	}
	return out
}

// CloneForAgents deep-copies the global layer but keeps only the lanes of
// the listed agents, re-indexed to their position in ids. Used by the
// sub-CBS decomposition, which re-numbers its half of the agent list.
func (s *ConstraintStore) CloneForAgents(ids []int) *ConstraintStore {
	out := NewConstraintStore(s.cfg)
	for newID, oldID := range ids {
		lane := s.perAgent[oldID]
		if lane == nil {
			continue
		}
		newLane := make(map[int][]Constraint, len(lane))
		for t, cs := range lane {
			copied := make([]Constraint, len(cs))
			for i, c := range cs {
				c.Agent = newID
				copied[i] = c
			}
			newLane[t] = copied
		}
		out.perAgent[newID] = newLane
	}
	for t, cs := range s.global {
		out.global[t] = append([]Constraint(nil), cs...)
	}
	return out
}

// at collects the constraints visible to agent at tick: its own lane plus
// the global layer.
func (s *ConstraintStore) at(agent, tick int) ([]Constraint, []Constraint) {
	var own []Constraint
	if lane := s.perAgent[agent]; lane != nil {
		own = lane[tick]
	}
	return own, s.global[tick]
}

// Empty reports whether the store holds no constraints at all.
func (s *ConstraintStore) Empty() bool {
	for _, lane := range s.perAgent {
		if len(lane) > 0 {
			return false
		}
	}
	return len(s.global) == 0
}

// Check tests one candidate edge traversal against the store: agent
// starts the edge at time t with speed vU and leaves it at speed vW. The
// traversal is sampled tick by tick along the edge's pre-baked curve; a
// centre-distance pre-filter against 2*CarLength guards the precise
// body-overlap test.
func (s *ConstraintStore) Check(rm *core.Roadmap, agent int, vU, vW, t float64, eid core.EdgeID) bool {
	e := rm.Edge(eid)
	if e.Distance == 0 {
		return false
	}
	ip := rm.Interpolator(eid)
	duration := 2 * e.Distance / (vU + vW)
	step := s.cfg.SimStepTime

	kMin := int(math.Ceil(t / step))
	if kMin < 0 {
		kMin = 0
	}
	kMax := int(math.Floor((t + duration) / step))

	from := ip.Start()
	to := ip.End()
	acc := (vW*vW - vU*vU) / (2 * e.Distance)

	for k := kMin; k <= kMax; k += s.cfg.CBSPrecisionFactor {
		// Sampled ticks land on the stride grid; constraints between grid
		// points are swept by scanning the whole stride window.
		for kk := k; kk <= kMax && kk < k+s.cfg.CBSPrecisionFactor; kk++ {
			own, global := s.at(agent, kk)
			if len(own) == 0 && len(global) == 0 {
				continue
			}

			tt := float64(kk)*step - t
			frac := (0.5*acc*tt*tt + vU*tt) / e.Distance
			rough := orb.Point{
				from.X + (to.X-from.X)*frac,
				from.Y + (to.Y-from.Y)*frac,
			}

			precise := false
			var body core.Pose
			hit := func(c Constraint) bool {
				dx := rough.X() - c.Pos.X()
				dy := rough.Y() - c.Pos.Y()
				if math.Hypot(dx, dy) >= 2*s.cfg.CarLength {
					return false
				}
				if !precise {
					st := ip.AtTime(tt, vU, vW)
					body = core.Pose{Position: orb.Point{st.X, st.Y}, Angle: st.Theta}
					precise = true
				}
				return bodiesOverlap(s.cfg, body.Position, body.Angle, c.Pos, c.Angle)
			}
			for _, c := range own {
				if hit(c) {
					return true
				}
			}
			for _, c := range global {
				if hit(c) {
					return true
				}
			}
		}
	}
	return false
}
