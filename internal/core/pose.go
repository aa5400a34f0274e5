// Package core defines the road-network domain model: poses, edges,
// the roadmap and the agents that travel on it.
package core

import (
	"math"

	"github.com/paulmach/orb"

	"github.com/elektrokombinacija/mapf-kinodyn/internal/config"
)

// Pose is a planar position plus a heading angle in radians.
type Pose struct {
	Position orb.Point
	Angle    float64
}

// PoseKey is the quantised identity of a pose. Two poses whose positions
// round to the same cell and whose normalised headings round to the same
// angle bin share a key.
type PoseKey struct {
	CX, CY int64
	A      int64
}

// NormalizeAngle maps an angle into [0, 2*pi).
func NormalizeAngle(a float64) float64 {
	a = math.Mod(a, 2*math.Pi)
	if a < 0 {
		a += 2 * math.Pi
	}
	return a
}

// Key returns the quantised identity of p under cfg's resolutions.
func (p Pose) Key(cfg *config.Config) PoseKey {
	a := NormalizeAngle(p.Angle)
	k := PoseKey{
		CX: int64(math.Round(p.Position.X() / cfg.CellSize)),
		CY: int64(math.Round(p.Position.Y() / cfg.CellSize)),
		A:  int64(math.Round(a / cfg.AngleResolution)),
	}
	// The top of the angle range rounds into the bin of angle zero.
	bins := int64(math.Round(2 * math.Pi / cfg.AngleResolution))
	if k.A >= bins {
		k.A = 0
	}
	return k
}

// Equal reports quantised pose equality.
func (p Pose) Equal(other Pose, cfg *config.Config) bool {
	return p.Key(cfg) == other.Key(cfg)
}

// DistanceTo returns the straight-line distance to another pose's position.
func (p Pose) DistanceTo(other Pose) float64 {
	dx := p.Position.X() - other.Position.X()
	dy := p.Position.Y() - other.Position.Y()
	return math.Hypot(dx, dy)
}

// SpeedBucket quantises a speed for state identity.
func SpeedBucket(speed float64, cfg *config.Config) int64 {
	return int64(math.Round(speed / cfg.SpeedResolution))
}
