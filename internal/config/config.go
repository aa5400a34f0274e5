// Package config enumerates the tunable parameters of the planner.
package config

// Config holds every knob the roadmap builder and the planners read.
// A Config is never mutated during planning; share one pointer freely.
type Config struct {
	// Quantisation used for pose, speed and time equality/hashing.
	CellSize        float64 // meters
	AngleResolution float64 // radians
	SpeedResolution float64 // m/s
	TimeResolution  float64 // seconds

	// Simulation tick length. Interpolated paths carry one point per tick.
	SimStepTime float64 // seconds

	// Vehicle kinodynamics.
	CarMinTurningRadius float64 // meters
	CarMaxSpeed         float64 // m/s
	CarMaxGForce        float64 // m/s^2, lateral acceleration budget
	CarAcceleration     float64 // m/s^2
	CarDeceleration     float64 // m/s^2
	CarLength           float64 // meters
	CarWidth            float64 // meters

	// CBS tuning.
	CBSPrecisionFactor    int     // tick stride for collision sampling
	CBSMaxSubTime         float64 // seconds before sub-CBS decomposition kicks in
	CBSMaxOpenSetSize     int     // frontier capacity, worst nodes dropped
	CollisionSafetyFactor float64 // body-overlap radius multiplier (x CarLength)

	// Roadmap construction.
	DubinsInterpolationStep float64 // meters between pre-baked curve samples
	GraphPointDistance      float64 // meters between poses along a lane
	EnableRightHandTraffic  bool    // only right-way edges traversable

	// Inner search limits.
	AStarMaxIterations int
	NumSpeedDivisions  int
}

// Default returns the parameter set used throughout the experiments.
func Default() *Config {
	return &Config{
		CellSize:        1.0,
		AngleResolution: 0.1,
		SpeedResolution: 0.5,
		TimeResolution:  0.1,
		SimStepTime:     0.03,

		CarMinTurningRadius: 4.0,
		CarMaxSpeed:         50.0 / 3.6,
		CarMaxGForce:        9.0,
		CarAcceleration:     1.0,
		CarDeceleration:     1.0,
		CarLength:           4.2,
		CarWidth:            1.6,

		CBSPrecisionFactor:    3,
		CBSMaxSubTime:         10.0,
		CBSMaxOpenSetSize:     100000,
		CollisionSafetyFactor: 0.5,

		DubinsInterpolationStep: 0.5,
		GraphPointDistance:      10.0,
		EnableRightHandTraffic:  true,

		AStarMaxIterations: 100000,
		NumSpeedDivisions:  3,
	}
}
