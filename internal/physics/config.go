package physics

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the tuning surface of a world. All fields are flat scalars so a
// config file can be hand-edited and diffed; it round-trips through YAML
// without loss.
type Config struct {
	GravityX float64 `yaml:"gravity_x"`
	GravityY float64 `yaml:"gravity_y"`
	GravityZ float64 `yaml:"gravity_z"`

	FixedTimestep float64 `yaml:"fixed_timestep"`
	MaxSubsteps   int     `yaml:"max_substeps"`

	VelocityIterations int     `yaml:"velocity_iterations"`
	Baumgarte          float64 `yaml:"baumgarte"`
	PenetrationSlop    float64 `yaml:"penetration_slop"`

	RestitutionThreshold float64 `yaml:"restitution_threshold"`

	SleepLinearVelocity  float64 `yaml:"sleep_linear_velocity"`
	SleepAngularVelocity float64 `yaml:"sleep_angular_velocity"`
	SleepTime            float64 `yaml:"sleep_time"`

	CellSize float64 `yaml:"cell_size"`

	ParallelIslands bool `yaml:"parallel_islands"`
	WorkerCount     int  `yaml:"worker_count"`
}

// DefaultConfig returns settings suitable for meter-scale scenes at 60 Hz.
func DefaultConfig() Config {
	return Config{
		GravityY:             -9.81,
		FixedTimestep:        1.0 / 60.0,
		MaxSubsteps:          4,
		VelocityIterations:   10,
		Baumgarte:            0.2,
		PenetrationSlop:      0.005,
		RestitutionThreshold: 1.0,
		SleepLinearVelocity:  0.05,
		SleepAngularVelocity: 0.05,
		SleepTime:            0.5,
		CellSize:             DefaultCellSize,
		WorkerCount:          4,
	}
}

// Validate rejects values that would destabilize the simulation.
func (c *Config) Validate() error {
	if c.FixedTimestep <= 0 {
		return fmt.Errorf("config: fixed_timestep must be positive, got %v", c.FixedTimestep)
	}
	if c.MaxSubsteps < 1 {
		return fmt.Errorf("config: max_substeps must be at least 1, got %d", c.MaxSubsteps)
	}
	if c.VelocityIterations < 1 {
		return fmt.Errorf("config: velocity_iterations must be at least 1, got %d", c.VelocityIterations)
	}
	if c.Baumgarte < 0 || c.Baumgarte > 1 {
		return fmt.Errorf("config: baumgarte must be in [0,1], got %v", c.Baumgarte)
	}
	if c.PenetrationSlop < 0 {
		return fmt.Errorf("config: penetration_slop must be non-negative, got %v", c.PenetrationSlop)
	}
	if c.CellSize <= 0 {
		return fmt.Errorf("config: cell_size must be positive, got %v", c.CellSize)
	}
	if c.ParallelIslands && c.WorkerCount < 1 {
		return fmt.Errorf("config: worker_count must be at least 1 when parallel_islands is set, got %d", c.WorkerCount)
	}
	return nil
}

// LoadConfig reads and validates a YAML config file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Save writes the config as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}
