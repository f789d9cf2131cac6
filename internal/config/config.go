package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete standsim configuration
type Config struct {
	Track   TrackConfig   `mapstructure:"track" yaml:"track"`
	Agent   AgentConfig   `mapstructure:"agent" yaml:"agent"`
	Stand   StandConfig   `mapstructure:"stand" yaml:"stand"`
	Signal  SignalConfig  `mapstructure:"signal" yaml:"signal"`
	Fleet   FleetConfig   `mapstructure:"fleet" yaml:"fleet"`
	Report  ReportConfig  `mapstructure:"report" yaml:"report"`
	TUI     TUIConfig     `mapstructure:"tui" yaml:"tui"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

// TrackConfig holds the landmarks of the one-dimensional track, in track units.
// They must be strictly increasing in the order listed.
type TrackConfig struct {
	// Start is where new agents are placed (default: -0.9)
	Start float64 `mapstructure:"start" yaml:"start"`
	// Midpoint is the decision point where the signal phase is read (default: 0.0)
	Midpoint float64 `mapstructure:"midpoint" yaml:"midpoint"`
	// Approach is where lateral drift stops (default: 0.475)
	Approach float64 `mapstructure:"approach" yaml:"approach"`
	// Stand is where a routed agent must acquire its stand (default: 0.97)
	Stand float64 `mapstructure:"stand" yaml:"stand"`
	// End is where agents leave the track (default: 1.0)
	End float64 `mapstructure:"end" yaml:"end"`
	// Proximity is the soft-blocking distance kept behind a waiting agent (default: 0.025)
	Proximity float64 `mapstructure:"proximity" yaml:"proximity"`
}

// AgentConfig controls per-agent kinematics and pacing
type AgentConfig struct {
	// SpeedMin and SpeedMax bound the per-tick step drawn for each agent
	SpeedMin float64 `mapstructure:"speed_min" yaml:"speed_min"`
	SpeedMax float64 `mapstructure:"speed_max" yaml:"speed_max"`
	// TickMinUs and TickMaxUs bound each agent's pacing sleep in microseconds
	TickMinUs int `mapstructure:"tick_min_us" yaml:"tick_min_us"`
	TickMaxUs int `mapstructure:"tick_max_us" yaml:"tick_max_us"`
	// DriftFactor scales speed into lateral drift after routing (default: 0.5)
	DriftFactor float64 `mapstructure:"drift_factor" yaml:"drift_factor"`
}

// StandConfig controls the exclusive stands
type StandConfig struct {
	// DwellMs is how long an agent holds a stand (default: 1000)
	DwellMs int `mapstructure:"dwell_ms" yaml:"dwell_ms"`
	// NeutralUsesCenter routes neutral-phase agents to the centre stand B
	// instead of straight through (default: false)
	NeutralUsesCenter bool `mapstructure:"neutral_uses_center" yaml:"neutral_uses_center"`
}

// SignalConfig controls the phase broadcaster
type SignalConfig struct {
	// IntervalMs is the phase period (default: 2000)
	IntervalMs int `mapstructure:"interval_ms" yaml:"interval_ms"`
	// AdvanceOnStart advances the phase once as soon as the broadcaster starts (default: true)
	AdvanceOnStart bool `mapstructure:"advance_on_start" yaml:"advance_on_start"`
}

// FleetConfig controls spawning and reaping
type FleetConfig struct {
	// SpawnMinMs and SpawnMaxMs bound the random spawn cadence (default: 500-600)
	SpawnMinMs int `mapstructure:"spawn_min_ms" yaml:"spawn_min_ms"`
	SpawnMaxMs int `mapstructure:"spawn_max_ms" yaml:"spawn_max_ms"`
	// ReapIntervalMs is how often finished agents are collected (default: 50)
	ReapIntervalMs int `mapstructure:"reap_interval_ms" yaml:"reap_interval_ms"`
	// MaxAgents caps the live set, 0 = unlimited
	MaxAgents int `mapstructure:"max_agents" yaml:"max_agents"`
}

// ReportConfig controls the waiting-count reporter
type ReportConfig struct {
	// Enabled turns the reporter on (default: true)
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	// IntervalMs additionally reports on a fixed cadence, 0 = only on change
	IntervalMs int `mapstructure:"interval_ms" yaml:"interval_ms"`
}

// TUIConfig controls the terminal view
type TUIConfig struct {
	// FrameMs is the redraw period (default: 50)
	FrameMs int `mapstructure:"frame_ms" yaml:"frame_ms"`
	// TrackWidth is the number of columns used for the track, 0 = fit terminal
	TrackWidth int `mapstructure:"track_width" yaml:"track_width"`
}

// LoggingConfig controls debug logging behavior
type LoggingConfig struct {
	// Enabled controls whether logging is enabled (default: true)
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	// Level is the log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level" yaml:"level"`
	// Dir is where standsim.log is written; empty writes to stderr (default: ".standsim")
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Track: TrackConfig{
			Start:     -0.9,
			Midpoint:  0.0,
			Approach:  0.475,
			Stand:     0.97,
			End:       1.0,
			Proximity: 0.025,
		},
		Agent: AgentConfig{
			SpeedMin:    0.002,
			SpeedMax:    0.008,
			TickMinUs:   5000,
			TickMaxUs:   15000,
			DriftFactor: 0.5,
		},
		Stand: StandConfig{
			DwellMs:           1000,
			NeutralUsesCenter: false,
		},
		Signal: SignalConfig{
			IntervalMs:     2000,
			AdvanceOnStart: true,
		},
		Fleet: FleetConfig{
			SpawnMinMs:     500,
			SpawnMaxMs:     600,
			ReapIntervalMs: 50,
			MaxAgents:      0,
		},
		Report: ReportConfig{
			Enabled:    true,
			IntervalMs: 0,
		},
		TUI: TUIConfig{
			FrameMs:    50,
			TrackWidth: 0,
		},
		Logging: LoggingConfig{
			Enabled: true,
			Level:   "info",
			Dir:     ".standsim",
		},
	}
}

// TickRange returns the pacing sleep bounds as durations
func (c *AgentConfig) TickRange() (time.Duration, time.Duration) {
	return time.Duration(c.TickMinUs) * time.Microsecond, time.Duration(c.TickMaxUs) * time.Microsecond
}

// Dwell returns the stand dwell as a time.Duration
func (c *StandConfig) Dwell() time.Duration {
	return time.Duration(c.DwellMs) * time.Millisecond
}

// Interval returns the phase period as a time.Duration
func (c *SignalConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMs) * time.Millisecond
}

// SpawnRange returns the spawn cadence bounds as durations
func (c *FleetConfig) SpawnRange() (time.Duration, time.Duration) {
	return time.Duration(c.SpawnMinMs) * time.Millisecond, time.Duration(c.SpawnMaxMs) * time.Millisecond
}

// ReapInterval returns the reap period as a time.Duration
func (c *FleetConfig) ReapInterval() time.Duration {
	return time.Duration(c.ReapIntervalMs) * time.Millisecond
}

// Interval returns the report cadence as a time.Duration (0 means on change only)
func (c *ReportConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMs) * time.Millisecond
}

// Frame returns the redraw period as a time.Duration
func (c *TUIConfig) Frame() time.Duration {
	return time.Duration(c.FrameMs) * time.Millisecond
}

// SetDefaults registers default values with viper
func SetDefaults() {
	SetDefaultsOn(viper.GetViper())
}

// SetDefaultsOn registers default values on the given viper instance
func SetDefaultsOn(v *viper.Viper) {
	defaults := Default()

	// Track defaults
	v.SetDefault("track.start", defaults.Track.Start)
	v.SetDefault("track.midpoint", defaults.Track.Midpoint)
	v.SetDefault("track.approach", defaults.Track.Approach)
	v.SetDefault("track.stand", defaults.Track.Stand)
	v.SetDefault("track.end", defaults.Track.End)
	v.SetDefault("track.proximity", defaults.Track.Proximity)

	// Agent defaults
	v.SetDefault("agent.speed_min", defaults.Agent.SpeedMin)
	v.SetDefault("agent.speed_max", defaults.Agent.SpeedMax)
	v.SetDefault("agent.tick_min_us", defaults.Agent.TickMinUs)
	v.SetDefault("agent.tick_max_us", defaults.Agent.TickMaxUs)
	v.SetDefault("agent.drift_factor", defaults.Agent.DriftFactor)

	// Stand defaults
	v.SetDefault("stand.dwell_ms", defaults.Stand.DwellMs)
	v.SetDefault("stand.neutral_uses_center", defaults.Stand.NeutralUsesCenter)

	// Signal defaults
	v.SetDefault("signal.interval_ms", defaults.Signal.IntervalMs)
	v.SetDefault("signal.advance_on_start", defaults.Signal.AdvanceOnStart)

	// Fleet defaults
	v.SetDefault("fleet.spawn_min_ms", defaults.Fleet.SpawnMinMs)
	v.SetDefault("fleet.spawn_max_ms", defaults.Fleet.SpawnMaxMs)
	v.SetDefault("fleet.reap_interval_ms", defaults.Fleet.ReapIntervalMs)
	v.SetDefault("fleet.max_agents", defaults.Fleet.MaxAgents)

	// Report defaults
	v.SetDefault("report.enabled", defaults.Report.Enabled)
	v.SetDefault("report.interval_ms", defaults.Report.IntervalMs)

	// TUI defaults
	v.SetDefault("tui.frame_ms", defaults.TUI.FrameMs)
	v.SetDefault("tui.track_width", defaults.TUI.TrackWidth)

	// Logging defaults
	v.SetDefault("logging.enabled", defaults.Logging.Enabled)
	v.SetDefault("logging.level", defaults.Logging.Level)
	v.SetDefault("logging.dir", defaults.Logging.Dir)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom reads and validates the configuration held by v
func LoadFrom(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration, falling back to defaults if the
// loaded configuration cannot be unmarshaled or is invalid
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "standsim")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".standsim"
	}
	return filepath.Join(home, ".config", "standsim")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// EnvPrefix is the prefix for environment overrides, e.g. STANDSIM_STAND_DWELL_MS
const EnvPrefix = "STANDSIM"

// EnvKeyReplacer maps nested keys to environment variable names
func EnvKeyReplacer() *strings.Replacer {
	return strings.NewReplacer(".", "_")
}
