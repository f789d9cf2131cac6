package config

import (
	"fmt"
	"slices"
	"strings"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "stand.dwell_ms")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateTrack()...)
	errors = append(errors, c.validateAgent()...)
	errors = append(errors, c.validateStand()...)
	errors = append(errors, c.validateSignal()...)
	errors = append(errors, c.validateFleet()...)
	errors = append(errors, c.validateReport()...)
	errors = append(errors, c.validateTUI()...)
	errors = append(errors, c.validateLogging()...)

	return errors
}

// validateTrack checks that the landmarks are strictly increasing
func (c *Config) validateTrack() []ValidationError {
	var errors []ValidationError

	landmarks := []struct {
		field string
		value float64
	}{
		{"track.start", c.Track.Start},
		{"track.midpoint", c.Track.Midpoint},
		{"track.approach", c.Track.Approach},
		{"track.stand", c.Track.Stand},
		{"track.end", c.Track.End},
	}
	for i := 1; i < len(landmarks); i++ {
		prev, cur := landmarks[i-1], landmarks[i]
		if cur.value <= prev.value {
			errors = append(errors, ValidationError{
				Field:   cur.field,
				Value:   cur.value,
				Message: fmt.Sprintf("must be greater than %s (%v)", prev.field, prev.value),
			})
		}
	}

	if c.Track.Proximity <= 0 {
		errors = append(errors, ValidationError{
			Field:   "track.proximity",
			Value:   c.Track.Proximity,
			Message: "must be positive",
		})
	}

	return errors
}

// validateAgent validates the AgentConfig
func (c *Config) validateAgent() []ValidationError {
	var errors []ValidationError

	if c.Agent.SpeedMin <= 0 {
		errors = append(errors, ValidationError{
			Field:   "agent.speed_min",
			Value:   c.Agent.SpeedMin,
			Message: "must be positive",
		})
	}
	if c.Agent.SpeedMax < c.Agent.SpeedMin {
		errors = append(errors, ValidationError{
			Field:   "agent.speed_max",
			Value:   c.Agent.SpeedMax,
			Message: "must be at least agent.speed_min",
		})
	}

	// Minimum tick keeps a misconfigured run from spinning the CPU
	const minTickUs = 100
	if c.Agent.TickMinUs < minTickUs {
		errors = append(errors, ValidationError{
			Field:   "agent.tick_min_us",
			Value:   c.Agent.TickMinUs,
			Message: fmt.Sprintf("must be at least %dus", minTickUs),
		})
	}
	if c.Agent.TickMaxUs < c.Agent.TickMinUs {
		errors = append(errors, ValidationError{
			Field:   "agent.tick_max_us",
			Value:   c.Agent.TickMaxUs,
			Message: "must be at least agent.tick_min_us",
		})
	}

	if c.Agent.DriftFactor < 0 {
		errors = append(errors, ValidationError{
			Field:   "agent.drift_factor",
			Value:   c.Agent.DriftFactor,
			Message: "must be non-negative",
		})
	}

	return errors
}

// validateStand validates the StandConfig
func (c *Config) validateStand() []ValidationError {
	var errors []ValidationError

	if c.Stand.DwellMs < 0 {
		errors = append(errors, ValidationError{
			Field:   "stand.dwell_ms",
			Value:   c.Stand.DwellMs,
			Message: "must be non-negative",
		})
	}

	return errors
}

// validateSignal validates the SignalConfig
func (c *Config) validateSignal() []ValidationError {
	var errors []ValidationError

	const minIntervalMs = 10
	if c.Signal.IntervalMs < minIntervalMs {
		errors = append(errors, ValidationError{
			Field:   "signal.interval_ms",
			Value:   c.Signal.IntervalMs,
			Message: fmt.Sprintf("must be at least %dms", minIntervalMs),
		})
	}

	return errors
}

// validateFleet validates the FleetConfig
func (c *Config) validateFleet() []ValidationError {
	var errors []ValidationError

	if c.Fleet.SpawnMinMs <= 0 {
		errors = append(errors, ValidationError{
			Field:   "fleet.spawn_min_ms",
			Value:   c.Fleet.SpawnMinMs,
			Message: "must be positive",
		})
	}
	if c.Fleet.SpawnMaxMs < c.Fleet.SpawnMinMs {
		errors = append(errors, ValidationError{
			Field:   "fleet.spawn_max_ms",
			Value:   c.Fleet.SpawnMaxMs,
			Message: "must be at least fleet.spawn_min_ms",
		})
	}
	if c.Fleet.ReapIntervalMs <= 0 {
		errors = append(errors, ValidationError{
			Field:   "fleet.reap_interval_ms",
			Value:   c.Fleet.ReapIntervalMs,
			Message: "must be positive",
		})
	}
	if c.Fleet.MaxAgents < 0 {
		errors = append(errors, ValidationError{
			Field:   "fleet.max_agents",
			Value:   c.Fleet.MaxAgents,
			Message: "must be non-negative (0 = unlimited)",
		})
	}

	return errors
}

// validateReport validates the ReportConfig
func (c *Config) validateReport() []ValidationError {
	var errors []ValidationError

	if c.Report.IntervalMs < 0 {
		errors = append(errors, ValidationError{
			Field:   "report.interval_ms",
			Value:   c.Report.IntervalMs,
			Message: "must be non-negative (0 = on change only)",
		})
	}

	return errors
}

// validateTUI validates the TUIConfig
func (c *Config) validateTUI() []ValidationError {
	var errors []ValidationError

	if c.TUI.FrameMs <= 0 {
		errors = append(errors, ValidationError{
			Field:   "tui.frame_ms",
			Value:   c.TUI.FrameMs,
			Message: "must be positive",
		})
	}

	// 0 means fit the terminal
	const minTrackWidth = 20
	if c.TUI.TrackWidth != 0 && c.TUI.TrackWidth < minTrackWidth {
		errors = append(errors, ValidationError{
			Field:   "tui.track_width",
			Value:   c.TUI.TrackWidth,
			Message: fmt.Sprintf("must be 0 or at least %d columns", minTrackWidth),
		})
	}

	return errors
}

// validateLogging validates the LoggingConfig
func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), strings.ToLower(c.Logging.Level)) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	return errors
}
