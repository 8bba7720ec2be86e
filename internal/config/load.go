package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Default values applied before the config file and environment are read.
const (
	defaultNoteTemplate = "Automated telemetry pulse for {task} @ {timestamp}"
)

// Load reads configuration from an optional config.yaml and from
// environment variables with the REQUIEM_ prefix. Environment variables
// take precedence over values from the config file.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix("REQUIEM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// A missing file is fine; the environment can carry everything.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Telemetry overrides are parsed defensively entry by entry so one
	// malformed override cannot fail the whole load.
	cfg.Telemetry.TaskOverrides = parseTaskOverrides(
		v.GetStringMap("telemetry_agent.task_overrides"),
		cfg.Telemetry.DefaultStep,
	)

	normalizeTelemetry(&cfg.Telemetry)

	validate := validator.New()
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers baseline values for everything that has a
// sensible default. Secrets (jwt_secret, database url, API keys) have
// none and must be supplied.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("auth.token_lifetime_minutes", 60)
	v.SetDefault("auth.refresh_token_lifetime_minutes", 10080)
	v.SetDefault("auth.bcrypt_cost", 0)

	v.SetDefault("chat.persona", "mystical")
	v.SetDefault("chat.advance_step", 7)
	v.SetDefault("chat.generator", "template")

	v.SetDefault("progress.event_history_limit", 25)
	v.SetDefault("progress.default_event_source", "api")

	v.SetDefault("telemetry_agent.enabled", false)
	v.SetDefault("telemetry_agent.interval_seconds", 45.0)
	v.SetDefault("telemetry_agent.max_tasks_per_cycle", 1)
	v.SetDefault("telemetry_agent.source", "auto-telemetry")
	v.SetDefault("telemetry_agent.default_step", 5)
	v.SetDefault("telemetry_agent.note_template", defaultNoteTemplate)
}

// parseTaskOverrides converts the raw override map into typed entries.
// A malformed entry is dropped with a warning; the rest of the
// configuration still loads.
func parseTaskOverrides(raw map[string]any, defaultStep int) map[string]TaskOverride {
	if len(raw) == 0 {
		return nil
	}

	overrides := make(map[string]TaskOverride, len(raw))
	for name, value := range raw {
		entry, ok := value.(map[string]any)
		if !ok {
			slog.Warn("invalid telemetry override, dropping entry",
				"task", name,
				"reason", "override must be a mapping")
			continue
		}

		override := TaskOverride{Step: defaultStep}

		if rawStep, present := entry["step"]; present {
			step, ok := asInt(rawStep)
			if !ok {
				slog.Warn("invalid telemetry override, dropping entry",
					"task", name,
					"reason", fmt.Sprintf("step %v is not an integer", rawStep))
				continue
			}
			override.Step = step
		}

		// Steps below 1 would stall the task forever; coerce to the
		// minimum forward movement.
		if override.Step < 1 {
			override.Step = 1
		}

		if rawNote, present := entry["note"]; present {
			note, ok := rawNote.(string)
			if !ok {
				slog.Warn("invalid telemetry override, dropping entry",
					"task", name,
					"reason", fmt.Sprintf("note %v is not a string", rawNote))
				continue
			}
			override.Note = note
		}

		overrides[name] = override
	}

	if len(overrides) == 0 {
		return nil
	}
	return overrides
}

// normalizeTelemetry coerces telemetry settings back into their valid
// ranges, mirroring the defensive handling of overrides.
func normalizeTelemetry(cfg *TelemetryConfig) {
	if cfg.IntervalSeconds <= 0 {
		cfg.IntervalSeconds = 45.0
	}
	if cfg.MaxTasksPerCycle < 1 {
		cfg.MaxTasksPerCycle = 1
	}
	if cfg.DefaultStep < 1 {
		cfg.DefaultStep = 1
	}
	if cfg.Source == "" {
		cfg.Source = "auto-telemetry"
	}
	if cfg.NoteTemplate == "" {
		cfg.NoteTemplate = defaultNoteTemplate
	}
}

// asInt converts the loosely-typed values viper yields for YAML numbers.
func asInt(value any) (int, bool) {
	switch n := value.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n == float64(int(n)) {
			return int(n), true
		}
		return 0, false
	default:
		return 0, false
	}
}
