package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
// Loaded once at startup and treated as immutable afterwards.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"          validate:"required"`
	Database  DatabaseConfig  `mapstructure:"database"        validate:"required"`
	Auth      AuthConfig      `mapstructure:"auth"            validate:"required"`
	Chat      ChatConfig      `mapstructure:"chat"            validate:"required"`
	Progress  ProgressConfig  `mapstructure:"progress"        validate:"required"`
	Telemetry TelemetryConfig `mapstructure:"telemetry_agent"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required"`
}

// AuthConfig contains all authentication and authorization settings.
type AuthConfig struct {
	JWTSecret                   string `mapstructure:"jwt_secret"                     validate:"required,min=32"`
	TokenLifetimeMinutes        int    `mapstructure:"token_lifetime_minutes"         validate:"required,gt=0"`
	RefreshTokenLifetimeMinutes int    `mapstructure:"refresh_token_lifetime_minutes" validate:"required,gt=0"`
	BcryptCost                  int    `mapstructure:"bcrypt_cost"                    validate:"gte=0,lte=31"`
}

// ChatConfig contains chat pipeline settings: persona of the template
// responder, which generator backend to use, and how far the chat path
// nudges the least-recently-touched task per posted message.
type ChatConfig struct {
	Persona      string `mapstructure:"persona"        validate:"required"`
	AdvanceStep  int    `mapstructure:"advance_step"   validate:"required,gt=0"`
	Generator    string `mapstructure:"generator"      validate:"required,oneof=template gemini"`
	GeminiAPIKey string `mapstructure:"gemini_api_key"`
	ModelName    string `mapstructure:"model_name"`
}

// ProgressConfig contains the seed task list and progress-report settings.
type ProgressConfig struct {
	SeedTasks          []SeedTask `mapstructure:"seed_tasks"`
	EventHistoryLimit  int        `mapstructure:"event_history_limit"  validate:"required,gt=0"`
	DefaultEventSource string     `mapstructure:"default_event_source" validate:"required"`
}

// SeedTask describes one task seeded from configuration at startup or
// on a full reset.
type SeedTask struct {
	Name        string  `mapstructure:"name" validate:"required"`
	Progress    int     `mapstructure:"progress"`
	Description *string `mapstructure:"description"`
}

// TelemetryConfig contains the background telemetry advancer settings.
// It is process-memory only; nothing here is persisted.
type TelemetryConfig struct {
	Enabled          bool                    `mapstructure:"enabled"`
	IntervalSeconds  float64                 `mapstructure:"interval_seconds"`
	MaxTasksPerCycle int                     `mapstructure:"max_tasks_per_cycle"`
	Source           string                  `mapstructure:"source"`
	DefaultStep      int                     `mapstructure:"default_step"`
	NoteTemplate     string                  `mapstructure:"note_template"`
	TaskOverrides    map[string]TaskOverride `mapstructure:"-"`
}

// TaskOverride adjusts the advancer's behavior for a single named task.
type TaskOverride struct {
	Step int
	Note string
}

// Interval returns the advancer's polling interval as a duration.
func (c TelemetryConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds * float64(time.Second))
}
