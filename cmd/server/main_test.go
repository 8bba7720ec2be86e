package main

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/requiemhq/requiem-api/internal/config"
	"github.com/requiemhq/requiem-api/internal/generation"
)

func TestSetupGenerator(t *testing.T) {
	t.Parallel()

	logger := slog.Default()

	t.Run("template backend", func(t *testing.T) {
		t.Parallel()

		gen, err := setupGenerator(context.Background(), config.ChatConfig{
			Persona:   "mystical",
			Generator: "template",
		}, logger)
		require.NoError(t, err)

		_, ok := gen.(*generation.TemplateGenerator)
		assert.True(t, ok, "expected the template generator backend")
	})

	t.Run("gemini backend requires an API key", func(t *testing.T) {
		t.Parallel()

		_, err := setupGenerator(context.Background(), config.ChatConfig{
			Persona:   "mystical",
			Generator: "gemini",
			ModelName: "gemini-2.0-flash",
		}, logger)
		assert.Error(t, err)
	})
}

func TestSlogGooseLogger(t *testing.T) {
	t.Parallel()

	// Both methods must forward to slog without exiting the process.
	l := &slogGooseLogger{}
	l.Printf("applying migration %d", 1)
	l.Fatalf("migration %d failed", 1)
}

func TestRunMigrationCommandUnknown(t *testing.T) {
	t.Parallel()

	err := runMigrationCommand(nil, "sideways", slog.Default())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown migration command")
}
