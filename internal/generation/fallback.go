package generation

import (
	"context"
	"log/slog"

	"github.com/requiemhq/requiem-api/internal/platform/logger"
)

// FallbackGenerator tries a primary backend and falls back to a local
// one on any failure, so chat replies are always produced.
type FallbackGenerator struct {
	primary  Generator
	fallback Generator
	logger   *slog.Logger
}

var _ Generator = (*FallbackGenerator)(nil)

// NewFallbackGenerator wraps primary with fallback. The fallback must
// itself be infallible (the template variant in practice).
func NewFallbackGenerator(primary, fallback Generator, log *slog.Logger) *FallbackGenerator {
	if log == nil {
		log = slog.Default()
	}
	return &FallbackGenerator{
		primary:  primary,
		fallback: fallback,
		logger:   log.With("component", "fallback_generator"),
	}
}

// Generate implements Generator. A primary failure is logged and
// swallowed; the fallback's reply is returned instead.
func (g *FallbackGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	reply, err := g.primary.Generate(ctx, prompt)
	if err == nil {
		return reply, nil
	}

	log := logger.FromContextOrDefault(ctx, g.logger)
	log.Warn("primary generator failed, using fallback", "error", err)

	return g.fallback.Generate(ctx, prompt)
}
