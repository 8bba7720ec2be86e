package generation

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Generator defines the interface for producing a chat reply from a
// prompt. It is the boundary between the application core and whichever
// response backend is configured (local template or external model).
type Generator interface {
	// Generate creates a reply for the given prompt text.
	Generate(ctx context.Context, prompt string) (string, error)
}

// Closing lines keyed by persona. Unknown personas fall back to the
// mystical variant.
var personaClosings = map[string]string{
	"mystical":  "Let the nebulae align with your intent.",
	"technical": "System resonance stabilised.",
	"mentor":    "Your journey continues forward; I walk beside you.",
}

const defaultPersona = "mystical"

// TemplateGenerator produces a stylised reply locally, with no external
// dependencies. It is also the mandatory fallback when an external
// backend fails.
type TemplateGenerator struct {
	persona string

	// timeFunc is injectable for testing the rendered timestamp.
	timeFunc func() time.Time
}

var _ Generator = (*TemplateGenerator)(nil)

// NewTemplateGenerator creates a TemplateGenerator for the given
// persona. An unknown or empty persona uses the default.
func NewTemplateGenerator(persona string) *TemplateGenerator {
	if _, ok := personaClosings[persona]; !ok {
		persona = defaultPersona
	}
	return &TemplateGenerator{
		persona:  persona,
		timeFunc: time.Now,
	}
}

// Generate implements Generator. It never fails.
func (g *TemplateGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	timestamp := g.timeFunc().UTC().Format("15:04:05") + " UTC"
	closing := personaClosings[g.persona]

	return fmt.Sprintf(
		"[%s] I have heard your words and let them echo through the midnight halls. "+
			"Here is what I perceive: %s — %s",
		timestamp,
		strings.TrimSpace(prompt),
		closing,
	), nil
}
