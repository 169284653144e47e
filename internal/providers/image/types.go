// Package image submits still-image generations. Gemini and chat-completion
// models answer inline; the kling omni model returns a job to poll.
package image

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"genstudio/internal/domain"
	"genstudio/internal/providers/gateway"
)

const KlingOmniModel = "kling-image-o1"

type transport interface {
	PostJSON(ctx context.Context, path string, body any) (gateway.Document, error)
}

// Generator routes a request to the envelope its model expects.
type Generator struct {
	client transport
}

func NewGenerator(client transport) *Generator {
	return &Generator{client: client}
}

// Submit produces one unit of output for cfg.
func (g *Generator) Submit(ctx context.Context, cfg domain.GenerationConfig) (domain.Submission, error) {
	if g == nil || g.client == nil {
		return domain.Submission{}, errors.New("image: generator not configured")
	}
	switch {
	case cfg.ModelID == KlingOmniModel:
		return g.submitKling(ctx, cfg)
	case strings.HasPrefix(cfg.ModelID, "gemini"):
		return g.submitGemini(ctx, cfg)
	default:
		return g.submitChat(ctx, cfg, true)
	}
}

func noImage(model string) error {
	return fmt.Errorf("image: %s: %w", model, domain.ErrNoResult)
}

// referenceURL renders a reference image as a remote URL or a data URI.
func referenceURL(ref domain.ReferenceMedia) string {
	return ref.DataURI()
}

func sizeSet(size string) bool {
	size = strings.TrimSpace(size)
	return size != "" && !strings.EqualFold(size, "AUTO")
}
