package image

import (
	"context"
	"errors"

	"genstudio/internal/domain"
	"genstudio/internal/providers/gateway"
	"genstudio/internal/providers/genai"
)

// submitGemini asks generateContent for an IMAGE modality. When the answer
// carries no image the request is retried through chat completions.
func (g *Generator) submitGemini(ctx context.Context, cfg domain.GenerationConfig) (domain.Submission, error) {
	parts := []genai.Part{genai.TextPart(cfg.Prompt)}
	for _, ref := range cfg.ReferenceImages {
		parts = append(parts, genai.MediaPart(ref))
	}
	imageCfg := &genai.ImageConfig{AspectRatio: cfg.AspectRatio}
	if sizeSet(cfg.ImageSize) {
		imageCfg.ImageSize = cfg.ImageSize
	}
	req := genai.GenerateContentRequest{
		Contents: []genai.Content{{Parts: parts}},
		GenerationConfig: &genai.GenerationConfig{
			ResponseModalities: []string{"IMAGE"},
			ImageConfig:        imageCfg,
		},
	}

	doc, err := g.client.PostJSON(ctx, genai.GenerateContentPath(cfg.ModelID), req)
	if err != nil {
		if errors.Is(err, domain.ErrAuthMissing) || ctx.Err() != nil {
			return domain.Submission{}, err
		}
		return g.submitChat(ctx, cfg, false)
	}
	if mime, data, ok := genai.FindInlineData(doc); ok {
		if mime == "" {
			mime = "image/png"
		}
		return domain.Submission{Locator: "data:" + mime + ";base64," + data}, nil
	}
	if url := gateway.FindMediaLocator(doc.Raw()); url != "" {
		return domain.Submission{Locator: url}, nil
	}
	return g.submitChat(ctx, cfg, false)
}
