package image

import (
	"context"

	"genstudio/internal/domain"
	"genstudio/internal/providers/gateway"
)

const chatCompletionsPath = "/v1/chat/completions"

type chatImageURL struct {
	URL string `json:"url"`
}

type chatContent struct {
	Type     string        `json:"type"`
	Text     string        `json:"text,omitempty"`
	ImageURL *chatImageURL `json:"image_url,omitempty"`
}

type chatMessage struct {
	Role    string        `json:"role"`
	Content []chatContent `json:"content"`
}

type chatRequest struct {
	Model        string        `json:"model"`
	Messages     []chatMessage `json:"messages"`
	Stream       bool          `json:"stream"`
	AspectRatio  string        `json:"aspect_ratio,omitempty"`
	Size         string        `json:"size,omitempty"`
	Resolution   string        `json:"resolution,omitempty"`
	Transparency string        `json:"transparency,omitempty"`
}

func supportsTransparency(model string) bool {
	return model == "gpt-image-1-all" || model == "gpt-image-1.5-all"
}

// submitChat sends an OpenAI-style chat completion and searches the reply for
// an image link or data URI.
func (g *Generator) submitChat(ctx context.Context, cfg domain.GenerationConfig, allowTransparency bool) (domain.Submission, error) {
	content := []chatContent{{Type: "text", Text: cfg.Prompt + " --aspect-ratio " + cfg.AspectRatio}}
	for _, ref := range cfg.ReferenceImages {
		content = append(content, chatContent{Type: "image_url", ImageURL: &chatImageURL{URL: referenceURL(ref)}})
	}
	req := chatRequest{
		Model:       cfg.ModelID,
		Messages:    []chatMessage{{Role: "user", Content: content}},
		Stream:      false,
		AspectRatio: cfg.AspectRatio,
	}
	if sizeSet(cfg.ImageSize) {
		req.Size = cfg.ImageSize
		req.Resolution = cfg.ImageSize
	}
	if allowTransparency && cfg.Transparent && supportsTransparency(cfg.ModelID) {
		req.Transparency = "alpha"
	}

	doc, err := g.client.PostJSON(ctx, chatCompletionsPath, req)
	if err != nil {
		return domain.Submission{}, err
	}
	url := gateway.FindMediaLocator(doc.Raw())
	if url == "" {
		return domain.Submission{}, noImage(cfg.ModelID)
	}
	return domain.Submission{Locator: url}, nil
}
