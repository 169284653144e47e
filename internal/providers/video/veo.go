package video

import (
	"context"
	"strconv"
	"strings"

	"genstudio/internal/catalog"
	"genstudio/internal/domain"
)

const unifiedCreatePath = "/v1/video/create"

type unifiedCreateRequest struct {
	Model          string   `json:"model"`
	Prompt         string   `json:"prompt"`
	Images         []string `json:"images"`
	AspectRatio    string   `json:"aspect_ratio"`
	EnhancePrompt  bool     `json:"enhance_prompt,omitempty"`
	EnableUpsample bool     `json:"enable_upsample,omitempty"`
	Size           string   `json:"size,omitempty"`
	Duration       int      `json:"duration,omitempty"`
	SyncAudio      bool     `json:"sync_audio,omitempty"`
}

// submitUnified covers veo (non-4K), grok, jimeng and kling text/image to
// video, which share the /v1/video/create envelope.
func (g *Generator) submitUnified(ctx context.Context, cfg domain.GenerationConfig, opt catalog.VideoOption) (domain.Submission, error) {
	model := cfg.ModelID
	if opt.Model != "" {
		model = opt.Model
	}
	images := make([]string, 0, len(cfg.ReferenceImages))
	for _, ref := range cfg.ReferenceImages {
		images = append(images, ref.DataURI())
	}
	req := unifiedCreateRequest{
		Model:       model,
		Prompt:      cfg.Prompt,
		Images:      images,
		AspectRatio: cfg.AspectRatio,
	}
	switch {
	case strings.HasPrefix(cfg.ModelID, "veo"):
		req.EnhancePrompt = true
		req.EnableUpsample = true
	case strings.HasPrefix(cfg.ModelID, "grok"):
		req.Size = "720P"
	case strings.HasPrefix(cfg.ModelID, "jimeng"):
		req.Duration = seconds(opt)
	case isKlingFamily(cfg.ModelID):
		req.Duration = seconds(opt)
		req.SyncAudio = cfg.SyncAudio
	}

	doc, err := g.client.PostJSON(ctx, unifiedCreatePath, req)
	if err != nil {
		return domain.Submission{}, err
	}
	id, err := taskID(doc)
	if err != nil {
		return domain.Submission{}, err
	}
	sub := domain.Submission{TaskID: id, Family: domain.FamilyVideoQuery}
	if model != cfg.ModelID {
		sub.ModelID = model
	}
	if isKlingFamily(cfg.ModelID) {
		endpoint := "text2video"
		if len(cfg.ReferenceImages) > 0 {
			endpoint = "image2video"
		}
		sub.Family = domain.KlingVideoFamily(endpoint)
	}
	return sub, nil
}

func seconds(opt catalog.VideoOption) int {
	n, err := strconv.Atoi(strings.TrimSpace(opt.Seconds))
	if err != nil {
		return 0
	}
	return n
}
