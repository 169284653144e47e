package image

import (
	"context"
	"strings"

	"genstudio/internal/domain"
)

const klingOmniPath = "/kling/v1/images/omni-image"

type klingImageRef struct {
	ImageURL string `json:"image_url,omitempty"`
	Image    string `json:"image,omitempty"`
}

type klingOmniRequest struct {
	ModelName   string          `json:"model_name"`
	Prompt      string          `json:"prompt"`
	N           int             `json:"n"`
	AspectRatio string          `json:"aspect_ratio"`
	Resolution  string          `json:"resolution"`
	ImageList   []klingImageRef `json:"image_list"`
}

// submitKling creates an omni-image task; the result arrives through polling.
func (g *Generator) submitKling(ctx context.Context, cfg domain.GenerationConfig) (domain.Submission, error) {
	refs := make([]klingImageRef, 0, len(cfg.ReferenceImages))
	for _, ref := range cfg.ReferenceImages {
		if ref.IsRemote() {
			refs = append(refs, klingImageRef{ImageURL: ref.Data})
		} else {
			refs = append(refs, klingImageRef{Image: ref.Data})
		}
	}
	req := klingOmniRequest{
		ModelName:   KlingOmniModel,
		Prompt:      cfg.Prompt,
		N:           1,
		AspectRatio: cfg.AspectRatio,
		Resolution:  strings.ToLower(cfg.ImageSize),
		ImageList:   refs,
	}
	doc, err := g.client.PostJSON(ctx, klingOmniPath, req)
	if err != nil {
		return domain.Submission{}, err
	}
	taskID := doc.FirstString("data.task_id")
	if taskID == "" {
		return domain.Submission{}, &domain.SubmissionError{Status: doc.Status, Message: "no task id returned"}
	}
	return domain.Submission{TaskID: taskID, Family: domain.FamilyKlingImage}, nil
}
