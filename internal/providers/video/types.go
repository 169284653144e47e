// Package video submits video generations and remixes. Every video model is
// asynchronous; Submit returns the job id and the family that polls it.
package video

import (
	"context"
	"errors"
	"strings"

	"genstudio/internal/catalog"
	"genstudio/internal/domain"
	"genstudio/internal/providers/gateway"
)

const (
	MotionControlModel = "kling-motion-control"
	AvatarModel        = "kling-avatar-image2video"
	KlingVideoModel    = "kling-video"
)

type transport interface {
	PostJSON(ctx context.Context, path string, body any) (gateway.Document, error)
	PostMultipart(ctx context.Context, path string, fields map[string]string, files []gateway.File) (gateway.Document, error)
	Download(ctx context.Context, url string) ([]byte, string, error)
}

// Generator routes a request to the envelope its model expects.
type Generator struct {
	client  transport
	catalog *catalog.Catalog
}

func NewGenerator(client transport, models *catalog.Catalog) *Generator {
	if models == nil {
		models = catalog.Default()
	}
	return &Generator{client: client, catalog: models}
}

// Submit creates one video job for cfg.
func (g *Generator) Submit(ctx context.Context, cfg domain.GenerationConfig) (domain.Submission, error) {
	if g == nil || g.client == nil {
		return domain.Submission{}, errors.New("video: generator not configured")
	}
	model, ok := g.catalog.Video(cfg.ModelID)
	if !ok && cfg.ModelID != KlingVideoModel {
		return domain.Submission{}, domain.Invalid("modelId", "model %q is not available for video", cfg.ModelID)
	}
	var opt catalog.VideoOption
	if len(model.Options) > 0 {
		opt, _ = model.Option(cfg.OptionIndex)
	}

	switch {
	case cfg.ModelID == MotionControlModel:
		return g.submitMotionControl(ctx, cfg, opt)
	case cfg.ModelID == AvatarModel:
		return g.submitAvatar(ctx, cfg, opt)
	case usesUnifiedCreate(cfg.ModelID):
		return g.submitUnified(ctx, cfg, opt)
	default:
		return g.submitOpenAI(ctx, cfg, opt)
	}
}

// usesUnifiedCreate reports models created through /v1/video/create.
func usesUnifiedCreate(modelID string) bool {
	return domain.UsesVideoQuery(modelID)
}

func klingMode(opt catalog.VideoOption) string {
	if opt.Mode == "" {
		return "std"
	}
	return opt.Mode
}

// taskID pulls the job id from the places video providers put it.
func taskID(doc gateway.Document) (string, error) {
	id := doc.FirstString("id", "data.id", "data.task_id", "task_id", "taskId")
	if id == "" {
		return "", &domain.SubmissionError{Status: doc.Status, Message: "no task id returned"}
	}
	return id, nil
}

func isKlingFamily(modelID string) bool {
	return strings.HasPrefix(modelID, "kling")
}
