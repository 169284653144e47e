package video

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"genstudio/internal/catalog"
	"genstudio/internal/domain"
	"genstudio/internal/providers/gateway"
	"genstudio/internal/storage"
)

const openAIVideosPath = "/v1/videos"

// submitOpenAI posts the OpenAI-style multipart form used by sora and the 4K
// veo variants. Reference images travel as input_reference file parts.
func (g *Generator) submitOpenAI(ctx context.Context, cfg domain.GenerationConfig, opt catalog.VideoOption) (domain.Submission, error) {
	fields := map[string]string{
		"model":     cfg.ModelID,
		"prompt":    cfg.Prompt,
		"seconds":   opt.Seconds,
		"size":      strings.Replace(cfg.AspectRatio, ":", "x", 1),
		"watermark": "false",
	}
	files := make([]gateway.File, 0, len(cfg.ReferenceImages))
	for i, ref := range cfg.ReferenceImages {
		data, mime, err := g.referenceBytes(ctx, ref)
		if err != nil {
			return domain.Submission{}, err
		}
		files = append(files, gateway.File{
			Field:       "input_reference",
			Name:        fmt.Sprintf("reference_%d.png", i),
			ContentType: mime,
			Data:        data,
		})
	}

	doc, err := g.client.PostMultipart(ctx, openAIVideosPath, fields, files)
	if err != nil {
		return domain.Submission{}, err
	}
	id, err := taskID(doc)
	if err != nil {
		return domain.Submission{}, err
	}
	return domain.Submission{TaskID: id, Family: pollFamily(cfg.ModelID)}, nil
}

// Remix asks the provider to re-render an existing job with a new prompt. The
// result is a new job polled like the source model's.
func (g *Generator) Remix(ctx context.Context, sourceTaskID, modelID, prompt string) (domain.Submission, error) {
	if strings.TrimSpace(sourceTaskID) == "" {
		return domain.Submission{}, domain.Invalid("taskId", "source video has no task id")
	}
	if strings.TrimSpace(prompt) == "" {
		return domain.Submission{}, domain.Invalid("prompt", "remix prompt is required")
	}
	path := fmt.Sprintf("%s/%s/remix", openAIVideosPath, url.PathEscape(sourceTaskID))
	doc, err := g.client.PostJSON(ctx, path, map[string]string{"prompt": prompt})
	if err != nil {
		return domain.Submission{}, err
	}
	id := doc.FirstString("id", "data.id", "task_id")
	if id == "" {
		return domain.Submission{}, &domain.SubmissionError{Status: doc.Status, Message: "no task id returned"}
	}
	return domain.Submission{TaskID: id, Family: pollFamily(modelID)}, nil
}

func pollFamily(modelID string) string {
	if domain.UsesVideoQuery(modelID) {
		return domain.FamilyVideoQuery
	}
	return domain.FamilyVideoOpenAI
}

func (g *Generator) referenceBytes(ctx context.Context, ref domain.ReferenceMedia) ([]byte, string, error) {
	mime := ref.MIMEType
	if mime == "" {
		mime = "image/png"
	}
	if ref.IsRemote() {
		data, contentType, err := g.client.Download(ctx, ref.Data)
		if err != nil {
			return nil, "", fmt.Errorf("video: fetch reference: %w", err)
		}
		if contentType != "" {
			mime = contentType
		}
		return data, mime, nil
	}
	data, err := storage.DecodeBase64(ref.Data)
	if err != nil {
		return nil, "", domain.Invalid("referenceImages", "reference %q is not valid base64", ref.Name)
	}
	return data, mime, nil
}
