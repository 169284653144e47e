package video

import (
	"context"

	"genstudio/internal/catalog"
	"genstudio/internal/domain"
)

type motionControlRequest struct {
	Prompt               string `json:"prompt,omitempty"`
	KeepOriginalSound    string `json:"keep_original_sound"`
	CharacterOrientation string `json:"character_orientation"`
	Mode                 string `json:"mode"`
	ImageURL             string `json:"image_url,omitempty"`
	Image                string `json:"image,omitempty"`
	VideoURL             string `json:"video_url,omitempty"`
	Video                string `json:"video,omitempty"`
}

type avatarRequest struct {
	SoundFile      string `json:"sound_file"`
	Prompt         string `json:"prompt"`
	Mode           string `json:"mode"`
	CallbackURL    string `json:"callback_url"`
	ExternalTaskID string `json:"external_task_id"`
	ImageURL       string `json:"image_url,omitempty"`
	Image          string `json:"image,omitempty"`
}

// submitMotionControl transfers the motion of a reference video onto the
// character in a reference image.
func (g *Generator) submitMotionControl(ctx context.Context, cfg domain.GenerationConfig, opt catalog.VideoOption) (domain.Submission, error) {
	if len(cfg.ReferenceImages) == 0 {
		return domain.Submission{}, domain.Invalid("referenceImages", "motion control needs a reference image")
	}
	if cfg.ReferenceVideo == nil {
		return domain.Submission{}, domain.Invalid("referenceVideo", "motion control needs a reference video")
	}
	keep := "no"
	if cfg.KeepSound {
		keep = "yes"
	}
	orientation := cfg.Orientation
	if orientation == "" {
		orientation = "video"
	}
	req := motionControlRequest{
		Prompt:               cfg.Prompt,
		KeepOriginalSound:    keep,
		CharacterOrientation: orientation,
		Mode:                 klingMode(opt),
	}
	if img := cfg.ReferenceImages[0]; img.IsRemote() {
		req.ImageURL = img.Data
	} else {
		req.Image = img.Data
	}
	if cfg.ReferenceVideo.IsRemote() {
		req.VideoURL = cfg.ReferenceVideo.Data
	} else {
		req.Video = cfg.ReferenceVideo.Data
	}
	return g.submitKling(ctx, "motion-control", req)
}

// submitAvatar animates a portrait with a driving audio clip.
func (g *Generator) submitAvatar(ctx context.Context, cfg domain.GenerationConfig, opt catalog.VideoOption) (domain.Submission, error) {
	if len(cfg.ReferenceImages) == 0 {
		return domain.Submission{}, domain.Invalid("referenceImages", "avatar needs a portrait image")
	}
	if cfg.ReferenceAudio == nil {
		return domain.Submission{}, domain.Invalid("referenceAudio", "avatar needs a driving audio clip")
	}
	req := avatarRequest{
		SoundFile: cfg.ReferenceAudio.Data,
		Prompt:    cfg.Prompt,
		Mode:      klingMode(opt),
	}
	if img := cfg.ReferenceImages[0]; img.IsRemote() {
		req.ImageURL = img.Data
	} else {
		req.Image = img.Data
	}
	return g.submitKling(ctx, "avatar/image2video", req)
}

func (g *Generator) submitKling(ctx context.Context, endpoint string, body any) (domain.Submission, error) {
	doc, err := g.client.PostJSON(ctx, "/kling/v1/videos/"+endpoint, body)
	if err != nil {
		return domain.Submission{}, err
	}
	id := doc.FirstString("data.task_id")
	if id == "" {
		return domain.Submission{}, &domain.SubmissionError{Status: doc.Status, Message: "no task id returned"}
	}
	return domain.Submission{TaskID: id, Family: domain.KlingVideoFamily(endpoint)}, nil
}
