// Package music submits Suno song and lyrics jobs. Both are asynchronous and
// polled through /suno/fetch.
package music

import (
	"context"
	"errors"
	"strings"

	"genstudio/internal/domain"
	"genstudio/internal/providers/gateway"
)

const (
	DefaultMV    = "chirp-v5"
	defaultTitle = "Untitled"
)

type transport interface {
	PostJSON(ctx context.Context, path string, body any) (gateway.Document, error)
}

type customRequest struct {
	Prompt           string `json:"prompt"`
	Tags             string `json:"tags"`
	Title            string `json:"title"`
	MakeInstrumental bool   `json:"make_instrumental"`
	MV               string `json:"mv"`
}

type inspirationRequest struct {
	Prompt           string `json:"prompt"`
	MakeInstrumental bool   `json:"make_instrumental"`
	MV               string `json:"mv"`
}

// Composer submits songs and lyrics.
type Composer struct {
	client transport
	mv     string
}

func NewComposer(client transport, mv string) *Composer {
	if strings.TrimSpace(mv) == "" {
		mv = DefaultMV
	}
	return &Composer{client: client, mv: mv}
}

// Submit starts a song. Custom mode sings the given lyrics in the given style;
// inspiration mode writes its own from a description.
func (c *Composer) Submit(ctx context.Context, cfg domain.GenerationConfig) (domain.Submission, error) {
	if c == nil || c.client == nil {
		return domain.Submission{}, errors.New("music: composer not configured")
	}
	var (
		path string
		body any
	)
	if cfg.MusicMode == domain.MusicModeCustom {
		if strings.TrimSpace(cfg.Lyrics) == "" {
			return domain.Submission{}, domain.Invalid("musicLyrics", "lyrics are required in custom mode")
		}
		if strings.TrimSpace(cfg.Style) == "" {
			return domain.Submission{}, domain.Invalid("musicStyle", "a style is required in custom mode")
		}
		title := strings.TrimSpace(cfg.Title)
		if title == "" {
			title = defaultTitle
		}
		path = "/suno/custom_generate"
		body = customRequest{Prompt: cfg.Lyrics, Tags: cfg.Style, Title: title, MV: c.mv}
	} else {
		if strings.TrimSpace(cfg.Prompt) == "" {
			return domain.Submission{}, domain.Invalid("prompt", "describe the song")
		}
		path = "/suno/generate"
		body = inspirationRequest{Prompt: cfg.Prompt, MakeInstrumental: cfg.Instrumental, MV: c.mv}
	}

	doc, err := c.client.PostJSON(ctx, path, body)
	if err != nil {
		return domain.Submission{}, err
	}
	id := doc.FirstString("id", "data", "task_id")
	if id == "" {
		return domain.Submission{}, &domain.SubmissionError{Status: doc.Status, Message: "no task id returned"}
	}
	return domain.Submission{TaskID: id, Family: domain.FamilySunoMusic}, nil
}

// SubmitLyrics starts a lyrics-writing job and returns its task id.
func (c *Composer) SubmitLyrics(ctx context.Context, prompt string) (string, error) {
	if c == nil || c.client == nil {
		return "", errors.New("music: composer not configured")
	}
	if strings.TrimSpace(prompt) == "" {
		return "", domain.Invalid("prompt", "describe the lyrics")
	}
	doc, err := c.client.PostJSON(ctx, "/suno/submit/lyrics", map[string]string{"prompt": prompt})
	if err != nil {
		return "", err
	}
	id := doc.FirstString("data", "id")
	if id == "" {
		return "", &domain.SubmissionError{Status: doc.Status, Message: "no task id returned"}
	}
	return id, nil
}
