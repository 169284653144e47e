package domain

import (
	"strings"
	"time"
)

// AssetType enumerates generation capabilities.
type AssetType string

const (
	AssetTypeImage AssetType = "image"
	AssetTypeVideo AssetType = "video"
	AssetTypeAudio AssetType = "audio"
	AssetTypeMusic AssetType = "music"
)

// ParseAssetType normalizes free-form input into a supported capability.
func ParseAssetType(raw string) (AssetType, bool) {
	switch AssetType(strings.ToLower(strings.TrimSpace(raw))) {
	case AssetTypeImage:
		return AssetTypeImage, true
	case AssetTypeVideo:
		return AssetTypeVideo, true
	case AssetTypeAudio, "speech", "tts":
		return AssetTypeAudio, true
	case AssetTypeMusic:
		return AssetTypeMusic, true
	default:
		return "", false
	}
}

// AssetStatus enumerates the asset lifecycle states.
type AssetStatus string

const (
	StatusLoading    AssetStatus = "loading"
	StatusQueued     AssetStatus = "queued"
	StatusProcessing AssetStatus = "processing"
	StatusCompleted  AssetStatus = "completed"
	StatusFailed     AssetStatus = "failed"
)

func (s AssetStatus) rank() int {
	switch s {
	case StatusLoading:
		return 0
	case StatusQueued:
		return 1
	case StatusProcessing:
		return 2
	case StatusCompleted, StatusFailed:
		return 3
	default:
		return -1
	}
}

// Terminal reports whether no further transitions may occur.
func (s AssetStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanAdvanceTo reports whether moving from s to next respects the forward-only
// lifecycle. Terminal states absorb every transition.
func (s AssetStatus) CanAdvanceTo(next AssetStatus) bool {
	if s.Terminal() {
		return false
	}
	from, to := s.rank(), next.rank()
	if from < 0 || to < 0 {
		return false
	}
	return to > from
}

// GeneratedAsset is one generation request's outcome. The JSON layout mirrors
// the gallery record so stored assets remain portable between clients.
type GeneratedAsset struct {
	ID           string            `json:"id"`
	URL          string            `json:"url"`
	Type         AssetType         `json:"type"`
	Prompt       string            `json:"prompt"`
	ModelID      string            `json:"modelId"`
	ModelName    string            `json:"modelName"`
	DurationText string            `json:"durationText"`
	GenTimeLabel string            `json:"genTimeLabel"`
	Timestamp    int64             `json:"timestamp"`
	Status       AssetStatus       `json:"status"`
	TaskID       string            `json:"taskId,omitempty"`
	Config       *GenerationConfig `json:"config,omitempty"`
	CoverURL     string            `json:"coverUrl,omitempty"`
	Title        string            `json:"title,omitempty"`
	PollFamily   string            `json:"pollFamily,omitempty"`
	UpdatedAt    int64             `json:"updatedAt,omitempty"`
}

// CreatedAt returns the submission time.
func (a GeneratedAsset) CreatedAt() time.Time {
	return time.UnixMilli(a.Timestamp)
}

// Pending reports whether the asset still waits for a terminal outcome.
func (a GeneratedAsset) Pending() bool {
	return !a.Status.Terminal()
}

// Clone returns a deep copy so callers never share the config snapshot.
func (a GeneratedAsset) Clone() GeneratedAsset {
	out := a
	if a.Config != nil {
		cfg := a.Config.Clone()
		out.Config = &cfg
	}
	return out
}

// Complete marks the asset completed with the given locator. It reports false
// when the transition is not allowed or the locator is empty.
func (a *GeneratedAsset) Complete(url, label string) bool {
	url = strings.TrimSpace(url)
	if url == "" || !a.Status.CanAdvanceTo(StatusCompleted) {
		return false
	}
	a.Status = StatusCompleted
	a.URL = url
	a.GenTimeLabel = label
	return true
}

// Fail marks the asset failed. The locator is cleared so a failed asset is
// never rendered as media.
func (a *GeneratedAsset) Fail(label string) bool {
	if !a.Status.CanAdvanceTo(StatusFailed) {
		return false
	}
	a.Status = StatusFailed
	a.URL = ""
	a.GenTimeLabel = label
	return true
}

// Enqueue records the provider job id after a successful submission.
func (a *GeneratedAsset) Enqueue(taskID, family string) bool {
	taskID = strings.TrimSpace(taskID)
	if taskID == "" || a.TaskID != "" || !a.Status.CanAdvanceTo(StatusQueued) {
		return false
	}
	a.Status = StatusQueued
	a.TaskID = taskID
	a.PollFamily = family
	return true
}

// MarkProcessing records that the provider reported the job as running.
func (a *GeneratedAsset) MarkProcessing() bool {
	if !a.Status.CanAdvanceTo(StatusProcessing) {
		return false
	}
	a.Status = StatusProcessing
	return true
}
