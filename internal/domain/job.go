package domain

import "strings"

// ReferenceMedia is an uploaded image, video or audio clip used as
// conditioning input. Data holds either a base64 payload (without the data:
// prefix) or a remote http(s) URL.
type ReferenceMedia struct {
	ID              string  `json:"id,omitempty"`
	MIMEType        string  `json:"mimeType"`
	Data            string  `json:"data"`
	Name            string  `json:"name,omitempty"`
	DurationSeconds float64 `json:"duration,omitempty"`
}

// IsRemote reports whether the payload is a remote URL rather than inline bytes.
func (m ReferenceMedia) IsRemote() bool {
	d := strings.TrimSpace(m.Data)
	return strings.HasPrefix(d, "http://") || strings.HasPrefix(d, "https://")
}

// DataURI renders the payload the way OpenAI-compatible endpoints expect it.
func (m ReferenceMedia) DataURI() string {
	if m.IsRemote() {
		return strings.TrimSpace(m.Data)
	}
	return "data:" + m.MIMEType + ";base64," + m.Data
}

// Speaker maps a script speaker name onto a prebuilt voice.
type Speaker struct {
	Name  string `json:"name"`
	Voice string `json:"voice"`
}

// MusicMode selects between lyric-driven and description-driven songs.
type MusicMode string

const (
	MusicModeCustom      MusicMode = "custom"
	MusicModeInspiration MusicMode = "inspiration"
)

// GenerationConfig is the snapshot of parameters used to produce an asset. It
// is retained on the asset so the same settings can be submitted again.
type GenerationConfig struct {
	Type            AssetType        `json:"type"`
	ModelID         string           `json:"modelId"`
	Prompt          string           `json:"prompt"`
	AspectRatio     string           `json:"aspectRatio,omitempty"`
	ImageSize       string           `json:"imageSize,omitempty"`
	Transparent     bool             `json:"isTransparent,omitempty"`
	OptionIndex     int              `json:"videoOptionIdx,omitempty"`
	ReferenceImages []ReferenceMedia `json:"referenceImages,omitempty"`
	ReferenceVideo  *ReferenceMedia  `json:"referenceVideo,omitempty"`
	ReferenceAudio  *ReferenceMedia  `json:"referenceAudio,omitempty"`
	SyncAudio       bool             `json:"isSyncAudio,omitempty"`
	Orientation     string           `json:"klingOrientation,omitempty"`
	KeepSound       bool             `json:"klingKeepSound,omitempty"`
	Voice           string           `json:"selectedVoice,omitempty"`
	MultiSpeaker    bool             `json:"multiSpeaker,omitempty"`
	Speakers        []Speaker        `json:"speakerMap,omitempty"`
	MusicMode       MusicMode        `json:"musicTab,omitempty"`
	Lyrics          string           `json:"musicLyrics,omitempty"`
	Style           string           `json:"musicStyle,omitempty"`
	Title           string           `json:"musicTitle,omitempty"`
	Instrumental    bool             `json:"isInstrumental,omitempty"`
	RemixOf         string           `json:"remixOf,omitempty"`
	// Locale selects the language of the asset's status labels.
	Locale string `json:"locale,omitempty"`
}

// Clone returns a deep copy of the snapshot.
func (c GenerationConfig) Clone() GenerationConfig {
	out := c
	if len(c.ReferenceImages) > 0 {
		out.ReferenceImages = append([]ReferenceMedia(nil), c.ReferenceImages...)
	}
	if c.ReferenceVideo != nil {
		v := *c.ReferenceVideo
		out.ReferenceVideo = &v
	}
	if c.ReferenceAudio != nil {
		a := *c.ReferenceAudio
		out.ReferenceAudio = &a
	}
	if len(c.Speakers) > 0 {
		out.Speakers = append([]Speaker(nil), c.Speakers...)
	}
	return out
}

// GenerateRequest is a user-specified generation request.
type GenerateRequest struct {
	GenerationConfig
	Count int `json:"count"`
}

// Submission is the normalized provider outcome for one unit of output: either
// an inline locator or an async job identifier that must be polled.
type Submission struct {
	Locator  string
	CoverURL string
	Title    string
	TaskID   string
	Family   string
	// ModelID overrides the asset model when the provider routes to a variant.
	ModelID string
}

// Async reports whether the submission must be polled.
func (s Submission) Async() bool {
	return strings.TrimSpace(s.TaskID) != ""
}

// Polling families. Each maps to a status endpoint and a response layout.
const (
	FamilyKlingImage  = "kling-image"
	FamilyVideoQuery  = "video-query"
	FamilyVideoOpenAI = "video-openai"
	FamilySunoMusic   = "suno-music"
	FamilySunoLyrics  = "suno-lyrics"

	klingVideoPrefix = "kling-video/"
)

// KlingVideoFamily returns the family for a kling video endpoint such as
// "text2video" or "avatar/image2video".
func KlingVideoFamily(endpoint string) string {
	return klingVideoPrefix + strings.Trim(endpoint, "/")
}

// KlingVideoEndpoint reports the endpoint encoded in a kling video family.
func KlingVideoEndpoint(family string) (string, bool) {
	if !strings.HasPrefix(family, klingVideoPrefix) {
		return "", false
	}
	ep := strings.TrimPrefix(family, klingVideoPrefix)
	return ep, ep != ""
}

// UsesVideoQuery reports whether a model's jobs are polled through the
// unified /v1/video/query endpoint rather than the OpenAI-style one.
func UsesVideoQuery(modelID string) bool {
	return (strings.HasPrefix(modelID, "veo") && !strings.Contains(modelID, "4K")) ||
		strings.HasPrefix(modelID, "grok") ||
		strings.HasPrefix(modelID, "jimeng") ||
		strings.HasPrefix(modelID, "kling")
}

// InferFamily derives the polling family for records stored without one.
func InferFamily(a GeneratedAsset) string {
	if a.PollFamily != "" {
		return a.PollFamily
	}
	switch a.Type {
	case AssetTypeMusic:
		return FamilySunoMusic
	case AssetTypeImage:
		if a.ModelID == "kling-image-o1" {
			return FamilyKlingImage
		}
		return ""
	case AssetTypeVideo:
		switch a.ModelID {
		case "kling-avatar-image2video":
			return KlingVideoFamily("avatar/image2video")
		case "kling-motion-control":
			return KlingVideoFamily("motion-control")
		case "kling-video":
			if a.Config != nil && len(a.Config.ReferenceImages) > 0 {
				return KlingVideoFamily("image2video")
			}
			return KlingVideoFamily("text2video")
		}
		if UsesVideoQuery(a.ModelID) {
			return FamilyVideoQuery
		}
		return FamilyVideoOpenAI
	}
	return ""
}
