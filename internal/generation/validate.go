package generation

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"genstudio/internal/catalog"
	"genstudio/internal/domain"
)

const (
	maxImageBytes    = 10 << 20
	maxVideoBytes    = 100 << 20
	maxAudioBytes    = 5 << 20
	minAudioSeconds  = 2
	maxAudioSeconds  = 60
	defaultImageSize = "AUTO"
	promptPreviewLen = 50
)

// plan is a validated request ready to be materialized.
type plan struct {
	cfg          domain.GenerationConfig
	model        catalog.Model
	count        int
	durationText string
	prompt       string
}

// normalize validates req against the catalog, fills defaults and clamps the
// output count. No network call is made.
func normalize(models *catalog.Catalog, req domain.GenerateRequest) (plan, error) {
	cfg := req.GenerationConfig.Clone()
	t, ok := domain.ParseAssetType(string(cfg.Type))
	if !ok {
		return plan{}, domain.Invalid("type", "unsupported capability %q", cfg.Type)
	}
	cfg.Type = t
	cfg.ModelID = strings.TrimSpace(cfg.ModelID)
	if cfg.ModelID == "" {
		cfg.ModelID = models.DefaultModel(t)
	}
	model, err := models.Resolve(t, cfg.ModelID)
	if err != nil {
		return plan{}, err
	}

	p := plan{model: model}
	switch t {
	case domain.AssetTypeImage:
		err = normalizeImage(models, &cfg, &p)
	case domain.AssetTypeVideo:
		err = normalizeVideo(models, &cfg, &p)
	case domain.AssetTypeAudio:
		err = normalizeAudio(models, &cfg, &p)
	case domain.AssetTypeMusic:
		err = normalizeMusic(&cfg, &p)
	}
	if err != nil {
		return plan{}, err
	}
	if len(cfg.ReferenceImages) > model.MaxReferenceImages {
		return plan{}, domain.Invalid("referenceImages", "%s accepts at most %d reference image(s), got %d",
			model.Name, model.MaxReferenceImages, len(cfg.ReferenceImages))
	}
	for i, ref := range cfg.ReferenceImages {
		if err := checkImage(ref, i); err != nil {
			return plan{}, err
		}
	}

	p.cfg = cfg
	if p.prompt == "" {
		p.prompt = cfg.Prompt
	}
	p.count = clampCount(req.Count, models.MaxOutputs, model.SingleOutput)
	return p, nil
}

func normalizeImage(models *catalog.Catalog, cfg *domain.GenerationConfig, p *plan) error {
	m, _ := models.Image(cfg.ModelID)
	if strings.TrimSpace(cfg.Prompt) == "" {
		return domain.Invalid("prompt", "a prompt is required")
	}
	if cfg.AspectRatio == "" {
		cfg.AspectRatio = "1:1"
	}
	if len(m.Ratios) > 0 && !containsFold(m.Ratios, cfg.AspectRatio) {
		return domain.Invalid("aspectRatio", "%s does not support ratio %s", m.Name, cfg.AspectRatio)
	}
	if cfg.ImageSize == "" {
		cfg.ImageSize = defaultImageSize
		if len(m.Resolutions) > 0 && !containsFold(m.Resolutions, defaultImageSize) {
			cfg.ImageSize = m.Resolutions[0]
		}
	}
	if len(m.Resolutions) > 0 && !containsFold(m.Resolutions, cfg.ImageSize) {
		return domain.Invalid("imageSize", "%s does not support size %s", m.Name, cfg.ImageSize)
	}
	if !m.Transparency {
		cfg.Transparent = false
	}
	cfg.ReferenceVideo, cfg.ReferenceAudio = nil, nil
	p.durationText = cfg.ImageSize
	return nil
}

func normalizeVideo(models *catalog.Catalog, cfg *domain.GenerationConfig, p *plan) error {
	m, _ := models.Video(cfg.ModelID)
	if !m.PromptOptional && strings.TrimSpace(cfg.Prompt) == "" {
		return domain.Invalid("prompt", "a prompt is required")
	}
	if cfg.AspectRatio == "" && len(m.Ratios) > 0 {
		cfg.AspectRatio = m.Ratios[0]
	}
	if len(m.Ratios) > 0 && !containsFold(m.Ratios, cfg.AspectRatio) {
		return domain.Invalid("aspectRatio", "%s does not support ratio %s", m.Name, cfg.AspectRatio)
	}
	opt, idx := m.Option(cfg.OptionIndex)
	cfg.OptionIndex = idx
	p.durationText = opt.DurationText()

	switch cfg.ModelID {
	case "kling-motion-control":
		if cfg.Orientation == "" {
			cfg.Orientation = "video"
		}
		if cfg.Orientation != "video" && cfg.Orientation != "image" {
			return domain.Invalid("klingOrientation", "orientation must be video or image")
		}
		if len(cfg.ReferenceImages) == 0 {
			return domain.Invalid("referenceImages", "motion control needs a character image")
		}
		if cfg.ReferenceVideo == nil {
			return domain.Invalid("referenceVideo", "motion control needs a motion video")
		}
		cfg.ReferenceAudio = nil
	case "kling-avatar-image2video":
		if len(cfg.ReferenceImages) == 0 {
			return domain.Invalid("referenceImages", "avatar needs a portrait image")
		}
		if cfg.ReferenceAudio == nil {
			return domain.Invalid("referenceAudio", "avatar needs a driving audio clip")
		}
		cfg.ReferenceVideo = nil
	default:
		cfg.ReferenceVideo, cfg.ReferenceAudio = nil, nil
	}
	if cfg.ReferenceVideo != nil {
		if err := checkVideo(*cfg.ReferenceVideo); err != nil {
			return err
		}
	}
	if cfg.ReferenceAudio != nil {
		if err := checkAudio(*cfg.ReferenceAudio); err != nil {
			return err
		}
	}
	return nil
}

func normalizeAudio(models *catalog.Catalog, cfg *domain.GenerationConfig, p *plan) error {
	if strings.TrimSpace(cfg.Prompt) == "" {
		return domain.Invalid("prompt", "text to speak is required")
	}
	cfg.ReferenceImages, cfg.ReferenceVideo, cfg.ReferenceAudio = nil, nil, nil
	if cfg.MultiSpeaker {
		if len(cfg.Speakers) == 0 {
			return domain.Invalid("speakerMap", "add at least one speaker")
		}
		for i, sp := range cfg.Speakers {
			if strings.TrimSpace(sp.Name) == "" || strings.TrimSpace(sp.Voice) == "" {
				return domain.Invalid("speakerMap", "speaker %d needs a name and a voice", i+1)
			}
		}
		p.durationText = fmt.Sprintf("Multi-Speaker (%d)", len(cfg.Speakers))
		return nil
	}
	if strings.TrimSpace(cfg.Voice) == "" {
		cfg.Voice = "Puck"
	}
	p.durationText = models.VoiceName(cfg.Voice)
	return nil
}

func normalizeMusic(cfg *domain.GenerationConfig, p *plan) error {
	cfg.ReferenceImages, cfg.ReferenceVideo, cfg.ReferenceAudio = nil, nil, nil
	if cfg.MusicMode == "" {
		cfg.MusicMode = domain.MusicModeInspiration
	}
	switch cfg.MusicMode {
	case domain.MusicModeCustom:
		if strings.TrimSpace(cfg.Lyrics) == "" {
			return domain.Invalid("musicLyrics", "lyrics are required in custom mode")
		}
		if strings.TrimSpace(cfg.Style) == "" {
			return domain.Invalid("musicStyle", "a style is required in custom mode")
		}
		cfg.Prompt = ""
		p.durationText = "Custom"
		p.prompt = preview(cfg.Lyrics)
	case domain.MusicModeInspiration:
		if strings.TrimSpace(cfg.Prompt) == "" {
			return domain.Invalid("prompt", "describe the song")
		}
		p.durationText = "Inspiration"
		p.prompt = preview(cfg.Prompt)
	default:
		return domain.Invalid("musicTab", "unknown music mode %q", cfg.MusicMode)
	}
	return nil
}

func clampCount(requested, max int, single bool) int {
	if single || requested < 1 {
		return 1
	}
	if max > 0 && requested > max {
		return max
	}
	return requested
}

func checkImage(ref domain.ReferenceMedia, idx int) error {
	mime := strings.ToLower(ref.MIMEType)
	if mime != "image/jpeg" && mime != "image/jpg" && mime != "image/png" {
		return domain.Invalid("referenceImages", "image %d must be JPEG or PNG, got %q", idx+1, ref.MIMEType)
	}
	if size := payloadSize(ref); size > maxImageBytes {
		return domain.Invalid("referenceImages", "image %d exceeds 10MB", idx+1)
	}
	return nil
}

func checkVideo(ref domain.ReferenceMedia) error {
	if !strings.HasPrefix(strings.ToLower(ref.MIMEType), "video/") {
		return domain.Invalid("referenceVideo", "reference video must be a video file, got %q", ref.MIMEType)
	}
	if payloadSize(ref) > maxVideoBytes {
		return domain.Invalid("referenceVideo", "reference video exceeds 100MB")
	}
	return nil
}

func checkAudio(ref domain.ReferenceMedia) error {
	if !strings.HasPrefix(strings.ToLower(ref.MIMEType), "audio/") {
		return domain.Invalid("referenceAudio", "reference audio must be an audio file, got %q", ref.MIMEType)
	}
	if payloadSize(ref) > maxAudioBytes {
		return domain.Invalid("referenceAudio", "reference audio exceeds 5MB")
	}
	if d := ref.DurationSeconds; d > 0 && (d < minAudioSeconds || d > maxAudioSeconds) {
		return domain.Invalid("referenceAudio", "reference audio must last 2 to 60 seconds, got %.1fs", d)
	}
	return nil
}

// payloadSize estimates the decoded size of an inline base64 payload. Remote
// references are not measured.
func payloadSize(ref domain.ReferenceMedia) int {
	if ref.IsRemote() {
		return 0
	}
	data := strings.TrimRight(strings.TrimSpace(ref.Data), "=")
	return len(data) * 3 / 4
}

func preview(s string) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= promptPreviewLen {
		return s
	}
	return string([]rune(s)[:promptPreviewLen]) + "..."
}

func containsFold(list []string, v string) bool {
	for _, item := range list {
		if strings.EqualFold(item, v) {
			return true
		}
	}
	return false
}
