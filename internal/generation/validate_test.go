package generation

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"genstudio/internal/catalog"
	"genstudio/internal/domain"
)

func TestNormalizeDefaults(t *testing.T) {
	models := catalog.Default()

	p, err := normalize(models, domain.GenerateRequest{
		GenerationConfig: domain.GenerationConfig{Type: "IMAGE", Prompt: "fox"},
		Count:            50,
	})
	require.NoError(t, err)
	require.Equal(t, domain.AssetTypeImage, p.cfg.Type)
	require.Equal(t, models.DefaultModel(domain.AssetTypeImage), p.cfg.ModelID)
	require.Equal(t, "1:1", p.cfg.AspectRatio)
	require.Equal(t, models.MaxOutputs, p.count)

	p, err = normalize(models, domain.GenerateRequest{
		GenerationConfig: domain.GenerationConfig{Type: domain.AssetTypeImage, ModelID: "gemini-3-pro-image-preview", Prompt: "fox"},
	})
	require.NoError(t, err)
	require.Equal(t, "1K", p.cfg.ImageSize)
	require.Equal(t, "1K", p.durationText)
	require.Equal(t, 1, p.count)
}

func TestNormalizeRejections(t *testing.T) {
	models := catalog.Default()
	png := domain.ReferenceMedia{MIMEType: "image/png", Data: "aGVsbG8="}
	cases := []struct {
		name  string
		cfg   domain.GenerationConfig
		field string
	}{
		{"unknown type", domain.GenerationConfig{Type: "hologram", Prompt: "x"}, "type"},
		{"empty prompt", domain.GenerationConfig{Type: domain.AssetTypeImage, Prompt: "  "}, "prompt"},
		{"bad ratio", domain.GenerationConfig{Type: domain.AssetTypeImage, Prompt: "x", AspectRatio: "7:1"}, "aspectRatio"},
		{"gif reference", domain.GenerationConfig{Type: domain.AssetTypeImage, Prompt: "x",
			ReferenceImages: []domain.ReferenceMedia{{MIMEType: "image/gif", Data: "aGVsbG8="}}}, "referenceImages"},
		{"oversized reference", domain.GenerationConfig{Type: domain.AssetTypeImage, Prompt: "x",
			ReferenceImages: []domain.ReferenceMedia{{MIMEType: "image/png", Data: strings.Repeat("A", 15<<20)}}}, "referenceImages"},
		{"motion without video", domain.GenerationConfig{Type: domain.AssetTypeVideo, ModelID: "kling-motion-control",
			ReferenceImages: []domain.ReferenceMedia{png}}, "referenceVideo"},
		{"motion bad orientation", domain.GenerationConfig{Type: domain.AssetTypeVideo, ModelID: "kling-motion-control", Orientation: "sideways",
			ReferenceImages: []domain.ReferenceMedia{png}, ReferenceVideo: &domain.ReferenceMedia{MIMEType: "video/mp4", Data: "AAAA"}}, "klingOrientation"},
		{"avatar without audio", domain.GenerationConfig{Type: domain.AssetTypeVideo, ModelID: "kling-avatar-image2video",
			ReferenceImages: []domain.ReferenceMedia{png}}, "referenceAudio"},
		{"avatar audio too short", domain.GenerationConfig{Type: domain.AssetTypeVideo, ModelID: "kling-avatar-image2video",
			ReferenceImages: []domain.ReferenceMedia{png}, ReferenceAudio: &domain.ReferenceMedia{MIMEType: "audio/mpeg", Data: "AAAA", DurationSeconds: 1.2}}, "referenceAudio"},
		{"multi speaker without speakers", domain.GenerationConfig{Type: domain.AssetTypeAudio, Prompt: "hi", MultiSpeaker: true}, "speakerMap"},
		{"custom music without style", domain.GenerationConfig{Type: domain.AssetTypeMusic, MusicMode: domain.MusicModeCustom, Lyrics: "la la"}, "musicStyle"},
		{"unknown model", domain.GenerationConfig{Type: domain.AssetTypeVideo, ModelID: "nope", Prompt: "x"}, "modelId"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := normalize(models, domain.GenerateRequest{GenerationConfig: tc.cfg, Count: 1})
			require.ErrorIs(t, err, domain.ErrValidation)
			var verr *domain.ValidationError
			require.ErrorAs(t, err, &verr)
			require.Equal(t, tc.field, verr.Field)
		})
	}
}

func TestNormalizeVideoPerModel(t *testing.T) {
	models := catalog.Default()
	png := domain.ReferenceMedia{MIMEType: "image/png", Data: "aGVsbG8="}

	p, err := normalize(models, domain.GenerateRequest{
		GenerationConfig: domain.GenerationConfig{
			Type: domain.AssetTypeVideo, ModelID: "kling-motion-control",
			ReferenceImages: []domain.ReferenceMedia{png},
			ReferenceVideo:  &domain.ReferenceMedia{MIMEType: "video/mp4", Data: "AAAA"},
			ReferenceAudio:  &domain.ReferenceMedia{MIMEType: "audio/mpeg", Data: "AAAA"},
			OptionIndex:     1,
		},
		Count: 4,
	})
	require.NoError(t, err)
	require.Equal(t, 1, p.count)
	require.Equal(t, "video", p.cfg.Orientation)
	require.Equal(t, "Auto", p.durationText)
	require.Nil(t, p.cfg.ReferenceAudio)
	require.Equal(t, 1, p.cfg.OptionIndex)

	p, err = normalize(models, domain.GenerateRequest{
		GenerationConfig: domain.GenerationConfig{
			Type: domain.AssetTypeVideo, ModelID: "sora-2-all", Prompt: "city", OptionIndex: 9,
			ReferenceVideo: &domain.ReferenceMedia{MIMEType: "video/mp4", Data: "AAAA"},
		},
		Count: 2,
	})
	require.NoError(t, err)
	require.Equal(t, 0, p.cfg.OptionIndex)
	require.Equal(t, "10s", p.durationText)
	require.Nil(t, p.cfg.ReferenceVideo)
	require.Equal(t, 2, p.count)
}

func TestNormalizeAudioAndMusic(t *testing.T) {
	models := catalog.Default()

	p, err := normalize(models, domain.GenerateRequest{
		GenerationConfig: domain.GenerationConfig{Type: "tts", Prompt: "hello"}, Count: 3,
	})
	require.NoError(t, err)
	require.Equal(t, "Puck", p.cfg.Voice)
	require.Equal(t, models.VoiceName("Puck"), p.durationText)
	require.Equal(t, 1, p.count)

	p, err = normalize(models, domain.GenerateRequest{GenerationConfig: domain.GenerationConfig{
		Type: domain.AssetTypeAudio, Prompt: "dialog", MultiSpeaker: true,
		Speakers: []domain.Speaker{{Name: "Ann", Voice: "Zephyr"}, {Name: "Bob", Voice: "Charon"}},
	}})
	require.NoError(t, err)
	require.Equal(t, "Multi-Speaker (2)", p.durationText)

	lyrics := strings.Repeat("la ", 40)
	p, err = normalize(models, domain.GenerateRequest{GenerationConfig: domain.GenerationConfig{
		Type: domain.AssetTypeMusic, MusicMode: domain.MusicModeCustom, Lyrics: lyrics, Style: "synthwave", Prompt: "ignored",
	}})
	require.NoError(t, err)
	require.Equal(t, "Custom", p.durationText)
	require.Empty(t, p.cfg.Prompt)
	require.True(t, strings.HasSuffix(p.prompt, "..."))
	require.Len(t, []rune(p.prompt), promptPreviewLen+3)

	p, err = normalize(models, domain.GenerateRequest{GenerationConfig: domain.GenerationConfig{
		Type: domain.AssetTypeMusic, Prompt: "short song",
	}})
	require.NoError(t, err)
	require.Equal(t, domain.MusicModeInspiration, p.cfg.MusicMode)
	require.Equal(t, "Inspiration", p.durationText)
	require.Equal(t, "short song", p.prompt)
}

func TestRemoteReferencesAreNotMeasured(t *testing.T) {
	require.Zero(t, payloadSize(domain.ReferenceMedia{MIMEType: "image/png", Data: "https://cdn.example.com/big.png"}))
	require.Equal(t, 5, payloadSize(domain.ReferenceMedia{Data: "aGVsbG8="}))
}

func TestLabels(t *testing.T) {
	zh := NewLabels("zh-CN")
	require.Equal(t, "生成中...", zh.Text(LabelGenerating))
	require.Equal(t, "无视频", zh.Text(LabelNoVideo))

	en := NewLabels("fr-FR")
	require.Equal(t, "generating...", en.Text(LabelGenerating))
	require.Equal(t, "polling abandoned", NewLabels("").Text(LabelPollingAbandoned))

	start := time.Unix(100, 0)
	require.Equal(t, "12s", Elapsed(start, start.Add(11600*time.Millisecond)))
	require.Equal(t, "0s", Elapsed(start, start.Add(-time.Second)))
}
