package audio

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"genstudio/internal/domain"
	"genstudio/internal/providers/gateway"
	"genstudio/internal/storage"
)

type stubClient struct {
	path  string
	body  map[string]any
	reply string
}

func (c *stubClient) PostJSON(ctx context.Context, path string, body any) (gateway.Document, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return gateway.Document{}, err
	}
	c.path = path
	if err := json.Unmarshal(raw, &c.body); err != nil {
		return gateway.Document{}, err
	}
	return gateway.ParseDocument(200, []byte(c.reply))
}

func TestSingleVoiceProducesWAV(t *testing.T) {
	client := &stubClient{reply: `{"candidates":[{"content":{"parts":[{"inlineData":{"mimeType":"audio/L16;codec=pcm;rate=16000","data":"AAABAA=="}}]}}]}`}
	sub, err := NewSynthesizer(client, 0).Submit(context.Background(), domain.GenerationConfig{
		ModelID: "gemini-2.5-pro-preview-tts",
		Prompt:  "hello there",
		Voice:   "Kore",
	})
	require.NoError(t, err)
	require.False(t, sub.Async())
	require.Equal(t, "/v1beta/models/gemini-2.5-pro-preview-tts:generateContent", client.path)

	genCfg := client.body["generationConfig"].(map[string]any)
	require.Equal(t, []any{"AUDIO"}, genCfg["responseModalities"])
	voice := genCfg["speechConfig"].(map[string]any)["voiceConfig"].(map[string]any)["prebuiltVoiceConfig"].(map[string]any)
	require.Equal(t, "Kore", voice["voiceName"])

	mime, wav, err := storage.DecodeDataURI(sub.Locator)
	require.NoError(t, err)
	require.Equal(t, "audio/wav", mime)
	require.Equal(t, "RIFF", string(wav[:4]))
	require.Equal(t, uint32(16000), binary.LittleEndian.Uint32(wav[24:28]))
	require.Len(t, wav, 44+4)
}

func TestMultiSpeakerConfig(t *testing.T) {
	client := &stubClient{reply: `{"candidates":[{"content":{"parts":[{"inlineData":{"data":"AAA="}}]}}]}`}
	_, err := NewSynthesizer(client, 24000).Submit(context.Background(), domain.GenerationConfig{
		ModelID:      "gemini-2.5-pro-preview-tts",
		Prompt:       "Joe: hi\nJane: hello",
		MultiSpeaker: true,
		Speakers:     []domain.Speaker{{Name: "Joe", Voice: "Puck"}, {Name: "Jane", Voice: "Leda"}},
	})
	require.NoError(t, err)
	speech := client.body["generationConfig"].(map[string]any)["speechConfig"].(map[string]any)
	require.NotContains(t, speech, "voiceConfig")
	list := speech["multiSpeakerVoiceConfig"].(map[string]any)["speakerVoiceConfigs"].([]any)
	require.Len(t, list, 2)
	require.Equal(t, "Jane", list[1].(map[string]any)["speaker"])
}

func TestMultiSpeakerNeedsSpeakers(t *testing.T) {
	client := &stubClient{}
	_, err := NewSynthesizer(client, 0).Submit(context.Background(), domain.GenerationConfig{Prompt: "x", MultiSpeaker: true})
	require.ErrorIs(t, err, domain.ErrValidation)
	require.Empty(t, client.path)
}

func TestMissingAudioIsNoResult(t *testing.T) {
	client := &stubClient{reply: `{"candidates":[{"content":{"parts":[{"text":"sorry"}]}}]}`}
	_, err := NewSynthesizer(client, 0).Submit(context.Background(), domain.GenerationConfig{Prompt: "x"})
	require.True(t, errors.Is(err, domain.ErrNoResult))
}

func TestRateFromMIME(t *testing.T) {
	require.Equal(t, 16000, rateFromMIME("audio/L16;codec=pcm;rate=16000", 24000))
	require.Equal(t, 24000, rateFromMIME("audio/pcm", 24000))
	require.Equal(t, 24000, rateFromMIME("audio/L16;rate=bad", 24000))
}
