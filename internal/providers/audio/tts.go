// Package audio synthesizes speech through the generateContent endpoint. The
// provider answers synchronously with raw PCM which is wrapped as WAV.
package audio

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"genstudio/internal/domain"
	"genstudio/internal/providers/gateway"
	"genstudio/internal/providers/genai"
	"genstudio/internal/storage"
)

const (
	DefaultVoice      = "Puck"
	DefaultSampleRate = 24000
)

type transport interface {
	PostJSON(ctx context.Context, path string, body any) (gateway.Document, error)
}

// Synthesizer turns a script into a WAV data URI.
type Synthesizer struct {
	client     transport
	sampleRate int
}

func NewSynthesizer(client transport, sampleRate int) *Synthesizer {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	return &Synthesizer{client: client, sampleRate: sampleRate}
}

// Submit synthesizes cfg.Prompt with either one prebuilt voice or a speaker map.
func (s *Synthesizer) Submit(ctx context.Context, cfg domain.GenerationConfig) (domain.Submission, error) {
	if s == nil || s.client == nil {
		return domain.Submission{}, errors.New("audio: synthesizer not configured")
	}
	speech, err := SpeechConfig(cfg)
	if err != nil {
		return domain.Submission{}, err
	}
	req := genai.GenerateContentRequest{
		Contents: []genai.Content{{Parts: []genai.Part{genai.TextPart(cfg.Prompt)}}},
		GenerationConfig: &genai.GenerationConfig{
			ResponseModalities: []string{"AUDIO"},
			SpeechConfig:       speech,
		},
	}
	doc, err := s.client.PostJSON(ctx, genai.GenerateContentPath(cfg.ModelID), req)
	if err != nil {
		return domain.Submission{}, err
	}
	mime, data, ok := genai.FindInlineData(doc)
	if !ok {
		return domain.Submission{}, fmt.Errorf("audio: %w", domain.ErrNoResult)
	}
	pcm, err := storage.DecodeBase64(data)
	if err != nil {
		return domain.Submission{}, fmt.Errorf("audio: decode pcm: %w", err)
	}
	wav := storage.PCMToWAV(pcm, rateFromMIME(mime, s.sampleRate))
	return domain.Submission{Locator: storage.EncodeDataURI("audio/wav", wav)}, nil
}

// SpeechConfig builds the voice section of the request.
func SpeechConfig(cfg domain.GenerationConfig) (*genai.SpeechConfig, error) {
	if !cfg.MultiSpeaker {
		voice := strings.TrimSpace(cfg.Voice)
		if voice == "" {
			voice = DefaultVoice
		}
		return &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{PrebuiltVoiceConfig: genai.PrebuiltVoiceConfig{VoiceName: voice}},
		}, nil
	}
	if len(cfg.Speakers) == 0 {
		return nil, domain.Invalid("speakerMap", "add at least one speaker")
	}
	speakers := make([]genai.SpeakerVoiceConfig, 0, len(cfg.Speakers))
	for _, sp := range cfg.Speakers {
		speakers = append(speakers, genai.SpeakerVoiceConfig{
			Speaker:     sp.Name,
			VoiceConfig: genai.VoiceConfig{PrebuiltVoiceConfig: genai.PrebuiltVoiceConfig{VoiceName: sp.Voice}},
		})
	}
	return &genai.SpeechConfig{
		MultiSpeakerVoiceConfig: &genai.MultiSpeakerVoiceConfig{SpeakerVoiceConfigs: speakers},
	}, nil
}

// rateFromMIME reads the rate parameter of "audio/L16;codec=pcm;rate=24000".
func rateFromMIME(mime string, fallback int) int {
	for _, param := range strings.Split(mime, ";") {
		key, value, ok := strings.Cut(strings.TrimSpace(param), "=")
		if !ok || !strings.EqualFold(key, "rate") {
			continue
		}
		if n, err := strconv.Atoi(value); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}
