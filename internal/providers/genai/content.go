// Package genai holds the Gemini generateContent wire format shared by the
// image and speech providers.
package genai

import (
	"fmt"
	"net/url"

	"genstudio/internal/domain"
	"genstudio/internal/providers/gateway"
)

type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

type Part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *InlineData `json:"inlineData,omitempty"`
	FileData   *FileData   `json:"fileData,omitempty"`
}

type InlineData struct {
	MimeType string `json:"mimeType,omitempty"`
	Data     string `json:"data,omitempty"`
}

type FileData struct {
	MimeType string `json:"mimeType,omitempty"`
	FileURI  string `json:"fileUri,omitempty"`
}

type ImageConfig struct {
	AspectRatio string `json:"aspectRatio,omitempty"`
	ImageSize   string `json:"imageSize,omitempty"`
}

type PrebuiltVoiceConfig struct {
	VoiceName string `json:"voiceName"`
}

type VoiceConfig struct {
	PrebuiltVoiceConfig PrebuiltVoiceConfig `json:"prebuiltVoiceConfig"`
}

type SpeakerVoiceConfig struct {
	Speaker     string      `json:"speaker"`
	VoiceConfig VoiceConfig `json:"voiceConfig"`
}

type MultiSpeakerVoiceConfig struct {
	SpeakerVoiceConfigs []SpeakerVoiceConfig `json:"speakerVoiceConfigs"`
}

type SpeechConfig struct {
	VoiceConfig             *VoiceConfig             `json:"voiceConfig,omitempty"`
	MultiSpeakerVoiceConfig *MultiSpeakerVoiceConfig `json:"multiSpeakerVoiceConfig,omitempty"`
}

type GenerationConfig struct {
	ResponseModalities []string      `json:"responseModalities,omitempty"`
	ImageConfig        *ImageConfig  `json:"imageConfig,omitempty"`
	SpeechConfig       *SpeechConfig `json:"speechConfig,omitempty"`
}

type GenerateContentRequest struct {
	Contents         []Content         `json:"contents"`
	GenerationConfig *GenerationConfig `json:"generationConfig,omitempty"`
}

// GenerateContentPath returns the gateway path for a model's generateContent call.
func GenerateContentPath(model string) string {
	return fmt.Sprintf("/v1beta/models/%s:generateContent", url.PathEscape(model))
}

// TextPart wraps plain text.
func TextPart(text string) Part {
	return Part{Text: text}
}

// MediaPart references an uploaded file. Remote URLs become fileData parts.
func MediaPart(ref domain.ReferenceMedia) Part {
	if ref.IsRemote() {
		return Part{FileData: &FileData{MimeType: ref.MIMEType, FileURI: ref.Data}}
	}
	return Part{InlineData: &InlineData{MimeType: ref.MIMEType, Data: ref.Data}}
}

// FindInlineData returns the first inline payload of the first candidate,
// accepting both camelCase and snake_case field names.
func FindInlineData(doc gateway.Document) (mime, data string, ok bool) {
	parts, found := doc.Lookup("candidates.0.content.parts")
	if !found {
		return "", "", false
	}
	list, isList := parts.([]any)
	if !isList {
		return "", "", false
	}
	for _, p := range list {
		part := gateway.NewDocument(p)
		for _, key := range []string{"inlineData", "inline_data"} {
			payload := part.FirstString(key + ".data")
			if payload == "" {
				continue
			}
			return part.FirstString(key+".mimeType", key+".mime_type"), payload, true
		}
	}
	return "", "", false
}
