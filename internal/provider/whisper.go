package provider

import (
	"bytes"
	"context"
	"strings"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
)

// Whisper does not report a confidence; match the transcription backend's
// usual self-reported quality for accepted segments.
const whisperDefaultConfidence = 0.9

// WhisperTranscriber implements Transcriber on the OpenAI audio
// transcription API.
type WhisperTranscriber struct {
	client openai.Client
	model  string
}

// NewWhisperTranscriber creates a Whisper-backed transcriber.
func NewWhisperTranscriber(apiKey, model string) *WhisperTranscriber {
	opts := []option.RequestOption{}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	return &WhisperTranscriber{
		client: openai.NewClient(opts...),
		model:  model,
	}
}

// Transcribe sends the audio payload to Whisper and returns text plus a
// confidence estimate.
func (t *WhisperTranscriber) Transcribe(ctx context.Context, audio []byte, language string) (*Transcription, error) {
	params := openai.AudioTranscriptionNewParams{
		Model: openai.AudioModel(t.model),
		File:  openai.File(bytes.NewReader(audio), "audio.wav", "audio/wav"),
	}
	if lang := shortLanguage(language); lang != "" {
		params.Language = openai.String(lang)
	}

	resp, err := t.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return nil, &Error{Provider: "whisper", Op: "transcribe", Err: err}
	}

	return &Transcription{
		Text:       strings.TrimSpace(resp.Text),
		Confidence: whisperDefaultConfidence,
	}, nil
}

// shortLanguage reduces a BCP-47 tag like "en-US" to the ISO-639-1 code
// Whisper expects.
func shortLanguage(language string) string {
	if language == "" {
		return ""
	}
	if i := strings.IndexByte(language, '-'); i > 0 {
		return strings.ToLower(language[:i])
	}
	return strings.ToLower(language)
}
