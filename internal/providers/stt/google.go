package stt

import (
	"context"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"

	"github.com/tbourn/go-voice-relay/internal/services"
)

// GoogleSpeech transcribes voice notes with Cloud Speech-to-Text. Both
// channels deliver Opus in an Ogg container.
type GoogleSpeech struct {
	c        *speech.Client
	Language string // BCP-47, e.g. "en-NG"
}

// NewGoogleSpeech uses application default credentials.
func NewGoogleSpeech(ctx context.Context, language string) (*GoogleSpeech, error) {
	c, err := speech.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	return &GoogleSpeech{c: c, Language: googleLanguage(language)}, nil
}

// Close releases the gRPC connection.
func (g *GoogleSpeech) Close() error { return g.c.Close() }

// Transcribe implements services.Transcriber.
func (g *GoogleSpeech) Transcribe(ctx context.Context, audio []byte, contentType string) (string, error) {
	resp, err := g.c.Recognize(ctx, RecognizeRequest(audio, contentType, g.Language))
	if err != nil {
		return "", &services.ServiceError{Service: serviceName, Err: err}
	}
	return BestTranscript(resp), nil
}

// RecognizeRequest builds the request for one voice note.
func RecognizeRequest(audio []byte, contentType, language string) *speechpb.RecognizeRequest {
	cfg := &speechpb.RecognitionConfig{
		LanguageCode:               googleLanguage(language),
		EnableAutomaticPunctuation: true,
	}
	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "ogg"), strings.Contains(ct, "opus"):
		cfg.Encoding = speechpb.RecognitionConfig_OGG_OPUS
		cfg.SampleRateHertz = 48000
	case strings.Contains(ct, "amr"):
		cfg.Encoding = speechpb.RecognitionConfig_AMR
		cfg.SampleRateHertz = 8000
	case strings.Contains(ct, "mpeg"), strings.Contains(ct, "mp3"):
		cfg.Encoding = speechpb.RecognitionConfig_MP3
	}
	return &speechpb.RecognizeRequest{
		Config: cfg,
		Audio:  &speechpb.RecognitionAudio{AudioSource: &speechpb.RecognitionAudio_Content{Content: audio}},
	}
}

// BestTranscript joins the top alternative of every result segment.
func BestTranscript(resp *speechpb.RecognizeResponse) string {
	if resp == nil {
		return ""
	}
	parts := make([]string, 0, len(resp.Results))
	for _, r := range resp.Results {
		if len(r.Alternatives) == 0 {
			continue
		}
		if t := strings.TrimSpace(r.Alternatives[0].Transcript); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

// googleLanguage expands a bare ISO-639-1 hint to a BCP-47 tag.
func googleLanguage(lang string) string {
	lang = strings.TrimSpace(lang)
	switch {
	case lang == "":
		return "en-US"
	case !strings.Contains(lang, "-") && strings.EqualFold(lang, "en"):
		return "en-US"
	}
	return lang
}
