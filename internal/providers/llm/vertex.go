package llm

import (
	"context"
	"errors"
	"strings"

	vertexgenai "cloud.google.com/go/vertexai/genai"

	"github.com/tbourn/go-voice-relay/internal/services"
)

// Vertex answers with a Gemini model on Vertex AI.
type Vertex struct {
	client *vertexgenai.Client
	model  *vertexgenai.GenerativeModel
}

// VertexConfig selects the project, region and model.
type VertexConfig struct {
	Project     string
	Location    string
	Model       string
	MaxTokens   int
	Temperature float64
}

// NewVertex uses application default credentials.
func NewVertex(ctx context.Context, cfg VertexConfig) (*Vertex, error) {
	if cfg.Project == "" {
		return nil, errors.New("vertex: project is required")
	}
	if cfg.Location == "" {
		cfg.Location = "us-central1"
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-1.5-flash"
	}
	client, err := vertexgenai.NewClient(ctx, cfg.Project, cfg.Location)
	if err != nil {
		return nil, err
	}
	m := client.GenerativeModel(cfg.Model)
	if cfg.MaxTokens > 0 {
		m.SetMaxOutputTokens(int32(cfg.MaxTokens))
	}
	m.SetTemperature(float32(cfg.Temperature))
	return &Vertex{client: client, model: m}, nil
}

// Close releases the client.
func (v *Vertex) Close() error { return v.client.Close() }

// Complete implements services.Completer. The system prompt is sent as the
// model's system instruction on a per-call copy.
func (v *Vertex) Complete(ctx context.Context, systemPrompt, userText string) (string, error) {
	m := *v.model
	m.SystemInstruction = &vertexgenai.Content{Parts: []vertexgenai.Part{vertexgenai.Text(systemPrompt)}}
	resp, err := m.GenerateContent(ctx, vertexgenai.Text(userText))
	if err != nil {
		return "", &services.ServiceError{Service: serviceName, Err: err}
	}
	return candidateText(resp), nil
}

func candidateText(resp *vertexgenai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var sb strings.Builder
	for _, c := range resp.Candidates {
		if c == nil || c.Content == nil {
			continue
		}
		for _, p := range c.Content.Parts {
			if t, ok := p.(vertexgenai.Text); ok {
				sb.WriteString(string(t))
			}
		}
		if sb.Len() > 0 {
			break
		}
	}
	return strings.TrimSpace(sb.String())
}
