package services

import "math"

// CostModel estimates per-run spend. Figures are indicative only.
type CostModel struct {
	TranscriptionPerMinute float64 // USD per audio minute
	InputPerMillion        float64 // USD per 1M prompt tokens
	OutputPerMillion       float64 // USD per 1M completion tokens
}

// DefaultCostModel mirrors public whisper and mid-tier chat pricing.
var DefaultCostModel = CostModel{
	TranscriptionPerMinute: 0.006,
	InputPerMillion:        3,
	OutputPerMillion:       15,
}

// bytesPerMinute approximates compressed voice-note bitrate.
const bytesPerMinute = 480 * 1024

// Transcription estimates the cost of transcribing audioBytes. A known
// duration wins over the size heuristic; either way half a minute is the floor.
func (m CostModel) Transcription(audioBytes int64, durationSeconds int) float64 {
	minutes := float64(audioBytes) / bytesPerMinute
	if durationSeconds > 0 {
		minutes = float64(durationSeconds) / 60
	}
	minutes = math.Max(0.5, minutes)
	return round6(minutes * m.TranscriptionPerMinute)
}

// Completion estimates the cost of one completion at ~4 chars per token.
func (m CostModel) Completion(prompt, reply string) float64 {
	in := math.Ceil(float64(len(prompt)) / 4)
	out := math.Ceil(float64(len(reply)) / 4)
	return round6(in/1e6*m.InputPerMillion + out/1e6*m.OutputPerMillion)
}

func round6(v float64) float64 { return math.Round(v*1e6) / 1e6 }
