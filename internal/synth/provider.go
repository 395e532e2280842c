package synth

import (
	"context"
	"fmt"
)

// Params are the synthesis parameters actually used for one take (sampled
// values, not configured ranges).
type Params struct {
	Stability  float64
	Similarity float64
	Style      float64
	Speed      float64
}

// Map returns the params as a generic mapping for metadata storage.
func (p Params) Map() map[string]any {
	return map[string]any{
		"stability":  p.Stability,
		"similarity": p.Similarity,
		"style":      p.Style,
		"speed":      p.Speed,
	}
}

// Provider is the boundary to the external voice synthesis service. Both
// calls are plain request/response with no retry or internal timeout;
// callers impose time budgets through ctx.
type Provider interface {
	// Synthesize renders text in the given voice and returns audio bytes.
	Synthesize(ctx context.Context, text, voiceID string, params Params) ([]byte, error)
	// ConvertVoice converts reference audio into the target voice.
	ConvertVoice(ctx context.Context, audio []byte, targetVoiceID string, params Params) ([]byte, error)
}

// SynthesisError reports a failed provider call. The orchestrator counts
// these per take instead of aborting the job.
type SynthesisError struct {
	Operation string
	VoiceID   string
	Cause     error
}

func (e *SynthesisError) Error() string {
	return fmt.Sprintf("%s voice %s: %v", e.Operation, e.VoiceID, e.Cause)
}

func (e *SynthesisError) Unwrap() error { return e.Cause }
