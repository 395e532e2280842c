package jobs

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Range bounds one randomized synthesis parameter. Per-take values are
// sampled uniformly from [Min, Max].
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// ParamRanges holds the configured sampling ranges for synthesis parameters.
type ParamRanges struct {
	Stability  Range `json:"stability"`
	Similarity Range `json:"similarity"`
	Style      Range `json:"style"`
	Speed      Range `json:"speed"`
}

// ScriptLine is one line to synthesize.
type ScriptLine struct {
	Key  string `json:"key"`
	Text string `json:"text"`
}

// VoiceTarget names a provider voice to generate with.
type VoiceTarget struct {
	Name    string `json:"name"`
	VoiceID string `json:"voice_id"`
}

// BatchRequest configures a full batch generation job: every voice gets its
// own batch of len(Lines) x VariantsPerLine takes.
type BatchRequest struct {
	Skin            string        `json:"skin"`
	Voices          []VoiceTarget `json:"voices"`
	Lines           []ScriptLine  `json:"lines"`
	VariantsPerLine int           `json:"variants_per_line"`
	Params          ParamRanges   `json:"params"`
}

// Validate reports the first structural problem with the request.
func (r *BatchRequest) Validate() error {
	if strings.TrimSpace(r.Skin) == "" {
		return fmt.Errorf("skin is required")
	}
	if len(r.Voices) == 0 {
		return fmt.Errorf("at least one voice is required")
	}
	for _, voice := range r.Voices {
		if strings.TrimSpace(voice.Name) == "" || strings.TrimSpace(voice.VoiceID) == "" {
			return fmt.Errorf("every voice needs a name and a voice_id")
		}
	}
	if len(r.Lines) == 0 {
		return fmt.Errorf("at least one line is required")
	}
	for _, line := range r.Lines {
		if strings.TrimSpace(line.Key) == "" {
			return fmt.Errorf("every line needs a key")
		}
	}
	if r.VariantsPerLine < 1 {
		return fmt.Errorf("variants_per_line must be at least 1")
	}
	return nil
}

// LineRegenRequest configures regeneration of one line in an existing batch
// from its script text.
type LineRegenRequest struct {
	BatchID string      `json:"batch_id"`
	LineKey string      `json:"line_key"`
	Text    string      `json:"text"`
	VoiceID string      `json:"voice_id"`
	Count   int         `json:"count"`
	Replace bool        `json:"replace"`
	Params  ParamRanges `json:"params"`
}

// Validate reports the first structural problem with the request.
func (r *LineRegenRequest) Validate() error {
	if strings.TrimSpace(r.BatchID) == "" {
		return fmt.Errorf("batch_id is required")
	}
	if strings.TrimSpace(r.LineKey) == "" {
		return fmt.Errorf("line_key is required")
	}
	if strings.TrimSpace(r.Text) == "" {
		return fmt.Errorf("text is required")
	}
	if strings.TrimSpace(r.VoiceID) == "" {
		return fmt.Errorf("voice_id is required")
	}
	if r.Count < 1 {
		return fmt.Errorf("count must be at least 1")
	}
	return nil
}

// SpeechRegenRequest configures regeneration of one line by voice-converting
// a reference audio clip instead of synthesizing from text. AudioBase64
// carries the reference payload; MediaType its declared media type.
type SpeechRegenRequest struct {
	BatchID     string      `json:"batch_id"`
	LineKey     string      `json:"line_key"`
	VoiceID     string      `json:"voice_id"`
	Count       int         `json:"count"`
	Replace     bool        `json:"replace"`
	AudioBase64 string      `json:"audio_base64"`
	MediaType   string      `json:"media_type"`
	Params      ParamRanges `json:"params"`
}

// Validate reports the first structural problem with the request.
func (r *SpeechRegenRequest) Validate() error {
	if strings.TrimSpace(r.BatchID) == "" {
		return fmt.Errorf("batch_id is required")
	}
	if strings.TrimSpace(r.LineKey) == "" {
		return fmt.Errorf("line_key is required")
	}
	if strings.TrimSpace(r.VoiceID) == "" {
		return fmt.Errorf("voice_id is required")
	}
	if r.Count < 1 {
		return fmt.Errorf("count must be at least 1")
	}
	if strings.TrimSpace(r.AudioBase64) == "" {
		return fmt.Errorf("audio payload is required")
	}
	return nil
}

// EncodeRequest serializes a request payload for storage on a job row.
func EncodeRequest(request any) (string, error) {
	data, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}
	return string(data), nil
}

// DecodeRequest deserializes a job's stored request payload into dst.
func DecodeRequest(job *Job, dst any) error {
	if err := json.Unmarshal([]byte(job.RequestJSON), dst); err != nil {
		return fmt.Errorf("decode %s request: %w", job.Kind, err)
	}
	return nil
}
