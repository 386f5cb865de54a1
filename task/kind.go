package task

import (
	"encoding/json"
	"fmt"
)

// Kind names a task type.
type Kind string

const (
	KindLLM          Kind = "llm"
	KindCropImage    Kind = "crop-image"
	KindExtractFrame Kind = "extract-frame"
)

// Media reports whether the kind is a media operation.
func (k Kind) Media() bool {
	return k == KindCropImage || k == KindExtractFrame
}

// ParseKind validates a kind taken from a URL or config.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindLLM, KindCropImage, KindExtractFrame:
		return k, nil
	}
	return "", fmt.Errorf("unknown task kind %q", s)
}

// Payload is the input of one task. Each kind has exactly one payload type.
type Payload interface {
	Kind() Kind
}

// LLMPayload is the input of an llm task.
type LLMPayload struct {
	Model        string   `json:"model"`
	SystemPrompt string   `json:"systemPrompt,omitempty"`
	UserMessage  string   `json:"userMessage"`
	Images       []string `json:"images,omitempty"`
}

// CropPayload is the input of a crop-image task. Values are percentages.
type CropPayload struct {
	ImageURL string  `json:"imageUrl"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
}

// FramePayload is the input of an extract-frame task.
type FramePayload struct {
	VideoURL  string  `json:"videoUrl"`
	Timestamp float64 `json:"timestamp"`
}

func (LLMPayload) Kind() Kind   { return KindLLM }
func (CropPayload) Kind() Kind  { return KindCropImage }
func (FramePayload) Kind() Kind { return KindExtractFrame }

// DecodePayload decodes a JSON payload for kind.
func DecodePayload(kind Kind, raw []byte) (Payload, error) {
	switch kind {
	case KindLLM:
		return decode[LLMPayload](raw)
	case KindCropImage:
		return decode[CropPayload](raw)
	case KindExtractFrame:
		return decode[FramePayload](raw)
	}
	return nil, fmt.Errorf("unknown task kind %q", kind)
}

func decode[P Payload](raw []byte) (Payload, error) {
	var p P
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("invalid payload: %w", err)
	}
	return p, nil
}

// LLMResult is the output of an llm task.
type LLMResult struct {
	Output string `json:"output"`
}

// CropResult is the output of a crop-image task.
type CropResult struct {
	OutputImageURL string `json:"outputImageUrl"`
	Message        string `json:"message,omitempty"`
}

// FrameResult is the output of an extract-frame task.
type FrameResult struct {
	OutputFrameURL string `json:"outputFrameUrl"`
	Message        string `json:"message,omitempty"`
}

// Request is one task invocation on behalf of a caller.
type Request struct {
	CallerID string
	Payload  Payload
}

// Kind returns the payload's kind.
func (r Request) Kind() Kind { return r.Payload.Kind() }
