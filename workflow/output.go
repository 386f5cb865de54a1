package workflow

import (
	"bytes"
	"encoding/json"
)

// Output is the typed result a node hands to its downstream edges.
type Output interface {
	isOutput()
}

// TextOutput is produced by text and llm nodes, and by unknown node types.
type TextOutput struct {
	Text string `json:"text"`
}

// ImagesOutput is produced by image upload nodes.
type ImagesOutput struct {
	Images []ImageRef `json:"images"`
}

// VideoOutput is produced by video upload nodes.
type VideoOutput struct {
	VideoURL string `json:"videoUrl"`
}

// CropOutput is produced by crop nodes.
type CropOutput struct {
	OutputImageURL string `json:"outputImageUrl"`
	Message        string `json:"message,omitempty"`
}

// FrameOutput is produced by frame extraction nodes.
type FrameOutput struct {
	OutputFrameURL string `json:"outputFrameUrl"`
	Message        string `json:"message,omitempty"`
}

func (TextOutput) isOutput()   {}
func (ImagesOutput) isOutput() {}
func (VideoOutput) isOutput()  {}
func (CropOutput) isOutput()   {}
func (FrameOutput) isOutput()  {}

// DecodeOutput restores the typed output of a node from stored JSON.
func DecodeOutput(t NodeType, raw json.RawMessage) (Output, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return nil, nil
	}
	switch t {
	case TypeUploadImage:
		return decodeOutputAs(raw, ImagesOutput{})
	case TypeUploadVideo:
		return decodeOutputAs(raw, VideoOutput{})
	case TypeCropImage:
		return decodeOutputAs(raw, CropOutput{})
	case TypeExtractFrame:
		return decodeOutputAs(raw, FrameOutput{})
	default:
		return decodeOutputAs(raw, TextOutput{})
	}
}

func decodeOutputAs[T Output](raw json.RawMessage, o T) (Output, error) {
	if err := json.Unmarshal(raw, &o); err != nil {
		return nil, err
	}
	return o, nil
}
