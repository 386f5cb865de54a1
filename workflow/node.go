package workflow

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// NodeType is the discriminator of a node's payload.
type NodeType string

// Known node types.
const (
	TypeText         NodeType = "text"
	TypeUploadImage  NodeType = "uploadImage"
	TypeUploadVideo  NodeType = "uploadVideo"
	TypeLLM          NodeType = "llm"
	TypeCropImage    NodeType = "cropImage"
	TypeExtractFrame NodeType = "extractFrame"
)

// DefaultModel is used by llm nodes that do not name one.
const DefaultModel = "gemini-1.5-flash"

// Known reports whether t is one of the fixed node types.
func (t NodeType) Known() bool {
	switch t {
	case TypeText, TypeUploadImage, TypeUploadVideo, TypeLLM, TypeCropImage, TypeExtractFrame:
		return true
	}
	return false
}

// Node is an immutable snapshot of one editor node.
type Node struct {
	ID   string   `json:"id" validate:"required"`
	Type NodeType `json:"type" validate:"required"`
	Data NodeData `json:"-"`
}

// NodeData is the typed payload of a node. The concrete type always
// matches the node's Type; unrecognised types carry UnknownData.
type NodeData interface {
	nodeType() NodeType
}

// TextData holds a literal text value.
type TextData struct {
	Text string `json:"text"`
}

// ImageRef points at one uploaded image.
type ImageRef struct {
	ImageURL string `json:"imageUrl"`
	FileName string `json:"fileName,omitempty"`
}

// UploadImageData holds already-uploaded images.
type UploadImageData struct {
	Images []ImageRef `json:"images"`
}

// UploadVideoData holds an already-uploaded video.
type UploadVideoData struct {
	VideoURL string `json:"videoUrl"`
	FileName string `json:"fileName,omitempty"`
}

// LLMData configures a language-model call. Prompts given here are used
// only when the matching handle is not connected.
type LLMData struct {
	Model        string `json:"model"`
	SystemPrompt string `json:"systemPrompt,omitempty"`
	UserMessage  string `json:"userMessage,omitempty"`
}

// CropImageData holds the static crop box, in percent of the source image.
type CropImageData struct {
	X      Number `json:"x"`
	Y      Number `json:"y"`
	Width  Number `json:"width"`
	Height Number `json:"height"`
}

// ExtractFrameData holds the static frame offset in seconds.
type ExtractFrameData struct {
	Timestamp Number `json:"timestamp"`
}

// UnknownData keeps the attributes of a node whose type is not recognised.
type UnknownData struct {
	Kind  NodeType
	Attrs map[string]any
}

func (TextData) nodeType() NodeType         { return TypeText }
func (UploadImageData) nodeType() NodeType  { return TypeUploadImage }
func (UploadVideoData) nodeType() NodeType  { return TypeUploadVideo }
func (LLMData) nodeType() NodeType          { return TypeLLM }
func (CropImageData) nodeType() NodeType    { return TypeCropImage }
func (ExtractFrameData) nodeType() NodeType { return TypeExtractFrame }
func (d UnknownData) nodeType() NodeType    { return d.Kind }

type nodeJSON struct {
	ID   string          `json:"id"`
	Type NodeType        `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// UnmarshalJSON decodes the data attribute into the payload for the node's type.
func (n *Node) UnmarshalJSON(b []byte) error {
	var raw nodeJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	data, err := DecodeNodeData(raw.Type, raw.Data)
	if err != nil {
		return fmt.Errorf("node %q: %w", raw.ID, err)
	}
	n.ID, n.Type, n.Data = raw.ID, raw.Type, data
	return nil
}

// MarshalJSON writes the node back in its wire shape.
func (n Node) MarshalJSON() ([]byte, error) {
	var data any = n.Data
	if u, ok := n.Data.(UnknownData); ok {
		data = u.Attrs
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(nodeJSON{ID: n.ID, Type: n.Type, Data: raw})
}

// DecodeNodeData decodes raw attributes for the given node type, applying
// per-type defaults for absent fields.
func DecodeNodeData(t NodeType, raw json.RawMessage) (NodeData, error) {
	if len(bytes.TrimSpace(raw)) == 0 || string(bytes.TrimSpace(raw)) == "null" {
		raw = json.RawMessage("{}")
	}
	switch t {
	case TypeText:
		return decodeAs(raw, TextData{})
	case TypeUploadImage:
		return decodeAs(raw, UploadImageData{})
	case TypeUploadVideo:
		return decodeAs(raw, UploadVideoData{})
	case TypeLLM:
		var d LLMData
		if err := decodeInto(raw, &d); err != nil {
			return nil, err
		}
		if d.Model == "" {
			d.Model = DefaultModel
		}
		return d, nil
	case TypeCropImage:
		return decodeAs(raw, CropImageData{Width: 100, Height: 100})
	case TypeExtractFrame:
		return decodeAs(raw, ExtractFrameData{})
	default:
		attrs := map[string]any{}
		if err := json.Unmarshal(raw, &attrs); err != nil {
			return nil, err
		}
		return UnknownData{Kind: t, Attrs: attrs}, nil
	}
}

func decodeAs[T NodeData](raw json.RawMessage, d T) (NodeData, error) {
	if err := decodeInto(raw, &d); err != nil {
		return nil, err
	}
	return d, nil
}

func decodeInto(raw json.RawMessage, v any) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("invalid data: %w", err)
	}
	return nil
}

// Number accepts JSON numbers and numeric strings. An empty string leaves
// the current value untouched so defaults survive.
type Number float64

// UnmarshalJSON implements json.Unmarshaler.
func (n *Number) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		if strings.TrimSpace(str) == "" {
			return nil
		}
		v, err := ParseNumber(str)
		if err != nil {
			return err
		}
		*n = Number(v)
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid number %s", s)
	}
	*n = Number(v)
	return nil
}

// ParseNumber parses a numeric text value such as a connected text node's output.
func ParseNumber(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("%q is not a number", s)
	}
	return v, nil
}
