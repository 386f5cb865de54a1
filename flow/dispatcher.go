package flow

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/kbukum/flowkit/task"
	"github.com/kbukum/flowkit/workflow"
)

// Invoker runs one task to completion. *task.Invoker satisfies it.
type Invoker interface {
	Invoke(ctx context.Context, req task.Request) (json.RawMessage, error)
}

// Dispatcher produces a node's output from its typed data and inputs.
// Connected handle values always take precedence over the node's own
// static fields.
type Dispatcher struct {
	invoker Invoker
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(invoker Invoker) *Dispatcher {
	return &Dispatcher{invoker: invoker}
}

// Dispatch runs node on behalf of callerID.
func (d *Dispatcher) Dispatch(ctx context.Context, callerID string, node workflow.Node, in Inputs) (workflow.Output, error) {
	switch data := node.Data.(type) {
	case workflow.TextData:
		return workflow.TextOutput{Text: data.Text}, nil
	case workflow.UploadImageData:
		return workflow.ImagesOutput{Images: slices.Clone(data.Images)}, nil
	case workflow.UploadVideoData:
		return workflow.VideoOutput{VideoURL: data.VideoURL}, nil
	case workflow.LLMData:
		return d.llm(ctx, callerID, data, in)
	case workflow.CropImageData:
		return d.crop(ctx, callerID, data, in)
	case workflow.ExtractFrameData:
		return d.extractFrame(ctx, callerID, data, in)
	case workflow.UnknownData:
		return workflow.TextOutput{Text: fmt.Sprintf("Unknown node type: %s", data.Kind)}, nil
	case nil:
		return workflow.TextOutput{Text: fmt.Sprintf("Unknown node type: %s", node.Type)}, nil
	default:
		return nil, fmt.Errorf("unsupported node data %T", data)
	}
}

func (d *Dispatcher) llm(ctx context.Context, callerID string, data workflow.LLMData, in Inputs) (workflow.Output, error) {
	p := task.LLMPayload{
		Model:        data.Model,
		SystemPrompt: textOr(in, workflow.HandleSystemPrompt, data.SystemPrompt),
		UserMessage:  textOr(in, workflow.HandleUserMessage, data.UserMessage),
		Images:       in.ImageURLs(workflow.HandleImages),
	}
	if p.Model == "" {
		p.Model = workflow.DefaultModel
	}
	res, err := invoke[task.LLMResult](ctx, d.invoker, callerID, p)
	if err != nil {
		return nil, err
	}
	return workflow.TextOutput{Text: res.Output}, nil
}

func (d *Dispatcher) crop(ctx context.Context, callerID string, data workflow.CropImageData, in Inputs) (workflow.Output, error) {
	imageURL, _ := in.ImageURL(workflow.HandleImageURL)
	p := task.CropPayload{ImageURL: imageURL}
	var err error
	if p.X, err = numberOr(in, workflow.HandleXPercent, data.X); err != nil {
		return nil, err
	}
	if p.Y, err = numberOr(in, workflow.HandleYPercent, data.Y); err != nil {
		return nil, err
	}
	if p.Width, err = numberOr(in, workflow.HandleWidthPercent, data.Width); err != nil {
		return nil, err
	}
	if p.Height, err = numberOr(in, workflow.HandleHeightPercent, data.Height); err != nil {
		return nil, err
	}

	res, err := invoke[task.CropResult](ctx, d.invoker, callerID, p)
	if err != nil {
		return nil, err
	}
	return workflow.CropOutput{OutputImageURL: res.OutputImageURL, Message: res.Message}, nil
}

func (d *Dispatcher) extractFrame(ctx context.Context, callerID string, data workflow.ExtractFrameData, in Inputs) (workflow.Output, error) {
	videoURL, _ := in.VideoURL(workflow.HandleVideoURL)
	ts, err := numberOr(in, workflow.HandleTimestamp, data.Timestamp)
	if err != nil {
		return nil, err
	}
	res, err := invoke[task.FrameResult](ctx, d.invoker, callerID, task.FramePayload{VideoURL: videoURL, Timestamp: ts})
	if err != nil {
		return nil, err
	}
	return workflow.FrameOutput{OutputFrameURL: res.OutputFrameURL, Message: res.Message}, nil
}

func invoke[R any](ctx context.Context, invoker Invoker, callerID string, p task.Payload) (R, error) {
	var res R
	if invoker == nil {
		return res, fmt.Errorf("no task invoker configured for %s", p.Kind())
	}
	raw, err := invoker.Invoke(ctx, task.Request{CallerID: callerID, Payload: p})
	if err != nil {
		return res, err
	}
	if len(raw) == 0 || string(raw) == "null" {
		return res, nil
	}
	if err := json.Unmarshal(raw, &res); err != nil {
		return res, fmt.Errorf("decode %s result: %w", p.Kind(), err)
	}
	return res, nil
}

func textOr(in Inputs, handle, static string) string {
	if v, ok := in.Text(handle); ok {
		return v
	}
	return static
}

func numberOr(in Inputs, handle string, static workflow.Number) (float64, error) {
	v, ok, err := in.Number(handle)
	if err != nil {
		return 0, err
	}
	if ok {
		return v, nil
	}
	return float64(static), nil
}
