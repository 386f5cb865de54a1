package flow

import (
	"fmt"

	"github.com/kbukum/flowkit/workflow"
)

// OutputSource returns the output of a completed node.
type OutputSource interface {
	Get(nodeID string) (any, bool)
}

// Inputs is the resolved input bag of one node: for each target handle,
// the upstream outputs in edge order. Only the llm images handle ever
// holds more than one value; validation rejects other duplicates.
type Inputs map[string][]workflow.Output

// ResolveInputs collects the outputs feeding nodeID. Sources without an
// output are skipped. The result depends only on the graph and the
// completed outputs, so repeated calls yield the same bag.
func ResolveInputs(g *workflow.Graph, nodeID string, outputs OutputSource) Inputs {
	in := Inputs{}
	for _, e := range g.Incoming(nodeID) {
		raw, ok := outputs.Get(e.Source)
		if !ok || raw == nil {
			continue
		}
		out, ok := raw.(workflow.Output)
		if !ok || out == nil {
			continue
		}
		in[e.Handle()] = append(in[e.Handle()], out)
	}
	return in
}

// Connected reports whether any output arrived on handle.
func (in Inputs) Connected(handle string) bool {
	return len(in[handle]) > 0
}

// Text returns the text carried on handle.
func (in Inputs) Text(handle string) (string, bool) {
	for _, out := range in[handle] {
		if t, ok := out.(workflow.TextOutput); ok {
			return t.Text, true
		}
	}
	return "", false
}

// Number parses the text carried on handle. A connected value that is not
// numeric is an error.
func (in Inputs) Number(handle string) (float64, bool, error) {
	text, ok := in.Text(handle)
	if !ok {
		return 0, false, nil
	}
	v, err := workflow.ParseNumber(text)
	if err != nil {
		return 0, true, fmt.Errorf("input %s: %w", handle, err)
	}
	return v, true, nil
}

// ImageURL returns the image carried on handle, preferring a processed
// crop or frame result over the first entry of an upload list.
func (in Inputs) ImageURL(handle string) (string, bool) {
	for _, out := range in[handle] {
		switch o := out.(type) {
		case workflow.CropOutput:
			if o.OutputImageURL != "" {
				return o.OutputImageURL, true
			}
		case workflow.FrameOutput:
			if o.OutputFrameURL != "" {
				return o.OutputFrameURL, true
			}
		case workflow.ImagesOutput:
			if len(o.Images) > 0 && o.Images[0].ImageURL != "" {
				return o.Images[0].ImageURL, true
			}
		}
	}
	return "", false
}

// ImageURLs merges every image carried on handle, in edge order.
func (in Inputs) ImageURLs(handle string) []string {
	var urls []string
	for _, out := range in[handle] {
		switch o := out.(type) {
		case workflow.ImagesOutput:
			for _, img := range o.Images {
				if img.ImageURL != "" {
					urls = append(urls, img.ImageURL)
				}
			}
		case workflow.CropOutput:
			if o.OutputImageURL != "" {
				urls = append(urls, o.OutputImageURL)
			}
		case workflow.FrameOutput:
			if o.OutputFrameURL != "" {
				urls = append(urls, o.OutputFrameURL)
			}
		}
	}
	return urls
}

// VideoURL returns the video carried on handle.
func (in Inputs) VideoURL(handle string) (string, bool) {
	for _, out := range in[handle] {
		if v, ok := out.(workflow.VideoOutput); ok && v.VideoURL != "" {
			return v.VideoURL, true
		}
	}
	return "", false
}
