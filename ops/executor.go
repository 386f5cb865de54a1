package ops

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kbukum/flowkit/credentials"
	"github.com/kbukum/flowkit/errors"
	"github.com/kbukum/flowkit/httpclient"
	"github.com/kbukum/flowkit/llm"
	"github.com/kbukum/flowkit/logger"
	"github.com/kbukum/flowkit/media"
	"github.com/kbukum/flowkit/security"
	"github.com/kbukum/flowkit/task"
	"github.com/kbukum/flowkit/workflow"
)

const (
	msgCropUnconfigured  = "Transloadit not configured, returning original image"
	msgFrameUnconfigured = "Transloadit not configured, frame extraction unavailable"
)

// Config configures an Executor.
type Config struct {
	// DefaultModel is used when an llm payload names none.
	DefaultModel string `mapstructure:"default_model"`
	// UploadsDir holds files served under /uploads/.
	UploadsDir string `mapstructure:"uploads_dir"`
	// PublicBaseURL makes /uploads/ paths absolute for remote services.
	PublicBaseURL string `mapstructure:"public_base_url"`
	// MaxImageBytes bounds each image passed to a model.
	MaxImageBytes int64 `mapstructure:"max_image_bytes"`
}

// ApplyDefaults fills zero fields.
func (c *Config) ApplyDefaults() {
	if c.DefaultModel == "" {
		c.DefaultModel = workflow.DefaultModel
	}
	if c.UploadsDir == "" {
		c.UploadsDir = "uploads"
	}
	if c.MaxImageBytes <= 0 {
		c.MaxImageBytes = security.DefaultMaxDataImageBytes
	}
}

// Executor runs tasks.
type Executor struct {
	config  Config
	models  *llm.Router
	media   *media.Client
	creds   *credentials.Resolver
	guard   *security.URLGuard
	fetcher *httpclient.Client
	log     *logger.Logger
}

// NewExecutor wires an Executor. mediaClient may be nil, in which case the
// media kinds behave as if no Transloadit key were configured.
func NewExecutor(cfg Config, models *llm.Router, mediaClient *media.Client, creds *credentials.Resolver, guard *security.URLGuard, log *logger.Logger) (*Executor, error) {
	cfg.ApplyDefaults()
	if log == nil {
		log = logger.NewNop()
	}
	if creds == nil {
		creds = credentials.NewResolver(nil, credentials.Defaults{}, log)
	}
	if guard == nil {
		guard = security.NewURLGuard(security.GuardConfig{})
	}
	fetcher, err := httpclient.New(httpclient.Config{
		MaxResponseBytes: cfg.MaxImageBytes,
		Retry:            httpclient.DefaultRetryConfig(),
		Guard:            guard.Check,
		DialControl:      guard.DialControl,
	})
	if err != nil {
		return nil, err
	}
	return &Executor{
		config:  cfg,
		models:  models,
		media:   mediaClient,
		creds:   creds,
		guard:   guard,
		fetcher: fetcher,
		log:     log.WithComponent("ops"),
	}, nil
}

// Execute runs req and returns its JSON result. It satisfies task.ExecFunc.
func (e *Executor) Execute(ctx context.Context, req task.Request) (json.RawMessage, error) {
	var (
		out any
		err error
	)
	switch p := req.Payload.(type) {
	case task.LLMPayload:
		out, err = e.generate(ctx, req.CallerID, p)
	case task.CropPayload:
		out, err = e.crop(ctx, req.CallerID, p)
	case task.FramePayload:
		out, err = e.extractFrame(ctx, req.CallerID, p)
	default:
		return nil, errors.Validation(fmt.Sprintf("Unknown task kind: %v", req.Payload))
	}
	if err != nil {
		return nil, err
	}
	return json.Marshal(out)
}

func (e *Executor) generate(ctx context.Context, callerID string, p task.LLMPayload) (*task.LLMResult, error) {
	model := p.Model
	if model == "" {
		model = e.config.DefaultModel
	}
	provider := e.models.Route(model)
	if provider == nil {
		return nil, errors.Validation("No language model provider configured.")
	}
	key := e.creds.Lookup(ctx, callerID, credentials.Provider(provider.Name()))
	if key == "" {
		return nil, errors.Validation(fmt.Sprintf("No %s API key configured. Add one in Settings.", displayName(provider.Name())))
	}

	images := make([]llm.Image, 0, len(p.Images))
	for _, raw := range p.Images {
		img, err := e.loadImage(ctx, raw)
		if err != nil {
			return nil, err
		}
		images = append(images, img)
	}

	log := e.log.WithContext(ctx).WithFields(logger.Fields("provider", provider.Name(), "model", model))
	log.Debug("Generating", logger.Fields("images", len(images)))
	resp, err := provider.Generate(ctx, key, llm.Request{
		Model:        model,
		SystemPrompt: p.SystemPrompt,
		UserMessage:  p.UserMessage,
		Images:       images,
	})
	if err != nil {
		log.Warn("Generation failed", logger.ErrorFields("generate", err))
		return nil, err
	}
	return &task.LLMResult{Output: resp.Text}, nil
}

func (e *Executor) crop(ctx context.Context, callerID string, p task.CropPayload) (*task.CropResult, error) {
	if err := e.guard.CheckImage(ctx, p.ImageURL); err != nil {
		return nil, err
	}
	auth, ok := e.mediaAuth(ctx, callerID)
	if !ok {
		return &task.CropResult{OutputImageURL: p.ImageURL, Message: msgCropUnconfigured}, nil
	}
	src, err := e.remoteURL(p.ImageURL)
	if err != nil {
		return nil, err
	}
	out, err := e.media.CropImage(ctx, auth, src, media.Crop{X: p.X, Y: p.Y, Width: p.Width, Height: p.Height})
	if err != nil {
		return nil, err
	}
	return &task.CropResult{OutputImageURL: out}, nil
}

func (e *Executor) extractFrame(ctx context.Context, callerID string, p task.FramePayload) (*task.FrameResult, error) {
	if err := e.guard.CheckVideo(ctx, p.VideoURL); err != nil {
		return nil, err
	}
	auth, ok := e.mediaAuth(ctx, callerID)
	if !ok {
		return &task.FrameResult{OutputFrameURL: "", Message: msgFrameUnconfigured}, nil
	}
	src, err := e.remoteURL(p.VideoURL)
	if err != nil {
		return nil, err
	}
	out, err := e.media.ExtractFrame(ctx, auth, src, p.Timestamp)
	if err != nil {
		return nil, err
	}
	return &task.FrameResult{OutputFrameURL: out}, nil
}

func (e *Executor) mediaAuth(ctx context.Context, callerID string) (media.Auth, bool) {
	if e.media == nil {
		return media.Auth{}, false
	}
	key := e.creds.Lookup(ctx, callerID, credentials.ProviderTransloadit)
	if key == "" {
		return media.Auth{}, false
	}
	return media.Auth{Key: key, Secret: e.creds.TransloaditSecret()}, true
}

// remoteURL turns a URL into one a remote importer can fetch.
func (e *Executor) remoteURL(raw string) (string, error) {
	switch {
	case strings.HasPrefix(raw, dataImagePrefix):
		return "", errors.Validation("Inline image data cannot be sent to the media service; upload the image first.")
	case strings.HasPrefix(raw, uploadsPrefix):
		if e.config.PublicBaseURL == "" {
			return "", errors.Validation("Uploaded files need a public base URL to be processed remotely.")
		}
		return strings.TrimRight(e.config.PublicBaseURL, "/") + raw, nil
	}
	return raw, nil
}

func displayName(provider string) string {
	switch provider {
	case "gemini":
		return "Gemini"
	case "openai":
		return "OpenAI"
	}
	return provider
}
