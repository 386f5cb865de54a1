package media

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/kbukum/flowkit/errors"
	"github.com/kbukum/flowkit/httpclient"
	"github.com/kbukum/flowkit/logger"
)

const (
	// DefaultEndpoint creates assemblies.
	DefaultEndpoint = "https://api2.transloadit.com/assemblies"

	statusCompleted = "ASSEMBLY_COMPLETED"
	statusAborted   = "REQUEST_ABORTED"

	imagemagickStack = "v3.0.1"
	ffmpegStack      = "v6.0.0"
)

// Config configures the Transloadit client.
type Config struct {
	Endpoint     string        `mapstructure:"endpoint"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	MaxPolls     int           `mapstructure:"max_polls"`
	// SignatureTTL is how long a signed request stays valid.
	SignatureTTL time.Duration `mapstructure:"signature_ttl"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// ApplyDefaults fills zero fields.
func (c *Config) ApplyDefaults() {
	if c.Endpoint == "" {
		c.Endpoint = DefaultEndpoint
	}
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	if c.MaxPolls <= 0 {
		c.MaxPolls = 60
	}
	if c.SignatureTTL <= 0 {
		c.SignatureTTL = time.Hour
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
}

// Auth carries the account credentials for one assembly. Secret is
// optional; when set the params are signed.
type Auth struct {
	Key    string
	Secret string
}

// Crop is a crop box in percentages of the source image.
type Crop struct {
	X, Y, Width, Height float64
}

// Box returns the corner coordinates clamped to 0..100.
func (c Crop) Box() (x1, y1, x2, y2 float64) {
	return clampPercent(c.X), clampPercent(c.Y), clampPercent(c.X + c.Width), clampPercent(c.Y + c.Height)
}

func clampPercent(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Min(100, math.Max(0, v))
}

func percent(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64) + "%"
}

// Client talks to the Transloadit API.
type Client struct {
	http   *httpclient.Client
	config Config
	log    *logger.Logger
	now    func() time.Time
}

// New creates a Client.
func New(cfg Config, log *logger.Logger) (*Client, error) {
	cfg.ApplyDefaults()
	hc, err := httpclient.New(httpclient.Config{
		Timeout:        cfg.Timeout,
		Retry:          httpclient.DefaultRetryConfig(),
		CircuitBreaker: httpclient.DefaultCircuitBreakerConfig("transloadit"),
	})
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Client{http: hc, config: cfg, log: log.WithComponent("transloadit"), now: time.Now}, nil
}

// CropImage crops imageURL and returns the result URL. When the assembly
// produces no file the original URL is returned.
func (c *Client) CropImage(ctx context.Context, auth Auth, imageURL string, crop Crop) (string, error) {
	x1, y1, x2, y2 := crop.Box()
	steps := map[string]any{
		"import": map[string]any{"robot": "/http/import", "url": imageURL},
		"crop": map[string]any{
			"robot": "/image/resize",
			"use":   "import",
			"crop": map[string]string{
				"x1": percent(x1), "y1": percent(y1),
				"x2": percent(x2), "y2": percent(y2),
			},
			"resize_strategy":   "crop",
			"imagemagick_stack": imagemagickStack,
		},
	}
	res, err := c.Run(ctx, auth, steps)
	if err != nil {
		return "", err
	}
	if u := res.FirstURL("crop"); u != "" {
		return u, nil
	}
	return imageURL, nil
}

// ExtractFrame grabs one PNG frame at timestamp seconds. An assembly
// without output yields "".
func (c *Client) ExtractFrame(ctx context.Context, auth Auth, videoURL string, timestamp float64) (string, error) {
	if timestamp < 0 || math.IsNaN(timestamp) {
		timestamp = 0
	}
	steps := map[string]any{
		"import": map[string]any{"robot": "/http/import", "url": videoURL},
		"extract": map[string]any{
			"robot":             "/video/thumbs",
			"use":               "import",
			"offsets":           []float64{timestamp},
			"format":            "png",
			"count":             1,
			"width":             1920,
			"height":            1080,
			"resize_strategy":   "fit",
			"imagemagick_stack": imagemagickStack,
			"ffmpeg_stack":      ffmpegStack,
		},
	}
	res, err := c.Run(ctx, auth, steps)
	if err != nil {
		return "", err
	}
	return res.FirstURL("extract"), nil
}

// Run creates an assembly for steps and waits for it to finish.
func (c *Client) Run(ctx context.Context, auth Auth, steps map[string]any) (*Assembly, error) {
	if auth.Key == "" {
		return nil, errors.Validation("Transloadit credentials not configured")
	}
	form, err := c.params(auth, steps)
	if err != nil {
		return nil, err
	}

	asm, err := httpclient.PostJSON[Assembly](c.http, ctx, c.config.Endpoint, form)
	if err != nil {
		return nil, c.wrap(err)
	}
	if err := asm.failure(); err != nil {
		return nil, err
	}
	c.log.WithContext(ctx).Debug("Assembly created", logger.Fields("assembly_id", asm.ID, logger.FieldStatus, asm.OK))

	statusURL := asm.statusURL()
	if statusURL == "" {
		return &asm, nil
	}
	ticker := time.NewTicker(c.config.PollInterval)
	defer ticker.Stop()
	for i := 0; i < c.config.MaxPolls && asm.OK != statusCompleted; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
		next, err := httpclient.GetJSON[Assembly](c.http, ctx, statusURL)
		if err != nil {
			return nil, c.wrap(err)
		}
		asm = next
		if err := asm.failure(); err != nil {
			return nil, err
		}
	}
	if asm.OK != statusCompleted {
		return nil, serviceError(fmt.Sprintf("Assembly %s did not complete after %d polls", asm.ID, c.config.MaxPolls), nil)
	}
	return &asm, nil
}

func (c *Client) params(auth Auth, steps map[string]any) (url.Values, error) {
	authDoc := map[string]string{"key": auth.Key}
	if auth.Secret != "" {
		authDoc["expires"] = c.now().UTC().Add(c.config.SignatureTTL).Format("2006/01/02 15:04:05+00:00")
	}
	raw, err := json.Marshal(map[string]any{"auth": authDoc, "steps": steps})
	if err != nil {
		return nil, err
	}
	form := url.Values{"params": {string(raw)}}
	if auth.Secret != "" {
		form.Set("signature", Sign(auth.Secret, raw))
	}
	return form, nil
}

func (c *Client) wrap(err error) error {
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var he *httpclient.Error
	if stderrors.As(err, &he) {
		return serviceError("Transloadit error: "+he.Detail(), err)
	}
	return serviceError("Transloadit request failed", err)
}

func serviceError(msg string, cause error) *errors.AppError {
	return errors.New(errors.ErrCodeExternalService, msg, http.StatusBadGateway).
		WithDetail("service", "transloadit").
		WithCause(cause)
}

// Sign returns the sha384 request signature for params.
func Sign(secret string, params []byte) string {
	mac := hmac.New(sha512.New384, []byte(secret))
	mac.Write(params)
	return "sha384:" + hex.EncodeToString(mac.Sum(nil))
}
