// Package detector is an HTTP client for the face emotion classifier. It
// posts a base64 image and maps the reply onto domain.Detection.
package detector

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/ewilliams-labs/emotune/internal/core/domain"
	"github.com/ewilliams-labs/emotune/internal/core/ports"
	"github.com/ewilliams-labs/emotune/internal/logging"
	"github.com/ewilliams-labs/emotune/internal/metrics"
)

const (
	defaultTimeout  = 30 * time.Second
	maxResponseSize = 1 << 20
)

// Config configures the client. TokenURL turns on OAuth2 client credentials.
type Config struct {
	BaseURL      string
	Timeout      time.Duration
	MaxRetries   int
	RetryBackoff time.Duration

	TokenURL     string
	ClientID     string
	ClientSecret string

	BreakerFailures uint32
	BreakerCooldown time.Duration
}

type Client struct {
	baseURL     string
	httpClient  *http.Client
	maxRetries  int
	baseBackoff time.Duration
	cb          *gobreaker.CircuitBreaker[domain.Detection]
}

var _ ports.EmotionDetector = (*Client)(nil)

type detectRequest struct {
	Image string `json:"image"`
}

type detectResponse struct {
	Emotion    string             `json:"emotion"`
	Confidence float64            `json:"confidence"`
	Emotions   map[string]float64 `json:"emotions"`
	Error      string             `json:"error,omitempty"`
}

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	httpClient := &http.Client{Timeout: timeout}
	if cfg.TokenURL != "" {
		cc := clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
		}
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, &http.Client{Timeout: timeout})
		httpClient = cc.Client(ctx)
		httpClient.Timeout = timeout
	}

	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 5
	}
	cooldown := cfg.BreakerCooldown
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}

	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		httpClient:  httpClient,
		maxRetries:  cfg.MaxRetries,
		baseBackoff: cfg.RetryBackoff,
		cb: gobreaker.NewCircuitBreaker[domain.Detection](gobreaker.Settings{
			Name:        "emotion-detector",
			MaxRequests: 1,
			Timeout:     cooldown,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= failures
			},
			// Rejected images say nothing about the detector's health.
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, domain.ErrClassification)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logging.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
			},
		}),
	}
}

// Detect classifies image. A reply without a face normalizes to neutral.
func (c *Client) Detect(ctx context.Context, image []byte) (domain.Detection, error) {
	start := time.Now()
	det, err := c.cb.Execute(func() (domain.Detection, error) {
		return c.detect(ctx, image)
	})
	metrics.RecordDetectorRequest(time.Since(start), err)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return domain.Detection{}, fmt.Errorf("detector: %w: %w", domain.ErrUnavailable, err)
	}
	return det, err
}

func (c *Client) detect(ctx context.Context, image []byte) (domain.Detection, error) {
	body, err := json.Marshal(detectRequest{Image: base64.StdEncoding.EncodeToString(image)})
	if err != nil {
		return domain.Detection{}, fmt.Errorf("detector: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/detect", bytes.NewReader(body))
	if err != nil {
		return domain.Detection{}, fmt.Errorf("detector: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.doRequestWithRetry(req)
	if err != nil {
		return domain.Detection{}, fmt.Errorf("detector: %w: %w", domain.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return domain.Detection{}, fmt.Errorf("detector: read response: %w", err)
	}

	var parsed detectResponse
	decodeErr := json.Unmarshal(raw, &parsed)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := parsed.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return domain.Detection{}, fmt.Errorf("detector: %w: status %d: %s", statusError(resp.StatusCode), resp.StatusCode, msg)
	}
	if decodeErr != nil {
		return domain.Detection{}, fmt.Errorf("detector: decode response: %w", decodeErr)
	}
	if parsed.Error != "" {
		return domain.Detection{}, fmt.Errorf("detector: %w: %s", domain.ErrClassification, parsed.Error)
	}

	emotion := domain.ParseEmotion(parsed.Emotion)
	if emotion == "" {
		return domain.NoFaceDetection(), nil
	}
	probs := parsed.Emotions
	if probs == nil {
		probs = map[string]float64{string(emotion): parsed.Confidence}
	}
	return domain.Detection{Emotion: emotion, Confidence: parsed.Confidence, Probabilities: probs}, nil
}

// statusError classifies a non-2xx reply. Only 400 and 422 mean the image was
// rejected; auth failures and missing routes count against the breaker.
func statusError(status int) error {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return domain.ErrClassification
	default:
		return domain.ErrUnavailable
	}
}
