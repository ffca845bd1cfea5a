package detector

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	json "github.com/goccy/go-json"

	"github.com/ewilliams-labs/emotune/internal/core/domain"
)

func TestClient_Detect(t *testing.T) {
	tests := []struct {
		name         string
		status       int
		responseBody string
		want         domain.Detection
		wantErr      error
	}{
		{
			name:         "classified face",
			status:       http.StatusOK,
			responseBody: `{"emotion":"Happy","confidence":0.91,"emotions":{"happy":0.91,"sad":0.09}}`,
			want:         domain.Detection{Emotion: domain.Happy, Confidence: 0.91, Probabilities: map[string]float64{"happy": 0.91, "sad": 0.09}},
		},
		{
			name:         "no face normalizes to neutral",
			status:       http.StatusOK,
			responseBody: `{"emotion":"","confidence":0}`,
			want:         domain.NoFaceDetection(),
		},
		{
			name:         "rejected image",
			status:       http.StatusBadRequest,
			responseBody: `{"error":"cannot decode image"}`,
			wantErr:      domain.ErrClassification,
		},
		{
			name:         "error field on success status",
			status:       http.StatusOK,
			responseBody: `{"error":"model not loaded"}`,
			wantErr:      domain.ErrClassification,
		},
		{
			name:         "bad credentials",
			status:       http.StatusUnauthorized,
			responseBody: `{"error":"invalid token"}`,
			wantErr:      domain.ErrUnavailable,
		},
		{
			name:         "forbidden",
			status:       http.StatusForbidden,
			responseBody: `{}`,
			wantErr:      domain.ErrUnavailable,
		},
		{
			name:         "upstream down",
			status:       http.StatusBadGateway,
			responseBody: `{}`,
			wantErr:      domain.ErrUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got detectRequest
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/detect" || r.Method != http.MethodPost {
					w.WriteHeader(http.StatusNotFound)
					return
				}
				if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
					w.WriteHeader(http.StatusBadRequest)
					return
				}
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.responseBody))
			}))
			defer srv.Close()

			client := NewClient(Config{BaseURL: srv.URL + "/", MaxRetries: 2, RetryBackoff: time.Millisecond})
			det, err := client.Detect(context.Background(), []byte("jpeg-bytes"))

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Image != base64.StdEncoding.EncodeToString([]byte("jpeg-bytes")) {
				t.Fatalf("image not base64 encoded: %q", got.Image)
			}
			if det.Emotion != tt.want.Emotion || det.Confidence != tt.want.Confidence {
				t.Fatalf("got %+v, want %+v", det, tt.want)
			}
			for k, v := range tt.want.Probabilities {
				if det.Probabilities[k] != v {
					t.Fatalf("probability %s = %v, want %v", k, det.Probabilities[k], v)
				}
			}
		})
	}
}

func TestClient_BreakerOpens(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewClient(Config{
		BaseURL:         srv.URL,
		MaxRetries:      1,
		RetryBackoff:    time.Millisecond,
		BreakerFailures: 2,
		BreakerCooldown: time.Minute,
	})
	for i := 0; i < 2; i++ {
		if _, err := client.Detect(context.Background(), []byte("x")); !errors.Is(err, domain.ErrUnavailable) {
			t.Fatalf("call %d: expected unavailable, got %v", i, err)
		}
	}
	before := atomic.LoadInt32(&hits)
	if _, err := client.Detect(context.Background(), []byte("x")); !errors.Is(err, domain.ErrUnavailable) {
		t.Fatalf("open breaker should report unavailable, got %v", err)
	}
	if atomic.LoadInt32(&hits) != before {
		t.Fatal("open breaker should not reach the server")
	}
}

func TestClient_ConfigurationErrorsTrip(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL, BreakerFailures: 2, BreakerCooldown: time.Minute})
	for i := 0; i < 2; i++ {
		if _, err := client.Detect(context.Background(), []byte("x")); !errors.Is(err, domain.ErrUnavailable) {
			t.Fatalf("call %d: expected unavailable, got %v", i, err)
		}
	}
	before := atomic.LoadInt32(&hits)
	if _, err := client.Detect(context.Background(), []byte("x")); !errors.Is(err, domain.ErrUnavailable) {
		t.Fatalf("open breaker should report unavailable, got %v", err)
	}
	if atomic.LoadInt32(&hits) != before {
		t.Fatal("breaker should open after repeated 404s")
	}
}

func TestClient_ClassificationErrorsDoNotTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":"no image"}`))
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL, BreakerFailures: 1})
	for i := 0; i < 3; i++ {
		if _, err := client.Detect(context.Background(), nil); !errors.Is(err, domain.ErrClassification) {
			t.Fatalf("call %d: expected classification error, got %v", i, err)
		}
	}
}

func TestClient_ClientCredentials(t *testing.T) {
	var authHeader atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/token":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"access_token":"tok-123","token_type":"bearer","expires_in":3600}`))
		case "/detect":
			authHeader.Store(r.Header.Get("Authorization"))
			_, _ = w.Write([]byte(`{"emotion":"sad","confidence":0.5}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL, TokenURL: srv.URL + "/token", ClientID: "id", ClientSecret: "secret"})
	det, err := client.Detect(context.Background(), []byte("x"))
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if det.Emotion != domain.Sad {
		t.Fatalf("emotion = %s", det.Emotion)
	}
	if got, _ := authHeader.Load().(string); got != "Bearer tok-123" {
		t.Fatalf("authorization header = %q", got)
	}
}
