package rest

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/ewilliams-labs/emotune/internal/core/domain"
	"github.com/ewilliams-labs/emotune/internal/logging"
)

type emotionsResponse struct {
	Success  bool             `json:"success"`
	Emotions []domain.Emotion `json:"emotions"`
}

type detectEmotionRequest struct {
	Image  string `json:"image" validate:"required"`
	UserID string `json:"user_id"`
	Mode   string `json:"mode"`
}

type detectEmotionResponse struct {
	Success         bool               `json:"success"`
	Emotion         domain.Emotion     `json:"emotion"`
	EmotionName     string             `json:"emotion_name"`
	Confidence      float64            `json:"confidence"`
	AllEmotions     map[string]float64 `json:"all_emotions"`
	Recommendations []domain.Track     `json:"recommendations"`
	Description     string             `json:"description"`
}

// ListEmotions handles GET /api/emotions
func (h *Handler) ListEmotions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, emotionsResponse{Success: true, Emotions: domain.KnownEmotions()})
}

// DetectEmotion handles POST /api/detect-emotion. The image arrives either as
// a multipart "file" part or as base64 (optionally a data URL) in JSON.
func (h *Handler) DetectEmotion(w http.ResponseWriter, r *http.Request) {
	if h.svc.Detector == nil {
		writeServiceError(w, r, fmt.Errorf("emotion detector: %w", domain.ErrNotConfigured))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxBodyBytes)

	image, userID, mode, err := h.readDetectRequest(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	det, err := h.svc.Detector.Detect(r.Context(), image)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	recs := h.svc.Recommender.Recommend(r.Context(), det.Emotion, userID, detectRecommendationLimit, mode)
	logging.Ctx(r.Context()).Info().
		Str("emotion", string(det.Emotion)).
		Float64("confidence", det.Confidence).
		Int("recommendations", len(recs)).
		Msg("emotion detected")

	writeJSON(w, http.StatusOK, detectEmotionResponse{
		Success:         true,
		Emotion:         det.Emotion,
		EmotionName:     det.Emotion.LocalizedName(),
		Confidence:      det.Confidence,
		AllEmotions:     det.Probabilities,
		Recommendations: recs,
		Description:     det.Emotion.Description(),
	})
}

func (h *Handler) readDetectRequest(r *http.Request) (image []byte, userID, mode string, err error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		image, userID, mode, err = h.readMultipartImage(r)
	} else {
		image, userID, mode, err = h.readJSONImage(r)
	}
	if err != nil {
		return nil, "", "", err
	}
	if len(image) == 0 {
		return nil, "", "", &domain.InputError{Field: "image", Reason: "is required"}
	}
	if mode = strings.TrimSpace(mode); mode == "" {
		mode = domain.ModeAuto
	}
	return image, strings.TrimSpace(userID), mode, nil
}

func (h *Handler) readMultipartImage(r *http.Request) ([]byte, string, string, error) {
	if err := r.ParseMultipartForm(h.opts.MaxImageBytes); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return nil, "", "", fmt.Errorf("%w: %w", domain.ErrPayloadTooLarge, err)
		}
		return nil, "", "", &domain.InputError{Reason: "invalid multipart body"}
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		return nil, "", "", &domain.InputError{Field: "file", Reason: "is required"}
	}
	defer file.Close()

	image, err := io.ReadAll(io.LimitReader(file, h.opts.MaxImageBytes+1))
	if err != nil {
		return nil, "", "", fmt.Errorf("read upload: %w", err)
	}
	if int64(len(image)) > h.opts.MaxImageBytes {
		return nil, "", "", h.imageTooLarge()
	}
	return image, r.FormValue("user_id"), r.FormValue("mode"), nil
}

func (h *Handler) readJSONImage(r *http.Request) ([]byte, string, string, error) {
	if !isJSONContentType(r) {
		return nil, "", "", fmt.Errorf("%w: Content-Type must be application/json or multipart/form-data", errUnsupportedMediaType)
	}
	var req detectEmotionRequest
	if err := decodeJSON(r, &req); err != nil {
		return nil, "", "", err
	}
	if err := validateRequest(&req); err != nil {
		return nil, "", "", err
	}

	payload := req.Image
	if _, after, found := strings.Cut(payload, ","); found {
		payload = after
	}
	payload = strings.TrimSpace(payload)
	if int64(base64.StdEncoding.DecodedLen(len(payload))) > h.opts.MaxImageBytes+2 {
		return nil, "", "", h.imageTooLarge()
	}
	image, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", "", &domain.InputError{Field: "image", Reason: "is not valid base64"}
	}
	if int64(len(image)) > h.opts.MaxImageBytes {
		return nil, "", "", h.imageTooLarge()
	}
	return image, req.UserID, req.Mode, nil
}

func (h *Handler) imageTooLarge() error {
	return fmt.Errorf("%w: image exceeds %d bytes", domain.ErrPayloadTooLarge, h.opts.MaxImageBytes)
}
