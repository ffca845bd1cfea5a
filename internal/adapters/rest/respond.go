package rest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	json "github.com/goccy/go-json"

	"github.com/ewilliams-labs/emotune/internal/core/domain"
	"github.com/ewilliams-labs/emotune/internal/logging"
)

// errUnsupportedMediaType marks a body in a format the endpoint cannot read.
var errUnsupportedMediaType = errors.New("unsupported media type")

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Debug().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeErrorWithCode(w, status, message, codeForStatus(status))
}

func writeErrorWithCode(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, errorResponse{Success: false, Error: message, Code: code})
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "INVALID_INPUT"
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusRequestEntityTooLarge:
		return "PAYLOAD_TOO_LARGE"
	case http.StatusUnprocessableEntity:
		return "CLASSIFICATION_FAILED"
	case http.StatusNotImplemented:
		return "NOT_CONFIGURED"
	case http.StatusServiceUnavailable:
		return "UPSTREAM_UNAVAILABLE"
	case http.StatusUnsupportedMediaType:
		return "UNSUPPORTED_MEDIA_TYPE"
	default:
		return "INTERNAL"
	}
}

// writeServiceError maps a core error onto a status. Causes of 5xx errors
// are logged and not echoed to the client.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var status int
	var inputErr *domain.InputError
	var maxBytesErr *http.MaxBytesError
	switch {
	case errors.Is(err, errUnsupportedMediaType):
		writeError(w, http.StatusUnsupportedMediaType, err.Error())
		return
	case errors.As(err, &inputErr):
		writeError(w, http.StatusBadRequest, inputErr.Error())
		return
	case errors.As(err, &maxBytesErr), errors.Is(err, domain.ErrPayloadTooLarge):
		status = http.StatusRequestEntityTooLarge
	case errors.Is(err, domain.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrClassification):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrNotConfigured):
		status = http.StatusNotImplemented
	case errors.Is(err, domain.ErrUnavailable):
		status = http.StatusServiceUnavailable
	default:
		status = http.StatusInternalServerError
	}

	msg := err.Error()
	if status >= http.StatusInternalServerError && status != http.StatusNotImplemented {
		logging.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		msg = http.StatusText(status)
	}
	writeError(w, status, msg)
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// validateRequest runs struct validation and reports the first failing field
// as a domain.InputError.
func validateRequest(v any) error {
	err := getValidator().Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &domain.InputError{Reason: err.Error()}
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return &domain.InputError{Field: fe.Field(), Reason: "is required"}
	case "min":
		return &domain.InputError{Field: fe.Field(), Reason: fmt.Sprintf("must be at least %s", fe.Param())}
	case "max":
		return &domain.InputError{Field: fe.Field(), Reason: fmt.Sprintf("must be at most %s", fe.Param())}
	default:
		return &domain.InputError{Field: fe.Field(), Reason: "is invalid"}
	}
}

// decodeJSON reads a single JSON object into dst, rejecting unknown fields.
// The body is read in full first: the streaming decoder does not surface the
// *http.MaxBytesError from a capped body.
func decodeJSON(r *http.Request, dst any) error {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return fmt.Errorf("%w: %w", domain.ErrPayloadTooLarge, err)
		}
		return &domain.InputError{Reason: "unreadable request body"}
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return &domain.InputError{Reason: "request body is empty"}
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return &domain.InputError{Reason: "invalid request body: " + err.Error()}
	}
	return nil
}

func isJSONContentType(r *http.Request) bool {
	ct := strings.ToLower(r.Header.Get("Content-Type"))
	return ct == "" || strings.HasPrefix(ct, "application/json")
}
