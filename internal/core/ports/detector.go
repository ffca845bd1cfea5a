package ports

import (
	"context"

	"github.com/ewilliams-labs/emotune/internal/core/domain"
)

// EmotionDetector classifies a face image. Implementations live outside the
// core; errors are reported per request.
type EmotionDetector interface {
	Detect(ctx context.Context, image []byte) (domain.Detection, error)
}
