// Package detector extracts body keypoints from video frames with a pretrained pose model.
package detector

import (
	"errors"
	"image"
	"os"

	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/ayusman/shrimp-sentry/internal/posture"
)

// ErrNoBackend is returned by New when neither the ONNX model nor the pose service is available.
var ErrNoBackend = errors.New("no pose estimation backend available")

// KeypointVisibility is the confidence below which a keypoint is considered hidden.
// Hidden keypoints are reported at (0, 0).
const KeypointVisibility = 0.5

// Detector defines the interface for pose estimation implementations.
type Detector interface {
	// Detect analyzes a video frame and returns the detected people, best first.
	// Returns an empty slice if nobody is detected.
	Detect(frame *gocv.Mat) ([]Pose, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Pose is one detected person.
type Pose struct {
	Keypoints  posture.Keypoints `json:"keypoints"`
	Confidence []float64         `json:"confidence"`
	Score      float64           `json:"score"`
	Box        image.Rectangle   `json:"box"`
}

// Config holds configuration options for pose detection.
type Config struct {
	// ModelPath is the YOLO pose model exported to ONNX.
	ModelPath string

	// ServiceScript is the pose service used when no ONNX model is present.
	// Empty means search the usual locations.
	ServiceScript string

	// MinConfidence is the minimum person detection score (0.0-1.0).
	MinConfidence float64

	// NMSThreshold is the IoU above which overlapping detections are merged.
	NMSThreshold float64

	// InputSize is the square model input resolution.
	InputSize int
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		MinConfidence: 0.5,
		NMSThreshold:  0.45,
		InputSize:     640,
	}
}

// New returns the best available detector: the ONNX model run in-process when
// cfg.ModelPath exists, otherwise the pose service subprocess.
func New(cfg Config, logger *zap.Logger) (Detector, error) {
	if logger == nil {
		logger = zap.L()
	}

	if cfg.ModelPath != "" {
		if _, err := os.Stat(cfg.ModelPath); err == nil {
			d, err := NewONNXDetector(cfg)
			if err == nil {
				logger.Info("Using ONNX pose model", zap.String("model", cfg.ModelPath))
				return d, nil
			}
			logger.Warn("ONNX pose model failed to load", zap.String("model", cfg.ModelPath), zap.Error(err))
		}
	}

	d, err := NewServiceDetector(cfg, logger)
	if err == nil {
		logger.Info("Using pose service", zap.String("script", d.script))
		return d, nil
	}
	logger.Warn("Pose service not available", zap.Error(err))

	return nil, ErrNoBackend
}
