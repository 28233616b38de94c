package capture

import (
	"image"
	"sync"

	"gocv.io/x/gocv"
)

// Scene change constants
const (
	// sceneBlurSize is the Gaussian kernel that smooths sensor noise before differencing.
	sceneBlurSize = 21
	// scenePixelDelta is the gray level difference at which a pixel counts as changed.
	scenePixelDelta = 25
	// DefaultSceneThreshold is the share of changed pixels, in percent, that counts as a new scene.
	DefaultSceneThreshold = 0.5
)

// SceneChange tells whether the camera image changed enough since the last
// frame it accepted to be worth running pose detection again.
type SceneChange struct {
	threshold float64
	baseline  gocv.Mat
	hasBase   bool
	mu        sync.Mutex
}

// NewSceneChange creates a SceneChange. threshold is the percentage of pixels
// that must differ from the baseline; values <= 0 use DefaultSceneThreshold.
func NewSceneChange(threshold float64) *SceneChange {
	if threshold <= 0 {
		threshold = DefaultSceneThreshold
	}
	return &SceneChange{
		threshold: threshold,
		baseline:  gocv.NewMat(),
	}
}

// Changed compares frame to the baseline and returns whether it changed along
// with the percentage of changed pixels. The first frame after New or Reset
// always counts as changed. The baseline moves only when a change is reported,
// so slow drift still adds up to a change.
func (s *SceneChange) Changed(frame *gocv.Mat) (bool, float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if frame == nil || frame.Empty() {
		return true, 100
	}

	gray := gocv.NewMat()
	defer gray.Close()
	if frame.Channels() > 1 {
		gocv.CvtColor(*frame, &gray, gocv.ColorBGRToGray)
	} else {
		frame.CopyTo(&gray)
	}

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gray, &blurred, image.Point{X: sceneBlurSize, Y: sceneBlurSize}, 0, 0, gocv.BorderDefault)

	if !s.hasBase || blurred.Rows() != s.baseline.Rows() || blurred.Cols() != s.baseline.Cols() {
		blurred.CopyTo(&s.baseline)
		s.hasBase = true
		return true, 100
	}

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(blurred, s.baseline, &diff)

	mask := gocv.NewMat()
	defer mask.Close()
	gocv.Threshold(diff, &mask, scenePixelDelta, 255, gocv.ThresholdBinary)

	percent := float64(gocv.CountNonZero(mask)) / float64(mask.Rows()*mask.Cols()) * 100.0
	if percent <= s.threshold {
		return false, percent
	}

	blurred.CopyTo(&s.baseline)
	return true, percent
}

// Reset drops the baseline so the next frame counts as changed.
func (s *SceneChange) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hasBase = false
}

// Close releases the baseline frame.
func (s *SceneChange) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hasBase = false
	return s.baseline.Close()
}
