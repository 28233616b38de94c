package detector

import (
	"image"
	"sync"

	"github.com/golang/geo/r2"
	"gocv.io/x/gocv"

	"github.com/ayusman/shrimp-sentry/internal/posture"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results.
type MockDetector struct {
	poses []Pose
	err   error
	calls int
	mu    sync.Mutex
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetPoses sets the poses that will be returned by Detect.
func (m *MockDetector) SetPoses(poses ...Pose) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.poses = poses
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Detect returns the pre-configured poses or error.
func (m *MockDetector) Detect(frame *gocv.Mat) ([]Pose, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.poses, nil
}

// Calls returns how many times Detect was called.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}

// basePose is a person sitting upright, facing the camera, in a 640x480 frame.
func basePose() Pose {
	kp := make(posture.Keypoints, posture.NumKeypoints)
	kp[posture.Nose] = r2.Point{X: 320, Y: 190}
	kp[posture.LeftEye] = r2.Point{X: 300, Y: 175}
	kp[posture.RightEye] = r2.Point{X: 340, Y: 175}
	kp[posture.LeftEar] = r2.Point{X: 280, Y: 180}
	kp[posture.RightEar] = r2.Point{X: 360, Y: 180}
	kp[posture.LeftShoulder] = r2.Point{X: 250, Y: 280}
	kp[posture.RightShoulder] = r2.Point{X: 390, Y: 280}
	kp[posture.LeftElbow] = r2.Point{X: 230, Y: 370}
	kp[posture.RightElbow] = r2.Point{X: 410, Y: 370}
	kp[posture.LeftWrist] = r2.Point{X: 260, Y: 440}
	kp[posture.RightWrist] = r2.Point{X: 380, Y: 440}
	kp[posture.LeftHip] = r2.Point{X: 270, Y: 470}
	kp[posture.RightHip] = r2.Point{X: 370, Y: 470}

	conf := make([]float64, posture.NumKeypoints)
	for i := range conf {
		conf[i] = 0.9
	}
	// Knees and ankles are below the desk.
	for i := posture.LeftKnee; i < posture.NumKeypoints; i++ {
		conf[i] = 0.1
	}

	return Pose{
		Keypoints:  kp,
		Confidence: conf,
		Score:      0.92,
		Box:        image.Rect(200, 120, 440, 480),
	}
}

// UprightFrontPose is a front view with the eyes 40px apart.
func UprightFrontPose() Pose {
	return basePose()
}

// CloseFrontPose is a front view of someone leaning into the screen; the eyes are 150px apart.
func CloseFrontPose() Pose {
	p := basePose()
	p.Keypoints[posture.LeftEye] = r2.Point{X: 245, Y: 200}
	p.Keypoints[posture.RightEye] = r2.Point{X: 395, Y: 200}
	return p
}

// UprightSidePose is a side view with shoulders directly above hips.
func UprightSidePose() Pose {
	p := basePose()
	p.Keypoints[posture.LeftShoulder] = r2.Point{X: 320, Y: 150}
	p.Keypoints[posture.RightShoulder] = r2.Point{X: 322, Y: 150}
	p.Keypoints[posture.LeftHip] = r2.Point{X: 320, Y: 350}
	p.Keypoints[posture.RightHip] = r2.Point{X: 322, Y: 350}
	return p
}

// SlouchedSidePose is a side view with the shoulders about 19 degrees forward of the hips.
func SlouchedSidePose() Pose {
	p := UprightSidePose()
	p.Keypoints[posture.LeftShoulder] = r2.Point{X: 380, Y: 170}
	p.Keypoints[posture.RightShoulder] = r2.Point{X: 384, Y: 170}
	return p
}
