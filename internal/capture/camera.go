// Package capture provides the webcam frame source for posture monitoring using GoCV (OpenCV).
package capture

import (
	"errors"
	"fmt"
	"sync"

	"gocv.io/x/gocv"
)

// Capture defaults. Frames are requested at 640x480, the size the pose models expect.
const (
	DefaultFPS    = 15
	DefaultWidth  = 640
	DefaultHeight = 480
)

var (
	// ErrCameraNotOpen is returned when trying to read from a camera that is not open.
	ErrCameraNotOpen = errors.New("camera is not open")
	// ErrNoFrame is returned when the device produced no usable frame.
	ErrNoFrame = errors.New("failed to grab frame")
)

// Camera is a frame source. ReadFrame blocks until the device delivers a frame.
// Callers own the returned Mat and must Close it.
type Camera interface {
	Open() error
	Close() error
	ReadFrame() (*gocv.Mat, error)
	SetFPS(fps int)
	FPS() int
	IsOpen() bool
}

// device is the part of gocv.VideoCapture the webcam uses.
type device interface {
	Read(m *gocv.Mat) bool
	Set(prop gocv.VideoCaptureProperties, param float64)
	Close() error
}

func openVideoCapture(id int) (device, error) {
	vc, err := gocv.OpenVideoCapture(id)
	if err != nil {
		return nil, err
	}
	return vc, nil
}

// webcam reads frames from a local video device.
type webcam struct {
	id   int
	open func(id int) (device, error)

	mu  sync.Mutex
	dev device
	fps int
}

// NewCamera returns the webcam with the given device index. It is not opened.
func NewCamera(deviceID int) Camera {
	return newWebcam(deviceID, openVideoCapture)
}

func newWebcam(id int, open func(int) (device, error)) *webcam {
	return &webcam{id: id, open: open, fps: DefaultFPS}
}

// Open acquires the device. Opening an open camera is a no-op.
func (w *webcam) Open() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.dev != nil {
		return nil
	}

	dev, err := w.open(w.id)
	if err != nil {
		return fmt.Errorf("open camera %d: %w", w.id, err)
	}
	dev.Set(gocv.VideoCaptureFrameWidth, DefaultWidth)
	dev.Set(gocv.VideoCaptureFrameHeight, DefaultHeight)
	dev.Set(gocv.VideoCaptureFPS, float64(w.fps))

	w.dev = dev
	return nil
}

// Close releases the device. Closing a closed camera returns nil.
func (w *webcam) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.dev == nil {
		return nil
	}
	err := w.dev.Close()
	w.dev = nil
	return err
}

// ReadFrame grabs one frame. A failed grab or an empty frame wraps ErrNoFrame.
func (w *webcam) ReadFrame() (*gocv.Mat, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.dev == nil {
		return nil, ErrCameraNotOpen
	}

	mat := gocv.NewMat()
	if !w.dev.Read(&mat) {
		mat.Close()
		return nil, fmt.Errorf("%w: read from device %d failed", ErrNoFrame, w.id)
	}
	if mat.Empty() {
		mat.Close()
		return nil, fmt.Errorf("%w: device %d returned an empty frame", ErrNoFrame, w.id)
	}
	return &mat, nil
}

// SetFPS changes the requested frame rate. Non-positive values are ignored.
func (w *webcam) SetFPS(fps int) {
	if fps <= 0 {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.fps = fps
	if w.dev != nil {
		w.dev.Set(gocv.VideoCaptureFPS, float64(fps))
	}
}

func (w *webcam) FPS() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.fps
}

func (w *webcam) IsOpen() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dev != nil
}
