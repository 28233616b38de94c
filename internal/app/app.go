// Package app runs the posture monitoring loop: frames in, verdicts and rate-limited
// notifications out.
package app

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/ayusman/shrimp-sentry/internal/alert"
	"github.com/ayusman/shrimp-sentry/internal/capture"
	"github.com/ayusman/shrimp-sentry/internal/detector"
	"github.com/ayusman/shrimp-sentry/internal/notify"
	"github.com/ayusman/shrimp-sentry/internal/posture"
)

// Status texts shown after each evaluated frame.
const (
	StatusBadPosture  = "🦐 Bad posture detected! Sit up straight."
	StatusGoodPosture = "🧘 Good posture! Keep it up."
	StatusGrabFailed  = "Failed to grab frame"
)

var (
	// ErrAlreadyRunning is returned by Start while a session is active.
	ErrAlreadyRunning = errors.New("monitor is already running")
	// ErrNotRunning is returned by Stop when no session is active.
	ErrNotRunning = errors.New("monitor is not running")
)

// State is the lifecycle state of the monitor.
type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
)

// StatusSink shows the most recent verdict to the user.
type StatusSink interface {
	ShowWarning(text string)
	ShowSuccess(text string)
	ShowError(text string)
}

// FrameSink receives JPEG-encoded, annotated preview frames.
type FrameSink interface {
	PublishFrame(jpeg []byte)
}

// MultiStatus forwards status updates to every sink.
type MultiStatus []StatusSink

func (m MultiStatus) ShowWarning(text string) {
	for _, s := range m {
		s.ShowWarning(text)
	}
}

func (m MultiStatus) ShowSuccess(text string) {
	for _, s := range m {
		s.ShowSuccess(text)
	}
}

func (m MultiStatus) ShowError(text string) {
	for _, s := range m {
		s.ShowError(text)
	}
}

// SceneGate reports whether a frame differs enough from the last one to run
// pose detection again. capture.SceneChange implements it.
type SceneGate interface {
	Changed(frame *gocv.Mat) (bool, float64)
	Reset()
}

// DefaultMaxReuse bounds how many frames in a row may reuse the last poses.
const DefaultMaxReuse = 30

// Config holds the collaborators of the monitor.
type Config struct {
	Camera   capture.Camera
	Detector detector.Detector
	Notifier notify.Notifier
	Status   StatusSink
	Frames   FrameSink
	Logger   *zap.Logger

	// Scene skips detection on frames that did not change. Nil detects every frame.
	Scene SceneGate
	// MaxReuse bounds consecutive skipped detections. Zero uses DefaultMaxReuse.
	MaxReuse int

	// FrameInterval paces the loop. Zero uses the camera frame rate.
	FrameInterval time.Duration
	// Now returns the current time. Nil uses time.Now.
	Now func() time.Time
}

// Snapshot is a point-in-time view of the monitor.
type Snapshot struct {
	State        State            `json:"state"`
	Settings     posture.Settings `json:"settings"`
	SessionID    string           `json:"session_id,omitempty"`
	StartedAt    time.Time        `json:"started_at,omitempty"`
	Verdict      string           `json:"verdict,omitempty"`
	Signal       float64          `json:"signal"`
	HasSignal    bool             `json:"has_signal"`
	Frames       int              `json:"frames"`
	LastNotified time.Time        `json:"last_notified,omitempty"`
	LastError    string           `json:"last_error,omitempty"`
}

// App is the posture monitor. It owns one monitoring session at a time.
type App struct {
	config   Config
	logger   *zap.Logger
	cooldown *alert.Cooldown

	mu        sync.RWMutex
	state     State
	starting  bool
	settings  posture.Settings
	sessionID string
	startedAt time.Time
	stopCh    chan struct{}
	done      chan struct{}

	verdict   string
	signal    float64
	hasSignal bool
	frames    int
	lastErr   string
}

// New creates an idle App.
func New(config Config) *App {
	logger := config.Logger
	if logger == nil {
		logger = zap.L()
	}
	if config.Notifier == nil {
		config.Notifier = notify.Nop{}
	}
	if config.Status == nil {
		config.Status = MultiStatus{}
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	if config.MaxReuse <= 0 {
		config.MaxReuse = DefaultMaxReuse
	}

	return &App{
		config:   config,
		logger:   logger,
		cooldown: alert.NewCooldown(posture.DefaultCooldown),
		state:    StateIdle,
	}
}

// Start validates settings, acquires the camera and starts a monitoring session.
// The activation notification is queued before the loop starts and is not rate-limited.
func (a *App) Start(settings posture.Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	if a.config.Camera == nil || a.config.Detector == nil {
		return errors.New("monitor needs a camera and a detector")
	}

	a.mu.Lock()
	if a.state == StateRunning || a.starting {
		a.mu.Unlock()
		return ErrAlreadyRunning
	}
	a.starting = true
	a.mu.Unlock()

	// The lock is not held while the device opens.
	if err := a.config.Camera.Open(); err != nil {
		a.mu.Lock()
		a.starting = false
		a.mu.Unlock()
		return fmt.Errorf("acquire camera: %w", err)
	}

	a.mu.Lock()
	a.starting = false
	a.cooldown.Reset(settings.Cooldown)
	a.state = StateRunning
	a.settings = settings
	a.sessionID = uuid.NewString()
	a.startedAt = a.config.Now()
	a.stopCh = make(chan struct{})
	a.done = make(chan struct{})
	a.verdict, a.signal, a.hasSignal, a.frames, a.lastErr = "", 0, false, 0, ""

	if a.config.Scene != nil {
		a.config.Scene.Reset()
	}

	sess := session{
		cache:    &poseCache{},
		outbox:   make(chan outgoing, outboxSize),
		pending:  &atomic.Bool{},
		id:       a.sessionID,
		settings: settings,
		stopCh:   a.stopCh,
		done:     a.done,
		logger: a.logger.With(
			zap.String("session_id", a.sessionID),
			zap.String("mode", string(settings.Mode)),
		),
	}
	a.mu.Unlock()

	sess.logger.Info("monitoring started",
		zap.Float64("threshold", settings.Threshold),
		zap.Duration("cooldown", settings.Cooldown))

	go a.dispatch(sess)

	activated := notify.Activated()
	activated.SessionID = sess.id
	activated.Time = a.config.Now()
	sess.outbox <- outgoing{note: activated}

	go a.run(sess)
	return nil
}

// Stop ends the session and waits for the current iteration to finish.
// Notifications still being delivered are not waited for.
func (a *App) Stop() error {
	a.mu.Lock()
	if a.state != StateRunning || a.stopCh == nil {
		a.mu.Unlock()
		return ErrNotRunning
	}
	close(a.stopCh)
	a.stopCh = nil
	done := a.done
	a.mu.Unlock()

	<-done
	return nil
}

// Toggle starts or stops monitoring to match enabled.
// Switching to the state the monitor is already in is a no-op.
func (a *App) Toggle(enabled bool, settings posture.Settings) error {
	if enabled {
		if err := a.Start(settings); err != nil && !errors.Is(err, ErrAlreadyRunning) {
			return err
		}
		return nil
	}
	if err := a.Stop(); err != nil && !errors.Is(err, ErrNotRunning) {
		return err
	}
	return nil
}

// State returns the lifecycle state.
func (a *App) State() State {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state
}

// IsRunning reports whether a session is active.
func (a *App) IsRunning() bool {
	return a.State() == StateRunning
}

// Done returns a channel closed when the current session's loop exits.
// With no session it returns a closed channel.
func (a *App) Done() <-chan struct{} {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.done == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.done
}

// Snapshot returns the current state of the monitor.
func (a *App) Snapshot() Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return Snapshot{
		State:        a.state,
		Settings:     a.settings,
		SessionID:    a.sessionID,
		StartedAt:    a.startedAt,
		Verdict:      a.verdict,
		Signal:       a.signal,
		HasSignal:    a.hasSignal,
		Frames:       a.frames,
		LastNotified: a.cooldown.Last(),
		LastError:    a.lastErr,
	}
}
