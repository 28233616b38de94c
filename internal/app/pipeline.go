package app

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/ayusman/shrimp-sentry/internal/detector"
	"github.com/ayusman/shrimp-sentry/internal/notify"
	"github.com/ayusman/shrimp-sentry/internal/posture"
)

// session is the immutable per-run state handed to the loop goroutine.
type session struct {
	id       string
	settings posture.Settings
	stopCh   chan struct{}
	done     chan struct{}
	logger   *zap.Logger
	cache    *poseCache

	// outbox feeds the session's dispatcher. pending is set while a bad posture
	// notification is queued or being delivered.
	outbox  chan outgoing
	pending *atomic.Bool
}

// outboxSize holds the activation plus one bad posture notification, the most
// a session ever has outstanding.
const outboxSize = 2

// outgoing is a notification waiting for delivery. Rate-limited ones record the
// alert timer when delivered.
type outgoing struct {
	note        notify.Notification
	rateLimited bool
}

// poseCache holds the poses of the last detected frame. Only the loop goroutine uses it.
type poseCache struct {
	poses  []detector.Pose
	reused int
}

// run is the monitoring loop. It owns the camera for the lifetime of the session
// and releases it exactly once, whichever way the loop ends.
//
// Loop logic:
// 1. Check for a stop request
// 2. Grab a frame; a failed grab ends the session
// 3. Extract keypoints from the first detected person
// 4. Evaluate posture and update the status sink
// 5. On bad posture, queue a notification if the cooldown allows it
// 6. Publish the annotated frame to the preview sink
func (a *App) run(s session) {
	defer close(s.done)
	defer a.finish(s)
	defer close(s.outbox)
	defer func() {
		if err := a.config.Camera.Close(); err != nil {
			s.logger.Warn("error releasing camera", zap.Error(err))
		}
	}()

	interval := a.config.FrameInterval
	if interval <= 0 {
		fps := a.config.Camera.FPS()
		if fps <= 0 {
			fps = 15
		}
		interval = time.Second / time.Duration(fps)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			s.logger.Info("monitoring stopped")
			return
		case <-ticker.C:
			select {
			case <-s.stopCh:
				s.logger.Info("monitoring stopped")
				return
			default:
			}
			if !a.step(s) {
				return
			}
		}
	}
}

// step runs one iteration and reports whether the loop should continue.
func (a *App) step(s session) bool {
	frame, err := a.config.Camera.ReadFrame()
	if err != nil {
		s.logger.Error("frame capture failed, stopping", zap.Error(err))
		a.config.Status.ShowError(StatusGrabFailed)
		a.mu.Lock()
		a.lastErr = err.Error()
		a.mu.Unlock()
		return false
	}
	defer frame.Close()

	poses := a.detect(s, frame)

	if len(poses) == 0 {
		a.recordFrame(nil, posture.GoodPosture, 0, false)
		a.publish(s, frame)
		return true
	}

	pose := poses[0]
	verdict := posture.Evaluate(pose.Keypoints, s.settings)
	signal, ok := posture.Signal(pose.Keypoints, s.settings.Mode)
	a.recordFrame(&pose, verdict, signal, ok)

	if verdict == posture.BadPosture {
		a.config.Status.ShowWarning(StatusBadPosture)
		a.alert(s)
	} else {
		a.config.Status.ShowSuccess(StatusGoodPosture)
	}

	detector.Annotate(frame, pose)
	a.publish(s, frame)
	return true
}

// detect returns the poses in frame. When a SceneGate says the frame did not
// change, the previous poses are reused for up to MaxReuse frames.
func (a *App) detect(s session, frame *gocv.Mat) []detector.Pose {
	if a.config.Scene != nil {
		changed, percent := a.config.Scene.Changed(frame)
		if !changed && s.cache.reused < a.config.MaxReuse {
			s.cache.reused++
			s.logger.Debug("scene unchanged, reusing poses", zap.Float64("changed_percent", percent))
			return s.cache.poses
		}
	}

	poses, err := a.config.Detector.Detect(frame)
	if err != nil {
		s.logger.Warn("pose detection failed", zap.Error(err))
		poses = nil
	}
	s.cache.poses, s.cache.reused = poses, 0
	return poses
}

// alert queues the bad posture notification when the cooldown allows it and no
// earlier one is still outstanding. It never waits for delivery.
func (a *App) alert(s session) {
	now := a.config.Now()
	if s.pending.Load() || !a.cooldown.Allow(now) {
		return
	}

	n := notify.BadPosture()
	n.SessionID = s.id
	n.Time = now

	s.pending.Store(true)
	select {
	case s.outbox <- outgoing{note: n, rateLimited: true}:
	default:
		s.pending.Store(false)
		s.logger.Warn("notification queue full, alert dropped")
	}
}

// dispatch delivers the session's notifications in order until the loop closes
// the outbox. The alert timer advances only after a successful delivery, and only
// while the session is still the current one.
func (a *App) dispatch(s session) {
	for out := range s.outbox {
		err := a.config.Notifier.Notify(context.Background(), out.note)
		if !out.rateLimited {
			if err != nil {
				s.logger.Warn("activation notification failed", zap.Error(err))
			}
			continue
		}

		if err != nil {
			s.logger.Warn("bad posture notification failed", zap.Error(err))
		} else {
			a.mu.RLock()
			if a.sessionID == s.id {
				a.cooldown.Record(out.note.Time)
			}
			a.mu.RUnlock()
			s.logger.Info("bad posture notification sent")
		}
		s.pending.Store(false)
	}
}

func (a *App) recordFrame(pose *detector.Pose, verdict posture.Verdict, signal float64, ok bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.frames++
	if pose == nil {
		a.verdict = ""
		a.signal, a.hasSignal = 0, false
		return
	}
	a.verdict = verdict.String()
	a.signal, a.hasSignal = signal, ok
}

func (a *App) publish(s session, frame *gocv.Mat) {
	if a.config.Frames == nil || frame.Empty() {
		return
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frame)
	if err != nil {
		s.logger.Debug("frame encode failed", zap.Error(err))
		return
	}
	defer buf.Close()

	a.config.Frames.PublishFrame(append([]byte(nil), buf.GetBytes()...))
}

// finish returns the monitor to idle once the loop has exited.
func (a *App) finish(s session) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.done == s.done {
		a.state = StateIdle
		a.stopCh = nil
	}
}
