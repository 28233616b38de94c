package detector

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/golang/geo/r2"
	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/ayusman/shrimp-sentry/internal/posture"
)

// ServiceIdleTimeout is how long the pose service may sit unused before it is stopped.
const ServiceIdleTimeout = 30 * time.Second

// ServiceDetector implements Detector using a Python pose service subprocess.
//
// Each request is a 4-byte big-endian length followed by a JPEG frame on stdin;
// each response is a single JSON line on stdout.
type ServiceDetector struct {
	config    Config
	script    string
	logger    *zap.Logger
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	stdout    *bufio.Reader
	mu        sync.Mutex
	started   bool
	idleTimer *time.Timer
}

// NewServiceDetector creates a new pose service detector.
// The Python process is started lazily on first detection.
func NewServiceDetector(config Config, logger *zap.Logger) (*ServiceDetector, error) {
	script := config.ServiceScript
	if script == "" {
		script = findServiceScript()
	}
	if script == "" {
		return nil, fmt.Errorf("pose_service.py not found")
	}
	if _, err := os.Stat(script); err != nil {
		return nil, fmt.Errorf("pose service script: %w", err)
	}
	if logger == nil {
		logger = zap.L()
	}

	return &ServiceDetector{
		config: config,
		script: script,
		logger: logger,
	}, nil
}

// Detect sends a frame to the service and returns the detected people.
func (d *ServiceDetector) Detect(frame *gocv.Mat) ([]Pose, error) {
	if frame == nil || frame.Empty() {
		return nil, nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.ensureStarted(); err != nil {
		return nil, err
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frame)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	data := buf.GetBytes()

	length := make([]byte, 4)
	binary.BigEndian.PutUint32(length, uint32(len(data)))

	if _, err := d.stdin.Write(length); err != nil {
		d.shutdown()
		return nil, fmt.Errorf("write length: %w", err)
	}
	if _, err := d.stdin.Write(data); err != nil {
		d.shutdown()
		return nil, fmt.Errorf("write data: %w", err)
	}

	line, err := d.stdout.ReadBytes('\n')
	if err != nil {
		d.shutdown()
		return nil, fmt.Errorf("read response: %w", err)
	}

	poses, err := parseServiceResponse(line, d.config.MinConfidence)
	if err != nil {
		return nil, err
	}

	d.resetIdleTimer()
	return poses, nil
}

// Close shuts down the Python process.
func (d *ServiceDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.shutdown()
}

func (d *ServiceDetector) ensureStarted() error {
	if d.started {
		return nil
	}

	pythonPath := findVenvPython()
	if pythonPath == "" {
		pythonPath = "python3"
	}

	d.cmd = exec.Command(pythonPath, d.script)

	stdin, err := d.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("create stdin pipe: %w", err)
	}

	stdout, err := d.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("create stdout pipe: %w", err)
	}

	d.cmd.Stderr = os.Stderr

	if err := d.cmd.Start(); err != nil {
		return fmt.Errorf("start pose service: %w", err)
	}

	d.stdin = stdin
	d.stdout = bufio.NewReader(stdout)
	d.started = true

	d.logger.Info("Pose service started", zap.String("python", pythonPath), zap.Int("pid", d.cmd.Process.Pid))
	return nil
}

func (d *ServiceDetector) shutdown() error {
	if !d.started {
		return nil
	}

	if d.idleTimer != nil {
		d.idleTimer.Stop()
		d.idleTimer = nil
	}

	if d.stdin != nil {
		d.stdin.Close()
	}

	err := d.cmd.Wait()
	d.started = false
	d.cmd = nil
	d.stdin = nil
	d.stdout = nil

	d.logger.Info("Pose service stopped")
	return err
}

func (d *ServiceDetector) resetIdleTimer() {
	if d.idleTimer != nil {
		d.idleTimer.Stop()
	}
	d.idleTimer = time.AfterFunc(ServiceIdleTimeout, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		d.shutdown()
	})
}

// serviceResponse is the JSON line written by the pose service.
type serviceResponse struct {
	Poses []struct {
		Keypoints [][3]float64 `json:"keypoints"`
		Score     float64      `json:"score"`
		Box       [4]float64   `json:"box"`
	} `json:"poses"`
	Error string `json:"error,omitempty"`
}

// parseServiceResponse decodes one response line into poses sorted by score.
func parseServiceResponse(line []byte, minScore float64) ([]Pose, error) {
	var resp serviceResponse
	if err := json.Unmarshal(line, &resp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("pose service: %s", resp.Error)
	}

	poses := make([]Pose, 0, len(resp.Poses))
	for _, p := range resp.Poses {
		if p.Score < minScore {
			continue
		}

		pose := Pose{
			Keypoints:  make(posture.Keypoints, len(p.Keypoints)),
			Confidence: make([]float64, len(p.Keypoints)),
			Score:      p.Score,
			Box:        image.Rect(int(p.Box[0]), int(p.Box[1]), int(p.Box[2]), int(p.Box[3])),
		}
		for i, kp := range p.Keypoints {
			pose.Confidence[i] = kp[2]
			if kp[2] < KeypointVisibility {
				continue
			}
			pose.Keypoints[i] = r2.Point{X: kp[0], Y: kp[1]}
		}
		poses = append(poses, pose)
	}

	sortByScore(poses)
	return poses, nil
}

func findServiceScript() string {
	execPath, err := os.Executable()
	var execDir string
	if err == nil {
		execDir = filepath.Dir(execPath)
	}

	candidates := []string{
		"scripts/pose_service.py",
		"../scripts/pose_service.py",
		filepath.Join(execDir, "scripts/pose_service.py"),
		filepath.Join(os.Getenv("HOME"), ".shrimp-sentry/scripts/pose_service.py"),
	}

	return firstExisting(candidates)
}

// findVenvPython looks for a Python interpreter in a virtual environment.
func findVenvPython() string {
	execPath, err := os.Executable()
	if err != nil {
		return ""
	}
	execDir := filepath.Dir(execPath)

	candidates := []string{
		"venv/bin/python",
		"../venv/bin/python",
		filepath.Join(execDir, "venv/bin/python"),
		filepath.Join(os.Getenv("HOME"), ".shrimp-sentry/venv/bin/python"),
	}

	return firstExisting(candidates)
}

func firstExisting(candidates []string) string {
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			absPath, err := filepath.Abs(path)
			if err == nil {
				return absPath
			}
			return path
		}
	}
	return ""
}
