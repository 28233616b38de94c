package detector

import (
	"fmt"
	"image"
	"sort"
	"sync"

	"github.com/golang/geo/r2"
	"gocv.io/x/gocv"

	"github.com/ayusman/shrimp-sentry/internal/posture"
)

// YOLO pose output layout: 4 box values, 1 person score, then x, y, conf per keypoint.
const (
	boxChannels  = 4
	poseChannels = boxChannels + 1 + posture.NumKeypoints*3
)

// ONNXDetector runs a YOLO pose model in-process with OpenCV's DNN module.
type ONNXDetector struct {
	config Config
	net    gocv.Net
	mu     sync.Mutex
}

// NewONNXDetector loads the ONNX model at config.ModelPath.
func NewONNXDetector(config Config) (*ONNXDetector, error) {
	if config.InputSize <= 0 {
		config.InputSize = DefaultConfig().InputSize
	}

	net := gocv.ReadNetFromONNX(config.ModelPath)
	if net.Empty() {
		return nil, fmt.Errorf("read onnx model %s: empty network", config.ModelPath)
	}

	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)

	return &ONNXDetector{
		config: config,
		net:    net,
	}, nil
}

// Detect runs the model on frame and returns people sorted by score.
//
// The frame is padded to a square at its top-left corner so that a single scale
// factor maps model coordinates back to frame coordinates.
func (d *ONNXDetector) Detect(frame *gocv.Mat) ([]Pose, error) {
	if frame == nil || frame.Empty() {
		return nil, nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	cols, rows := frame.Cols(), frame.Rows()
	side := max(cols, rows)

	square := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(114, 114, 114, 0), side, side, gocv.MatTypeCV8UC3)
	defer square.Close()

	roi := square.Region(image.Rect(0, 0, cols, rows))
	frame.CopyTo(&roi)
	roi.Close()

	size := d.config.InputSize
	blob := gocv.BlobFromImage(square, 1.0/255.0, image.Pt(size, size), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.net.SetInput(blob, "")
	output := d.net.Forward("")
	defer output.Close()

	dims := output.Size()
	if len(dims) != 3 || dims[1] != poseChannels {
		return nil, fmt.Errorf("unexpected pose output shape %v", dims)
	}

	data, err := output.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("read pose output: %w", err)
	}

	scale := float64(side) / float64(size)
	candidates := decodePoseOutput(data, dims[2], scale, d.config.MinConfidence)
	if len(candidates) == 0 {
		return nil, nil
	}

	boxes := make([]image.Rectangle, len(candidates))
	scores := make([]float32, len(candidates))
	for i, c := range candidates {
		boxes[i] = c.Box
		scores[i] = float32(c.Score)
	}

	keep := gocv.NMSBoxes(boxes, scores, float32(d.config.MinConfidence), float32(d.config.NMSThreshold))

	poses := make([]Pose, 0, len(keep))
	for _, idx := range keep {
		poses = append(poses, candidates[idx])
	}
	sortByScore(poses)

	return poses, nil
}

// Close releases the network.
func (d *ONNXDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.net.Close()
}

// decodePoseOutput turns the channel-major [poseChannels x anchors] tensor into poses,
// dropping anchors scoring below minScore. Coordinates are multiplied by scale.
func decodePoseOutput(data []float32, anchors int, scale, minScore float64) []Pose {
	if len(data) < poseChannels*anchors {
		return nil
	}

	at := func(channel, anchor int) float64 {
		return float64(data[channel*anchors+anchor])
	}

	var poses []Pose
	for i := 0; i < anchors; i++ {
		score := at(boxChannels, i)
		if score < minScore {
			continue
		}

		cx, cy := at(0, i)*scale, at(1, i)*scale
		w, h := at(2, i)*scale, at(3, i)*scale

		pose := Pose{
			Keypoints:  make(posture.Keypoints, posture.NumKeypoints),
			Confidence: make([]float64, posture.NumKeypoints),
			Score:      score,
			Box: image.Rect(
				int(cx-w/2), int(cy-h/2),
				int(cx+w/2), int(cy+h/2),
			),
		}

		for k := 0; k < posture.NumKeypoints; k++ {
			base := boxChannels + 1 + k*3
			conf := at(base+2, i)
			pose.Confidence[k] = conf
			if conf < KeypointVisibility {
				continue
			}
			pose.Keypoints[k] = r2.Point{X: at(base, i) * scale, Y: at(base+1, i) * scale}
		}

		poses = append(poses, pose)
	}

	return poses
}

func sortByScore(poses []Pose) {
	sort.SliceStable(poses, func(i, j int) bool {
		return poses[i].Score > poses[j].Score
	})
}
