// Package posture classifies a single frame's body keypoints as good or bad posture.
package posture

import (
	"errors"
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/s1"
)

// Body keypoint indices following the COCO-17 convention used by YOLO pose models.
const (
	Nose          = 0
	LeftEye       = 1
	RightEye      = 2
	LeftEar       = 3
	RightEar      = 4
	LeftShoulder  = 5
	RightShoulder = 6
	LeftElbow     = 7
	RightElbow    = 8
	LeftWrist     = 9
	RightWrist    = 10
	LeftHip       = 11
	RightHip      = 12
	LeftKnee      = 13
	RightKnee     = 14
	LeftAnkle     = 15
	RightAnkle    = 16
	NumKeypoints  = 17
)

// Minimum number of keypoints each mode needs before it can evaluate anything.
const (
	FrontMinKeypoints = 3
	SideMinKeypoints  = 13
)

// ErrDegenerateGeometry is returned when an angle is requested for a zero-length ray.
var ErrDegenerateGeometry = errors.New("degenerate geometry: zero-length vector")

// Keypoints is an ordered set of 2D image coordinates indexed by the constants above.
// A nil set means no subject was detected.
type Keypoints []r2.Point

// Distance returns the Euclidean distance between two points.
func Distance(a, b r2.Point) float64 {
	return a.Sub(b).Norm()
}

// Midpoint returns the point halfway between a and b.
func Midpoint(a, b r2.Point) r2.Point {
	return a.Add(b).Mul(0.5)
}

// Angle returns the angle at vertex formed by the rays vertex→p1 and vertex→p3.
func Angle(p1, vertex, p3 r2.Point) (s1.Angle, error) {
	v1 := p1.Sub(vertex)
	v2 := p3.Sub(vertex)

	norms := v1.Norm() * v2.Norm()
	if norms == 0 {
		return 0, ErrDegenerateGeometry
	}

	// Rounding can push the cosine just outside [-1, 1], where Acos is NaN.
	cos := clamp(v1.Dot(v2)/norms, -1, 1)
	return s1.Angle(math.Acos(cos)), nil
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// EyeDistance returns the pixel distance between the eyes.
// ok is false when the set is too short to contain both eyes.
func EyeDistance(kp Keypoints) (d float64, ok bool) {
	if len(kp) < FrontMinKeypoints {
		return 0, false
	}
	return Distance(kp[LeftEye], kp[RightEye]), true
}

// SpineAngle returns the angle between the hip→shoulder line and the vertical.
// The reference point sits one pixel above the hip midpoint, so the result does not
// depend on image scale.
func SpineAngle(kp Keypoints) (s1.Angle, error) {
	if len(kp) < SideMinKeypoints {
		return 0, errTooFewKeypoints
	}

	shoulderMid := Midpoint(kp[LeftShoulder], kp[RightShoulder])
	hipMid := Midpoint(kp[LeftHip], kp[RightHip])
	reference := r2.Point{X: hipMid.X, Y: hipMid.Y - 1}

	return Angle(shoulderMid, hipMid, reference)
}

var errTooFewKeypoints = errors.New("too few keypoints")
