package detector

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/ayusman/shrimp-sentry/internal/posture"
)

// skeleton lists the limbs drawn between COCO keypoints.
var skeleton = [][2]int{
	{posture.LeftEar, posture.LeftEye}, {posture.LeftEye, posture.Nose},
	{posture.Nose, posture.RightEye}, {posture.RightEye, posture.RightEar},
	{posture.LeftShoulder, posture.RightShoulder},
	{posture.LeftShoulder, posture.LeftElbow}, {posture.LeftElbow, posture.LeftWrist},
	{posture.RightShoulder, posture.RightElbow}, {posture.RightElbow, posture.RightWrist},
	{posture.LeftShoulder, posture.LeftHip}, {posture.RightShoulder, posture.RightHip},
	{posture.LeftHip, posture.RightHip},
	{posture.LeftHip, posture.LeftKnee}, {posture.LeftKnee, posture.LeftAnkle},
	{posture.RightHip, posture.RightKnee}, {posture.RightKnee, posture.RightAnkle},
}

var (
	limbColor  = color.RGBA{R: 51, G: 153, B: 255, A: 0}
	jointColor = color.RGBA{R: 0, G: 255, B: 0, A: 0}
)

// Annotate draws the pose skeleton onto frame in place.
// Hidden keypoints and limbs touching them are skipped.
func Annotate(frame *gocv.Mat, pose Pose) {
	if frame == nil || frame.Empty() {
		return
	}

	visible := func(i int) bool {
		if i >= len(pose.Keypoints) {
			return false
		}
		if i < len(pose.Confidence) {
			return pose.Confidence[i] >= KeypointVisibility
		}
		return true
	}

	pt := func(i int) image.Point {
		p := pose.Keypoints[i]
		return image.Pt(int(p.X), int(p.Y))
	}

	for _, limb := range skeleton {
		if visible(limb[0]) && visible(limb[1]) {
			gocv.Line(frame, pt(limb[0]), pt(limb[1]), limbColor, 2)
		}
	}

	for i := range pose.Keypoints {
		if visible(i) {
			gocv.Circle(frame, pt(i), 4, jointColor, -1)
		}
	}
}
