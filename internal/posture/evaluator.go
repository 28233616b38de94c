package posture

// Verdict is the posture classification of a single frame.
type Verdict bool

const (
	GoodPosture Verdict = false
	BadPosture  Verdict = true
)

func (v Verdict) String() string {
	if v == BadPosture {
		return "bad"
	}
	return "good"
}

// IsTooClose reports BadPosture when the eyes are further apart than threshold pixels,
// which happens as the user leans towards the camera.
// Sets with fewer than three keypoints are treated as GoodPosture.
func IsTooClose(kp Keypoints, threshold float64) Verdict {
	d, ok := EyeDistance(kp)
	if !ok {
		return GoodPosture
	}
	return Verdict(d > threshold)
}

// IsSlouching reports BadPosture when the spine leans more than threshold degrees
// away from vertical.
// Sets with fewer than thirteen keypoints, or where the shoulder and hip midpoints
// coincide, are treated as GoodPosture.
func IsSlouching(kp Keypoints, threshold float64) Verdict {
	angle, err := SpineAngle(kp)
	if err != nil {
		return GoodPosture
	}
	return Verdict(angle.Degrees() > threshold)
}

// Evaluate classifies kp using the signal selected by s.Mode.
func Evaluate(kp Keypoints, s Settings) Verdict {
	switch s.Mode {
	case ModeFront:
		return IsTooClose(kp, s.Threshold)
	case ModeSide:
		return IsSlouching(kp, s.Threshold)
	default:
		return GoodPosture
	}
}

// Signal returns the raw measurement for the mode: pixels for Front, degrees for Side.
// ok is false when the signal could not be computed.
func Signal(kp Keypoints, mode Mode) (value float64, ok bool) {
	switch mode {
	case ModeFront:
		return EyeDistance(kp)
	case ModeSide:
		angle, err := SpineAngle(kp)
		if err != nil {
			return 0, false
		}
		return angle.Degrees(), true
	default:
		return 0, false
	}
}
