package posture

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidSettings is returned when a Mode Configuration fails validation.
var ErrInvalidSettings = errors.New("invalid settings")

// Mode selects which posture signal is monitored.
type Mode string

const (
	// ModeFront watches eye separation from a camera facing the user.
	ModeFront Mode = "front"
	// ModeSide watches spine angle from a camera beside the user.
	ModeSide Mode = "side"
)

// Defaults used when nothing has been configured.
const (
	DefaultCooldown       = 10 * time.Second
	DefaultFrontThreshold = 100 // pixels
	DefaultSideThreshold  = 10  // degrees
)

// MaxCooldownSeconds is the longest cooldown a time.Duration can hold.
const MaxCooldownSeconds = math.MaxInt64 / int64(time.Second)

// ParseMode converts a mode name into a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeFront:
		return ModeFront, nil
	case ModeSide:
		return ModeSide, nil
	default:
		return "", fmt.Errorf("%w: unknown mode %q", ErrInvalidSettings, s)
	}
}

// Label returns the human-readable name of the mode.
func (m Mode) Label() string {
	switch m {
	case ModeFront:
		return "Screen Distance"
	case ModeSide:
		return "Spine Angle"
	default:
		return string(m)
	}
}

// Unit returns the unit the mode's threshold is expressed in.
func (m Mode) Unit() string {
	if m == ModeSide {
		return "degrees"
	}
	return "pixels"
}

// Settings is the Mode Configuration for one monitoring session.
// Front thresholds are pixel distances, Side thresholds are degrees.
type Settings struct {
	Mode      Mode          `json:"mode"`
	Threshold float64       `json:"threshold"`
	Cooldown  time.Duration `json:"cooldown"`
}

// DefaultSettings returns the default configuration for a mode.
func DefaultSettings(mode Mode) Settings {
	threshold := float64(DefaultFrontThreshold)
	if mode == ModeSide {
		threshold = DefaultSideThreshold
	}
	return Settings{
		Mode:      mode,
		Threshold: threshold,
		Cooldown:  DefaultCooldown,
	}
}

// Validate rejects unknown modes and non-positive thresholds or cooldowns.
func (s Settings) Validate() error {
	if s.Mode != ModeFront && s.Mode != ModeSide {
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidSettings, s.Mode)
	}
	if !(s.Threshold > 0) {
		return fmt.Errorf("%w: threshold must be positive, got %v", ErrInvalidSettings, s.Threshold)
	}
	if s.Cooldown <= 0 {
		return fmt.Errorf("%w: cooldown must be positive, got %v", ErrInvalidSettings, s.Cooldown)
	}
	return nil
}

// ParseSettings builds Settings from free-text input such as form fields.
// Threshold and cooldown must be positive integers; cooldown is in seconds.
func ParseSettings(mode, thresholdText, cooldownText string) (Settings, error) {
	m, err := ParseMode(mode)
	if err != nil {
		return Settings{}, err
	}

	threshold, err := strconv.Atoi(strings.TrimSpace(thresholdText))
	if err != nil {
		return Settings{}, fmt.Errorf("%w: threshold %q is not a whole number", ErrInvalidSettings, thresholdText)
	}

	cooldown, err := strconv.Atoi(strings.TrimSpace(cooldownText))
	if err != nil {
		return Settings{}, fmt.Errorf("%w: cooldown %q is not a whole number of seconds", ErrInvalidSettings, cooldownText)
	}
	if int64(cooldown) > MaxCooldownSeconds {
		return Settings{}, fmt.Errorf("%w: cooldown must be at most %d seconds, got %d", ErrInvalidSettings, MaxCooldownSeconds, cooldown)
	}

	s := Settings{
		Mode:      m,
		Threshold: float64(threshold),
		Cooldown:  time.Duration(cooldown) * time.Second,
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}
