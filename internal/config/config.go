// Package config loads Shrimp Sentry settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/lpernett/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ayusman/shrimp-sentry/internal/capture"
	"github.com/ayusman/shrimp-sentry/internal/notify"
	"github.com/ayusman/shrimp-sentry/internal/posture"
)

// ErrInvalidConfig is returned when an environment variable has an unusable value.
var ErrInvalidConfig = errors.New("invalid config")

// Environment variables read by Load.
const (
	EnvCameraID     = "SHRIMP_CAMERA_ID"
	EnvDataDir      = "SHRIMP_DATA_DIR"
	EnvModelPath    = "SHRIMP_MODEL_PATH"
	EnvPoseScript   = "SHRIMP_POSE_SCRIPT"
	EnvPluginDir    = "SHRIMP_PLUGIN_DIR"
	EnvHTTPAddr     = "SHRIMP_HTTP_ADDR"
	EnvWebDir       = "SHRIMP_WEB_DIR"
	EnvRedisAddr    = "SHRIMP_REDIS_ADDR"
	EnvRedisPass    = "SHRIMP_REDIS_PASSWORD"
	EnvRedisChannel = "SHRIMP_REDIS_CHANNEL"
	EnvLogLevel     = "SHRIMP_LOG_LEVEL"
	EnvDevLog       = "SHRIMP_LOG_DEV"
	EnvHeadless     = "SHRIMP_HEADLESS"
	EnvMode         = "SHRIMP_MODE"
	EnvScene        = "SHRIMP_SCENE_THRESHOLD"
)

// DefaultHTTPAddr keeps the settings page on the local machine.
const DefaultHTTPAddr = "127.0.0.1:8080"

// Config is the process configuration.
type Config struct {
	CameraID      int
	DataDir       string
	DBPath        string
	ModelPath     string
	PoseScript    string
	PluginDir     string
	HTTPAddr      string
	WebDir        string
	RedisAddr     string
	RedisPassword string
	RedisChannel  string
	LogLevel      zapcore.Level
	DevLog        bool
	Headless      bool
	Mode          posture.Mode

	// SceneThreshold is the percentage of changed pixels that triggers a new
	// pose detection. Zero detects on every frame.
	SceneThreshold float64
}

// Load reads a .env file if present and then the environment.
// A missing .env file is not an error; it is reported through the returned flag.
func Load() (*Config, bool, error) {
	loaded := godotenv.Load() == nil
	cfg, err := FromEnv(os.Getenv)
	return cfg, loaded, err
}

// FromEnv builds a Config from getenv, applying defaults for unset variables.
func FromEnv(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		HTTPAddr:     DefaultHTTPAddr,
		RedisChannel: notify.DefaultChannel,
		LogLevel:     zapcore.InfoLevel,
		Mode:         posture.ModeFront,

		SceneThreshold: capture.DefaultSceneThreshold,
	}

	var err error
	if v := getenv(EnvCameraID); v != "" {
		cfg.CameraID, err = strconv.Atoi(v)
		if err != nil || cfg.CameraID < 0 {
			return nil, fmt.Errorf("%w: %s must be a non-negative integer, got %q", ErrInvalidConfig, EnvCameraID, v)
		}
	}

	cfg.DataDir = getenv(EnvDataDir)
	if cfg.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		cfg.DataDir = filepath.Join(home, ".shrimp-sentry")
	}
	cfg.DBPath = filepath.Join(cfg.DataDir, "shrimp-sentry.db")

	cfg.ModelPath = orDefault(getenv(EnvModelPath), filepath.Join(cfg.DataDir, "models", "yolo11n-pose.onnx"))
	cfg.PoseScript = getenv(EnvPoseScript)
	cfg.PluginDir = orDefault(getenv(EnvPluginDir), filepath.Join(cfg.DataDir, "plugins"))
	cfg.HTTPAddr = orDefault(getenv(EnvHTTPAddr), cfg.HTTPAddr)
	cfg.WebDir = getenv(EnvWebDir)
	cfg.RedisAddr = getenv(EnvRedisAddr)
	cfg.RedisPassword = getenv(EnvRedisPass)
	cfg.RedisChannel = orDefault(getenv(EnvRedisChannel), cfg.RedisChannel)

	if v := getenv(EnvLogLevel); v != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(strings.ToLower(v))); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, EnvLogLevel, err)
		}
	}
	if cfg.DevLog, err = parseBool(getenv, EnvDevLog); err != nil {
		return nil, err
	}
	if cfg.Headless, err = parseBool(getenv, EnvHeadless); err != nil {
		return nil, err
	}

	if v := getenv(EnvMode); v != "" {
		cfg.Mode, err = posture.ParseMode(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, EnvMode, err)
		}
	}

	if v := getenv(EnvScene); v != "" {
		cfg.SceneThreshold, err = strconv.ParseFloat(v, 64)
		if err != nil || cfg.SceneThreshold < 0 || cfg.SceneThreshold > 100 {
			return nil, fmt.Errorf("%w: %s must be a percentage, got %q", ErrInvalidConfig, EnvScene, v)
		}
	}

	return cfg, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func parseBool(getenv func(string) string, key string) (bool, error) {
	v := getenv(key)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%w: %s must be a boolean, got %q", ErrInvalidConfig, key, v)
	}
	return b, nil
}

// NewLogger builds a JSON production logger, or a console logger when development is set.
func NewLogger(level zapcore.Level, development bool) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}
