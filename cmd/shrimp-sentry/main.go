package main

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/ayusman/shrimp-sentry/internal/app"
	"github.com/ayusman/shrimp-sentry/internal/capture"
	"github.com/ayusman/shrimp-sentry/internal/config"
	"github.com/ayusman/shrimp-sentry/internal/detector"
	"github.com/ayusman/shrimp-sentry/internal/notify"
	"github.com/ayusman/shrimp-sentry/internal/plugin"
	"github.com/ayusman/shrimp-sentry/internal/posture"
	"github.com/ayusman/shrimp-sentry/internal/server"
	"github.com/ayusman/shrimp-sentry/internal/store"
	"github.com/ayusman/shrimp-sentry/internal/tray"
)

func main() {
	cfg, envLoaded, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}

	logger, err := config.NewLogger(cfg.LogLevel, cfg.DevLog)
	if err != nil {
		zap.L().Fatal("Failed to build logger", zap.Error(err))
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	if !envLoaded {
		logger.Debug("No .env file loaded")
	}
	logger.Info("Shrimp Sentry - posture monitor")

	// Initialize the store
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		logger.Fatal("Failed to create data directory", zap.String("dir", cfg.DataDir), zap.Error(err))
	}
	st, err := store.New(cfg.DBPath)
	if err != nil {
		logger.Fatal("Failed to initialize store", zap.Error(err))
	}
	defer st.Close()

	// Pose detection
	detCfg := detector.DefaultConfig()
	detCfg.ModelPath = cfg.ModelPath
	detCfg.ServiceScript = cfg.PoseScript
	det, err := detector.New(detCfg, logger)
	if err != nil {
		logger.Fatal("No pose detector available", zap.Error(err))
	}
	defer det.Close()

	// Notification plugins
	plugins := plugin.NewManager(cfg.PluginDir)
	if err := plugins.Discover(); err != nil {
		logger.Warn("Plugin discovery failed", zap.String("dir", cfg.PluginDir), zap.Error(err))
	}
	executor := plugin.NewExecutor(10 * time.Second)
	pluginNotifier := notify.NewPluginNotifier(plugins, executor, logger)
	applyPluginConfigs(st, pluginNotifier, logger)

	hub := server.NewHub(logger)
	frames := server.NewFrameBuffer()

	notifier := buildNotifier(cfg, plugins, pluginNotifier, hub, logger)

	var tr *tray.Tray
	status := app.MultiStatus{hub}
	if !cfg.Headless {
		tr = tray.New(startMode(st, cfg))
		status = append(status, tr)
	}

	monitorCfg := app.Config{
		Camera:   capture.NewCamera(cfg.CameraID),
		Detector: det,
		Notifier: notifier,
		Status:   status,
		Frames:   frames,
		Logger:   logger,
	}
	if cfg.SceneThreshold > 0 {
		scene := capture.NewSceneChange(cfg.SceneThreshold)
		defer scene.Close()
		monitorCfg.Scene = scene
	}
	monitor := app.New(monitorCfg)

	srv := server.New(server.Config{
		StaticDir: findWebDir(cfg),
		Store:     st,
		Monitor:   monitor,
		Plugins:   plugins,
		Runner:    executor,
		Applied:   pluginNotifier,
		Hub:       hub,
		Frames:    frames,
		Logger:    logger,
	})

	go func() {
		if err := srv.ListenAndServe(cfg.HTTPAddr); err != nil {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if tr != nil {
		runTray(ctx, tr, monitor, st, cfg, logger)
	} else {
		logger.Info("Running headless", zap.String("settings", "http://"+cfg.HTTPAddr))
		<-ctx.Done()
	}

	logger.Info("Shutting down")
	if err := monitor.Stop(); err != nil && !errors.Is(err, app.ErrNotRunning) {
		logger.Warn("Failed to stop monitor", zap.Error(err))
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Server shutdown failed", zap.Error(err))
	}
}

// buildNotifier picks the channel whose success records the alert timer and
// adds the others as best-effort extras.
func buildNotifier(cfg *config.Config, plugins *plugin.Manager, pn *notify.PluginNotifier, hub *server.Hub, logger *zap.Logger) notify.Notifier {
	var primary notify.Notifier = pn
	extras := notify.Multi{notify.BestEffort("browser", hub, logger)}

	if len(plugins.WithAction(plugin.ActionNotify)) == 0 {
		logger.Warn("No notify plugins installed, alerts go to the browser only", zap.String("dir", plugins.PluginDir()))
		primary = hub
		extras = nil
	}

	if cfg.RedisAddr != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		client, err := notify.DialRedis(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			logger.Warn("Redis unavailable, alerts are not published", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		} else {
			logger.Info("Publishing alerts to redis", zap.String("channel", cfg.RedisChannel))
			extras = append(extras, notify.BestEffort("redis", notify.NewRedisNotifier(client, cfg.RedisChannel), logger))
		}
	}

	return notify.Multi(append([]notify.Notifier{primary}, extras...))
}

// applyPluginConfigs loads stored plugin configs into the notifier.
func applyPluginConfigs(st *store.Store, pn *notify.PluginNotifier, logger *zap.Logger) {
	configs, err := st.PluginConfigs().List()
	if err != nil {
		logger.Warn("Failed to load plugin configs", zap.Error(err))
		return
	}
	for _, c := range configs {
		pn.SetConfig(c.PluginName, c.Config)
		pn.SetEnabled(c.PluginName, c.Enabled)
	}
}

// startMode returns the mode the tray starts with: the last one used, or the configured default.
func startMode(st *store.Store, cfg *config.Config) posture.Mode {
	if mode, err := st.Settings().LastMode(); err == nil {
		return mode
	}
	return cfg.Mode
}

// runTray blocks on the tray event loop until Quit or a signal.
func runTray(ctx context.Context, tr *tray.Tray, monitor *app.App, st *store.Store, cfg *config.Config, logger *zap.Logger) {
	// mu serializes session changes made from the menu with the session watcher.
	var mu sync.Mutex

	start := func() {
		mode := tr.Mode()
		settings, err := st.Settings().LoadModeSettings(mode)
		if err != nil {
			logger.Error("Failed to load settings", zap.String("mode", string(mode)), zap.Error(err))
			tr.SetRunning(false)
			return
		}
		if err := monitor.Start(settings); err != nil {
			logger.Error("Failed to start monitoring", zap.Error(err))
			tr.ShowError(err.Error())
			tr.SetRunning(false)
			return
		}
		if err := st.Settings().SetLastMode(mode); err != nil {
			logger.Warn("Failed to save mode", zap.Error(err))
		}
		tr.SetRunning(true)
		go watchSession(ctx, &mu, tr, monitor, monitor.Done())
	}

	stop := func() {
		if err := monitor.Stop(); err != nil && !errors.Is(err, app.ErrNotRunning) {
			logger.Warn("Failed to stop monitoring", zap.Error(err))
		}
	}

	tr.OnToggle(func(enabled bool) {
		mu.Lock()
		defer mu.Unlock()
		if enabled {
			start()
			return
		}
		stop()
	})

	// Switching mode restarts a running session with the new settings.
	tr.OnModeChange(func(mode posture.Mode) {
		mu.Lock()
		defer mu.Unlock()
		if !monitor.IsRunning() {
			return
		}
		stop()
		start()
	})

	tr.OnSettings(func() {
		if err := openBrowser("http://" + cfg.HTTPAddr); err != nil {
			logger.Warn("Failed to open browser", zap.Error(err))
		}
	})

	go func() {
		<-ctx.Done()
		tr.Quit()
	}()

	tr.Run()
}

// watchSession unchecks the run item when the session behind done ends and no
// other session replaced it, e.g. after a camera failure.
func watchSession(ctx context.Context, mu *sync.Mutex, tr *tray.Tray, monitor *app.App, done <-chan struct{}) {
	select {
	case <-done:
	case <-ctx.Done():
		return
	}

	mu.Lock()
	defer mu.Unlock()
	if monitor.Done() == done && !monitor.IsRunning() {
		tr.SetRunning(false)
	}
}

func openBrowser(url string) error {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", url).Start()
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	default:
		return exec.Command("xdg-open", url).Start()
	}
}

// findWebDir returns SHRIMP_WEB_DIR or searches "web", "../web", "../../web"
// and <data>/web. Returns an empty string if none is found.
func findWebDir(cfg *config.Config) string {
	if cfg.WebDir != "" {
		return cfg.WebDir
	}

	candidates := []string{"web", "../web", "../../web", filepath.Join(cfg.DataDir, "web")}
	for _, p := range candidates {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}
	return ""
}
