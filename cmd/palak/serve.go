package main

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ayusman/palak/internal/app"
	"github.com/ayusman/palak/internal/capture"
	"github.com/ayusman/palak/internal/logger"
	"github.com/ayusman/palak/internal/server"
	"github.com/ayusman/palak/internal/tray"
)

var serveOpts struct {
	addr      string
	camera    int
	plugins   string
	staticDir string
	tray      bool
	noCamera  bool
	video     string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Watch the camera for blinks and serve the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		if flags.Changed("addr") {
			cfg.Addr = serveOpts.addr
		}
		if flags.Changed("camera") {
			cfg.CameraID = serveOpts.camera
		}
		if flags.Changed("plugins") {
			cfg.PluginDir = serveOpts.plugins
		}
		if flags.Changed("tray") {
			cfg.Tray = serveOpts.tray
		}
		overrideBlink := flags.Changed("hold") || flags.Changed("tolerance")
		return runServe(cmd.Context(), overrideBlink)
	},
}

func init() {
	f := serveCmd.Flags()
	f.StringVar(&serveOpts.addr, "addr", ":8080", "HTTP listen address")
	f.IntVar(&serveOpts.camera, "camera", 0, "camera device index")
	f.StringVar(&serveOpts.plugins, "plugins", "", "plugin directory (default <data-dir>/plugins)")
	f.StringVar(&serveOpts.staticDir, "static", "", "directory of the web UI (default: search web/ and <data-dir>/web)")
	f.BoolVar(&serveOpts.tray, "tray", false, "show a system tray menu")
	f.BoolVar(&serveOpts.noCamera, "no-camera", false, "serve the API without opening the camera")
	f.StringVar(&serveOpts.video, "video", "", "read frames from a video file instead of the camera")
	rootCmd.AddCommand(serveCmd)
}

func runServe(ctx context.Context, overrideBlink bool) error {
	log := logger.With("serve")

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	appCfg := app.Config{
		Store:        st,
		PluginDir:    cfg.PluginDir,
		CameraID:     cfg.CameraID,
		MotionThresh: cfg.MotionThreshold,
		Blink:        cfg.Blink,
	}
	if serveOpts.video != "" {
		appCfg.Camera = capture.NewVideoFile(serveOpts.video)
		appCfg.Source = "video:" + filepath.Base(serveOpts.video)
	}
	a := app.New(appCfg)

	if err := a.LoadSettings(); err != nil {
		return err
	}
	// Flags given on the command line win over stored settings.
	if overrideBlink {
		if err := a.SetBlinkConfig(cfg.Blink); err != nil {
			return err
		}
	}

	if err := a.DiscoverPlugins(); err != nil {
		log.Warn().Err(err).Str("dir", cfg.PluginDir).Msg("plugin discovery failed")
	}

	if !serveOpts.noCamera {
		if err := a.Start(); err != nil {
			return err
		}
	}
	defer a.Stop()

	staticDir := serveOpts.staticDir
	if staticDir == "" {
		staticDir = findWebDir()
	}
	if staticDir != "" {
		log.Info().Str("dir", staticDir).Msg("serving static files")
	}

	srv := server.New(server.Config{
		StaticDir: staticDir,
		Store:     st,
		App:       a,
	})

	if !cfg.Tray {
		return ignoreCanceled(srv.Run(ctx, cfg.Addr))
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Run(ctx, cfg.Addr)
	}()

	tr := runTray(a, cancel)
	go func() {
		<-ctx.Done()
		tr.Quit()
	}()
	tr.Run()

	cancel()
	return ignoreCanceled(<-errCh)
}

// runTray builds the tray menu wired to a. Quitting from the tray calls quit.
func runTray(a *app.App, quit func()) *tray.Tray {
	tr := tray.New()
	tr.SetEnabled(a.IsEnabled())
	tr.OnToggle(a.SetEnabled)
	tr.OnQuit(quit)
	tr.OnSettings(func() {
		if err := openBrowser(settingsURL(cfg.Addr)); err != nil {
			logger.With("tray").Warn().Err(err).Msg("failed to open settings")
		}
	})
	a.OnBlink(tr.RecordBlink)
	return tr
}

func settingsURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr + "/"
}

func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and <data-dir>/web.
// Returns the first existing directory or empty string if none found.
func findWebDir() string {
	for _, p := range []string{"web", "../web", "../../web"} {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}

	dataWeb := filepath.Join(cfg.DataDir, "web")
	if info, err := os.Stat(dataWeb); err == nil && info.IsDir() {
		return dataWeb
	}

	return ""
}
