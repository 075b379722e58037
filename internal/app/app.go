// Package app wires the camera, face detector and per-eye blink trackers
// into the running palak pipeline.
package app

import (
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/palak/internal/blink"
	"github.com/ayusman/palak/internal/capture"
	"github.com/ayusman/palak/internal/detector"
	"github.com/ayusman/palak/internal/logger"
	"github.com/ayusman/palak/internal/plugin"
	"github.com/ayusman/palak/internal/store"
)

// Pipeline timing constants.
const (
	// IdleFPS is the frame rate while nobody is in front of the camera.
	IdleFPS = 5
	// ActiveFPS is the frame rate while a face is tracked. Every frame read
	// in this mode is observed by the trackers.
	ActiveFPS = capture.DefaultFPS
	// IdleTimeout is how long without a face before returning to idle mode.
	IdleTimeout = 2 * time.Second
	// PluginTimeoutMs bounds a single plugin action.
	PluginTimeoutMs = 5000
	// frameFlushInterval is how many frames are counted before the session
	// row is updated.
	frameFlushInterval = 300
)

// ErrNoFrame is returned by Snapshot before the first frame is captured.
var ErrNoFrame = errors.New("no frame captured yet")

// Config holds configuration options for the application.
type Config struct {
	Store        *store.Store
	PluginDir    string
	CameraID     int
	MotionThresh float64
	Blink        blink.Config

	// Camera and Detector override the devices built from CameraID and the
	// MediaPipe service.
	Camera   capture.Camera
	Detector detector.Detector
	// Source labels the sessions Start begins. Default "camera:<CameraID>".
	Source string
}

// Stats is a snapshot of pipeline counters.
type Stats struct {
	Enabled     bool   `json:"enabled"`
	Active      bool   `json:"active"`
	SessionID   string `json:"session_id,omitempty"`
	Frames      int64  `json:"frames"`
	FaceFrames  int64  `json:"face_frames"`
	LeftBlinks  int    `json:"left_blinks"`
	RightBlinks int    `json:"right_blinks"`
	FaceResets  int    `json:"face_resets"`
}

// Blinks returns the total number of closed blink events.
func (s Stats) Blinks() int {
	return s.LeftBlinks + s.RightBlinks
}

// App is the main application that orchestrates blink detection and action execution.
type App struct {
	config     Config
	camera     capture.Camera
	motion     *capture.MotionDetector
	detector   detector.Detector
	pluginMgr  *plugin.Manager
	pluginExec *plugin.Executor
	log        *logger.Logger

	enabled bool
	stopCh  chan struct{}
	doneCh  chan struct{}
	mu      sync.RWMutex

	// Frame state, guarded by stateMu.
	blinkCfg      blink.Config
	tracker       *blink.FaceTracker
	recorder      blink.EventRecorder
	faceSeen      bool
	lastAt        time.Duration
	session       *store.Session
	pendingFrames int64
	stats         Stats
	subscribers   []func(blink.FrameState)
	blinkHandlers []func(blink.Event)
	stateMu       sync.Mutex

	frameMu   sync.Mutex
	lastFrame gocv.Mat

	actions sync.WaitGroup
}

// New creates a new App instance with the given configuration.
func New(config Config) *App {
	motionThreshold := config.MotionThresh
	if motionThreshold <= 0 {
		motionThreshold = 1.0 // Default threshold: 1% pixel change
	}

	blinkCfg := config.Blink
	if blinkCfg.Validate() != nil {
		blinkCfg = blink.DefaultConfig()
	}

	a := &App{
		config:     config,
		camera:     config.Camera,
		motion:     capture.NewMotionDetector(motionThreshold),
		detector:   config.Detector,
		pluginMgr:  plugin.NewManager(config.PluginDir),
		pluginExec: plugin.NewExecutor(PluginTimeoutMs),
		log:        logger.With("app"),
		enabled:    true,
		blinkCfg:   blinkCfg,
		tracker:    blink.NewFaceTracker(blinkCfg, nil),
		lastFrame:  gocv.NewMat(),
	}

	if a.camera == nil {
		a.camera = capture.NewCamera(config.CameraID)
	}

	if a.detector == nil {
		// Try MediaPipe first, fall back to mock detector
		if mp, err := detector.NewMediaPipeDetector(detector.DefaultConfig()); err == nil {
			a.detector = mp
			a.log.Info().Msg("using MediaPipe face mesh")
		} else {
			a.log.Warn().Err(err).Msg("MediaPipe not available, using mock detector")
			a.detector = detector.NewMockDetector()
		}
	}

	return a
}

// SetEnabled enables or disables blink detection. Disabling clears both
// trackers and closes any open blink.
func (a *App) SetEnabled(enabled bool) {
	a.mu.Lock()
	changed := a.enabled != enabled
	a.enabled = enabled
	a.mu.Unlock()

	if changed && !enabled {
		a.stateMu.Lock()
		closed := a.resetLocked()
		a.stateMu.Unlock()
		a.finish(closed)
	}
	if changed {
		a.log.Info().Bool("enabled", enabled).Msg("blink detection toggled")
	}
}

// IsEnabled returns whether blink detection is currently enabled.
func (a *App) IsEnabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.enabled
}

// SetDetector sets the face detector implementation to use.
func (a *App) SetDetector(d detector.Detector) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.detector = d
}

// BlinkConfig returns the configuration the trackers currently run with.
func (a *App) BlinkConfig() blink.Config {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	return a.blinkCfg
}

// SetBlinkConfig validates cfg and rebuilds both trackers with it. Open
// blinks are closed at the last observed frame. Setting the config already
// in use leaves the trackers running.
func (a *App) SetBlinkConfig(cfg blink.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	a.stateMu.Lock()
	if cfg == a.blinkCfg {
		a.stateMu.Unlock()
		return nil
	}
	a.blinkCfg = cfg
	a.tracker = blink.NewFaceTracker(cfg, nil)
	closed := a.recorder.Flush(a.lastAt)
	a.countLocked(closed)
	a.stateMu.Unlock()

	a.finish(closed)
	a.log.Info().
		Dur("hold", cfg.HoldDuration).
		Float64("tolerance", cfg.Tolerance).
		Msg("blink config applied")
	return nil
}

// LoadSettings applies the blink settings persisted in the store.
func (a *App) LoadSettings() error {
	if a.config.Store == nil {
		return nil
	}

	cfg, err := a.config.Store.Settings().BlinkConfig(a.BlinkConfig())
	if err != nil {
		return fmt.Errorf("load blink settings: %w", err)
	}
	return a.SetBlinkConfig(cfg)
}

// DiscoverPlugins scans the plugin directory and loads available plugins.
func (a *App) DiscoverPlugins() error {
	return a.pluginMgr.Discover()
}

// BeginSession starts a new session labelled source. Events observed from
// now on are stored under it. Without a store it only resets the counters.
func (a *App) BeginSession(source string) (string, error) {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()

	if a.session != nil {
		return "", fmt.Errorf("session %s already active", a.session.ID)
	}

	sess := &store.Session{Source: source}
	if a.config.Store != nil {
		if err := a.config.Store.Sessions().Create(sess); err != nil {
			return "", fmt.Errorf("create session: %w", err)
		}
	}

	a.session = sess
	a.pendingFrames = 0
	a.stats = Stats{SessionID: sess.ID}
	a.log.Info().Str("session", sess.ID).Str("source", source).Msg("session started")
	return sess.ID, nil
}

// EndSession closes open blinks, stores the frame count and marks the
// session as ended.
func (a *App) EndSession() error {
	a.stateMu.Lock()
	closed := a.recorder.Flush(a.lastAt)
	a.countLocked(closed)
	sess := a.session
	pending := a.pendingFrames
	a.stateMu.Unlock()

	// Events are written while the session is still attached.
	a.finish(closed)

	a.stateMu.Lock()
	a.session = nil
	a.pendingFrames = 0
	a.stateMu.Unlock()

	if sess == nil || a.config.Store == nil {
		return nil
	}

	sessions := a.config.Store.Sessions()
	if pending > 0 {
		if err := sessions.AddFrames(sess.ID, pending); err != nil {
			return fmt.Errorf("store frame count: %w", err)
		}
	}
	if err := sessions.End(sess.ID, time.Now()); err != nil {
		return fmt.Errorf("end session: %w", err)
	}

	a.log.Info().Str("session", sess.ID).Msg("session ended")
	return nil
}

// Start opens the camera, begins a session and runs the detection pipeline.
func (a *App) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stopCh != nil {
		return nil
	}

	if err := a.camera.Open(); err != nil {
		return fmt.Errorf("open camera: %w", err)
	}
	a.camera.SetFPS(IdleFPS)

	source := a.config.Source
	if source == "" {
		source = "camera:" + strconv.Itoa(a.config.CameraID)
	}
	if _, err := a.BeginSession(source); err != nil {
		a.camera.Close()
		return err
	}

	a.stopCh = make(chan struct{})
	a.doneCh = make(chan struct{})
	go a.runPipeline(a.stopCh, a.doneCh)

	a.log.Info().Msg("detection pipeline started")
	return nil
}

// Stop halts the detection pipeline, ends the session and releases resources.
func (a *App) Stop() {
	a.mu.Lock()
	stopCh, doneCh := a.stopCh, a.doneCh
	a.stopCh, a.doneCh = nil, nil
	a.mu.Unlock()

	if stopCh != nil {
		close(stopCh)
		<-doneCh
	}

	if err := a.EndSession(); err != nil {
		a.log.Error().Err(err).Msg("failed to end session")
	}
	a.actions.Wait()

	if err := a.camera.Close(); err != nil {
		a.log.Error().Err(err).Msg("error closing camera")
	}
	a.motion.Close()

	if d := a.Detector(); d != nil {
		if err := d.Close(); err != nil {
			a.log.Error().Err(err).Msg("error closing detector")
		}
	}

	a.frameMu.Lock()
	a.lastFrame.Close()
	a.lastFrame = gocv.NewMat()
	a.frameMu.Unlock()

	a.log.Info().Msg("detection pipeline stopped")
}

// Subscribe registers fn to receive every processed frame.
func (a *App) Subscribe(fn func(blink.FrameState)) {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	a.subscribers = append(a.subscribers, fn)
}

// OnBlink registers fn to receive every closed blink event.
func (a *App) OnBlink(fn func(blink.Event)) {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	a.blinkHandlers = append(a.blinkHandlers, fn)
}

// Stats returns a snapshot of the pipeline counters.
func (a *App) Stats() Stats {
	a.stateMu.Lock()
	stats := a.stats
	a.stateMu.Unlock()

	stats.Enabled = a.IsEnabled()
	return stats
}

// Snapshot returns the most recent frame encoded as JPEG.
func (a *App) Snapshot() ([]byte, error) {
	a.frameMu.Lock()
	defer a.frameMu.Unlock()

	if a.lastFrame.Empty() {
		return nil, ErrNoFrame
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, a.lastFrame)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out, nil
}

// Camera returns the camera instance.
func (a *App) Camera() capture.Camera {
	return a.camera
}

// MotionDetector returns the motion detector instance.
func (a *App) MotionDetector() *capture.MotionDetector {
	return a.motion
}

// PluginManager returns the plugin manager.
func (a *App) PluginManager() *plugin.Manager {
	return a.pluginMgr
}

// Detector returns the face detector.
func (a *App) Detector() detector.Detector {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.detector
}

// Store returns the backing store, which may be nil.
func (a *App) Store() *store.Store {
	return a.config.Store
}

func (a *App) keepFrame(frame *capture.Frame) {
	a.frameMu.Lock()
	defer a.frameMu.Unlock()
	frame.Mat.CopyTo(&a.lastFrame)
}
