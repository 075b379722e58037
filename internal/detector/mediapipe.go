package detector

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/palak/internal/logger"
)

const faceServiceScript = "scripts/face_service.py"

// MediaPipeDetector implements Detector using a Python face landmark subprocess.
// Frames are written as length-prefixed JPEG and answered with one JSON line.
type MediaPipeDetector struct {
	config    Config
	script    string
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	stdout    *bufio.Reader
	mu        sync.Mutex
	started   bool
	lastUsed  time.Time
	idleTimer *time.Timer
}

// NewMediaPipeDetector creates a new MediaPipe face detector.
// The Python process is started lazily on first detection.
func NewMediaPipeDetector(config Config) (*MediaPipeDetector, error) {
	scriptPath := findFaceServiceScript()
	if scriptPath == "" {
		return nil, fmt.Errorf("%s not found", filepath.Base(faceServiceScript))
	}

	return &MediaPipeDetector{
		config: config,
		script: scriptPath,
	}, nil
}

// Detect analyzes a frame and returns the landmarks of the tracked faces.
func (d *MediaPipeDetector) Detect(frame *gocv.Mat) ([]FaceLandmarks, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if frame == nil || frame.Empty() {
		return nil, nil
	}

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
		return nil, fmt.Errorf("write length: %w", err)
	}
	if _, err := d.stdin.Write(data); err != nil {
		return nil, fmt.Errorf("write data: %w", err)
	}

	line, err := d.stdout.ReadString('\n')
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	faces, err := parseFaceResponse([]byte(line))
	if err != nil {
		return nil, err
	}

	d.lastUsed = time.Now()
	d.resetIdleTimer()

	return faces, nil
}

// Close shuts down the Python process.
func (d *MediaPipeDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.shutdown()
}

func (d *MediaPipeDetector) ensureStarted() error {
	if d.started {
		return nil
	}

	pythonPath := findVenvPython()
	if pythonPath == "" {
		pythonPath = "python3"
	}

	maxFaces := d.config.MaxFaces
	if maxFaces <= 0 {
		maxFaces = 1
	}

	d.cmd = exec.Command(pythonPath, d.script,
		"--max-faces", strconv.Itoa(maxFaces),
		"--min-detection", strconv.FormatFloat(d.config.MinConfidence, 'f', 2, 64),
		"--min-tracking", strconv.FormatFloat(d.config.MinTrackingConf, 'f', 2, 64),
	)

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
		return fmt.Errorf("start face service: %w", err)
	}

	d.stdin = stdin
	d.stdout = bufio.NewReader(stdout)
	d.started = true
	d.lastUsed = time.Now()

	logger.With("detector").Info().
		Str("python", pythonPath).
		Str("script", d.script).
		Int("pid", d.cmd.Process.Pid).
		Msg("face service started")

	return nil
}

func (d *MediaPipeDetector) shutdown() error {
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

	logger.With("detector").Info().Msg("face service stopped")

	return err
}

func (d *MediaPipeDetector) resetIdleTimer() {
	if d.idleTimer != nil {
		d.idleTimer.Stop()
	}
	idle := time.Duration(d.config.IdleTimeoutSec) * time.Second
	if idle <= 0 {
		idle = 30 * time.Second
	}
	d.idleTimer = time.AfterFunc(idle, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		if err := d.shutdown(); err != nil {
			logger.With("detector").Warn().Err(err).Msg("face service exited with error")
		}
	})
}

func findFaceServiceScript() string {
	execPath, err := os.Executable()
	var execDir string
	if err == nil {
		execDir = filepath.Dir(execPath)
	}

	candidates := []string{
		faceServiceScript,
		filepath.Join("..", faceServiceScript),
		filepath.Join(execDir, faceServiceScript),
		filepath.Join(os.Getenv("HOME"), ".palak", faceServiceScript),
	}

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
		filepath.Join(os.Getenv("HOME"), ".palak/venv/bin/python"),
	}

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

// jsonFace represents the JSON structure from the Python service.
type jsonFace struct {
	Points []Point3D `json:"points"`
	Bounds *Rect     `json:"bounds"`
	Score  float64   `json:"score"`
}

// parseFaceResponse decodes one response line. Faces with fewer than
// NumLandmarks points are dropped since the eye indices would be missing.
// Missing bounds are derived from the landmark extent.
func parseFaceResponse(line []byte) ([]FaceLandmarks, error) {
	var response struct {
		Faces []jsonFace `json:"faces"`
		Error string     `json:"error"`
	}
	if err := json.Unmarshal(line, &response); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if response.Error != "" {
		return nil, fmt.Errorf("face service: %s", response.Error)
	}

	result := make([]FaceLandmarks, 0, len(response.Faces))
	for _, f := range response.Faces {
		if len(f.Points) < NumLandmarks {
			continue
		}
		lm := FaceLandmarks{Score: f.Score}
		copy(lm.Points[:], f.Points[:NumLandmarks])
		if f.Bounds != nil {
			lm.Bounds = *f.Bounds
		} else {
			lm.Bounds = boundsOf(lm.Points[:])
		}
		result = append(result, lm)
	}

	return result, nil
}

// boundsOf returns the bounding box of the given points.
func boundsOf(points []Point3D) Rect {
	if len(points) == 0 {
		return Rect{}
	}
	minX, minY := points[0].X, points[0].Y
	maxX, maxY := minX, minY
	for _, p := range points[1:] {
		minX = min(minX, p.X)
		minY = min(minY, p.Y)
		maxX = max(maxX, p.X)
		maxY = max(maxY, p.Y)
	}
	return Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}
