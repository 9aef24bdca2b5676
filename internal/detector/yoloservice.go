package detector

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// serviceIdleTimeout is how long the inference subprocess may sit unused
// before it is shut down to free the model's memory.
const serviceIdleTimeout = 30 * time.Second

// YOLOServiceDetector implements Detector by delegating to a Python YOLO
// service over stdin/stdout. Each call writes a JSON options line followed
// by a length-prefixed JPEG, and reads back one JSON line of detections.
// The subprocess is started lazily on first use and stopped after an idle
// period.
type YOLOServiceDetector struct {
	modelPath string
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	stdout    *bufio.Reader
	mu        sync.Mutex
	started   bool
	idleTimer *time.Timer
}

// NewYOLOServiceDetector creates a detector for the model weights at
// modelPath. It fails fast when neither the service script nor the weights
// can be found, so the caller can fall back to a mock.
func NewYOLOServiceDetector(modelPath string) (*YOLOServiceDetector, error) {
	if findYOLOScript() == "" {
		return nil, fmt.Errorf("yolo_service.py not found")
	}
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("model weights %s: %w", modelPath, err)
	}
	return &YOLOServiceDetector{modelPath: modelPath}, nil
}

// request is the options line sent ahead of each frame.
type request struct {
	Confidence    float64 `json:"confidence"`
	IOU           float64 `json:"iou"`
	MaxDetections int     `json:"max_detections"`
}

// response is one line of detections from the service.
type response struct {
	Detections []struct {
		ClassID    int     `json:"class_id"`
		Confidence float64 `json:"confidence"`
		Box        [4]int  `json:"box"`
	} `json:"detections"`
	Error string `json:"error"`
}

// Detect sends the frame to the service and decodes its detections.
func (d *YOLOServiceDetector) Detect(frame *gocv.Mat, opts Options) ([]Detection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.ensureStarted(); err != nil {
		return nil, err
	}

	buf, err := gocv.IMEncode(".jpg", *frame)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()
	data := buf.GetBytes()

	header, err := json.Marshal(request{
		Confidence:    opts.ConfidenceThreshold,
		IOU:           opts.IOUThreshold,
		MaxDetections: opts.MaxDetections,
	})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	header = append(header, '\n')

	length := make([]byte, 4)
	binary.BigEndian.PutUint32(length, uint32(len(data)))

	if _, err := d.stdin.Write(header); err != nil {
		return nil, fmt.Errorf("write request: %w", err)
	}
	if _, err := d.stdin.Write(length); err != nil {
		return nil, fmt.Errorf("write length: %w", err)
	}
	if _, err := d.stdin.Write(data); err != nil {
		return nil, fmt.Errorf("write frame: %w", err)
	}

	line, err := d.stdout.ReadString('\n')
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var resp response
	if err := json.Unmarshal([]byte(line), &resp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("inference service: %s", resp.Error)
	}

	width, height := frame.Cols(), frame.Rows()
	result := make([]Detection, 0, len(resp.Detections))
	for _, raw := range resp.Detections {
		box := image.Rect(raw.Box[0], raw.Box[1], raw.Box[2], raw.Box[3])
		result = append(result, Detection{
			ClassID:    raw.ClassID,
			Label:      ClassName(raw.ClassID),
			Confidence: raw.Confidence,
			Box:        ClampBox(box, width, height),
		})
	}

	d.resetIdleTimer()
	return result, nil
}

// Close shuts down the service subprocess.
func (d *YOLOServiceDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.shutdown()
}

func (d *YOLOServiceDetector) ensureStarted() error {
	if d.started {
		return nil
	}

	scriptPath := findYOLOScript()
	if scriptPath == "" {
		return fmt.Errorf("yolo_service.py not found")
	}

	pythonPath := findVenvPython()
	if pythonPath == "" {
		pythonPath = "python3"
	}

	d.cmd = exec.Command(pythonPath, scriptPath, d.modelPath)

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
		return fmt.Errorf("start inference service: %w", err)
	}

	d.stdin = stdin
	d.stdout = bufio.NewReader(stdout)
	d.started = true

	return nil
}

func (d *YOLOServiceDetector) shutdown() error {
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

	return err
}

func (d *YOLOServiceDetector) resetIdleTimer() {
	if d.idleTimer != nil {
		d.idleTimer.Stop()
	}
	d.idleTimer = time.AfterFunc(serviceIdleTimeout, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		d.shutdown()
	})
}

func findYOLOScript() string {
	execPath, err := os.Executable()
	var execDir string
	if err == nil {
		execDir = filepath.Dir(execPath)
	}

	candidates := []string{
		"scripts/yolo_service.py",
		"../scripts/yolo_service.py",
		filepath.Join(execDir, "scripts/yolo_service.py"),
		filepath.Join(os.Getenv("HOME"), ".gridwatch/scripts/yolo_service.py"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			if absPath, err := filepath.Abs(path); err == nil {
				return absPath
			}
			return path
		}
	}
	return ""
}

// findVenvPython looks for a Python interpreter in a virtual environment
// near the binary or the data directory.
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
		filepath.Join(os.Getenv("HOME"), ".gridwatch/venv/bin/python"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			if absPath, err := filepath.Abs(path); err == nil {
				return absPath
			}
			return path
		}
	}
	return ""
}
