package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/ayusman/gridwatch/internal/app"
	"github.com/ayusman/gridwatch/internal/pipeline"
	"github.com/ayusman/gridwatch/internal/server"
	"github.com/ayusman/gridwatch/internal/store"
	"github.com/ayusman/gridwatch/internal/tray"
)

func main() {
	var (
		videoPath = flag.String("video", "", "video file to inspect; empty probes for a camera")
		modelPath = flag.String("model", "best.pt", "path to the detection model weights")
		addr      = flag.String("addr", ":8080", "HTTP listen address")
		fps       = flag.Float64("fps", 30, "target frames per second")
		interval  = flag.Int("interval", 3, "run inference on every n-th frame")
		autoStart = flag.Bool("start", false, "start the inspection session immediately")
		useTray   = flag.Bool("tray", true, "show the system tray menu")
	)
	flag.Parse()

	fmt.Println("GridWatch - Power Line Joint Inspection")

	// Initialize the store
	homeDir, err := os.UserHomeDir()
	if err != nil {
		log.Fatalf("Failed to get home directory: %v", err)
	}

	dataDir := filepath.Join(homeDir, ".gridwatch")
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	dbPath := filepath.Join(dataDir, "gridwatch.db")
	st, err := store.New(dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer st.Close()

	// Build the inspection session
	pipeCfg := pipeline.DefaultConfig()
	pipeCfg.TargetFPS = *fps
	pipeCfg.FrameSkipInterval = *interval

	session, err := app.New(app.Config{
		Store:     st,
		VideoPath: *videoPath,
		ModelPath: *modelPath,
		Pipeline:  pipeCfg,
	})
	if err != nil {
		log.Fatalf("Failed to create session: %v", err)
	}
	defer session.Close()

	restoreSettings(st, session)

	if *autoStart {
		if err := session.Start(); err != nil {
			log.Fatalf("Failed to start session: %v", err)
		}
	}

	// Find web directory
	webDir := findWebDir()
	if webDir != "" {
		fmt.Printf("Serving static files from: %s\n", webDir)
	}

	// Configure and start server
	srv := server.New(server.Config{
		StaticDir: webDir,
		DataDir:   dataDir,
		Store:     st,
		Session:   session,
	})

	fmt.Printf("Starting server on %s\n", *addr)
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.ListenAndServe(*addr)
	}()

	if *useTray {
		runTray(session, *addr)
		return
	}

	if err := <-serverErr; err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

// restoreSettings applies settings saved from a previous run. Values set
// on the command line only cover the target FPS and interval, so a saved
// interval wins over the flag default when present.
func restoreSettings(st *store.Store, session *app.Session) {
	settings := st.Settings()
	sched := session.Scheduler()

	if v, err := settings.Get("detection_interval"); err == nil {
		if n, err := strconv.Atoi(v); err == nil {
			sched.SetFrameSkipInterval(n)
		}
	}
	if v, err := settings.Get("processing_enabled"); err == nil {
		if b, err := strconv.ParseBool(v); err == nil {
			sched.SetProcessingEnabled(b)
		}
	}

	conf, iou := sched.Thresholds()
	if v, err := settings.Get("confidence_threshold"); err == nil {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			conf = f
		}
	}
	if v, err := settings.Get("iou_threshold"); err == nil {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			iou = f
		}
	}
	if err := sched.SetThresholds(conf, iou); err != nil {
		log.Printf("Ignoring saved thresholds: %v", err)
	}
}

// runTray blocks on the system tray loop and wires its menu to the session.
func runTray(session *app.Session, addr string) {
	t := tray.New()

	t.OnToggle(func(enabled bool) {
		session.Scheduler().SetProcessingEnabled(enabled)
	})
	t.OnDashboard(func() {
		openBrowser(dashboardURL(addr))
	})
	t.OnQuit(func() {
		session.Stop()
	})

	// Keep the menu's state display fresh
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for range ticker.C {
			t.SetSessionState(session.State().String())
			st := session.CurrentState()
			if st.HasDetections() {
				t.SetLastDefect(st.PrimaryLabel)
			}
		}
	}()

	t.Run()
}

func dashboardURL(addr string) string {
	if addr != "" && addr[0] == ':' {
		return "http://localhost" + addr
	}
	return "http://" + addr
}

// openBrowser opens the URL with the platform's default browser.
func openBrowser(url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		log.Printf("Failed to open browser: %v", err)
	}
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and ~/.gridwatch/web.
// Returns the first existing directory or empty string if none found.
func findWebDir() string {
	// Relative paths first
	relativePaths := []string{"web", "../web", "../../web"}
	for _, p := range relativePaths {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			absPath, err := filepath.Abs(p)
			if err == nil {
				return absPath
			}
			return p
		}
	}

	// Check home directory
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	homeWebDir := filepath.Join(homeDir, ".gridwatch", "web")
	if info, err := os.Stat(homeWebDir); err == nil && info.IsDir() {
		return homeWebDir
	}

	return ""
}
