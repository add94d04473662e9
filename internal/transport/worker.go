package transport

import (
	"bufio"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/immersivehub/orchestrator/internal/config"
)

type workerState int

const (
	stateUnstarted workerState = iota
	stateRunning
	stateTerminated
)

// Worker is one external SFU process bound to a configured port. Its
// identity is stable for the lifetime of the pool entry; the OS process
// behind it may be replaced when the autorestart flag is set.
type Worker struct {
	ID       string
	Port     int
	Protocol Protocol
	TLS      bool

	externalHostname string
	cfg              *config.TransportConfig

	mu       sync.Mutex
	state    workerState
	cmd      *exec.Cmd
	restarts int
	sessions map[string]struct{}

	// onExit is invoked once, outside the worker lock, after the worker
	// reaches the terminated state without an explicit Destroy.
	onExit func(*Worker)
}

var _ Transport = (*Worker)(nil)

func NewWorker(protocol Protocol, port int, cfg *config.TransportConfig, externalHostname string) *Worker {
	return &Worker{
		ID:               uuid.NewString(),
		Port:             port,
		Protocol:         protocol,
		TLS:              cfg.TLS,
		externalHostname: externalHostname,
		cfg:              cfg,
		sessions:         make(map[string]struct{}),
	}
}

// expandCommandLine substitutes the %SFU_PORT% placeholder into every
// command line argument.
func expandCommandLine(args []string, port int) []string {
	out := make([]string, len(args))
	for i, arg := range args {
		out[i] = strings.ReplaceAll(arg, "%SFU_PORT%", strconv.Itoa(port))
	}
	return out
}

// Start spawns the worker process if it is not already running. A missing
// command line is a configuration error: the worker stays unstarted but
// keeps occupying its port in the pool.
func (w *Worker) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.startLocked()
}

func (w *Worker) startLocked() {
	if w.state != stateUnstarted {
		return
	}
	if len(w.cfg.CommandLine) < 1 {
		log.Error().Str("module", "transport.worker").Str("id", w.ID).Str("protocol", string(w.Protocol)).Msg("no command line configured for worker")
		return
	}

	command := w.cfg.CommandLine[0]
	args := expandCommandLine(w.cfg.CommandLine[1:], w.Port)

	log.Info().Str("module", "transport.worker").Str("id", w.ID).Str("protocol", string(w.Protocol)).
		Int("port", w.Port).Str("command", command).Strs("args", args).Msg("launching worker process")

	cmd := exec.Command(command, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	// With the log flag set the process output goes to its own file
	// (prefix + port + suffix); otherwise it is piped into the logger.
	var logFile *os.File
	if w.cfg.Log {
		path := w.cfg.LogPrefix + strconv.Itoa(w.Port) + w.cfg.LogSuffix
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			log.Error().Str("module", "transport.worker").Str("id", w.ID).Str("file", path).Err(err).Msg("cannot open worker log file")
		} else {
			logFile = f
		}
	}

	var stdout, stderr io.ReadCloser
	if logFile != nil {
		cmd.Stdout = logFile
		cmd.Stderr = logFile
	} else {
		var err error
		stdout, err = cmd.StdoutPipe()
		if err != nil {
			log.Error().Str("module", "transport.worker").Str("id", w.ID).Err(err).Msg("failed to open stdout pipe")
			return
		}
		stderr, err = cmd.StderrPipe()
		if err != nil {
			log.Error().Str("module", "transport.worker").Str("id", w.ID).Err(err).Msg("failed to open stderr pipe")
			return
		}
	}

	if err := cmd.Start(); err != nil {
		log.Error().Str("module", "transport.worker").Str("id", w.ID).Err(err).Msg("failed to spawn worker process")
		if logFile != nil {
			_ = logFile.Close()
		}
		return
	}

	w.cmd = cmd
	w.state = stateRunning

	if logFile == nil {
		go w.pipeOutput("stdout", stdout)
		go w.pipeOutput("stderr", stderr)
	}
	go w.supervise(cmd, logFile)
}

func (w *Worker) pipeOutput(stream string, r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		log.Debug().Str("module", "transport.worker").Str("id", w.ID).Str("stream", stream).Msg(scanner.Text())
	}
}

// supervise waits for the process to exit. An unexpected exit either
// respawns the process (autorestart set and sessions still bound) or tears
// the worker down and notifies the pool.
func (w *Worker) supervise(cmd *exec.Cmd, logFile *os.File) {
	err := cmd.Wait()
	if logFile != nil {
		_ = logFile.Close()
	}

	w.mu.Lock()
	if w.cmd != cmd {
		// A replacement process is already running.
		w.mu.Unlock()
		return
	}
	w.cmd = nil

	destroyed := w.state == stateTerminated
	if !destroyed {
		log.Warn().Str("module", "transport.worker").Str("id", w.ID).Int("port", w.Port).Err(err).Msg("worker process exited unexpectedly")
	}

	if !destroyed && w.cfg.AutoRestart && len(w.sessions) > 0 {
		w.state = stateUnstarted
		w.startLocked()
		if w.state == stateRunning {
			w.restarts++
			log.Info().Str("module", "transport.worker").Str("id", w.ID).Int("port", w.Port).Int("restarts", w.restarts).Msg("worker process restarted")
			w.mu.Unlock()
			return
		}
	}

	w.state = stateTerminated
	onExit := w.onExit
	w.mu.Unlock()

	if !destroyed && onExit != nil {
		onExit(w)
	}
}

// Destroy terminates the worker process if one is running. Idempotent; a
// destroyed worker is never restarted.
func (w *Worker) Destroy() {
	w.mu.Lock()
	if w.state == stateTerminated {
		w.mu.Unlock()
		return
	}
	w.state = stateTerminated
	cmd := w.cmd
	w.mu.Unlock()

	if cmd != nil && cmd.Process != nil {
		log.Info().Str("module", "transport.worker").Str("id", w.ID).Int("port", w.Port).Msg("terminating worker process")
		_ = cmd.Process.Signal(syscall.SIGTERM)
	}
}

// Terminated reports whether the worker has been torn down. A terminated
// worker no longer occupies its port.
func (w *Worker) Terminated() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state == stateTerminated
}

func (w *Worker) AddSession(sessionID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.sessions[sessionID] = struct{}{}
}

func (w *Worker) RemoveSession(sessionID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.sessions, sessionID)
}

func (w *Worker) CountSessions() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.sessions)
}

// Restarts reports how many times the worker process has been respawned.
func (w *Worker) Restarts() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.restarts
}

// GetUrls renders the URL templates configured for the worker's port. An
// unmapped port yields empty URLs.
func (w *Worker) GetUrls(sessionID, userID string) URLs {
	for _, pm := range w.cfg.PortMapping {
		if pm.Port != w.Port {
			continue
		}
		r := strings.NewReplacer(
			"%EXTERNAL_HOSTNAME%", w.externalHostname,
			"%SESSION_ID%", sessionID,
			"%USER_ID%", userID,
		)
		return URLs{
			URLGen:   r.Replace(pm.SFUData.URLGen),
			URLAudio: r.Replace(pm.SFUData.URLAudio),
			URLPCC:   r.Replace(pm.SFUData.URLPCC),
		}
	}
	return URLs{}
}
