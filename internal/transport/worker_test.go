package transport

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/immersivehub/orchestrator/internal/config"
)

func testWorkerConfig() *config.TransportConfig {
	return &config.TransportConfig{
		CommandLine: nil,
		PortMapping: []config.PortMapping{
			{Port: 9000, SFUData: config.SFUData{
				URLGen:   "https://%EXTERNAL_HOSTNAME%:9000/session/%SESSION_ID%/user/%USER_ID%",
				URLAudio: "https://%EXTERNAL_HOSTNAME%:9000/audio",
				URLPCC:   "",
			}},
		},
	}
}

func TestExpandCommandLine(t *testing.T) {
	args := expandCommandLine([]string{"--port", "%SFU_PORT%", "--log", "sfu-%SFU_PORT%.log"}, 9000)
	assert.Equal(t, []string{"--port", "9000", "--log", "sfu-9000.log"}, args)
}

func TestStartWithoutCommandLineIsNoop(t *testing.T) {
	w := NewWorker(ProtocolWebRTC, 9000, testWorkerConfig(), "media.example.com")

	w.Start()
	assert.False(t, w.Terminated())

	w.Destroy()
	assert.True(t, w.Terminated())
	// Destroy is idempotent.
	w.Destroy()
	assert.True(t, w.Terminated())
}

func TestWorkerSessionCounting(t *testing.T) {
	w := NewWorker(ProtocolWebRTC, 9000, testWorkerConfig(), "media.example.com")

	w.AddSession("s1")
	w.AddSession("s2")
	assert.Equal(t, 2, w.CountSessions())

	w.RemoveSession("s1")
	assert.Equal(t, 1, w.CountSessions())
	w.RemoveSession("missing")
	assert.Equal(t, 1, w.CountSessions())
}

func TestGetUrlsSubstitutesPlaceholders(t *testing.T) {
	w := NewWorker(ProtocolWebRTC, 9000, testWorkerConfig(), "media.example.com")

	urls := w.GetUrls("sess-1", "user-1")
	assert.Equal(t, "https://media.example.com:9000/session/sess-1/user/user-1", urls.URLGen)
	assert.Equal(t, "https://media.example.com:9000/audio", urls.URLAudio)
	assert.Equal(t, "", urls.URLPCC)
}

func TestGetUrlsUnmappedPortIsEmpty(t *testing.T) {
	w := NewWorker(ProtocolWebRTC, 9999, testWorkerConfig(), "media.example.com")

	assert.Equal(t, URLs{}, w.GetUrls("s", "u"))
}

func TestWorkerExitWithoutAutorestartTerminates(t *testing.T) {
	cfg := &config.TransportConfig{
		CommandLine: []string{"/bin/sh", "-c", "exit 0"},
		PortMapping: []config.PortMapping{{Port: 9000}},
	}
	w := NewWorker(ProtocolWebRTC, 9000, cfg, "media.example.com")
	w.AddSession("s1")

	w.Start()

	require.Eventually(t, w.Terminated, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, 0, w.Restarts())
}

func TestWorkerAutoRestartWhileSessionsBound(t *testing.T) {
	cfg := &config.TransportConfig{
		AutoRestart: true,
		CommandLine: []string{"/bin/sh", "-c", "sleep 0.05"},
		PortMapping: []config.PortMapping{{Port: 9000}},
	}
	w := NewWorker(ProtocolWebRTC, 9000, cfg, "media.example.com")
	w.AddSession("s1")

	w.Start()
	defer w.Destroy()

	require.Eventually(t, func() bool { return w.Restarts() >= 1 }, 5*time.Second, 20*time.Millisecond)
	assert.False(t, w.Terminated())

	w.Destroy()
	assert.True(t, w.Terminated())
}

func TestWorkerLogFileCapturesOutput(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.TransportConfig{
		Log:         true,
		LogPrefix:   filepath.Join(dir, "sfu-"),
		LogSuffix:   ".log",
		CommandLine: []string{"/bin/sh", "-c", "echo ready"},
		PortMapping: []config.PortMapping{{Port: 9000}},
	}
	w := NewWorker(ProtocolWebRTC, 9000, cfg, "media.example.com")

	w.Start()

	path := filepath.Join(dir, "sfu-9000.log")
	require.Eventually(t, func() bool {
		data, err := os.ReadFile(path)
		return err == nil && strings.Contains(string(data), "ready")
	}, 5*time.Second, 20*time.Millisecond)
}
