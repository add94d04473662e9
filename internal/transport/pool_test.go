package transport

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test configs use an empty command line so no real process is spawned;
// the worker then stays unstarted but keeps occupying its port.
const poolTestConfig = `{
  "tls": false,
  "autorestart": false,
  "log": false,
  "commandLine": [],
  "portMapping": [
    {"port": 9000, "sfuData": {"url_gen": "wss://%EXTERNAL_HOSTNAME%:9000/%SESSION_ID%/%USER_ID%", "url_audio": "", "url_pcc": ""}},
    {"port": 9001, "sfuData": {"url_gen": "wss://%EXTERNAL_HOSTNAME%:9001/%SESSION_ID%/%USER_ID%", "url_audio": "", "url_pcc": ""}}
  ]
}`

func newTestPool(t *testing.T) *Pool {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "webrtc.json"), []byte(poolTestConfig), 0o644))
	return NewPool(dir, "media.example.com")
}

func TestAssignUnknownProtocolGetsStub(t *testing.T) {
	p := newTestPool(t)

	tr, err := p.Assign(ProtocolUnknown, "s1")
	require.NoError(t, err)
	assert.IsType(t, Stub{}, tr)
	assert.Equal(t, URLs{}, tr.GetUrls("s1", "u1"))
	assert.Equal(t, 0, p.WorkerCount())
}

func TestAssignClaimsFreePortsInConfigOrder(t *testing.T) {
	p := newTestPool(t)

	t1, err := p.Assign(ProtocolWebRTC, "s1")
	require.NoError(t, err)
	t2, err := p.Assign(ProtocolWebRTC, "s2")
	require.NoError(t, err)

	w1 := t1.(*Worker)
	w2 := t2.(*Worker)
	assert.Equal(t, 9000, w1.Port)
	assert.Equal(t, 9001, w2.Port)
	assert.Equal(t, 2, p.WorkerCount())
}

func TestAssignLeastLoadedTieBreaksOnLowestPort(t *testing.T) {
	p := newTestPool(t)

	t1, _ := p.Assign(ProtocolWebRTC, "s1")
	t2, _ := p.Assign(ProtocolWebRTC, "s2")

	// Both workers carry one session: the tie goes to the lowest port.
	t3, err := p.Assign(ProtocolWebRTC, "s3")
	require.NoError(t, err)
	assert.Same(t, t1, t3)
	assert.Equal(t, 2, t1.CountSessions())

	// Now 9001 is the least loaded.
	t4, err := p.Assign(ProtocolWebRTC, "s4")
	require.NoError(t, err)
	assert.Same(t, t2, t4)
	assert.Equal(t, 2, p.WorkerCount())
}

func TestReleaseReclaimsIdleWorker(t *testing.T) {
	p := newTestPool(t)

	t1, _ := p.Assign(ProtocolWebRTC, "s1")
	w1 := t1.(*Worker)

	p.Release(t1, "s1")
	assert.True(t, w1.Terminated())
	assert.Equal(t, 0, p.WorkerCount())

	// A fresh assign spawns a new worker on the freed port, never the
	// terminated one.
	t2, err := p.Assign(ProtocolWebRTC, "s2")
	require.NoError(t, err)
	w2 := t2.(*Worker)
	assert.Equal(t, 9000, w2.Port)
	assert.NotEqual(t, w1.ID, w2.ID)
}

func TestReleaseKeepsSharedWorkerAlive(t *testing.T) {
	p := newTestPool(t)

	t1, _ := p.Assign(ProtocolWebRTC, "s1")
	p.Assign(ProtocolWebRTC, "s2")
	t3, _ := p.Assign(ProtocolWebRTC, "s3") // shares the 9000 worker

	p.Release(t3, "s3")
	assert.False(t, t1.(*Worker).Terminated())
	assert.Equal(t, 1, t1.CountSessions())
	assert.Equal(t, 2, p.WorkerCount())
}

func TestAssignMissingConfigFails(t *testing.T) {
	p := newTestPool(t)

	_, err := p.Assign(ProtocolDash, "s1")
	assert.Error(t, err)
}

// A worker whose process dies without autorestart leaves the pool on its
// own; the freed port is claimable again.
func TestPoolDropsExitedWorker(t *testing.T) {
	dir := t.TempDir()
	cfg := `{
  "tls": false,
  "autorestart": false,
  "log": false,
  "commandLine": ["/bin/sh", "-c", "exit 0"],
  "portMapping": [
    {"port": 9000, "sfuData": {"url_gen": "tcp://%EXTERNAL_HOSTNAME%:9000", "url_audio": "", "url_pcc": ""}}
  ]
}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tcpreflector.json"), []byte(cfg), 0o644))
	p := NewPool(dir, "media.example.com")

	t1, err := p.Assign(ProtocolTCPReflector, "s1")
	require.NoError(t, err)
	w1 := t1.(*Worker)

	require.Eventually(t, func() bool { return p.WorkerCount() == 0 }, 5*time.Second, 20*time.Millisecond)
	assert.True(t, w1.Terminated())

	t2, err := p.Assign(ProtocolTCPReflector, "s2")
	require.NoError(t, err)
	w2 := t2.(*Worker)
	assert.Equal(t, 9000, w2.Port)
	assert.NotEqual(t, w1.ID, w2.ID)
}
