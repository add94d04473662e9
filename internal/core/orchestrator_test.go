package core

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/immersivehub/orchestrator/internal/protocol"
	"github.com/immersivehub/orchestrator/internal/transport"
)

const orchTestTransportConfig = `{
  "tls": false,
  "autorestart": false,
  "commandLine": [],
  "portMapping": [
    {"port": 9000, "sfuData": {"url_gen": "wss://%EXTERNAL_HOSTNAME%:9000", "url_audio": "", "url_pcc": ""}}
  ]
}`

func newTestOrchestrator(t *testing.T) (*Orchestrator, *transport.Pool) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "webrtc.json"), []byte(orchTestTransportConfig), 0o644))
	pool := transport.NewPool(dir, "media.example.com")
	return NewOrchestrator(pool), pool
}

func TestUserRegistry(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	u1, _ := newTestUser("alice")
	u2, _ := newTestUser("bob")

	o.AddUser(u1)
	o.AddUser(u1) // idempotent by id
	o.AddUser(u2)

	users, _ := o.Stats()
	assert.Equal(t, 2, users)
	assert.Same(t, u1, o.GetUser(u1.ID))
	assert.Same(t, u2, o.FindUser("bob"))
	assert.Nil(t, o.GetUser("missing"))
	assert.Nil(t, o.FindUser("missing"))

	o.RemoveUser(u1)
	users, _ = o.Stats()
	assert.Equal(t, 1, users)
}

func TestLoginEvictionNewestWins(t *testing.T) {
	o, _ := newTestOrchestrator(t)

	conn1 := &fakeConn{}
	u1 := o.Login("alice", conn1)
	u1.UpdateUserData(map[string]any{"avatar": "red"})
	u1.DeclareDataStream("video", "")

	conn2 := &fakeConn{}
	u2 := o.Login("alice", conn2)

	assert.True(t, conn1.Closed())
	assert.Nil(t, o.GetUser(u1.ID))
	assert.Same(t, u2, o.FindUser("alice"))
	assert.NotEqual(t, u1.ID, u2.ID)
	// Nothing is inherited from the evicted identity.
	assert.Empty(t, u2.UserData())
	assert.Empty(t, u2.Definition().DataStreams)
}

func TestLoginEvictionCleansUpSessions(t *testing.T) {
	o, pool := newTestOrchestrator(t)

	u1 := o.Login("alice", &fakeConn{})
	_, err := o.CreateSession(u1, "room", "", transport.ProtocolWebRTC, Scenario{ID: "scn"})
	require.NoError(t, err)
	assert.Equal(t, 1, pool.WorkerCount())

	o.Login("alice", &fakeConn{})

	_, sessions := o.Stats()
	assert.Equal(t, 0, sessions)
	assert.Equal(t, 0, pool.WorkerCount())
}

func TestCreateSessionRegistersAdministratorAsMember(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	u := o.Login("alice", &fakeConn{})

	s, err := o.CreateSession(u, "room", "desc", transport.ProtocolUnknown, Scenario{ID: "scn"})
	require.NoError(t, err)

	assert.Same(t, u, s.Administrator)
	assert.True(t, s.HasUser(u))
	assert.True(t, s.IsMaster(u))
	assert.Equal(t, s.ID, u.SessionID())
	assert.IsType(t, transport.Stub{}, s.Transport)

	defs := o.SerializeSessions()
	require.Contains(t, defs, s.ID)
	assert.Equal(t, "room", defs[s.ID].SessionName)
}

func TestCreateSessionWhileInSessionFails(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	u := o.Login("alice", &fakeConn{})

	_, err := o.CreateSession(u, "one", "", transport.ProtocolUnknown, Scenario{})
	require.NoError(t, err)

	_, err = o.CreateSession(u, "two", "", transport.ProtocolUnknown, Scenario{})
	assert.ErrorIs(t, err, ErrUserInOtherSession)
}

func TestCreateSessionTransportFailure(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	u := o.Login("alice", &fakeConn{})

	// No dash.json config exists.
	_, err := o.CreateSession(u, "room", "", transport.ProtocolDash, Scenario{})
	assert.Error(t, err)

	_, sessions := o.Stats()
	assert.Equal(t, 0, sessions)
	assert.Equal(t, "", u.SessionID())
}

func TestJoinSessionStateConflicts(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	admin := o.Login("admin", &fakeConn{})
	guest := o.Login("guest", &fakeConn{})

	s, err := o.CreateSession(admin, "room", "", transport.ProtocolUnknown, Scenario{})
	require.NoError(t, err)

	_, err = o.JoinSession(guest, "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	joined, err := o.JoinSession(guest, s.ID)
	require.NoError(t, err)
	assert.Same(t, s, joined)

	_, err = o.JoinSession(guest, s.ID)
	assert.ErrorIs(t, err, ErrUserAlreadyInSession)

	other, err := o.CreateSession(o.Login("third", &fakeConn{}), "other", "", transport.ProtocolUnknown, Scenario{})
	require.NoError(t, err)
	_, err = o.JoinSession(guest, other.ID)
	assert.ErrorIs(t, err, ErrUserInOtherSession)
}

func TestLeaveSession(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	admin := o.Login("admin", &fakeConn{})
	guest := o.Login("guest", &fakeConn{})

	assert.ErrorIs(t, o.LeaveSession(guest), ErrUserNotInAnySession)

	s, _ := o.CreateSession(admin, "room", "", transport.ProtocolUnknown, Scenario{})
	_, err := o.JoinSession(guest, s.ID)
	require.NoError(t, err)

	require.NoError(t, o.LeaveSession(guest))
	assert.Equal(t, "", guest.SessionID())
	assert.False(t, s.HasUser(guest))

	// The administrator leaving does not close the session.
	require.NoError(t, o.LeaveSession(admin))
	assert.True(t, s.IsEmpty())
	_, sessions := o.Stats()
	assert.Equal(t, 1, sessions)
}

func TestDeleteSession(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	admin := o.Login("admin", &fakeConn{})
	guest := o.Login("guest", &fakeConn{})

	s, _ := o.CreateSession(admin, "room", "", transport.ProtocolUnknown, Scenario{})

	assert.ErrorIs(t, o.DeleteSession(admin, "missing"), ErrSessionNotFound)
	assert.ErrorIs(t, o.DeleteSession(guest, s.ID), ErrSessionDeleteUnauthorized)
	assert.ErrorIs(t, o.DeleteSession(admin, s.ID), ErrSessionNotEmpty)

	require.NoError(t, o.LeaveSession(admin))
	require.NoError(t, o.DeleteSession(admin, s.ID))
	_, sessions := o.Stats()
	assert.Equal(t, 0, sessions)
}

func TestAdministratorDisconnectClosesSession(t *testing.T) {
	o, pool := newTestOrchestrator(t)
	admin := o.Login("admin", &fakeConn{})
	guest := o.Login("guest", &fakeConn{})
	guestConn := guest.Conn.(*fakeConn)

	s, err := o.CreateSession(admin, "room", "", transport.ProtocolWebRTC, Scenario{})
	require.NoError(t, err)
	_, err = o.JoinSession(guest, s.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, pool.WorkerCount())

	o.Logout(admin)

	_, sessions := o.Stats()
	assert.Equal(t, 0, sessions)
	assert.Equal(t, 0, pool.WorkerCount())
	assert.Equal(t, "", guest.SessionID())
	assert.NotEmpty(t, guestConn.eventsNamed(protocol.EventSessionClosed))
	assert.Nil(t, o.GetUser(admin.ID))
}

func TestDanglingSessionSweepOnLogout(t *testing.T) {
	o, pool := newTestOrchestrator(t)
	admin := o.Login("admin", &fakeConn{})

	s, err := o.CreateSession(admin, "room", "", transport.ProtocolWebRTC, Scenario{})
	require.NoError(t, err)

	// The administrator leaves but the session stays registered.
	require.NoError(t, o.LeaveSession(admin))
	_, sessions := o.Stats()
	require.Equal(t, 1, sessions)
	require.Equal(t, 1, pool.WorkerCount())

	// Disconnect sweeps the administered session anyway.
	o.Logout(admin)
	_, sessions = o.Stats()
	assert.Equal(t, 0, sessions)
	assert.Equal(t, 0, pool.WorkerCount())
	_ = s
}

func TestDumpContainsUsersAndSessions(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	u := o.Login("alice", &fakeConn{})
	s, _ := o.CreateSession(u, "room", "", transport.ProtocolUnknown, Scenario{})

	dump := o.Dump()
	assert.Equal(t, o.ID, dump["orchestratorId"])
	assert.Len(t, dump["users"].([]UserDefinition), 1)
	assert.Contains(t, dump["sessions"].(map[string]SessionDefinition), s.ID)
}
