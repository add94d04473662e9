// Package transport manages the media transport resources sessions are
// bound to: external SFU worker processes pooled per protocol, plus a no-op
// stub for protocols the server does not manage.
package transport

// Protocol tags the media transport variant requested for a session.
type Protocol string

const (
	ProtocolWebRTC       Protocol = "webrtc"
	ProtocolDash         Protocol = "dash"
	ProtocolTCPReflector Protocol = "tcpreflector"
	ProtocolSocketIO     Protocol = "socketio"
	ProtocolUnknown      Protocol = "unknown"
)

// IsExternal reports whether the protocol is backed by a pooled worker
// process rather than the stub.
func (p Protocol) IsExternal() bool {
	switch p {
	case ProtocolWebRTC, ProtocolDash, ProtocolTCPReflector:
		return true
	}
	return false
}

// URLs is the set of media endpoints published to a session member.
type URLs struct {
	URLGen   string `json:"url_gen"`
	URLAudio string `json:"url_audio"`
	URLPCC   string `json:"url_pcc"`
}

// Transport is the capability a session holds on its media resource. The
// underlying resource is owned by the pool and may be shared by several
// sessions at once.
type Transport interface {
	Start()
	Destroy()
	AddSession(sessionID string)
	RemoveSession(sessionID string)
	CountSessions() int
	GetUrls(sessionID, userID string) URLs
}

// Stub is the transport bound to sessions whose protocol the server does
// not manage. It carries no process and publishes no URLs.
type Stub struct{}

var _ Transport = Stub{}

func (Stub) Start() {}

func (Stub) Destroy() {}

func (Stub) AddSession(string) {}

func (Stub) RemoveSession(string) {}

func (Stub) CountSessions() int { return 0 }

func (Stub) GetUrls(_, _ string) URLs { return URLs{} }
