package core

import (
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// DataStream is a typed channel a user publishes on.
type DataStream struct {
	Type        string
	Description string
}

// StreamSubscription marks an incoming stream the user wants delivered,
// keyed by the publishing user and the stream type.
type StreamSubscription struct {
	UserID      string
	Type        string
	Description string
}

func streamKey(userID, streamType string) string {
	return userID + "::" + streamType
}

// DataStreamDef is the wire form of a declared stream or subscription.
type DataStreamDef struct {
	DataStreamUserID      string `json:"dataStreamUserId,omitempty"`
	DataStreamKind        string `json:"dataStreamKind"`
	DataStreamDescription string `json:"dataStreamDescription"`
}

// UserDefinition is the canonical wire representation of a user.
type UserDefinition struct {
	UserID              string          `json:"userId"`
	UserName            string          `json:"userName"`
	UserData            map[string]any  `json:"userData"`
	DataStreams         []DataStreamDef `json:"dataStreams"`
	StreamSubscriptions []DataStreamDef `json:"streamSubscriptions"`
}

// User is one logged-in identity bound to exactly one connection. The id is
// generated at creation and never reused; a re-login under the same name
// evicts the old identity instead of inheriting from it.
type User struct {
	ID          string
	Name        string
	Conn        Connection
	CanBeMaster bool

	mu            sync.RWMutex
	userData      map[string]any
	dataStreams   map[string]DataStream
	subscriptions map[string]StreamSubscription
	sessionID     string
}

func NewUser(name string, conn Connection) *User {
	return &User{
		ID:            uuid.NewString(),
		Name:          name,
		Conn:          conn,
		CanBeMaster:   true,
		userData:      make(map[string]any),
		dataStreams:   make(map[string]DataStream),
		subscriptions: make(map[string]StreamSubscription),
	}
}

// SessionID returns the id of the user's current session, or the empty
// string. The back-reference is a plain identifier resolved through the
// orchestrator registry, never a strong pointer.
func (u *User) SessionID() string {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.sessionID
}

func (u *User) setSession(id string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.sessionID = id
}

func (u *User) clearSession() {
	u.setSession("")
}

// DeclareDataStream upserts a published stream declaration; a prior
// declaration of the same type is replaced.
func (u *User) DeclareDataStream(streamType, description string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.dataStreams[streamType] = DataStream{Type: streamType, Description: description}
}

func (u *User) RemoveDataStream(streamType string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	delete(u.dataStreams, streamType)
}

func (u *User) RemoveAllDataStreams() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.dataStreams = make(map[string]DataStream)
}

// SubscribeToDataStream registers interest in the publisher's stream of the
// given type. Idempotent.
func (u *User) SubscribeToDataStream(publisher *User, streamType string) {
	description := ""
	publisher.mu.RLock()
	if ds, ok := publisher.dataStreams[streamType]; ok {
		description = ds.Description
	}
	publisher.mu.RUnlock()

	u.mu.Lock()
	defer u.mu.Unlock()
	u.subscriptions[streamKey(publisher.ID, streamType)] = StreamSubscription{
		UserID:      publisher.ID,
		Type:        streamType,
		Description: description,
	}
}

func (u *User) RemoveStreamSubscription(publisher *User, streamType string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	delete(u.subscriptions, streamKey(publisher.ID, streamType))
}

// HasStreamSubscription is the selective multicast filter: it reports
// whether this user asked for the publisher's stream of the given type.
func (u *User) HasStreamSubscription(publisher *User, streamType string) bool {
	u.mu.RLock()
	defer u.mu.RUnlock()
	_, ok := u.subscriptions[streamKey(publisher.ID, streamType)]
	return ok
}

// UpdateUserData merges the patch into the user data, overwriting existing
// keys, and returns a copy of the full resulting map.
func (u *User) UpdateUserData(patch map[string]any) map[string]any {
	u.mu.Lock()
	defer u.mu.Unlock()
	for k, v := range patch {
		u.userData[k] = v
	}
	return copyMap(u.userData)
}

// UserData returns a copy of the user data map.
func (u *User) UserData() map[string]any {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return copyMap(u.userData)
}

func copyMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// Emit pushes an event through the user's connection. Delivery is
// best-effort; a full or closed connection only logs.
func (u *User) Emit(event string, payload any) {
	if u.Conn == nil {
		return
	}
	if err := u.Conn.Emit(event, payload); err != nil {
		log.Debug().Str("module", "core.user").Str("user", u.ID).Str("event", event).Err(err).Msg("push dropped")
	}
}

// SendSceneEvent delivers a scene event originating from another user.
func (u *User) SendSceneEvent(event string, from *User, data any) {
	u.Emit(event, map[string]any{
		"sceneEventFrom": from.ID,
		"sceneEventData": data,
	})
}

// Definition returns the wire form of the user. Stream maps are listed in
// sorted key order so the output is stable.
func (u *User) Definition() UserDefinition {
	u.mu.RLock()
	defer u.mu.RUnlock()

	streams := make([]DataStreamDef, 0, len(u.dataStreams))
	for _, k := range sortedKeys(u.dataStreams) {
		ds := u.dataStreams[k]
		streams = append(streams, DataStreamDef{
			DataStreamKind:        ds.Type,
			DataStreamDescription: ds.Description,
		})
	}

	subs := make([]DataStreamDef, 0, len(u.subscriptions))
	for _, k := range sortedKeys(u.subscriptions) {
		sub := u.subscriptions[k]
		subs = append(subs, DataStreamDef{
			DataStreamUserID:      sub.UserID,
			DataStreamKind:        sub.Type,
			DataStreamDescription: sub.Description,
		})
	}

	return UserDefinition{
		UserID:              u.ID,
		UserName:            u.Name,
		UserData:            copyMap(u.userData),
		DataStreams:         streams,
		StreamSubscriptions: subs,
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
