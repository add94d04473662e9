package core

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/immersivehub/orchestrator/internal/transport"
)

var (
	ErrSessionNotFound           = errors.New("session not found")
	ErrSessionDeleteUnauthorized = errors.New("user is not the session administrator")
	ErrSessionNotEmpty           = errors.New("session still has members")
	ErrUserAlreadyInSession      = errors.New("user already joined this session")
	ErrUserInOtherSession        = errors.New("user already joined another session")
	ErrUserNotInAnySession       = errors.New("user has not joined any session")
	ErrUserNotInSession          = errors.New("user is not a member of this session")
)

// Orchestrator is the single source of truth for connected users and active
// sessions. One mutex serializes every registry mutation, so concurrent
// connects and disconnects never observe partial login or cleanup state.
type Orchestrator struct {
	ID   string
	pool *transport.Pool

	mu       sync.Mutex
	users    []*User
	sessions []*Session
}

func NewOrchestrator(pool *transport.Pool) *Orchestrator {
	return &Orchestrator{
		ID:   uuid.NewString(),
		pool: pool,
	}
}

// AddUser registers a user. Idempotent by id.
func (o *Orchestrator) AddUser(u *User) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.addUserLocked(u)
}

func (o *Orchestrator) addUserLocked(u *User) {
	for _, existing := range o.users {
		if existing.ID == u.ID {
			return
		}
	}
	o.users = append(o.users, u)
}

// GetUser returns the registered user with the given id, or nil.
func (o *Orchestrator) GetUser(id string) *User {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, u := range o.users {
		if u.ID == id {
			return u
		}
	}
	return nil
}

// FindUser returns the first registered user with the given name, in
// registration order, or nil.
func (o *Orchestrator) FindUser(name string) *User {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.findUserLocked(name)
}

func (o *Orchestrator) findUserLocked(name string) *User {
	for _, u := range o.users {
		if u.Name == name {
			return u
		}
	}
	return nil
}

// RemoveUser deregisters a user by id. It does not touch session
// membership; callers clean up session state first.
func (o *Orchestrator) RemoveUser(u *User) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.removeUserLocked(u)
}

func (o *Orchestrator) removeUserLocked(u *User) {
	kept := o.users[:0]
	for _, existing := range o.users {
		if existing.ID != u.ID {
			kept = append(kept, existing)
		}
	}
	o.users = kept
}

func (o *Orchestrator) AddSession(s *Session) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sessions = append(o.sessions, s)
}

// RemoveSession deregisters a session. Callers are responsible for having
// emptied it and released its transport.
func (o *Orchestrator) RemoveSession(s *Session) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.removeSessionLocked(s)
}

func (o *Orchestrator) removeSessionLocked(s *Session) {
	kept := o.sessions[:0]
	for _, existing := range o.sessions {
		if existing.ID != s.ID {
			kept = append(kept, existing)
		}
	}
	o.sessions = kept
}

// GetSession returns the active session with the given id, or nil.
func (o *Orchestrator) GetSession(id string) *Session {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sessionByIDLocked(id)
}

func (o *Orchestrator) sessionByIDLocked(id string) *Session {
	for _, s := range o.sessions {
		if s.ID == id {
			return s
		}
	}
	return nil
}

// GetAdministratedSessions returns every session whose administrator is the
// given user.
func (o *Orchestrator) GetAdministratedSessions(u *User) []*Session {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.administratedLocked(u)
}

func (o *Orchestrator) administratedLocked(u *User) []*Session {
	var out []*Session
	for _, s := range o.sessions {
		if s.Administrator != nil && s.Administrator.ID == u.ID {
			out = append(out, s)
		}
	}
	return out
}

// SessionOf resolves the user's session back-reference, or nil.
func (o *Orchestrator) SessionOf(u *User) *Session {
	id := u.SessionID()
	if id == "" {
		return nil
	}
	return o.GetSession(id)
}

// SerializeSessions returns every active session keyed by id.
func (o *Orchestrator) SerializeSessions() map[string]SessionDefinition {
	o.mu.Lock()
	sessions := make([]*Session, len(o.sessions))
	copy(sessions, o.sessions)
	o.mu.Unlock()

	out := make(map[string]SessionDefinition, len(sessions))
	for _, s := range sessions {
		out[s.ID] = s.Serialize()
	}
	return out
}

// Stats reports registry sizes for the admin surface.
func (o *Orchestrator) Stats() (users, sessions int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.users), len(o.sessions)
}

// Login registers a fresh user identity for the given name. If a user with
// that name is already connected, the old identity is logged out and its
// connection force-closed first: the newest login wins and inherits nothing.
func (o *Orchestrator) Login(name string, conn Connection) *User {
	o.mu.Lock()
	defer o.mu.Unlock()

	if existing := o.findUserLocked(name); existing != nil {
		log.Info().Str("module", "core.orchestrator").Str("user", existing.ID).Str("name", name).Msg("evicting previous login")
		o.logoutLocked(existing)
		if existing.Conn != nil {
			existing.Conn.Close()
		}
	}

	u := NewUser(name, conn)
	o.addUserLocked(u)
	log.Info().Str("module", "core.orchestrator").Str("user", u.ID).Str("name", name).Msg("user logged in")
	return u
}

// Logout runs the full disconnect cleanup for a user as a single logical
// unit: leave the current session, force-close it if the user administered
// it, sweep any other administered sessions, then deregister the user.
func (o *Orchestrator) Logout(u *User) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.logoutLocked(u)
}

func (o *Orchestrator) logoutLocked(u *User) {
	if sid := u.SessionID(); sid != "" {
		if s := o.sessionByIDLocked(sid); s != nil {
			s.RemoveUser(u)
			if s.Administrator != nil && s.Administrator.ID == u.ID {
				o.closeSessionLocked(s)
			}
		} else {
			u.clearSession()
		}
	}

	// Dangling-session sweep: sessions this user administers but already
	// left keep their transports alive otherwise.
	for _, s := range o.administratedLocked(u) {
		o.closeSessionLocked(s)
	}

	o.removeUserLocked(u)
	log.Info().Str("module", "core.orchestrator").Str("user", u.ID).Str("name", u.Name).Msg("user logged out")
}

func (o *Orchestrator) closeSessionLocked(s *Session) {
	s.close()
	if o.pool != nil {
		o.pool.Release(s.Transport, s.ID)
	}
	o.removeSessionLocked(s)
	log.Info().Str("module", "core.orchestrator").Str("session", s.ID).Msg("session closed")
}

// CreateSession builds a session around the scenario, binds it to a
// transport resource and registers it with the creator as administrator and
// first member. Any failure leaves no session registered.
func (o *Orchestrator) CreateSession(u *User, name, description string, p transport.Protocol, scenario Scenario) (*Session, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if u.SessionID() != "" {
		return nil, ErrUserInOtherSession
	}

	s := NewSession(name, description, p, scenario, u)

	tr, err := o.pool.Assign(p, s.ID)
	if err != nil {
		return nil, fmt.Errorf("transport allocation failed: %w", err)
	}
	s.Transport = tr

	s.AddUser(u)
	o.sessions = append(o.sessions, s)

	log.Info().Str("module", "core.orchestrator").Str("session", s.ID).Str("name", name).
		Str("protocol", string(p)).Str("administrator", u.ID).Msg("session created")
	return s, nil
}

// DeleteSession removes an empty session on behalf of its administrator.
func (o *Orchestrator) DeleteSession(u *User, sessionID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	s := o.sessionByIDLocked(sessionID)
	if s == nil {
		return ErrSessionNotFound
	}
	if s.Administrator == nil || s.Administrator.ID != u.ID {
		return ErrSessionDeleteUnauthorized
	}
	if !s.IsEmpty() {
		return ErrSessionNotEmpty
	}

	o.closeSessionLocked(s)
	return nil
}

// JoinSession adds the user to the session with the given id.
func (o *Orchestrator) JoinSession(u *User, sessionID string) (*Session, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	s := o.sessionByIDLocked(sessionID)
	if s == nil {
		return nil, ErrSessionNotFound
	}
	switch u.SessionID() {
	case "":
	case sessionID:
		return nil, ErrUserAlreadyInSession
	default:
		return nil, ErrUserInOtherSession
	}

	s.AddUser(u)
	return s, nil
}

// LeaveSession removes the user from its current session. The session
// stays registered even when it becomes empty; only the administrator's
// delete or disconnect tears it down.
func (o *Orchestrator) LeaveSession(u *User) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	sid := u.SessionID()
	if sid == "" {
		return ErrUserNotInAnySession
	}
	s := o.sessionByIDLocked(sid)
	if s == nil {
		u.clearSession()
		return ErrUserNotInAnySession
	}

	s.RemoveUser(u)
	return nil
}

// Dump serializes the full orchestrator state for the DumpData command.
func (o *Orchestrator) Dump() map[string]any {
	o.mu.Lock()
	users := make([]*User, len(o.users))
	copy(users, o.users)
	o.mu.Unlock()

	userDefs := make([]UserDefinition, 0, len(users))
	for _, u := range users {
		userDefs = append(userDefs, u.Definition())
	}

	return map[string]any{
		"orchestratorId": o.ID,
		"users":          userDefs,
		"sessions":       o.SerializeSessions(),
	}
}
