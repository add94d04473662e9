package core

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/immersivehub/orchestrator/internal/protocol"
	"github.com/immersivehub/orchestrator/internal/transport"
)

// Scenario is immutable descriptive metadata attached to a session.
type Scenario struct {
	ID          string
	Name        string
	Description string
}

// ScenarioDefinition is the wire form of a scenario.
type ScenarioDefinition struct {
	ScenarioID          string `json:"scenarioId"`
	ScenarioName        string `json:"scenarioName"`
	ScenarioDescription string `json:"scenarioDescription"`
}

func (sc Scenario) Definition() ScenarioDefinition {
	return ScenarioDefinition{
		ScenarioID:          sc.ID,
		ScenarioName:        sc.Name,
		ScenarioDescription: sc.Description,
	}
}

// SessionUserDefinition is a member entry in a serialized session,
// extending the user definition with the member's media URLs.
type SessionUserDefinition struct {
	UserDefinition
	SFUData transport.URLs `json:"sfuData"`
}

// SessionDefinition is the canonical wire representation of a session.
type SessionDefinition struct {
	SessionID              string                  `json:"sessionId"`
	SessionName            string                  `json:"sessionName"`
	SessionDescription     string                  `json:"sessionDescription"`
	SessionAdministrator   string                  `json:"sessionAdministrator"`
	SessionMaster          string                  `json:"sessionMaster"`
	SessionProtocol        string                  `json:"sessionProtocol"`
	ScenarioDefinition     ScenarioDefinition      `json:"scenarioDefinition"`
	SessionUsers           []string                `json:"sessionUsers"`
	SessionUserDefinitions []SessionUserDefinition `json:"sessionUserDefinitions"`
}

// Session is a named group of users sharing a scenario and a transport
// resource. Identity, administrator, scenario and transport binding are
// fixed at creation; membership and master are the mutable parts.
type Session struct {
	ID          string
	Name        string
	Description string
	Protocol    transport.Protocol
	Scenario    Scenario

	// Administrator keeps delete authority for the session lifetime,
	// independent of membership.
	Administrator *User
	Transport     transport.Transport

	mu      sync.RWMutex
	master  *User
	members []*User
}

func NewSession(name, description string, p transport.Protocol, scenario Scenario, administrator *User) *Session {
	return &Session{
		ID:            uuid.NewString(),
		Name:          name,
		Description:   description,
		Protocol:      p,
		Scenario:      scenario,
		Administrator: administrator,
	}
}

// AddUser appends the user to the member list (join order is preserved),
// notifies every current member including the joiner, re-runs the master
// election and sets the user's session back-reference.
func (s *Session) AddUser(u *User) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.members = append(s.members, u)
	s.notifyLocked(protocol.SessionEventUserJoined, u.Definition())
	s.selectMasterLocked()
	u.setSession(s.ID)

	log.Info().Str("module", "core.session").Str("session", s.ID).Str("user", u.ID).Int("members", len(s.members)).Msg("member joined")
}

// RemoveUser removes the user, clears its back-reference, re-runs the
// master election and notifies the remaining members.
func (s *Session) RemoveUser(u *User) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.members[:0]
	for _, m := range s.members {
		if m.ID != u.ID {
			kept = append(kept, m)
		}
	}
	s.members = kept
	u.clearSession()

	s.selectMasterLocked()
	s.notifyLocked(protocol.SessionEventUserLeft, map[string]any{
		"userId":  u.ID,
		"message": "User left the session",
	})

	log.Info().Str("module", "core.session").Str("session", s.ID).Str("user", u.ID).Int("members", len(s.members)).Msg("member left")
}

// selectMasterLocked keeps the current master while it is still a member;
// otherwise the first member in join order with master eligibility becomes
// master, or none qualifies and the session has no master.
func (s *Session) selectMasterLocked() {
	if s.master != nil && s.hasUserLocked(s.master.ID) {
		return
	}
	s.master = nil
	for _, m := range s.members {
		if m.CanBeMaster {
			s.master = m
			log.Info().Str("module", "core.session").Str("session", s.ID).Str("master", m.ID).Msg("elected master")
			return
		}
	}
}

func (s *Session) hasUserLocked(id string) bool {
	for _, m := range s.members {
		if m.ID == id {
			return true
		}
	}
	return false
}

func (s *Session) Master() *User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.master
}

func (s *Session) HasMaster() bool {
	return s.Master() != nil
}

func (s *Session) IsMaster(u *User) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.master != nil && s.master.ID == u.ID
}

// GetUser returns the member with the given id, or nil.
func (s *Session) GetUser(id string) *User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.members {
		if m.ID == id {
			return m
		}
	}
	return nil
}

func (s *Session) HasUser(u *User) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hasUserLocked(u.ID)
}

func (s *Session) IsEmpty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.members) == 0
}

// Members returns a snapshot of the member list in join order.
func (s *Session) Members() []*User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*User, len(s.members))
	copy(out, s.members)
	return out
}

// SendMessageToAll delivers a chat message to every member, the sender
// included.
func (s *Session) SendMessageToAll(from *User, message any) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	payload := messagePayload(from, message)
	for _, m := range s.members {
		m.Emit(protocol.EventMessageSent, payload)
	}
}

// SendMessage delivers a chat message to a single member. A target that is
// not a current member is silently skipped.
func (s *Session) SendMessage(from *User, toID string, message any) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.members {
		if m.ID == toID {
			m.Emit(protocol.EventMessageSent, messagePayload(from, message))
			return
		}
	}
}

func messagePayload(from *User, message any) map[string]any {
	return map[string]any{
		"messageFrom":     from.ID,
		"messageFromName": from.Name,
		"message":         message,
	}
}

// SendSceneEvent fans a scene event out to every member except the sender.
func (s *Session) SendSceneEvent(event string, from *User, data any) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.members {
		if m.ID == from.ID {
			continue
		}
		m.SendSceneEvent(event, from, data)
	}
}

// SendData is the selective multicast: the payload reaches exactly the
// members holding a subscription for (publisher, type). Best-effort,
// at-most-once, no buffering.
func (s *Session) SendData(from *User, streamType string, data any) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.members {
		if !m.HasStreamSubscription(from, streamType) {
			continue
		}
		m.Emit(protocol.EventDataReceived, map[string]any{
			"fromUserId": from.ID,
			"streamType": streamType,
			"data":       data,
		})
	}
}

// SendSessionUpdate notifies every member of a session-scoped change.
func (s *Session) SendSessionUpdate(eventID string, data any) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	s.notifyLocked(eventID, data)
}

func (s *Session) notifyLocked(eventID string, data any) {
	payload := map[string]any{
		"eventId":   eventID,
		"eventData": data,
	}
	for _, m := range s.members {
		m.Emit(protocol.EventSessionUpdated, payload)
	}
}

// close notifies members that the session is gone and empties the
// membership, clearing every back-reference. Used by the orchestrator when
// force-closing a session.
func (s *Session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range s.members {
		m.Emit(protocol.EventSessionClosed, map[string]any{"sessionId": s.ID})
		m.clearSession()
	}
	s.members = nil
	s.master = nil
}

// Serialize produces the canonical wire representation: administrator,
// master (empty when absent), scenario, ordered member ids and member
// definitions with their media URLs, and the protocol tag.
func (s *Session) Serialize() SessionDefinition {
	s.mu.RLock()
	defer s.mu.RUnlock()

	def := SessionDefinition{
		SessionID:          s.ID,
		SessionName:        s.Name,
		SessionDescription: s.Description,
		SessionProtocol:    string(s.Protocol),
		ScenarioDefinition: s.Scenario.Definition(),
	}
	if s.Administrator != nil {
		def.SessionAdministrator = s.Administrator.ID
	}
	if s.master != nil {
		def.SessionMaster = s.master.ID
	}

	def.SessionUsers = make([]string, 0, len(s.members))
	def.SessionUserDefinitions = make([]SessionUserDefinition, 0, len(s.members))
	for _, m := range s.members {
		def.SessionUsers = append(def.SessionUsers, m.ID)
		entry := SessionUserDefinition{UserDefinition: m.Definition()}
		if s.Transport != nil {
			entry.SFUData = s.Transport.GetUrls(s.ID, m.ID)
		}
		def.SessionUserDefinitions = append(def.SessionUserDefinitions, entry)
	}
	return def
}
