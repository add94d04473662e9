package ws

import (
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/immersivehub/orchestrator/internal/core"
	"github.com/immersivehub/orchestrator/internal/protocol"
	"github.com/immersivehub/orchestrator/internal/transport"
)

func (ctl *Controller) handleAddSession(cl *client, env protocol.Envelope) {
	var body struct {
		SessionName        string `json:"sessionName"`
		SessionDescription string `json:"sessionDescription"`
		SessionProtocol    string `json:"sessionProtocol"`
		ScenarioDefinition struct {
			ScenarioID          string `json:"scenarioId"`
			ScenarioName        string `json:"scenarioName"`
			ScenarioDescription string `json:"scenarioDescription"`
		} `json:"scenarioDefinition"`
	}
	decodeBody(env, &body)

	p := transport.Protocol(body.SessionProtocol)
	if body.SessionProtocol == "" {
		p = transport.ProtocolUnknown
	}
	scenario := core.Scenario{
		ID:          body.ScenarioDefinition.ScenarioID,
		Name:        body.ScenarioDefinition.ScenarioName,
		Description: body.ScenarioDefinition.ScenarioDescription,
	}

	s, err := ctl.Orch.CreateSession(cl.user, strings.TrimSpace(body.SessionName), body.SessionDescription, p, scenario)
	if err != nil {
		log.Warn().Str("module", "adapters.ws").Str("user", cl.user.ID).Err(err).Msg("session creation failed")
		cl.conn.reply(protocol.NewCommandResponse(env.CommandID, protocol.ErrSessionAddFailed, nil))
		return
	}

	cl.conn.reply(protocol.NewCommandResponse(env.CommandID, protocol.ErrOK, s.Serialize()))
}

func (ctl *Controller) handleDeleteSession(cl *client, env protocol.Envelope) {
	var body struct {
		SessionID string `json:"sessionId"`
	}
	decodeBody(env, &body)

	if err := ctl.Orch.DeleteSession(cl.user, body.SessionID); err != nil {
		cl.conn.reply(protocol.NewCommandResponse(env.CommandID, codeFor(err, protocol.ErrSessionNotFound), nil))
		return
	}
	cl.conn.reply(protocol.NewCommandResponse(env.CommandID, protocol.ErrOK, nil))
}

func (ctl *Controller) handleJoinSession(cl *client, env protocol.Envelope) {
	var body struct {
		SessionID string `json:"sessionId"`
	}
	decodeBody(env, &body)

	s, err := ctl.Orch.JoinSession(cl.user, body.SessionID)
	if err != nil {
		cl.conn.reply(protocol.NewCommandResponse(env.CommandID, codeFor(err, protocol.ErrSessionNotFound), nil))
		return
	}
	cl.conn.reply(protocol.NewCommandResponse(env.CommandID, protocol.ErrOK, s.Serialize()))
}

func (ctl *Controller) handleLeaveSession(cl *client, env protocol.Envelope) {
	if err := ctl.Orch.LeaveSession(cl.user); err != nil {
		cl.conn.reply(protocol.NewCommandResponse(env.CommandID, codeFor(err, protocol.ErrSessionUserNotInAnySession), nil))
		return
	}
	cl.conn.reply(protocol.NewCommandResponse(env.CommandID, protocol.ErrOK, nil))
}

func (ctl *Controller) handleGetSessions(cl *client, env protocol.Envelope) {
	cl.conn.reply(protocol.NewCommandResponse(env.CommandID, protocol.ErrOK, ctl.Orch.SerializeSessions()))
}

func (ctl *Controller) handleGetSessionInfo(cl *client, env protocol.Envelope) {
	s := ctl.Orch.SessionOf(cl.user)
	if s == nil {
		cl.conn.reply(protocol.NewCommandResponse(env.CommandID, protocol.ErrSessionUserNotInSession, nil))
		return
	}
	cl.conn.reply(protocol.NewCommandResponse(env.CommandID, protocol.ErrOK, s.Serialize()))
}

func (ctl *Controller) handleSendMessageToAll(cl *client, env protocol.Envelope) {
	var body struct {
		Message any `json:"message"`
	}
	decodeBody(env, &body)

	s := ctl.Orch.SessionOf(cl.user)
	if s == nil {
		cl.conn.reply(protocol.NewCommandResponse(env.CommandID, protocol.ErrSessionUserNotInAnySession, nil))
		return
	}

	s.SendMessageToAll(cl.user, body.Message)
	cl.conn.reply(protocol.NewCommandResponse(env.CommandID, protocol.ErrOK, nil))
}

func (ctl *Controller) handleSendMessage(cl *client, env protocol.Envelope) {
	var body struct {
		Message any    `json:"message"`
		UserID  string `json:"userId"`
	}
	decodeBody(env, &body)

	s := ctl.Orch.SessionOf(cl.user)
	if s == nil {
		cl.conn.reply(protocol.NewCommandResponse(env.CommandID, protocol.ErrSessionUserNotInAnySession, nil))
		return
	}
	if s.GetUser(body.UserID) == nil {
		cl.conn.reply(protocol.NewCommandResponse(env.CommandID, protocol.ErrSessionUserNotInSameSession, nil))
		return
	}

	s.SendMessage(cl.user, body.UserID, body.Message)
	cl.conn.reply(protocol.NewCommandResponse(env.CommandID, protocol.ErrOK, nil))
}
