package ws

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/immersivehub/orchestrator/internal/core"
	"github.com/immersivehub/orchestrator/internal/protocol"
)

// streamMaps is the shared success body for all stream commands: the
// user's updated declarations and subscriptions.
func streamMaps(u *core.User) map[string]any {
	def := u.Definition()
	return map[string]any{
		"userId":              def.UserID,
		"dataStreams":         def.DataStreams,
		"streamSubscriptions": def.StreamSubscriptions,
	}
}

func (ctl *Controller) handleDeclareDataStream(cl *client, env protocol.Envelope) {
	var body struct {
		StreamType        string `json:"streamType"`
		StreamDescription string `json:"streamDescription"`
	}
	decodeBody(env, &body)

	if ctl.Orch.SessionOf(cl.user) == nil {
		cl.conn.reply(protocol.NewCommandResponse(env.CommandID, protocol.ErrSessionUserNotInAnySession, nil))
		return
	}
	if body.StreamType == "" {
		cl.conn.reply(protocol.NewCommandResponse(env.CommandID, protocol.ErrStreamDataMissingKind, nil))
		return
	}

	cl.user.DeclareDataStream(body.StreamType, body.StreamDescription)
	cl.conn.reply(protocol.NewCommandResponse(env.CommandID, protocol.ErrOK, streamMaps(cl.user)))
}

func (ctl *Controller) handleRemoveDataStream(cl *client, env protocol.Envelope) {
	var body struct {
		StreamType string `json:"streamType"`
	}
	decodeBody(env, &body)

	if ctl.Orch.SessionOf(cl.user) == nil {
		cl.conn.reply(protocol.NewCommandResponse(env.CommandID, protocol.ErrSessionUserNotInAnySession, nil))
		return
	}
	if body.StreamType == "" {
		cl.conn.reply(protocol.NewCommandResponse(env.CommandID, protocol.ErrStreamDataMissingKind, nil))
		return
	}

	cl.user.RemoveDataStream(body.StreamType)
	cl.conn.reply(protocol.NewCommandResponse(env.CommandID, protocol.ErrOK, streamMaps(cl.user)))
}

func (ctl *Controller) handleRegisterForDataStream(cl *client, env protocol.Envelope) {
	var body struct {
		FromUserID string `json:"fromUserId"`
		StreamType string `json:"streamType"`
	}
	decodeBody(env, &body)

	s := ctl.Orch.SessionOf(cl.user)
	if s == nil {
		cl.conn.reply(protocol.NewCommandResponse(env.CommandID, protocol.ErrSessionUserNotInAnySession, nil))
		return
	}
	if body.FromUserID == "" {
		cl.conn.reply(protocol.NewCommandResponse(env.CommandID, protocol.ErrStreamDataMissingUser, nil))
		return
	}
	if body.StreamType == "" {
		cl.conn.reply(protocol.NewCommandResponse(env.CommandID, protocol.ErrStreamDataMissingKind, nil))
		return
	}
	publisher := s.GetUser(body.FromUserID)
	if publisher == nil {
		cl.conn.reply(protocol.NewCommandResponse(env.CommandID, protocol.ErrSessionUserNotInSession, nil))
		return
	}

	cl.user.SubscribeToDataStream(publisher, body.StreamType)
	cl.conn.reply(protocol.NewCommandResponse(env.CommandID, protocol.ErrOK, streamMaps(cl.user)))
}

func (ctl *Controller) handleUnregisterFromDataStream(cl *client, env protocol.Envelope) {
	var body struct {
		FromUserID string `json:"fromUserId"`
		StreamType string `json:"streamType"`
	}
	decodeBody(env, &body)

	s := ctl.Orch.SessionOf(cl.user)
	if s == nil {
		cl.conn.reply(protocol.NewCommandResponse(env.CommandID, protocol.ErrSessionUserNotInAnySession, nil))
		return
	}
	if body.FromUserID == "" {
		cl.conn.reply(protocol.NewCommandResponse(env.CommandID, protocol.ErrStreamDataMissingUser, nil))
		return
	}
	publisher := s.GetUser(body.FromUserID)
	if publisher == nil {
		cl.conn.reply(protocol.NewCommandResponse(env.CommandID, protocol.ErrSessionUserNotInSession, nil))
		return
	}

	cl.user.RemoveStreamSubscription(publisher, body.StreamType)
	cl.conn.reply(protocol.NewCommandResponse(env.CommandID, protocol.ErrOK, streamMaps(cl.user)))
}

// handleSendData never replies: missing parameters or state are silently
// dropped, the multicast itself is fire-and-forget.
func (ctl *Controller) handleSendData(cl *client, env protocol.Envelope) {
	var body struct {
		StreamType string          `json:"streamType"`
		Data       json.RawMessage `json:"data"`
	}
	decodeBody(env, &body)

	if body.StreamType == "" || len(body.Data) == 0 {
		log.Debug().Str("module", "adapters.ws").Str("user", cl.user.ID).Msg("SendData with missing parameters dropped")
		return
	}
	s := ctl.Orch.SessionOf(cl.user)
	if s == nil {
		return
	}

	s.SendData(cl.user, body.StreamType, body.Data)
}
