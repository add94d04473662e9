package ws

import (
	"encoding/json"

	"github.com/immersivehub/orchestrator/internal/protocol"
)

func (ctl *Controller) handleSceneEventToMaster(cl *client, env protocol.Envelope) {
	var body struct {
		SceneEvent json.RawMessage `json:"sceneEvent"`
	}
	decodeBody(env, &body)

	s := ctl.Orch.SessionOf(cl.user)
	if s == nil {
		cl.conn.reply(protocol.NewCommandResponse(env.CommandID, protocol.ErrSessionUserNotInAnySession, nil))
		return
	}
	if len(body.SceneEvent) == 0 {
		cl.conn.reply(protocol.NewCommandResponse(env.CommandID, protocol.ErrSceneEventNoData, nil))
		return
	}
	master := s.Master()
	if master == nil {
		cl.conn.reply(protocol.NewCommandResponse(env.CommandID, protocol.ErrSceneEventNoMaster, nil))
		return
	}

	master.SendSceneEvent(protocol.EventSceneEventToMaster, cl.user, body.SceneEvent)
	cl.conn.reply(protocol.NewCommandResponse(env.CommandID, protocol.ErrOK, nil))
}

func (ctl *Controller) handleSceneEventToUser(cl *client, env protocol.Envelope) {
	var body struct {
		TargetID   string          `json:"targetId"`
		SceneEvent json.RawMessage `json:"sceneEvent"`
	}
	decodeBody(env, &body)

	s := ctl.Orch.SessionOf(cl.user)
	if s == nil {
		cl.conn.reply(protocol.NewCommandResponse(env.CommandID, protocol.ErrSessionUserNotInAnySession, nil))
		return
	}
	if !s.IsMaster(cl.user) {
		cl.conn.reply(protocol.NewCommandResponse(env.CommandID, protocol.ErrSceneEventUserNotMaster, nil))
		return
	}
	if body.TargetID == "" {
		cl.conn.reply(protocol.NewCommandResponse(env.CommandID, protocol.ErrSceneEventNoTargetID, nil))
		return
	}
	target := s.GetUser(body.TargetID)
	if target == nil {
		cl.conn.reply(protocol.NewCommandResponse(env.CommandID, protocol.ErrSessionUserNotInSession, nil))
		return
	}
	if len(body.SceneEvent) == 0 {
		cl.conn.reply(protocol.NewCommandResponse(env.CommandID, protocol.ErrSceneEventNoData, nil))
		return
	}

	target.SendSceneEvent(protocol.EventSceneEventToUser, cl.user, body.SceneEvent)
	cl.conn.reply(protocol.NewCommandResponse(env.CommandID, protocol.ErrOK, nil))
}

func (ctl *Controller) handleSceneEventToAll(cl *client, env protocol.Envelope) {
	var body struct {
		SceneEvent json.RawMessage `json:"sceneEvent"`
	}
	decodeBody(env, &body)

	s := ctl.Orch.SessionOf(cl.user)
	if s == nil {
		cl.conn.reply(protocol.NewCommandResponse(env.CommandID, protocol.ErrSessionUserNotInAnySession, nil))
		return
	}
	if !s.IsMaster(cl.user) {
		cl.conn.reply(protocol.NewCommandResponse(env.CommandID, protocol.ErrSceneEventUserNotMaster, nil))
		return
	}
	if len(body.SceneEvent) == 0 {
		cl.conn.reply(protocol.NewCommandResponse(env.CommandID, protocol.ErrSceneEventNoData, nil))
		return
	}

	s.SendSceneEvent(protocol.EventSceneEventToUser, cl.user, body.SceneEvent)
	cl.conn.reply(protocol.NewCommandResponse(env.CommandID, protocol.ErrOK, nil))
}
