package ws

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/immersivehub/orchestrator/internal/protocol"
)

func (ctl *Controller) handleGetUserData(cl *client, env protocol.Envelope) {
	var body struct {
		UserID string `json:"userId"`
	}
	decodeBody(env, &body)

	target := cl.user
	if body.UserID != "" {
		target = ctl.Orch.GetUser(body.UserID)
	}
	if target == nil {
		cl.conn.reply(protocol.NewCommandResponse(env.CommandID, protocol.ErrUserDataUserNotFound, nil))
		return
	}

	cl.conn.reply(protocol.NewCommandResponse(env.CommandID, protocol.ErrOK, map[string]any{
		"userId":   target.ID,
		"userData": target.UserData(),
	}))
}

func (ctl *Controller) handleUpdateUserData(cl *client, env protocol.Envelope) {
	var body struct {
		UserDataJSON json.RawMessage `json:"userDataJson"`
	}
	decodeBody(env, &body)

	patch, ok := decodeUserData(body.UserDataJSON)
	if !ok {
		cl.conn.reply(protocol.NewCommandResponse(env.CommandID, protocol.ErrUserDataMissingDataJSON, nil))
		return
	}

	merged := cl.user.UpdateUserData(patch)

	if s := ctl.Orch.SessionOf(cl.user); s != nil {
		s.SendSessionUpdate(protocol.SessionEventUserDataUpdated, map[string]any{
			"userId":   cl.user.ID,
			"userData": merged,
		})
	}

	cl.conn.reply(protocol.NewCommandResponse(env.CommandID, protocol.ErrOK, map[string]any{
		"userId":   cl.user.ID,
		"userData": merged,
	}))
}

// decodeUserData accepts userDataJson either as a JSON object or as a
// JSON string whose content is an object.
func decodeUserData(raw json.RawMessage) (map[string]any, bool) {
	if len(raw) == 0 {
		return nil, false
	}

	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj, true
	}

	var encoded string
	if err := json.Unmarshal(raw, &encoded); err == nil {
		if err := json.Unmarshal([]byte(encoded), &obj); err == nil {
			return obj, true
		}
	}

	log.Debug().Str("module", "adapters.ws").Msg("unparseable userDataJson ignored")
	return nil, false
}
