package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/immersivehub/orchestrator/internal/config"
	"github.com/immersivehub/orchestrator/internal/core"
	"github.com/immersivehub/orchestrator/internal/protocol"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Controller dispatches client commands against the orchestrator.
type Controller struct {
	Orch       *core.Orchestrator
	Version    string
	NTPServers []config.NTPServer

	// Shutdown stops the whole server; wired to the root context cancel
	// for the TerminateOrchestrator command.
	Shutdown context.CancelFunc
}

func NewController(orch *core.Orchestrator, version string, ntpServers []config.NTPServer, shutdown context.CancelFunc) *Controller {
	return &Controller{
		Orch:       orch,
		Version:    version,
		NTPServers: ntpServers,
		Shutdown:   shutdown,
	}
}

// client is the per-connection handshake state: user stays nil until the
// first successful Login resolves it.
type client struct {
	conn responder
	user *core.User
}

func (ctl *Controller) HandleWS(ctx context.Context, c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Str("module", "adapters.ws").Err(err).Msg("websocket upgrade failed")
		return
	}

	conn := newWSConn(ws)
	cl := &client{conn: conn}
	ctx, cancel := context.WithCancel(ctx)

	go conn.writePump(ctx)
	go ctl.readPump(ctx, cancel, conn, cl)
}

func (ctl *Controller) readPump(ctx context.Context, cancel context.CancelFunc, conn *wsConn, cl *client) {
	defer func() {
		cancel()
		if cl.user != nil {
			ctl.Orch.Logout(cl.user)
			cl.user = nil
		}
		conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := conn.conn.ReadMessage()
			if err != nil {
				log.Debug().Str("module", "adapters.ws").Err(err).Msg("connection closed")
				return
			}
			ctl.dispatch(cl, data)
		}
	}
}

// dispatch routes one decoded envelope. Before login only the Login
// command is honored; after login further Login attempts are ignored.
func (ctl *Controller) dispatch(cl *client, data []byte) {
	var env protocol.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Debug().Str("module", "adapters.ws").Err(err).Msg("bad command envelope")
		return
	}

	if cl.user == nil {
		if env.Command == protocol.CmdLogin {
			ctl.handleLogin(cl, env)
		} else {
			log.Debug().Str("module", "adapters.ws").Str("command", env.Command).Msg("command before login ignored")
		}
		return
	}

	switch env.Command {
	case protocol.CmdLogin:
		log.Debug().Str("module", "adapters.ws").Str("user", cl.user.ID).Msg("repeated login ignored")
	case protocol.CmdLogout:
		ctl.handleLogout(cl, env)

	case protocol.CmdAddSession:
		ctl.handleAddSession(cl, env)
	case protocol.CmdDeleteSession:
		ctl.handleDeleteSession(cl, env)
	case protocol.CmdJoinSession:
		ctl.handleJoinSession(cl, env)
	case protocol.CmdLeaveSession:
		ctl.handleLeaveSession(cl, env)
	case protocol.CmdGetSessions:
		ctl.handleGetSessions(cl, env)
	case protocol.CmdGetSessionInfo:
		ctl.handleGetSessionInfo(cl, env)

	case protocol.CmdSendMessage:
		ctl.handleSendMessage(cl, env)
	case protocol.CmdSendMessageToAll:
		ctl.handleSendMessageToAll(cl, env)

	case protocol.CmdSendSceneEventToMaster:
		ctl.handleSceneEventToMaster(cl, env)
	case protocol.CmdSendSceneEventToUser:
		ctl.handleSceneEventToUser(cl, env)
	case protocol.CmdSendSceneEventToAll:
		ctl.handleSceneEventToAll(cl, env)

	case protocol.CmdDeclareDataStream:
		ctl.handleDeclareDataStream(cl, env)
	case protocol.CmdRemoveDataStream:
		ctl.handleRemoveDataStream(cl, env)
	case protocol.CmdRegisterForDataStream:
		ctl.handleRegisterForDataStream(cl, env)
	case protocol.CmdUnregisterFromDataStream:
		ctl.handleUnregisterFromDataStream(cl, env)
	case protocol.CmdSendData:
		ctl.handleSendData(cl, env)

	case protocol.CmdGetUserData:
		ctl.handleGetUserData(cl, env)
	case protocol.CmdUpdateUserData:
		ctl.handleUpdateUserData(cl, env)

	case protocol.CmdGetOrchestratorVersion:
		ctl.handleGetVersion(cl, env)
	case protocol.CmdGetNTPTime:
		ctl.handleGetNTPTime(cl, env)
	case protocol.CmdDumpData:
		ctl.handleDumpData(cl, env)
	case protocol.CmdTerminateOrchestrator:
		ctl.handleTerminate(cl, env)

	default:
		log.Debug().Str("module", "adapters.ws").Str("command", env.Command).Msg("unknown command")
	}
}

func (ctl *Controller) handleLogin(cl *client, env protocol.Envelope) {
	var body struct {
		UserName string `json:"userName"`
	}
	decodeBody(env, &body)

	if body.UserName == "" {
		log.Debug().Str("module", "adapters.ws").Msg("login without username")
		cl.conn.reply(protocol.NewCommandResponse(env.CommandID, protocol.ErrMissingCredentials, nil))
		return
	}

	cl.user = ctl.Orch.Login(body.UserName, cl.conn)
	cl.conn.reply(protocol.NewCommandResponse(env.CommandID, protocol.ErrOK, map[string]any{
		"userId": cl.user.ID,
	}))
}

func (ctl *Controller) handleLogout(cl *client, env protocol.Envelope) {
	ctl.Orch.Logout(cl.user)
	cl.user = nil
	cl.conn.reply(protocol.NewCommandResponse(env.CommandID, protocol.ErrOK, nil))
}

// decodeBody unmarshals the envelope body, tolerating an absent one.
func decodeBody(env protocol.Envelope, out any) {
	if len(env.Body) == 0 {
		return
	}
	if err := json.Unmarshal(env.Body, out); err != nil {
		log.Debug().Str("module", "adapters.ws").Str("command", env.Command).Err(err).Msg("bad command body")
	}
}

// codeFor maps core state-conflict errors to their wire codes, falling
// back to the handler-specific code for anything unrecognized.
func codeFor(err error, fallback protocol.ErrorCode) protocol.ErrorCode {
	switch {
	case errors.Is(err, core.ErrSessionNotFound):
		return protocol.ErrSessionNotFound
	case errors.Is(err, core.ErrSessionDeleteUnauthorized):
		return protocol.ErrSessionDeleteUnauthorized
	case errors.Is(err, core.ErrSessionNotEmpty):
		return protocol.ErrSessionNotEmpty
	case errors.Is(err, core.ErrUserAlreadyInSession):
		return protocol.ErrSessionUserAlreadyInSession
	case errors.Is(err, core.ErrUserInOtherSession):
		return protocol.ErrSessionUserInOtherSession
	case errors.Is(err, core.ErrUserNotInAnySession):
		return protocol.ErrSessionUserNotInAnySession
	case errors.Is(err, core.ErrUserNotInSession):
		return protocol.ErrSessionUserNotInSession
	}
	return fallback
}
