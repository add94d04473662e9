package ws

import (
	"time"

	"github.com/beevik/ntp"
	"github.com/rs/zerolog/log"

	"github.com/immersivehub/orchestrator/internal/protocol"
)

func (ctl *Controller) handleGetVersion(cl *client, env protocol.Envelope) {
	cl.conn.reply(protocol.NewCommandResponse(env.CommandID, protocol.ErrOK, map[string]any{
		"orchestratorVersion": ctl.Version,
	}))
}

// handleGetNTPTime queries the configured servers in order and replies with
// the first answer. When every server fails the command stays unanswered,
// only a warning is logged.
func (ctl *Controller) handleGetNTPTime(cl *client, env protocol.Envelope) {
	servers := ctl.NTPServers
	go func() {
		for _, s := range servers {
			resp, err := ntp.QueryWithOptions(s.Server, ntp.QueryOptions{Port: s.Port})
			if err != nil {
				log.Debug().Str("module", "adapters.ws").Str("server", s.Server).Err(err).Msg("ntp query failed")
				continue
			}
			now := time.Now().Add(resp.ClockOffset)
			cl.conn.reply(protocol.NewCommandResponse(env.CommandID, protocol.ErrOK, map[string]any{
				"ntpDate":   now.Format(time.RFC3339Nano),
				"ntpTimeMs": now.UnixMilli(),
			}))
			return
		}
		log.Warn().Str("module", "adapters.ws").Int("servers", len(servers)).Msg("no ntp server answered")
	}()
}

func (ctl *Controller) handleDumpData(cl *client, env protocol.Envelope) {
	cl.conn.reply(protocol.NewCommandResponse(env.CommandID, protocol.ErrOK, ctl.Orch.Dump()))
}

func (ctl *Controller) handleTerminate(cl *client, env protocol.Envelope) {
	log.Warn().Str("module", "adapters.ws").Str("user", cl.user.ID).Msg("termination requested")
	cl.conn.reply(protocol.NewCommandResponse(env.CommandID, protocol.ErrOK, nil))
	if ctl.Shutdown != nil {
		ctl.Shutdown()
	}
}
