package system

import (
	"time"

	"github.com/locogo/server/internal/command"
	"github.com/locogo/server/internal/company"
	coresys "github.com/locogo/server/internal/core/system"
	"github.com/locogo/server/internal/netsync"
	"go.uber.org/zap"
)

// InputSystem drains the local command queue and the peer inbox and runs
// each request through the dispatcher as a top-level command. Phase 0 (Input).
type InputSystem struct {
	dispatcher *command.Dispatcher
	local      <-chan Request
	remote     <-chan netsync.Remote
	localID    func() company.ID
	maxPerTick int
	log        *zap.Logger
}

// NewInputSystem wires the two queues. remote may be nil when network sync
// is disabled. localID reports the company this node plays.
func NewInputSystem(d *command.Dispatcher, local <-chan Request, remote <-chan netsync.Remote, localID func() company.ID, maxPerTick int, log *zap.Logger) *InputSystem {
	if maxPerTick <= 0 {
		maxPerTick = 64
	}
	return &InputSystem{
		dispatcher: d,
		local:      local,
		remote:     remote,
		localID:    localID,
		maxPerTick: maxPerTick,
		log:        log,
	}
}

func (s *InputSystem) Phase() coresys.Phase { return coresys.PhaseInput }

func (s *InputSystem) Update(_ time.Duration) {
	n := 0
	for n < s.maxPerTick {
		select {
		case req := <-s.local:
			s.run(req.Company, req.Inv, "local")
			n++
			continue
		default:
		}
		select {
		case r := <-s.remote:
			if r.Company == s.localID() {
				s.log.Warn("拒絕冒用本地公司的同步指令",
					zap.String("peer", r.Peer), zap.Stringer("kind", r.Inv.Kind))
				n++
				continue
			}
			s.run(r.Company, r.Inv, r.Peer)
			n++
			continue
		default:
		}
		return
	}
}

func (s *InputSystem) run(c company.ID, inv command.Invocation, origin string) {
	cost, err := s.dispatcher.Run(c, inv)
	if err != nil {
		s.log.Debug("指令失敗",
			zap.String("origin", origin),
			zap.Stringer("kind", inv.Kind),
			zap.Stringer("company", c),
			zap.Error(err))
		return
	}
	s.log.Debug("指令完成",
		zap.String("origin", origin),
		zap.Stringer("kind", inv.Kind),
		zap.Stringer("company", c),
		zap.Int64("cost", int64(cost)))
}
