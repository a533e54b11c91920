package service

import (
	"context"
	"time"

	"github.com/labstack/gommon/log"

	"github.com/iliyamo/restaurant-service/internal/model"
	"github.com/iliyamo/restaurant-service/internal/repository"
)

// DefaultClearDelay is how long an "enseguida" reply stays visible.
const DefaultClearDelay = 5 * time.Second

// WaiterService drives the per-table waiter call.
type WaiterService struct {
	Mesas *repository.MesaRepo
	Now   func() time.Time
}

func NewWaiterService(mesas *repository.MesaRepo) *WaiterService {
	if mesas == nil {
		panic("nil repository passed to NewWaiterService")
	}
	return &WaiterService{Mesas: mesas, Now: time.Now}
}

func (s *WaiterService) setCall(ctx context.Context, id string, l model.Llamando) error {
	return s.Mesas.Patch(ctx, id, map[string]any{"llamando": l.Value(), "llamadaEn": s.Now().UnixMilli()})
}

// Call marks the table as requesting staff.
func (s *WaiterService) Call(ctx context.Context, id string) error {
	return wrap("call waiter", "mesa", id, s.setCall(ctx, id, model.LlamandoPendiente))
}

// Respond stores the staff reply, "enseguida" or "atendido".
func (s *WaiterService) Respond(ctx context.Context, id, respuesta string) error {
	r := model.Llamando(respuesta)
	if r != model.LlamandoEnseguida && r != model.LlamandoAtendido {
		return invalid("respuesta", "La respuesta debe ser \"enseguida\" o \"atendido\".")
	}
	return wrap("respond call", "mesa", id, s.setCall(ctx, id, r))
}

// ClearEnseguida resets the call to idle if it still reads "enseguida".
// A non-zero since also requires the reply to be the one written at that
// instant, so a later "enseguida" keeps its own delay.
func (s *WaiterService) ClearEnseguida(ctx context.Context, id string, since int64) (bool, error) {
	cond := map[string]any{"llamando": model.LlamandoEnseguida.Value()}
	if since != 0 {
		cond["llamadaEn"] = since
	}
	ok, err := s.Mesas.PatchIf(ctx, id, cond,
		map[string]any{"llamando": model.LlamandoIdle.Value(), "llamadaEn": s.Now().UnixMilli()})
	if err != nil {
		return false, wrap("clear call", "mesa", id, err)
	}
	return ok, nil
}

// AutoClearer watches the tables and clears an "enseguida" reply Delay
// after it was first observed. A reply written again restarts the delay
// even when the snapshots in between were coalesced away, since each write
// carries its own LlamadaEn. Any other call state, or the table
// disappearing, cancels the pending clear. Several instances may run at
// once since the clear is conditional.
type AutoClearer struct {
	Waiter *WaiterService
	Delay  time.Duration
	log    *log.Logger
}

func NewAutoClearer(w *WaiterService, delay time.Duration) *AutoClearer {
	if delay <= 0 {
		delay = DefaultClearDelay
	}
	return &AutoClearer{Waiter: w, Delay: delay, log: log.New("waiter-autoclear")}
}

type pendingClear struct {
	id    string
	since int64
	timer *time.Timer
}

func (a *AutoClearer) Run(ctx context.Context) error {
	ch, err := a.Waiter.Mesas.Watch(ctx)
	if err != nil {
		return wrap("observe mesas", "mesa", "", err)
	}
	pending := map[string]*pendingClear{}
	fired := make(chan *pendingClear)
	defer func() {
		for _, p := range pending {
			p.timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ms, ok := <-ch:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return ErrStreamClosed
			}
			seen := make(map[string]bool, len(ms))
			for _, m := range ms {
				if m.Llamando != model.LlamandoEnseguida {
					continue
				}
				seen[m.ID] = true
				if old, ok := pending[m.ID]; ok {
					if old.since == m.LlamadaEn {
						continue
					}
					old.timer.Stop()
				}
				p := &pendingClear{id: m.ID, since: m.LlamadaEn}
				p.timer = time.AfterFunc(a.Delay, func() {
					select {
					case fired <- p:
					case <-ctx.Done():
					}
				})
				pending[m.ID] = p
			}
			for id, p := range pending {
				if !seen[id] {
					p.timer.Stop()
					delete(pending, id)
				}
			}
		case p := <-fired:
			if pending[p.id] != p {
				continue // superseded or cancelled after firing
			}
			delete(pending, p.id)
			if _, err := a.Waiter.ClearEnseguida(ctx, p.id, p.since); err != nil && ctx.Err() == nil {
				a.log.Warnf("clear mesa %s: %v", p.id, err)
			}
		}
	}
}
