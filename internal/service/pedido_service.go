package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/labstack/gommon/log"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/restaurant-service/internal/model"
	"github.com/iliyamo/restaurant-service/internal/queue"
	"github.com/iliyamo/restaurant-service/internal/repository"
)

// Delivery addresses: 10 to 100 letters, digits, spaces and . , ' -
// A "lat, lng" pair from the browser also matches.
var direccionRe = regexp.MustCompile(`^[a-zA-Z0-9\s.,'-]{10,100}$`)

// Publisher delivers order events. Failures never fail the request.
type Publisher interface {
	Publish(ctx context.Context, ev queue.PedidoEvent) error
}

// PedidoService is the order ledger.
type PedidoService struct {
	Pedidos   *repository.PedidoRepo
	Mesas     *repository.MesaRepo
	Publisher Publisher
	Loc       *time.Location
	Now       func() time.Time
	log       *log.Logger
}

func NewPedidoService(pedidos *repository.PedidoRepo, mesas *repository.MesaRepo, pub Publisher, loc *time.Location) *PedidoService {
	if pedidos == nil || mesas == nil {
		panic("nil repository passed to NewPedidoService")
	}
	if loc == nil {
		loc = time.Local
	}
	return &PedidoService{Pedidos: pedidos, Mesas: mesas, Publisher: pub, Loc: loc, Now: time.Now, log: log.New("pedidos")}
}

// SubmitInput is a customer cart.
type SubmitInput struct {
	Items     []model.Item
	Tipo      model.TipoPedido
	Mesa      string
	Direccion string
}

// Submit stores a new pending order. Dine-in orders name an existing table,
// delivery orders an address; never both.
func (s *PedidoService) Submit(ctx context.Context, in SubmitInput) (model.Pedido, error) {
	if len(in.Items) == 0 {
		return model.Pedido{}, invalid("items", "Debe agregar al menos un producto al pedido.")
	}
	for _, it := range in.Items {
		if strings.TrimSpace(it.Nombre) == "" {
			return model.Pedido{}, invalid("items", "Cada producto debe tener nombre.")
		}
	}
	if in.Tipo == "" {
		in.Tipo = model.PedidoLocal
	}
	in.Mesa = strings.TrimSpace(in.Mesa)
	in.Direccion = strings.TrimSpace(in.Direccion)

	switch in.Tipo {
	case model.PedidoLocal:
		if in.Mesa == "" {
			return model.Pedido{}, invalid("mesa", "Los pedidos en local requieren una mesa.")
		}
		if in.Direccion != "" {
			return model.Pedido{}, invalid("direccion", "Un pedido en local no lleva dirección.")
		}
		if _, err := s.Mesas.Get(ctx, in.Mesa); err != nil {
			return model.Pedido{}, wrap("get mesa", "mesa", in.Mesa, err)
		}
	case model.PedidoOnline:
		if in.Mesa != "" {
			return model.Pedido{}, invalid("mesa", "Un pedido en línea no lleva mesa.")
		}
		if !direccionRe.MatchString(in.Direccion) {
			return model.Pedido{}, invalid("direccion", "Dirección inválida. Debe tener entre 10 y 100 caracteres válidos.")
		}
	default:
		return model.Pedido{}, invalid("tipo", "Tipo de pedido inválido.")
	}

	p := model.Pedido{
		Items:     in.Items,
		Tipo:      in.Tipo,
		Mesa:      in.Mesa,
		Direccion: in.Direccion,
		Estado:    model.PedidoPendiente,
		Timestamp: s.Now().UnixMilli(),
	}
	id, err := s.Pedidos.Create(ctx, p)
	if err != nil {
		return model.Pedido{}, wrap("create pedido", "pedido", "", err)
	}
	p.ID = id
	s.publish(ctx, queue.PedidoCreado, p)
	return p, nil
}

// Advance moves a pending order to preparado, finalizado or pagado. Any other
// move, including one out of a terminal state, is ErrInvalidTransition.
func (s *PedidoService) Advance(ctx context.Context, id string, estado model.EstadoPedido) (model.Pedido, error) {
	if !estado.Valid() {
		return model.Pedido{}, invalid("estado", "Estado de pedido inválido.")
	}
	p, err := s.Pedidos.Get(ctx, id)
	if err != nil {
		return model.Pedido{}, wrap("get pedido", "pedido", id, err)
	}
	if !CanTransition(p.Estado, estado) {
		return model.Pedido{}, ErrInvalidTransition
	}
	ok, err := s.Pedidos.PatchIf(ctx, id,
		map[string]any{"estado": string(model.PedidoPendiente)},
		map[string]any{"estado": string(estado)})
	if err != nil {
		return model.Pedido{}, wrap("advance pedido", "pedido", id, err)
	}
	if !ok {
		return model.Pedido{}, ErrInvalidTransition
	}
	p.Estado = estado
	if estado == model.PedidoPagado {
		s.publish(ctx, queue.PedidoPagado, p)
	}
	return p, nil
}

// CanTransition encodes the order state machine: only pendiente moves, and
// only forward.
func CanTransition(from, to model.EstadoPedido) bool {
	if from != model.PedidoPendiente {
		return false
	}
	switch to {
	case model.PedidoPreparado, model.PedidoFinalizado, model.PedidoPagado:
		return true
	}
	return false
}

// PayTable marks every pending order of a table as paid and returns them.
// Orders moved concurrently by someone else are skipped.
func (s *PedidoService) PayTable(ctx context.Context, mesaID string) ([]model.Pedido, error) {
	ps, err := s.Pedidos.ByMesa(ctx, mesaID)
	if err != nil {
		return nil, wrap("list pedidos", "pedido", "", err)
	}
	paid := []model.Pedido{}
	for _, p := range ps {
		if p.Estado != model.PedidoPendiente {
			continue
		}
		np, err := s.Advance(ctx, p.ID, model.PedidoPagado)
		if errors.Is(err, ErrInvalidTransition) {
			continue
		}
		if err != nil {
			return paid, err
		}
		paid = append(paid, np)
	}
	return paid, nil
}

// Filter narrows order listings. Zero fields match everything; Dia is a
// calendar day (2006-01-02) in the service location.
type Filter struct {
	Estado model.EstadoPedido
	Mesa   string
	Dia    string
}

func (s *PedidoService) matches(f Filter, p model.Pedido) bool {
	if f.Estado != "" && p.Estado != f.Estado {
		return false
	}
	if f.Mesa != "" && p.Mesa != f.Mesa {
		return false
	}
	if f.Dia != "" && time.UnixMilli(p.Timestamp).In(s.Loc).Format(dayLayout) != f.Dia {
		return false
	}
	return true
}

func (s *PedidoService) apply(f Filter, ps []model.Pedido) []model.Pedido {
	out := make([]model.Pedido, 0, len(ps))
	for _, p := range ps {
		if s.matches(f, p) {
			out = append(out, p)
		}
	}
	return out
}

// ValidateFilter checks user supplied filter values.
func ValidateFilter(f Filter) error {
	if f.Estado != "" && !f.Estado.Valid() {
		return invalid("estado", "Estado de pedido inválido.")
	}
	if f.Dia != "" {
		if _, err := time.Parse(dayLayout, f.Dia); err != nil {
			return invalid("fecha", "La fecha debe tener formato AAAA-MM-DD.")
		}
	}
	return nil
}

func (s *PedidoService) List(ctx context.Context, f Filter) ([]model.Pedido, error) {
	ps, err := s.Pedidos.List(ctx)
	if err != nil {
		return nil, wrap("list pedidos", "pedido", "", err)
	}
	return s.apply(f, ps), nil
}

// Observe streams filtered order lists until ctx is cancelled.
func (s *PedidoService) Observe(ctx context.Context, f Filter) (<-chan []model.Pedido, error) {
	all, err := s.Pedidos.Watch(ctx)
	if err != nil {
		return nil, wrap("observe pedidos", "pedido", "", err)
	}
	out := make(chan []model.Pedido)
	go func() {
		defer close(out)
		for ps := range all {
			select {
			case out <- s.apply(f, ps):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Report aggregates the ledger at the current instant.
func (s *PedidoService) Report(ctx context.Context) (Report, error) {
	ps, err := s.Pedidos.List(ctx)
	if err != nil {
		return Report{}, wrap("list pedidos", "pedido", "", err)
	}
	return Aggregate(ps, s.Now(), s.Loc), nil
}

func (s *PedidoService) Cashier(ctx context.Context) (CashierView, error) {
	ps, err := s.Pedidos.List(ctx)
	if err != nil {
		return CashierView{}, wrap("list pedidos", "pedido", "", err)
	}
	return BuildCashierView(ps, s.Loc), nil
}

// TableBill returns the pending orders of a table and their running total.
func (s *PedidoService) TableBill(ctx context.Context, mesaID string) ([]PedidoConTotal, decimal.Decimal, error) {
	ps, err := s.Pedidos.ByMesa(ctx, mesaID)
	if err != nil {
		return nil, decimal.Zero, wrap("list pedidos", "pedido", "", err)
	}
	out := []PedidoConTotal{}
	for _, p := range ps {
		if p.Estado == model.PedidoPendiente {
			out = append(out, withTotal(p))
		}
	}
	return out, TableTotal(ps, mesaID), nil
}

func (s *PedidoService) publish(ctx context.Context, kind string, p model.Pedido) {
	if s.Publisher == nil {
		return
	}
	ev := queue.PedidoEvent{
		Type:       kind,
		PedidoID:   p.ID,
		Tipo:       string(p.Tipo),
		Mesa:       p.Mesa,
		Direccion:  p.Direccion,
		Estado:     string(p.Estado),
		Items:      len(p.Items),
		Total:      OrderTotal(p).String(),
		Timestamp:  p.Timestamp,
		OccurredAt: s.Now().UTC().Format(time.RFC3339),
	}
	if err := s.Publisher.Publish(ctx, ev); err != nil {
		s.log.Warnf("publish %s for pedido %s: %v", kind, p.ID, err)
	}
}
