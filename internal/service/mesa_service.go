// Package service holds the restaurant domain rules: the table registry,
// QR sessions, waiter calls, the order ledger, sales reporting and
// capability checks. Services talk to the store only through repositories.
package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/iliyamo/restaurant-service/internal/model"
	"github.com/iliyamo/restaurant-service/internal/repository"
	"github.com/iliyamo/restaurant-service/internal/utils"
)

// DefaultQRTTL is how long a freshly issued table code stays valid.
const DefaultQRTTL = time.Hour

// MesaService is the table registry.
type MesaService struct {
	Mesas *repository.MesaRepo
	QRTTL time.Duration
	Now   func() time.Time
}

func NewMesaService(mesas *repository.MesaRepo, qrTTL time.Duration) *MesaService {
	if mesas == nil {
		panic("nil repository passed to NewMesaService")
	}
	if qrTTL <= 0 {
		qrTTL = DefaultQRTTL
	}
	return &MesaService{Mesas: mesas, QRTTL: qrTTL, Now: time.Now}
}

// Create registers a free table with a fresh QR code. numero must be a
// positive integer and capacidad positive.
func (s *MesaService) Create(ctx context.Context, numero string, capacidad int) (model.Mesa, error) {
	numero = strings.TrimSpace(numero)
	if numero == "" {
		return model.Mesa{}, invalid("numero", "El número de mesa es obligatorio.")
	}
	if n, err := strconv.Atoi(numero); err != nil || n <= 0 {
		return model.Mesa{}, invalid("numero", "El número de mesa debe ser un entero positivo.")
	}
	if capacidad <= 0 {
		return model.Mesa{}, invalid("capacidad", "La capacidad debe ser un entero positivo.")
	}
	m := model.Mesa{
		Numero:     numero,
		Capacidad:  capacidad,
		Estado:     model.MesaLibre,
		QR:         utils.NewQRToken(),
		Expiracion: s.Now().Add(s.QRTTL).UnixMilli(),
		Llamando:   model.LlamandoIdle,
	}
	id, err := s.Mesas.Create(ctx, m)
	if err != nil {
		return model.Mesa{}, wrap("create mesa", "mesa", "", err)
	}
	m.ID = id
	return m, nil
}

func (s *MesaService) Get(ctx context.Context, id string) (model.Mesa, error) {
	m, err := s.Mesas.Get(ctx, id)
	return m, wrap("get mesa", "mesa", id, err)
}

func (s *MesaService) List(ctx context.Context) ([]model.Mesa, error) {
	ms, err := s.Mesas.List(ctx)
	return ms, wrap("list mesas", "mesa", "", err)
}

// SetOccupancy moves the table to estado. Setting the current state is a
// no-op. This is the staff override path and performs no QR check.
func (s *MesaService) SetOccupancy(ctx context.Context, id string, estado model.EstadoMesa) (model.Mesa, error) {
	if !estado.Valid() {
		return model.Mesa{}, invalid("estado", "Estado de mesa inválido.")
	}
	m, err := s.Mesas.Get(ctx, id)
	if err != nil {
		return model.Mesa{}, wrap("get mesa", "mesa", id, err)
	}
	if m.Estado == estado {
		return m, nil
	}
	if err := s.Mesas.Patch(ctx, id, map[string]any{"estado": string(estado)}); err != nil {
		return model.Mesa{}, wrap("set occupancy", "mesa", id, err)
	}
	m.Estado = estado
	return m, nil
}

// Toggle flips libre and ocupada.
func (s *MesaService) Toggle(ctx context.Context, id string) (model.Mesa, error) {
	m, err := s.Mesas.Get(ctx, id)
	if err != nil {
		return model.Mesa{}, wrap("get mesa", "mesa", id, err)
	}
	next := model.MesaOcupada
	if m.Estado == model.MesaOcupada {
		next = model.MesaLibre
	}
	return s.SetOccupancy(ctx, id, next)
}

func (s *MesaService) Delete(ctx context.Context, id string) error {
	return wrap("delete mesa", "mesa", id, s.Mesas.Delete(ctx, id))
}

// Observe streams the table list until ctx is cancelled.
func (s *MesaService) Observe(ctx context.Context) (<-chan []model.Mesa, error) {
	ch, err := s.Mesas.Watch(ctx)
	return ch, wrap("observe mesas", "mesa", "", err)
}

// ObserveOne streams a single table. The channel closes when the table is
// deleted or ctx ends.
func (s *MesaService) ObserveOne(ctx context.Context, id string) (<-chan model.Mesa, error) {
	all, err := s.Observe(ctx)
	if err != nil {
		return nil, err
	}
	out := make(chan model.Mesa)
	go func() {
		defer close(out)
		for ms := range all {
			found := false
			for _, m := range ms {
				if m.ID != id {
					continue
				}
				found = true
				select {
				case out <- m:
				case <-ctx.Done():
					return
				}
			}
			if !found {
				return
			}
		}
	}()
	return out, nil
}
