package repository

import (
	"context"

	"github.com/iliyamo/restaurant-service/internal/model"
	"github.com/iliyamo/restaurant-service/internal/store"
)

// PlatoRepo stores menu dishes.
type PlatoRepo struct{ docs docs[model.Plato] }

func NewPlatoRepo(s store.Store) *PlatoRepo {
	return &PlatoRepo{docs: docs[model.Plato]{s: s, coll: store.Platos,
		setID: func(p *model.Plato, id string) { p.ID = id }}}
}

func (r *PlatoRepo) List(ctx context.Context) ([]model.Plato, error) { return r.docs.list(ctx) }

func (r *PlatoRepo) Create(ctx context.Context, p model.Plato) (string, error) {
	return r.docs.push(ctx, p)
}

func (r *PlatoRepo) Update(ctx context.Context, id string, patch map[string]any) error {
	return r.docs.s.Update(ctx, store.Platos, id, patch)
}

func (r *PlatoRepo) Delete(ctx context.Context, id string) error {
	return r.docs.s.Delete(ctx, store.Platos, id)
}

// ReservaRepo stores bookings.
type ReservaRepo struct{ docs docs[model.Reserva] }

func NewReservaRepo(s store.Store) *ReservaRepo {
	return &ReservaRepo{docs: docs[model.Reserva]{s: s, coll: store.Reservas,
		setID: func(r *model.Reserva, id string) { r.ID = id }}}
}

func (r *ReservaRepo) List(ctx context.Context) ([]model.Reserva, error) { return r.docs.list(ctx) }

func (r *ReservaRepo) Create(ctx context.Context, res model.Reserva) (string, error) {
	return r.docs.push(ctx, res)
}

// InventarioRepo stores stock entries.
type InventarioRepo struct{ docs docs[model.InventarioItem] }

func NewInventarioRepo(s store.Store) *InventarioRepo {
	return &InventarioRepo{docs: docs[model.InventarioItem]{s: s, coll: store.Inventario,
		setID: func(it *model.InventarioItem, id string) { it.ID = id }}}
}

func (r *InventarioRepo) List(ctx context.Context) ([]model.InventarioItem, error) {
	return r.docs.list(ctx)
}

func (r *InventarioRepo) Create(ctx context.Context, it model.InventarioItem) (string, error) {
	return r.docs.push(ctx, it)
}

func (r *InventarioRepo) Update(ctx context.Context, id string, patch map[string]any) error {
	return r.docs.s.Update(ctx, store.Inventario, id, patch)
}

func (r *InventarioRepo) Delete(ctx context.Context, id string) error {
	return r.docs.s.Delete(ctx, store.Inventario, id)
}

func (r *InventarioRepo) Watch(ctx context.Context) (<-chan []model.InventarioItem, error) {
	return r.docs.watch(ctx)
}
