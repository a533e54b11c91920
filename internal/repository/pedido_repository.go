package repository

import (
	"context"

	"github.com/iliyamo/restaurant-service/internal/model"
	"github.com/iliyamo/restaurant-service/internal/store"
)

// PedidoRepo persists orders. Orders are never deleted.
type PedidoRepo struct{ docs docs[model.Pedido] }

func NewPedidoRepo(s store.Store) *PedidoRepo {
	return &PedidoRepo{docs: docs[model.Pedido]{s: s, coll: store.Pedidos,
		setID: func(p *model.Pedido, id string) { p.ID = id }}}
}

func (r *PedidoRepo) Create(ctx context.Context, p model.Pedido) (string, error) {
	return r.docs.push(ctx, p)
}

func (r *PedidoRepo) Get(ctx context.Context, id string) (model.Pedido, error) {
	return r.docs.get(ctx, id)
}

func (r *PedidoRepo) List(ctx context.Context) ([]model.Pedido, error) {
	return r.docs.list(ctx)
}

func (r *PedidoRepo) ByMesa(ctx context.Context, mesaID string) ([]model.Pedido, error) {
	return r.docs.findBy(ctx, "mesa", mesaID)
}

func (r *PedidoRepo) PatchIf(ctx context.Context, id string, cond, patch map[string]any) (bool, error) {
	return r.docs.s.UpdateIf(ctx, store.Pedidos, id, cond, patch)
}

func (r *PedidoRepo) Watch(ctx context.Context) (<-chan []model.Pedido, error) {
	return r.docs.watch(ctx)
}
