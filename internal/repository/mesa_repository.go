package repository

import (
	"context"

	"github.com/iliyamo/restaurant-service/internal/model"
	"github.com/iliyamo/restaurant-service/internal/store"
)

// MesaRepo persists tables in the mesas collection.
type MesaRepo struct{ docs docs[model.Mesa] }

func NewMesaRepo(s store.Store) *MesaRepo {
	return &MesaRepo{docs: docs[model.Mesa]{s: s, coll: store.Mesas,
		setID: func(m *model.Mesa, id string) { m.ID = id }}}
}

func (r *MesaRepo) Create(ctx context.Context, m model.Mesa) (string, error) {
	return r.docs.push(ctx, m)
}

func (r *MesaRepo) Get(ctx context.Context, id string) (model.Mesa, error) {
	return r.docs.get(ctx, id)
}

func (r *MesaRepo) List(ctx context.Context) ([]model.Mesa, error) {
	return r.docs.list(ctx)
}

// FindByQR returns every table currently carrying code. Token uniqueness is
// not enforced, so callers decide how to treat several matches.
func (r *MesaRepo) FindByQR(ctx context.Context, code string) ([]model.Mesa, error) {
	return r.docs.findBy(ctx, "qr", code)
}

func (r *MesaRepo) Patch(ctx context.Context, id string, patch map[string]any) error {
	return r.docs.s.Update(ctx, store.Mesas, id, patch)
}

// PatchIf applies patch only while cond still holds.
func (r *MesaRepo) PatchIf(ctx context.Context, id string, cond, patch map[string]any) (bool, error) {
	return r.docs.s.UpdateIf(ctx, store.Mesas, id, cond, patch)
}

func (r *MesaRepo) Delete(ctx context.Context, id string) error {
	return r.docs.s.Delete(ctx, store.Mesas, id)
}

func (r *MesaRepo) Watch(ctx context.Context) (<-chan []model.Mesa, error) {
	return r.docs.watch(ctx)
}
