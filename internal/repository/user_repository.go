package repository

import (
	"context"
	"strings"

	"github.com/iliyamo/restaurant-service/internal/model"
	"github.com/iliyamo/restaurant-service/internal/store"
	"github.com/iliyamo/restaurant-service/internal/utils"
)

type UsuarioRepo struct{ docs docs[model.Usuario] }

func NewUsuarioRepo(s store.Store) *UsuarioRepo {
	return &UsuarioRepo{docs: docs[model.Usuario]{s: s, coll: store.Usuarios,
		setID: func(u *model.Usuario, id string) { u.ID = id }}}
}

// NormalizeEmail is the canonical form emails are stored and queried in.
func NormalizeEmail(email string) string { return strings.ToLower(strings.TrimSpace(email)) }

// Create hashes password and inserts the user. The email check runs before
// the insert and is not atomic with it.
func (r *UsuarioRepo) Create(ctx context.Context, u model.Usuario, password string, cost int) (string, error) {
	u.Email = NormalizeEmail(u.Email)
	existing, err := r.docs.findBy(ctx, "email", u.Email)
	if err != nil {
		return "", err
	}
	if len(existing) > 0 {
		return "", ErrEmailExists
	}
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return "", err
	}
	u.Password = hash
	return r.docs.push(ctx, u)
}

// GetByEmail returns the first user with the normalized email, or
// store.ErrNotFound.
func (r *UsuarioRepo) GetByEmail(ctx context.Context, email string) (model.Usuario, error) {
	us, err := r.docs.findBy(ctx, "email", NormalizeEmail(email))
	if err != nil {
		return model.Usuario{}, err
	}
	if len(us) == 0 {
		return model.Usuario{}, store.ErrNotFound
	}
	return us[0], nil
}

func (r *UsuarioRepo) GetByID(ctx context.Context, id string) (model.Usuario, error) {
	return r.docs.get(ctx, id)
}

func (r *UsuarioRepo) List(ctx context.Context) ([]model.Usuario, error) {
	return r.docs.list(ctx)
}

// Update merges patch into the user. A "password" key is hashed first and
// an "email" key is normalized and checked for collisions.
func (r *UsuarioRepo) Update(ctx context.Context, id string, patch map[string]any, cost int) error {
	if raw, ok := patch["email"].(string); ok {
		email := NormalizeEmail(raw)
		others, err := r.docs.findBy(ctx, "email", email)
		if err != nil {
			return err
		}
		for _, o := range others {
			if o.ID != id {
				return ErrEmailExists
			}
		}
		patch["email"] = email
	}
	if plain, ok := patch["password"].(string); ok {
		hash, err := utils.HashPassword(plain, cost)
		if err != nil {
			return err
		}
		patch["password"] = hash
	}
	return r.docs.s.Update(ctx, store.Usuarios, id, patch)
}

func (r *UsuarioRepo) SetAccesos(ctx context.Context, id string, accesos map[string]bool) error {
	return r.docs.s.Update(ctx, store.Usuarios, id, map[string]any{"accesos": accesos})
}

func (r *UsuarioRepo) Delete(ctx context.Context, id string) error {
	return r.docs.s.Delete(ctx, store.Usuarios, id)
}
