package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/labstack/gommon/log"

	"github.com/iliyamo/restaurant-service/internal/store"
)

var docsLog = log.New("repository")

// docs binds a store collection to a model type. setID copies the record
// id into the decoded value since ids are not part of the stored body.
type docs[T any] struct {
	s     store.Store
	coll  string
	setID func(*T, string)
}

func (d docs[T]) decode(r store.Record) (T, error) {
	var v T
	if err := json.Unmarshal(r.Data, &v); err != nil {
		return v, fmt.Errorf("decode %s/%s: %w", d.coll, r.ID, err)
	}
	d.setID(&v, r.ID)
	return v, nil
}

// decodeAll decodes every record it can. A record that does not fit the
// model is logged and left out so one bad row cannot hide the rest.
func (d docs[T]) decodeAll(recs []store.Record) []T {
	out := make([]T, 0, len(recs))
	for _, r := range recs {
		v, err := d.decode(r)
		if err != nil {
			docsLog.Errorf("skipping record: %v", err)
			continue
		}
		out = append(out, v)
	}
	return out
}

func (d docs[T]) list(ctx context.Context) ([]T, error) {
	recs, err := d.s.List(ctx, d.coll)
	if err != nil {
		return nil, err
	}
	return d.decodeAll(recs), nil
}

func (d docs[T]) get(ctx context.Context, id string) (T, error) {
	rec, err := d.s.Get(ctx, d.coll, id)
	if err != nil {
		var zero T
		return zero, err
	}
	return d.decode(rec)
}

func (d docs[T]) findBy(ctx context.Context, field, value string) ([]T, error) {
	recs, err := d.s.FindBy(ctx, d.coll, field, value)
	if err != nil {
		return nil, err
	}
	return d.decodeAll(recs), nil
}

// push stores v without its id and returns the generated one.
func (d docs[T]) push(ctx context.Context, v T) (string, error) {
	d.setID(&v, "")
	body, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return d.s.Push(ctx, d.coll, body)
}

// watch converts raw snapshots into typed ones. The channel closes with the
// underlying subscription.
func (d docs[T]) watch(ctx context.Context) (<-chan []T, error) {
	raw, err := d.s.Subscribe(ctx, d.coll)
	if err != nil {
		return nil, err
	}
	out := make(chan []T)
	go func() {
		defer close(out)
		for recs := range raw {
			select {
			case out <- d.decodeAll(recs):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
