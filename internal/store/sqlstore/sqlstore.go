// Package sqlstore keeps store documents in a single MySQL table and
// propagates change notifications between processes over Redis pub/sub.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/labstack/gommon/log"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/restaurant-service/internal/store"
)

const schema = `CREATE TABLE IF NOT EXISTS documents (
	collection VARCHAR(32) NOT NULL,
	id         VARCHAR(64) NOT NULL,
	body       JSON        NOT NULL,
	updated_at TIMESTAMP(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3) ON UPDATE CURRENT_TIMESTAMP(3),
	PRIMARY KEY (collection, id)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`

const channelPrefix = "store:"

// Store implements store.Store on MySQL. rdb may be nil, in which case
// subscribers only see mutations made through this process.
type Store struct {
	DB  *sql.DB
	rdb *redis.Client
	hub *store.Hub
	log *log.Logger
}

func New(db *sql.DB, rdb *redis.Client) *Store {
	s := &Store{DB: db, rdb: rdb, log: log.New("sqlstore")}
	s.hub = store.NewHub(s.List)
	return s
}

// Migrate creates the documents table when missing.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.DB.ExecContext(ctx, schema)
	return err
}

// Listen forwards Redis change notifications to local subscribers until ctx
// is cancelled. It is a no-op without Redis.
func (s *Store) Listen(ctx context.Context) {
	if s.rdb == nil {
		return
	}
	ps := s.rdb.PSubscribe(ctx, channelPrefix+"*")
	defer ps.Close()
	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			s.hub.Notify(strings.TrimPrefix(msg.Channel, channelPrefix))
		}
	}
}

func (s *Store) changed(ctx context.Context, coll string) {
	if s.rdb != nil {
		err := s.rdb.Publish(ctx, channelPrefix+coll, "1").Err()
		if err == nil {
			return // Listen delivers our own message too
		}
		s.log.Warnf("publish %s: %v", coll, err)
	}
	s.hub.Notify(coll)
}

func (s *Store) List(ctx context.Context, coll string) ([]store.Record, error) {
	if err := store.CheckCollection(coll); err != nil {
		return nil, err
	}
	rows, err := s.DB.QueryContext(ctx,
		"SELECT id, body FROM documents WHERE collection=? ORDER BY id", coll)
	if err != nil {
		return nil, err
	}
	return scanRecords(rows)
}

func (s *Store) Get(ctx context.Context, coll, id string) (store.Record, error) {
	if err := store.CheckCollection(coll); err != nil {
		return store.Record{}, err
	}
	var body []byte
	err := s.DB.QueryRowContext(ctx,
		"SELECT body FROM documents WHERE collection=? AND id=?", coll, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Record{}, store.ErrNotFound
	}
	if err != nil {
		return store.Record{}, err
	}
	return store.Record{ID: id, Data: body}, nil
}

func (s *Store) FindBy(ctx context.Context, coll, field, value string) ([]store.Record, error) {
	if err := store.CheckCollection(coll); err != nil {
		return nil, err
	}
	if err := store.CheckField(field); err != nil {
		return nil, err
	}
	rows, err := s.DB.QueryContext(ctx,
		"SELECT id, body FROM documents WHERE collection=? AND JSON_UNQUOTE(JSON_EXTRACT(body, ?))=? ORDER BY id",
		coll, "$."+field, value)
	if err != nil {
		return nil, err
	}
	return scanRecords(rows)
}

func (s *Store) Push(ctx context.Context, coll string, doc json.RawMessage) (string, error) {
	if err := store.CheckCollection(coll); err != nil {
		return "", err
	}
	body, err := store.Merge(doc, nil)
	if err != nil {
		return "", err
	}
	id := store.NewID()
	if _, err := s.DB.ExecContext(ctx,
		"INSERT INTO documents (collection, id, body) VALUES (?,?,?)", coll, id, string(body)); err != nil {
		return "", err
	}
	s.changed(ctx, coll)
	return id, nil
}

func (s *Store) Update(ctx context.Context, coll, id string, patch map[string]any) error {
	ok, err := s.UpdateIf(ctx, coll, id, nil, patch)
	if err != nil {
		return err
	}
	if !ok {
		return store.ErrNotFound
	}
	return nil
}

// UpdateIf locks the row, evaluates cond against the locked body and writes
// the merged document inside the same transaction.
func (s *Store) UpdateIf(ctx context.Context, coll, id string, cond, patch map[string]any) (bool, error) {
	if err := store.CheckCollection(coll); err != nil {
		return false, err
	}
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var body []byte
	err = tx.QueryRowContext(ctx,
		"SELECT body FROM documents WHERE collection=? AND id=? FOR UPDATE", coll, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return false, store.ErrNotFound
	}
	if err != nil {
		return false, err
	}
	ok, err := store.Matches(body, cond)
	if err != nil || !ok {
		return false, err
	}
	next, err := store.Merge(body, patch)
	if err != nil {
		return false, err
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE documents SET body=? WHERE collection=? AND id=?", string(next), coll, id); err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	committed = true
	s.changed(ctx, coll)
	return true, nil
}

func (s *Store) Delete(ctx context.Context, coll, id string) error {
	if err := store.CheckCollection(coll); err != nil {
		return err
	}
	res, err := s.DB.ExecContext(ctx, "DELETE FROM documents WHERE collection=? AND id=?", coll, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	s.changed(ctx, coll)
	return nil
}

func (s *Store) Subscribe(ctx context.Context, coll string) (<-chan []store.Record, error) {
	return s.hub.Subscribe(ctx, coll)
}

func scanRecords(rows *sql.Rows) ([]store.Record, error) {
	defer rows.Close()
	var out []store.Record
	for rows.Next() {
		var (
			id   string
			body []byte
		)
		if err := rows.Scan(&id, &body); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, store.Record{ID: id, Data: body})
	}
	return out, rows.Err()
}
