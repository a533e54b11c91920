// Package mongostore maps store collections onto MongoDB collections. The
// record id is the document _id and subscriptions ride on change streams,
// which require a replica set deployment.
package mongostore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/labstack/gommon/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/iliyamo/restaurant-service/internal/store"
)

type Store struct {
	db  *mongo.Database
	log *log.Logger
}

func New(db *mongo.Database) *Store {
	return &Store{db: db, log: log.New("mongostore")}
}

func (s *Store) col(coll string) (*mongo.Collection, error) {
	if err := store.CheckCollection(coll); err != nil {
		return nil, err
	}
	return s.db.Collection(coll), nil
}

// EnsureIndexes creates the lookup indexes used by FindBy.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	idx := map[string]string{store.Mesas: "qr", store.Usuarios: "email", store.Pedidos: "mesa"}
	for coll, field := range idx {
		_, err := s.db.Collection(coll).Indexes().CreateOne(ctx, mongo.IndexModel{Keys: bson.D{{Key: field, Value: 1}}})
		if err != nil {
			return fmt.Errorf("index %s.%s: %w", coll, field, err)
		}
	}
	return nil
}

func (s *Store) List(ctx context.Context, coll string) ([]store.Record, error) {
	c, err := s.col(coll)
	if err != nil {
		return nil, err
	}
	return s.find(ctx, c, bson.M{})
}

func (s *Store) Get(ctx context.Context, coll, id string) (store.Record, error) {
	c, err := s.col(coll)
	if err != nil {
		return store.Record{}, err
	}
	var doc bson.M
	err = c.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return store.Record{}, store.ErrNotFound
	}
	if err != nil {
		return store.Record{}, err
	}
	return toRecord(doc)
}

func (s *Store) FindBy(ctx context.Context, coll, field, value string) ([]store.Record, error) {
	c, err := s.col(coll)
	if err != nil {
		return nil, err
	}
	if err := store.CheckField(field); err != nil {
		return nil, err
	}
	return s.find(ctx, c, bson.M{field: value})
}

func (s *Store) Push(ctx context.Context, coll string, doc json.RawMessage) (string, error) {
	c, err := s.col(coll)
	if err != nil {
		return "", err
	}
	var m bson.M
	if err := bson.UnmarshalExtJSON(doc, false, &m); err != nil {
		return "", fmt.Errorf("decode document: %w", err)
	}
	if m == nil {
		m = bson.M{}
	}
	id := store.NewID()
	m["_id"] = id
	if _, err := c.InsertOne(ctx, m); err != nil {
		return "", err
	}
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

// updateDocs builds the UpdateOne filter and update for a conditional
// merge patch. A nil in cond requires the field to be absent and a nil in
// patch removes it.
func updateDocs(id string, cond, patch map[string]any) (filter, update bson.M) {
	filter = bson.M{"_id": id}
	for k, v := range cond {
		if v == nil {
			filter[k] = bson.M{"$exists": false}
			continue
		}
		filter[k] = v
	}
	set, unset := bson.M{}, bson.M{}
	for k, v := range patch {
		if v == nil {
			unset[k] = ""
		} else {
			set[k] = v
		}
	}
	update = bson.M{}
	if len(set) > 0 {
		update["$set"] = set
	}
	if len(unset) > 0 {
		update["$unset"] = unset
	}
	return filter, update
}

// UpdateIf folds cond into the filter so the server evaluates and writes in
// one operation. A missing id is told apart from a failed condition with a
// follow-up lookup.
func (s *Store) UpdateIf(ctx context.Context, coll, id string, cond, patch map[string]any) (bool, error) {
	c, err := s.col(coll)
	if err != nil {
		return false, err
	}
	filter, update := updateDocs(id, cond, patch)
	if len(update) > 0 {
		res, err := c.UpdateOne(ctx, filter, update)
		if err != nil {
			return false, err
		}
		if res.MatchedCount == 1 {
			return true, nil
		}
	} else if n, err := c.CountDocuments(ctx, filter); err != nil || n == 1 {
		return n == 1, err
	}
	n, err := c.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, store.ErrNotFound
	}
	return false, nil
}

func (s *Store) Delete(ctx context.Context, coll, id string) error {
	c, err := s.col(coll)
	if err != nil {
		return err
	}
	res, err := c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

// Subscribe opens a change stream on the collection and reloads the full
// snapshot for each event. The first snapshot is read before Subscribe
// returns.
func (s *Store) Subscribe(ctx context.Context, coll string) (<-chan []store.Record, error) {
	c, err := s.col(coll)
	if err != nil {
		return nil, err
	}
	cs, err := c.Watch(ctx, mongo.Pipeline{})
	if err != nil {
		return nil, err
	}
	first, err := s.List(ctx, coll)
	if err != nil {
		_ = cs.Close(context.Background())
		return nil, fmt.Errorf("load %s: %w", coll, err)
	}
	out := make(chan []store.Record)
	go func() {
		defer close(out)
		defer cs.Close(context.Background())
		send := func(recs []store.Record) bool {
			select {
			case out <- recs:
				return true
			case <-ctx.Done():
				return false
			}
		}
		if !send(first) {
			return
		}
		for cs.Next(ctx) {
			recs, err := s.List(ctx, coll)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				s.log.Errorf("reload %s: %v", coll, err)
				if store.Abort(ctx, fmt.Errorf("reload %s: %w", coll, err)) {
					return
				}
				continue
			}
			if !send(recs) {
				return
			}
		}
		if err := cs.Err(); err != nil && ctx.Err() == nil {
			s.log.Errorf("change stream %s: %v", coll, err)
			store.Abort(ctx, fmt.Errorf("change stream %s: %w", coll, err))
		}
	}()
	return out, nil
}

func (s *Store) find(ctx context.Context, c *mongo.Collection, filter bson.M) ([]store.Record, error) {
	cur, err := c.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []store.Record
	for cur.Next(ctx) {
		var doc bson.M
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		rec, err := toRecord(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, cur.Err()
}

func toRecord(doc bson.M) (store.Record, error) {
	id, _ := doc["_id"].(string)
	delete(doc, "_id")
	body, err := bson.MarshalExtJSON(doc, false, false)
	if err != nil {
		return store.Record{}, fmt.Errorf("encode document %s: %w", id, err)
	}
	return store.Record{ID: id, Data: body}, nil
}
