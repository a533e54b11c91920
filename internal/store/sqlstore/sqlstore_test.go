package sqlstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/restaurant-service/internal/store"
)

func TestListenForwardsRedisNotifications(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	loads := make(chan string, 8)
	s := New(nil, rdb)
	s.hub = store.NewHub(func(_ context.Context, coll string) ([]store.Record, error) {
		loads <- coll
		return []store.Record{{ID: "1"}}, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Listen(ctx)

	ch, err := s.Subscribe(ctx, store.Mesas)
	require.NoError(t, err)
	<-ch // initial snapshot
	require.Equal(t, store.Mesas, <-loads)

	// wait for the pattern subscription to be registered
	require.Eventually(t, func() bool {
		return mr.PubSubNumPat() > 0
	}, 2*time.Second, 10*time.Millisecond)

	s.changed(ctx, store.Mesas)
	select {
	case recs := <-ch:
		require.Len(t, recs, 1)
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot after redis notification")
	}
}

func TestChangedWithoutRedisNotifiesLocally(t *testing.T) {
	s := New(nil, nil)
	s.hub = store.NewHub(func(context.Context, string) ([]store.Record, error) { return nil, nil })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, err := s.Subscribe(ctx, store.Pedidos)
	require.NoError(t, err)
	<-ch

	s.changed(ctx, store.Pedidos)
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("no local notification")
	}
}
