package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iliyamo/restaurant-service/internal/model"
)

func TestWaiterCallAndRespond(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m, _ := f.mesas.Create(ctx, "1", 2)

	require.NoError(t, f.waiter.Call(ctx, m.ID))
	require.Equal(t, model.LlamandoPendiente, f.mesa(t, m.ID).Llamando)
	require.Equal(t, f.now.UnixMilli(), f.mesa(t, m.ID).LlamadaEn)

	require.NoError(t, f.waiter.Respond(ctx, m.ID, "atendido"))
	require.Equal(t, model.LlamandoAtendido, f.mesa(t, m.ID).Llamando)

	var ve *ValidationError
	require.ErrorAs(t, f.waiter.Respond(ctx, m.ID, "luego"), &ve)

	var nf *NotFoundError
	require.ErrorAs(t, f.waiter.Call(ctx, "nope"), &nf)
}

func TestClearEnseguidaIsConditional(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m, _ := f.mesas.Create(ctx, "1", 2)

	require.NoError(t, f.waiter.Respond(ctx, m.ID, "atendido"))
	ok, err := f.waiter.ClearEnseguida(ctx, m.ID, 0)
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, model.LlamandoAtendido, f.mesa(t, m.ID).Llamando)

	require.NoError(t, f.waiter.Respond(ctx, m.ID, "enseguida"))
	first := f.mesa(t, m.ID).LlamadaEn
	f.now = f.now.Add(time.Second)
	require.NoError(t, f.waiter.Respond(ctx, m.ID, "enseguida"))

	// the earlier reply was replaced
	ok, err = f.waiter.ClearEnseguida(ctx, m.ID, first)
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, model.LlamandoEnseguida, f.mesa(t, m.ID).Llamando)

	ok, err = f.waiter.ClearEnseguida(ctx, m.ID, f.now.UnixMilli())
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, model.LlamandoIdle, f.mesa(t, m.ID).Llamando)
}

func runClearer(t *testing.T, f *fixture, delay time.Duration) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	a := NewAutoClearer(f.waiter, delay)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = a.Run(ctx)
	}()
	return func() {
		cancel()
		<-done
	}
}

func TestAutoClearerResetsEnseguida(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m, _ := f.mesas.Create(ctx, "1", 2)
	stop := runClearer(t, f, 50*time.Millisecond)
	defer stop()

	require.NoError(t, f.waiter.Call(ctx, m.ID))
	require.NoError(t, f.waiter.Respond(ctx, m.ID, "enseguida"))
	require.Eventually(t, func() bool {
		return f.mesa(t, m.ID).Llamando == model.LlamandoIdle
	}, 2*time.Second, 10*time.Millisecond)
}

func TestAutoClearerCancelledByNewerState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m, _ := f.mesas.Create(ctx, "1", 2)
	stop := runClearer(t, f, 200*time.Millisecond)
	defer stop()

	require.NoError(t, f.waiter.Respond(ctx, m.ID, "enseguida"))
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, f.waiter.Respond(ctx, m.ID, "atendido"))

	time.Sleep(400 * time.Millisecond)
	require.Equal(t, model.LlamandoAtendido, f.mesa(t, m.ID).Llamando)
}

func TestAutoClearerRestartsOnRepeatedEnseguida(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m, _ := f.mesas.Create(ctx, "1", 2)
	stop := runClearer(t, f, 300*time.Millisecond)
	defer stop()

	require.NoError(t, f.waiter.Respond(ctx, m.ID, "enseguida"))
	time.Sleep(150 * time.Millisecond)

	// back to back, so the clearer may only see the final state
	f.now = f.now.Add(time.Second)
	require.NoError(t, f.waiter.Respond(ctx, m.ID, "atendido"))
	f.now = f.now.Add(time.Second)
	require.NoError(t, f.waiter.Respond(ctx, m.ID, "enseguida"))

	time.Sleep(200 * time.Millisecond)
	require.Equal(t, model.LlamandoEnseguida, f.mesa(t, m.ID).Llamando)

	require.Eventually(t, func() bool {
		return f.mesa(t, m.ID).Llamando == model.LlamandoIdle
	}, 2*time.Second, 10*time.Millisecond)
}
