package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/restaurant-service/internal/model"
	"github.com/iliyamo/restaurant-service/internal/repository"
	"github.com/iliyamo/restaurant-service/internal/store"
)

type fixture struct {
	now     time.Time
	mesas   *MesaService
	qr      *QRService
	waiter  *WaiterService
	pedidos *PedidoService
	pub     *fakePublisher
	repo    *repository.MesaRepo
	st      *store.Memory
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := store.NewMemory()
	f := &fixture{now: time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC), pub: &fakePublisher{}, st: st}
	clock := func() time.Time { return f.now }
	f.repo = repository.NewMesaRepo(st)
	f.mesas = NewMesaService(f.repo, time.Hour)
	f.mesas.Now = clock
	f.qr = NewQRService(f.repo, time.Hour)
	f.qr.Now = clock
	f.waiter = NewWaiterService(f.repo)
	f.waiter.Now = clock
	f.pedidos = NewPedidoService(repository.NewPedidoRepo(st), f.repo, f.pub, time.UTC)
	f.pedidos.Now = clock
	return f
}

func (f *fixture) mesa(t *testing.T, id string) model.Mesa {
	t.Helper()
	m, err := f.mesas.Get(context.Background(), id)
	require.NoError(t, err)
	return m
}

func TestCreateTable(t *testing.T) {
	f := newFixture(t)
	m, err := f.mesas.Create(context.Background(), "5", 4)
	require.NoError(t, err)

	got := f.mesa(t, m.ID)
	require.Equal(t, "5", got.Numero)
	require.Equal(t, 4, got.Capacidad)
	require.Equal(t, model.MesaLibre, got.Estado)
	require.Len(t, got.QR, 8)
	require.Equal(t, f.now.Add(time.Hour).UnixMilli(), got.Expiracion)
	require.Equal(t, model.LlamandoIdle, got.Llamando)
}

func TestCreateTableValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, tc := range []struct {
		numero    string
		capacidad int
		field     string
	}{
		{"", 4, "numero"},
		{"0", 4, "numero"},
		{"-2", 4, "numero"},
		{"cinco", 4, "numero"},
		{"5", 0, "capacidad"},
		{"5", -1, "capacidad"},
	} {
		_, err := f.mesas.Create(ctx, tc.numero, tc.capacidad)
		var ve *ValidationError
		require.ErrorAs(t, err, &ve, "%+v", tc)
		require.Equal(t, tc.field, ve.Field)
	}
}

func TestSetOccupancy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m, _ := f.mesas.Create(ctx, "1", 2)

	got, err := f.mesas.SetOccupancy(ctx, m.ID, model.MesaOcupada)
	require.NoError(t, err)
	require.Equal(t, model.MesaOcupada, got.Estado)

	got, err = f.mesas.SetOccupancy(ctx, m.ID, model.MesaOcupada)
	require.NoError(t, err)
	require.Equal(t, model.MesaOcupada, got.Estado)

	got, err = f.mesas.Toggle(ctx, m.ID)
	require.NoError(t, err)
	require.Equal(t, model.MesaLibre, got.Estado)

	_, err = f.mesas.SetOccupancy(ctx, "nope", model.MesaLibre)
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)

	_, err = f.mesas.SetOccupancy(ctx, m.ID, "reservada")
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
}

func TestDeleteTable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m, _ := f.mesas.Create(ctx, "1", 2)
	require.NoError(t, f.mesas.Delete(ctx, m.ID))
	var nf *NotFoundError
	require.ErrorAs(t, f.mesas.Delete(ctx, m.ID), &nf)
}

func TestObserveTables(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := f.mesas.Observe(ctx)
	require.NoError(t, err)
	require.Empty(t, <-ch)

	m, _ := f.mesas.Create(ctx, "3", 6)
	snap := <-ch
	require.Len(t, snap, 1)
	require.Equal(t, m.ID, snap[0].ID)
}

func TestObserveOneClosesOnDelete(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m, _ := f.mesas.Create(ctx, "3", 6)

	ch, err := f.mesas.ObserveOne(ctx, m.ID)
	require.NoError(t, err)
	require.Equal(t, m.ID, (<-ch).ID)

	require.NoError(t, f.mesas.Delete(ctx, m.ID))
	select {
	case _, ok := <-ch:
		require.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("stream not closed")
	}
}

func TestValidateScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m, _ := f.mesas.Create(ctx, "5", 4)

	id, err := f.qr.Validate(ctx, m.QR)
	require.NoError(t, err)
	require.Equal(t, m.ID, id)

	got := f.mesa(t, m.ID)
	require.Equal(t, model.MesaOcupada, got.Estado)
	require.Equal(t, f.now.UnixMilli(), got.UltimoUso)

	_, err = f.qr.Validate(ctx, m.QR)
	require.ErrorIs(t, err, ErrAlreadyOccupied)
}

func TestValidateErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m, _ := f.mesas.Create(ctx, "5", 4)

	_, err := f.qr.Validate(ctx, "zzzzzzzz")
	require.ErrorIs(t, err, ErrInvalidCode)
	_, err = f.qr.Validate(ctx, "  ")
	require.ErrorIs(t, err, ErrInvalidCode)

	f.now = f.now.Add(2 * time.Hour)
	_, err = f.qr.Validate(ctx, m.QR)
	require.ErrorIs(t, err, ErrExpiredCode)
	require.Equal(t, model.MesaLibre, f.mesa(t, m.ID).Estado)
}

func TestValidateOccupiedWinsOverExpired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m, _ := f.mesas.Create(ctx, "5", 4)
	_, _ = f.mesas.SetOccupancy(ctx, m.ID, model.MesaOcupada)

	f.now = f.now.Add(2 * time.Hour)
	_, err := f.qr.Validate(ctx, m.QR)
	require.ErrorIs(t, err, ErrAlreadyOccupied)
}

func TestValidateConcurrentScansOneWinner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m, _ := f.mesas.Create(ctx, "5", 4)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		wins     int
		occupied int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.qr.Validate(ctx, m.QR)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, ErrAlreadyOccupied):
				occupied++
			default:
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 1, wins)
	require.Equal(t, 15, occupied)
}

func TestSweepRenewsOnlyExpiredFreeTables(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	free, _ := f.mesas.Create(ctx, "1", 2)
	busy, _ := f.mesas.Create(ctx, "2", 2)
	fresh, _ := f.mesas.Create(ctx, "3", 2)
	_, _ = f.mesas.SetOccupancy(ctx, busy.ID, model.MesaOcupada)

	f.now = f.now.Add(61 * time.Minute)
	_ = f.mesas.Mesas.Patch(ctx, fresh.ID, map[string]any{"expiracion": f.now.Add(time.Minute).UnixMilli()})

	all, _ := f.mesas.List(ctx)
	n, err := f.qr.Sweep(ctx, all)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	gotFree := f.mesa(t, free.ID)
	require.NotEqual(t, free.QR, gotFree.QR)
	require.Equal(t, f.now.Add(time.Hour).UnixMilli(), gotFree.Expiracion)

	gotBusy := f.mesa(t, busy.ID)
	require.Equal(t, busy.QR, gotBusy.QR)
	require.Equal(t, busy.Expiracion, gotBusy.Expiracion)

	require.Equal(t, fresh.QR, f.mesa(t, fresh.ID).QR)
}

func TestIssueOrRenewLosesToConcurrentOccupation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m, _ := f.mesas.Create(ctx, "1", 2)
	_, err := f.qr.Validate(ctx, m.QR)
	require.NoError(t, err)

	// m is the stale free snapshot
	_, ok, err := f.qr.IssueOrRenew(ctx, m)
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, m.QR, f.mesa(t, m.ID).QR)
}

func TestSweeperRun(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	m, _ := f.mesas.Create(ctx, "1", 2)
	f.now = f.now.Add(2 * time.Hour)

	w := NewSweeper(f.qr, 10*time.Millisecond)
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool { return f.mesa(t, m.ID).QR != m.QR }, 2*time.Second, 10*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestExtendAndRemaining(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m, _ := f.mesas.Create(ctx, "1", 2)
	_, _ = f.qr.Validate(ctx, m.QR)

	exp, err := f.qr.Extend(ctx, m.ID, 30)
	require.NoError(t, err)
	require.Equal(t, f.now.Add(30*time.Minute).UnixMilli(), exp)
	require.Equal(t, 30, f.qr.Remaining(f.mesa(t, m.ID)))

	f.now = f.now.Add(29*time.Minute + 30*time.Second)
	require.Equal(t, 1, f.qr.Remaining(f.mesa(t, m.ID)))
	f.now = f.now.Add(time.Hour)
	require.Equal(t, 0, f.qr.Remaining(f.mesa(t, m.ID)))

	_, err = f.qr.Extend(ctx, m.ID, 0)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	_, err = f.qr.Extend(ctx, "nope", 10)
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
}

// racyStore loses every conditional write and then fails the re-read.
type racyStore struct {
	store.Store
	getErr error
}

func (s *racyStore) UpdateIf(context.Context, string, string, map[string]any, map[string]any) (bool, error) {
	return false, nil
}

func (s *racyStore) Get(ctx context.Context, coll, id string) (store.Record, error) {
	if s.getErr != nil {
		return store.Record{}, s.getErr
	}
	return s.Store.Get(ctx, coll, id)
}

func TestValidateReportsStoreFailureAfterLostRace(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	seed := NewMesaService(repository.NewMesaRepo(mem), time.Hour)
	m, err := seed.Create(ctx, "5", 4)
	require.NoError(t, err)

	rs := &racyStore{Store: mem, getErr: errors.New("connection reset")}
	qr := NewQRService(repository.NewMesaRepo(rs), time.Hour)

	_, err = qr.Validate(ctx, m.QR)
	var se *StoreError
	require.ErrorAs(t, err, &se)
	require.NotErrorIs(t, err, ErrInvalidCode)

	rs.getErr = store.ErrNotFound
	_, err = qr.Validate(ctx, m.QR)
	require.ErrorIs(t, err, ErrInvalidCode)
}

func TestSweeperRunsPastUndecodableRows(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m, err := f.mesas.Create(ctx, "1", 2)
	require.NoError(t, err)
	_, err = f.st.Push(ctx, store.Mesas, json.RawMessage(`{"numero":"9","capacidad":"4","estado":"ocupada","qr":"legacy01","expiracion":1,"llamando":false}`))
	require.NoError(t, err)
	_, err = f.st.Push(ctx, store.Mesas, json.RawMessage(`{"numero":"8","expiracion":"mañana"}`))
	require.NoError(t, err)
	f.now = f.now.Add(2 * time.Hour)

	go func() { _ = NewSweeper(f.qr, 10*time.Millisecond).Run(ctx) }()
	require.Eventually(t, func() bool { return f.mesa(t, m.ID).QR != m.QR }, 2*time.Second, 10*time.Millisecond)

	all, err := f.mesas.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
}
