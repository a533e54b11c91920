package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/labstack/gommon/log"

	"github.com/iliyamo/restaurant-service/internal/model"
	"github.com/iliyamo/restaurant-service/internal/repository"
	"github.com/iliyamo/restaurant-service/internal/store"
	"github.com/iliyamo/restaurant-service/internal/utils"
)

// DefaultSweepInterval is the period of the QR renewal sweep.
const DefaultSweepInterval = time.Minute

// QRService manages table codes: issuing, validating and extending them.
type QRService struct {
	Mesas *repository.MesaRepo
	TTL   time.Duration
	Now   func() time.Time
}

func NewQRService(mesas *repository.MesaRepo, ttl time.Duration) *QRService {
	if mesas == nil {
		panic("nil repository passed to NewQRService")
	}
	if ttl <= 0 {
		ttl = DefaultQRTTL
	}
	return &QRService{Mesas: mesas, TTL: ttl, Now: time.Now}
}

// IssueOrRenew gives a free table a new code valid for TTL. It reports false
// without writing when the table is occupied or changed since m was read.
func (s *QRService) IssueOrRenew(ctx context.Context, m model.Mesa) (model.Mesa, bool, error) {
	if m.Estado != model.MesaLibre {
		return m, false, nil
	}
	code := utils.NewQRToken()
	exp := s.Now().Add(s.TTL).UnixMilli()
	ok, err := s.Mesas.PatchIf(ctx, m.ID,
		map[string]any{"estado": string(model.MesaLibre), "qr": m.QR},
		map[string]any{"qr": code, "expiracion": exp})
	if err != nil {
		return m, false, wrap("renew qr", "mesa", m.ID, err)
	}
	if !ok {
		return m, false, nil
	}
	m.QR, m.Expiracion = code, exp
	return m, true, nil
}

// Sweep renews every free table whose code has expired and returns how many
// were renewed. Occupied tables are left alone.
func (s *QRService) Sweep(ctx context.Context, mesas []model.Mesa) (int, error) {
	now := s.Now().UnixMilli()
	n := 0
	for _, m := range mesas {
		if m.Estado != model.MesaLibre || m.Expiracion >= now {
			continue
		}
		_, ok, err := s.IssueOrRenew(ctx, m)
		if err != nil {
			return n, err
		}
		if ok {
			n++
		}
	}
	return n, nil
}

// Validate starts a dine-in session with code and returns the table id.
// The free-to-occupied move is a compare-and-set on estado and qr, so two
// concurrent scans of the same code cannot both succeed.
func (s *QRService) Validate(ctx context.Context, code string) (string, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return "", ErrInvalidCode
	}
	mesas, err := s.Mesas.FindByQR(ctx, code)
	if err != nil {
		return "", wrap("find qr", "mesa", "", err)
	}
	if len(mesas) == 0 {
		return "", ErrInvalidCode
	}
	m := pickCandidate(mesas, s.Now().UnixMilli())
	if err := s.check(m); err != nil {
		return "", err
	}
	ok, err := s.Mesas.PatchIf(ctx, m.ID,
		map[string]any{"estado": string(model.MesaLibre), "qr": code},
		map[string]any{"estado": string(model.MesaOcupada), "ultimoUso": s.Now().UnixMilli()})
	if err != nil {
		return "", wrap("occupy mesa", "mesa", m.ID, err)
	}
	if ok {
		return m.ID, nil
	}
	// lost the race: report what the table looks like now
	cur, err := s.Mesas.Get(ctx, m.ID)
	if errors.Is(err, store.ErrNotFound) {
		return "", ErrInvalidCode
	}
	if err != nil {
		return "", wrap("get mesa", "mesa", m.ID, err)
	}
	if cur.QR != code {
		return "", ErrInvalidCode
	}
	if err := s.check(cur); err != nil {
		return "", err
	}
	return "", ErrAlreadyOccupied
}

// check applies the validation rules in order: occupied, then expired.
func (s *QRService) check(m model.Mesa) error {
	if m.Estado != model.MesaLibre {
		return ErrAlreadyOccupied
	}
	if m.Expiracion < s.Now().UnixMilli() {
		return ErrExpiredCode
	}
	return nil
}

// pickCandidate prefers a free unexpired table when a code is shared.
func pickCandidate(ms []model.Mesa, now int64) model.Mesa {
	for _, m := range ms {
		if m.Estado == model.MesaLibre && m.Expiracion >= now {
			return m
		}
	}
	return ms[0]
}

// Extend moves the session end of a table to now+minutes, whatever its
// state, and returns the new expiry in unix ms.
func (s *QRService) Extend(ctx context.Context, id string, minutes int) (int64, error) {
	if minutes <= 0 {
		return 0, invalid("minutos", "Los minutos deben ser un entero positivo.")
	}
	exp := s.Now().Add(time.Duration(minutes) * time.Minute).UnixMilli()
	if err := s.Mesas.Patch(ctx, id, map[string]any{"expiracion": exp}); err != nil {
		return 0, wrap("extend mesa", "mesa", id, err)
	}
	return exp, nil
}

// Remaining returns whole minutes left before m expires, rounded up.
func (s *QRService) Remaining(m model.Mesa) int {
	left := m.Expiracion - s.Now().UnixMilli()
	if left <= 0 {
		return 0
	}
	return int((left + 59999) / 60000)
}

// Sweeper runs the renewal sweep against the live table list.
type Sweeper struct {
	QR       *QRService
	Interval time.Duration
	log      *log.Logger
}

func NewSweeper(qr *QRService, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Sweeper{QR: qr, Interval: interval, log: log.New("qr-sweeper")}
}

// Run sweeps once the first snapshot arrives and then every Interval over
// the latest snapshot. It returns nil when ctx is cancelled and
// ErrStreamClosed if the table stream ends first.
func (w *Sweeper) Run(ctx context.Context) error {
	ch, err := w.QR.Mesas.Watch(ctx)
	if err != nil {
		return wrap("observe mesas", "mesa", "", err)
	}
	t := time.NewTicker(w.Interval)
	defer t.Stop()

	var (
		latest []model.Mesa
		primed bool
	)
	sweep := func() {
		n, err := w.QR.Sweep(ctx, latest)
		if err != nil && ctx.Err() == nil {
			w.log.Errorf("sweep: %v", err)
		}
		if n > 0 {
			w.log.Infof("renewed %d table codes", n)
		}
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case ms, ok := <-ch:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return ErrStreamClosed
			}
			latest = ms
			if !primed {
				primed = true
				sweep()
			}
		case <-t.C:
			sweep()
		}
	}
}
