package service

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/restaurant-service/internal/model"
)

// OrderTotal sums precio*cantidad over the items. A missing or non-numeric
// precio counts as 0 and a missing, zero or non-numeric cantidad as 1.
func OrderTotal(p model.Pedido) decimal.Decimal {
	total := decimal.Zero
	for _, it := range p.Items {
		precio, ok := it.Precio.Decimal()
		if !ok {
			precio = decimal.Zero
		}
		cantidad, ok := it.Cantidad.Decimal()
		if !ok || cantidad.IsZero() {
			cantidad = decimal.NewFromInt(1)
		}
		total = total.Add(precio.Mul(cantidad))
	}
	return total
}

// TableTotal is the running bill of a table: the sum of its pending orders.
func TableTotal(orders []model.Pedido, mesaID string) decimal.Decimal {
	total := decimal.Zero
	for _, p := range orders {
		if p.Mesa == mesaID && p.Estado == model.PedidoPendiente {
			total = total.Add(OrderTotal(p))
		}
	}
	return total
}

// Bucket is the sales figure of one reporting period.
type Bucket struct {
	Total    decimal.Decimal `json:"total"`
	Cantidad int             `json:"cantidad"`
}

func (b *Bucket) add(p model.Pedido) {
	b.Total = b.Total.Add(OrderTotal(p))
	b.Cantidad++
}

// Report holds paid sales for the current day, the last seven days and the
// current calendar month.
type Report struct {
	Diario  Bucket `json:"diario"`
	Semanal Bucket `json:"semanal"`
	Mensual Bucket `json:"mensual"`
}

const week = 7 * 24 * time.Hour

// Aggregate buckets paid orders relative to now. Calendar boundaries are
// evaluated in loc.
func Aggregate(orders []model.Pedido, now time.Time, loc *time.Location) Report {
	if loc == nil {
		loc = time.Local
	}
	now = now.In(loc)
	ny, nm, nd := now.Date()
	r := Report{}
	for _, p := range orders {
		if p.Estado != model.PedidoPagado {
			continue
		}
		ts := time.UnixMilli(p.Timestamp).In(loc)
		y, m, d := ts.Date()
		if y == ny && m == nm && d == nd {
			r.Diario.add(p)
		}
		if now.Sub(ts) < week {
			r.Semanal.add(p)
		}
		if y == ny && m == nm {
			r.Mensual.add(p)
		}
	}
	return r
}

// PedidoConTotal is an order with its computed total.
type PedidoConTotal struct {
	model.Pedido
	Total decimal.Decimal `json:"total"`
}

func withTotal(p model.Pedido) PedidoConTotal {
	return PedidoConTotal{Pedido: p, Total: OrderTotal(p)}
}

// DayGroup is one day of the cashier history.
type DayGroup struct {
	Fecha   string           `json:"fecha"`
	Total   decimal.Decimal  `json:"total"`
	Pedidos []PedidoConTotal `json:"pedidos"`
}

// CashierView splits the ledger into pending orders and a history of every
// other order grouped by day, newest day first.
type CashierView struct {
	Pendientes []PedidoConTotal `json:"pendientes"`
	Historial  []DayGroup       `json:"historial"`
}

const dayLayout = "2006-01-02"

// BuildCashierView groups orders by calendar day in loc. Orders without a
// timestamp are left out of the history.
func BuildCashierView(orders []model.Pedido, loc *time.Location) CashierView {
	if loc == nil {
		loc = time.Local
	}
	v := CashierView{Pendientes: []PedidoConTotal{}, Historial: []DayGroup{}}
	byDay := map[string]*DayGroup{}
	for _, p := range orders {
		if p.Estado == model.PedidoPendiente {
			v.Pendientes = append(v.Pendientes, withTotal(p))
			continue
		}
		if p.Timestamp == 0 {
			continue
		}
		day := time.UnixMilli(p.Timestamp).In(loc).Format(dayLayout)
		g, ok := byDay[day]
		if !ok {
			g = &DayGroup{Fecha: day, Total: decimal.Zero}
			byDay[day] = g
		}
		pt := withTotal(p)
		g.Pedidos = append(g.Pedidos, pt)
		g.Total = g.Total.Add(pt.Total)
	}
	for _, g := range byDay {
		sort.Slice(g.Pedidos, func(i, j int) bool { return g.Pedidos[i].Timestamp > g.Pedidos[j].Timestamp })
		v.Historial = append(v.Historial, *g)
	}
	sort.Slice(v.Historial, func(i, j int) bool { return v.Historial[i].Fecha > v.Historial[j].Fecha })
	sort.Slice(v.Pendientes, func(i, j int) bool { return v.Pendientes[i].Timestamp < v.Pendientes[j].Timestamp })
	return v
}
