package model

import (
	"encoding/json"
	"fmt"
)

// EstadoMesa is the occupancy state of a table.
type EstadoMesa string

const (
	MesaLibre   EstadoMesa = "libre"
	MesaOcupada EstadoMesa = "ocupada"
)

func (e EstadoMesa) Valid() bool { return e == MesaLibre || e == MesaOcupada }

// Llamando is the waiter-call state embedded in a table. It is stored as
// false when idle, true while a call is pending and as the staff response
// text once acknowledged.
type Llamando string

const (
	LlamandoIdle      Llamando = ""
	LlamandoPendiente Llamando = "llamando"
	LlamandoEnseguida Llamando = "enseguida"
	LlamandoAtendido  Llamando = "atendido"
)

// Value returns the stored representation used in patches and conditions.
func (l Llamando) Value() any {
	switch l {
	case LlamandoIdle:
		return false
	case LlamandoPendiente:
		return true
	default:
		return string(l)
	}
}

func (l Llamando) MarshalJSON() ([]byte, error) { return json.Marshal(l.Value()) }

func (l *Llamando) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case bool:
		if t {
			*l = LlamandoPendiente
		} else {
			*l = LlamandoIdle
		}
	case string:
		*l = Llamando(t)
	default:
		*l = LlamandoIdle
	}
	return nil
}

// Mesa is a dining table with its QR session and waiter-call state.
// Expiracion, UltimoUso and LlamadaEn are unix milliseconds. LlamadaEn is
// when Llamando last changed.
type Mesa struct {
	ID         string     `json:"id,omitempty"`
	Numero     string     `json:"numero"`
	Capacidad  int        `json:"capacidad"`
	Estado     EstadoMesa `json:"estado"`
	QR         string     `json:"qr"`
	Expiracion int64      `json:"expiracion"`
	Llamando   Llamando   `json:"llamando"`
	UltimoUso  int64      `json:"ultimoUso,omitempty"`
	LlamadaEn  int64      `json:"llamadaEn,omitempty"`
}

// UnmarshalJSON also accepts capacidad as a numeric string, the form older
// clients stored it in.
func (m *Mesa) UnmarshalJSON(b []byte) error {
	type plain Mesa
	aux := struct {
		*plain
		Capacidad Scalar `json:"capacidad"`
	}{plain: (*plain)(m)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	if aux.Capacidad == "" {
		m.Capacidad = 0
		return nil
	}
	d, ok := aux.Capacidad.Decimal()
	if !ok || !d.IsInteger() {
		return fmt.Errorf("mesa capacidad %q is not a whole number", aux.Capacidad)
	}
	m.Capacidad = int(d.IntPart())
	return nil
}
