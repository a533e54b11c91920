package service

import "github.com/iliyamo/restaurant-service/internal/model"

// Capability names a back-office feature.
type Capability string

const (
	CapPlatos     Capability = "platos"
	CapReservas   Capability = "reservas"
	CapMesas      Capability = "mesas"
	CapPedidos    Capability = "pedidos"
	CapInventario Capability = "inventario"
	CapUsuarios   Capability = "usuarios"
	CapRoles      Capability = "roles"
	CapCajero     Capability = "cajero"
	CapReportes   Capability = "reportes"
)

// Capabilities is the closed set of grantable features.
var Capabilities = []Capability{
	CapPlatos, CapReservas, CapMesas, CapPedidos, CapInventario,
	CapUsuarios, CapRoles, CapCajero, CapReportes,
}

func ParseCapability(s string) (Capability, bool) {
	for _, c := range Capabilities {
		if string(c) == s {
			return c, true
		}
	}
	return "", false
}

// Accesos returns the effective grants of u. Explicit accesos win over the
// role defaults: admin gets everything, cajero the cash desk and order
// board, cliente nothing regardless of stored accesos.
func Accesos(u model.Usuario) map[Capability]bool {
	out := make(map[Capability]bool, len(Capabilities))
	for _, c := range Capabilities {
		out[c] = false
	}
	switch u.Role {
	case model.RoleAdmin, model.RoleCajero:
	default:
		return out
	}
	if u.Accesos != nil {
		for _, c := range Capabilities {
			out[c] = u.Accesos[string(c)]
		}
		return out
	}
	if u.Role == model.RoleAdmin {
		for _, c := range Capabilities {
			out[c] = true
		}
		return out
	}
	out[CapCajero] = true
	out[CapPedidos] = true
	return out
}

// Authorize reports whether u may use capability c.
func Authorize(u model.Usuario, c Capability) bool {
	if _, ok := ParseCapability(string(c)); !ok {
		return false
	}
	return Accesos(u)[c]
}

// NormalizeAccesos keeps only known capabilities, filling missing ones with
// false.
func NormalizeAccesos(in map[string]bool) map[string]bool {
	out := make(map[string]bool, len(Capabilities))
	for _, c := range Capabilities {
		out[string(c)] = in[string(c)]
	}
	return out
}
