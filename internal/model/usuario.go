package model

type Role string

const (
	RoleCliente Role = "cliente"
	RoleAdmin   Role = "admin"
	RoleCajero  Role = "cajero"
)

func (r Role) Valid() bool { return r == RoleCliente || r == RoleAdmin || r == RoleCajero }

// Usuario is a stored account. Password holds the bcrypt hash. Accesos
// overrides the role defaults when present. Apellido and Carnet are only
// set for staff accounts created from the back office.
type Usuario struct {
	ID       string          `json:"id,omitempty"`
	Nombre   string          `json:"nombre"`
	Apellido string          `json:"apellido,omitempty"`
	Carnet   string          `json:"carnet,omitempty"`
	Email    string          `json:"email"`
	Password string          `json:"password"`
	Role     Role            `json:"role"`
	Accesos  map[string]bool `json:"accesos,omitempty"`
}

// UsuarioPublico is the user shape returned to clients.
type UsuarioPublico struct {
	ID       string          `json:"id"`
	Email    string          `json:"email"`
	Role     Role            `json:"role"`
	Nombre   string          `json:"nombre"`
	Apellido string          `json:"apellido,omitempty"`
	Accesos  map[string]bool `json:"accesos,omitempty"`
}

func (u Usuario) Public() UsuarioPublico {
	return UsuarioPublico{ID: u.ID, Email: u.Email, Role: u.Role, Nombre: u.Nombre, Apellido: u.Apellido, Accesos: u.Accesos}
}
