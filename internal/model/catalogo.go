package model

// Plato is a menu dish. Imagen is either an external URL or a data URL of
// an uploaded picture.
type Plato struct {
	ID          string `json:"id,omitempty"`
	Nombre      string `json:"nombre"`
	Precio      Scalar `json:"precio"`
	Descripcion string `json:"descripcion,omitempty"`
	Categoria   string `json:"categoria,omitempty"`
	Imagen      string `json:"imagen,omitempty"`
}

// Reserva is a table booking request from the public site.
type Reserva struct {
	ID        string `json:"id,omitempty"`
	Nombre    string `json:"nombre"`
	Fecha     string `json:"fecha"`
	Hora      string `json:"hora"`
	Personas  Scalar `json:"personas"`
	Correo    string `json:"correo"`
	CreatedAt Scalar `json:"createdAt"`
}

// InventarioItem is a stock entry managed from the back office.
type InventarioItem struct {
	ID          string `json:"id,omitempty"`
	Nombre      string `json:"nombre"`
	Descripcion string `json:"descripcion"`
	Cantidad    int    `json:"cantidad"`
}
