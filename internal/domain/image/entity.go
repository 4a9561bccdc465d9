package image

import (
	"time"

	"github.com/google/uuid"
)

// PlaceholderReference is what a freshly added client slot points at until its
// first real upload.
const PlaceholderReference = "/placeholder.svg?height=100&width=200"

// Record is one persisted slot image: the row in imagenes_cliente. The binary
// lives in the public bucket; Imagen is its public reference URL. At most one
// row exists per (cliente_id, seccion, item_id).
type Record struct {
	ID        uuid.UUID `db:"id" json:"id"`
	ClienteID uuid.UUID `db:"cliente_id" json:"cliente_id"`
	Seccion   string    `db:"seccion" json:"seccion"`
	ItemID    int       `db:"item_id" json:"item_id"`
	Imagen    string    `db:"imagen" json:"imagen"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
