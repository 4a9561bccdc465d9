package image

import (
	"time"

	"github.com/google/uuid"
)

// RecordResponse represents a slot image in API responses
type RecordResponse struct {
	ID        uuid.UUID `json:"id"`
	Seccion   string    `json:"seccion"`
	ItemID    int       `json:"item_id"`
	Imagen    string    `json:"imagen"`
	UpdatedAt string    `json:"updated_at"`
}

// PublicImage is the reduced shape the marketing page reads
type PublicImage struct {
	Seccion string `json:"seccion" db:"seccion"`
	ItemID  int    `json:"item_id" db:"item_id"`
	Imagen  string `json:"imagen" db:"imagen"`
}

// RecordResponseFromEntity converts entity to response
func RecordResponseFromEntity(r *Record) *RecordResponse {
	return &RecordResponse{
		ID:        r.ID,
		Seccion:   r.Seccion,
		ItemID:    r.ItemID,
		Imagen:    r.Imagen,
		UpdatedAt: r.UpdatedAt.Format(time.RFC3339),
	}
}

// RecordResponsesFromEntities converts a record list to responses
func RecordResponsesFromEntities(records []*Record) []*RecordResponse {
	out := make([]*RecordResponse, 0, len(records))
	for _, r := range records {
		out = append(out, RecordResponseFromEntity(r))
	}
	return out
}
