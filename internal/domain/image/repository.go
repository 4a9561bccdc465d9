package image

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// Repository defines slot image data access
type Repository interface {
	// Upsert inserts or replaces the record for (cliente_id, seccion, item_id).
	// The store assigns id and updated_at; both are written back into rec.
	Upsert(ctx context.Context, rec *Record) error

	Get(ctx context.Context, owner uuid.UUID, seccion string, itemID int) (*Record, error)
	ListByOwner(ctx context.Context, owner uuid.UUID) ([]*Record, error)
	ListSection(ctx context.Context, owner uuid.UUID, seccion string) ([]*Record, error)

	// InsertNext creates a new row in a dynamic section with item_id allocated
	// store-side as max(existing)+1. Gaps from deletions are never refilled.
	InsertNext(ctx context.Context, owner uuid.UUID, seccion, imagen string) (*Record, error)

	// Delete removes the row for the exact triple. Returns ErrRecordNotFound
	// when no row matched.
	Delete(ctx context.Context, owner uuid.UUID, seccion string, itemID int) error

	ListPublic(ctx context.Context, owner uuid.UUID) ([]*PublicImage, error)
}

type repository struct {
	db *sqlx.DB
}

// NewRepository creates the image repository
func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Upsert(ctx context.Context, rec *Record) error {
	query := `
		INSERT INTO imagenes_cliente (cliente_id, seccion, item_id, imagen)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (cliente_id, seccion, item_id)
		DO UPDATE SET imagen = EXCLUDED.imagen, updated_at = now()
		RETURNING id, updated_at
	`
	return r.db.QueryRowxContext(ctx, query,
		rec.ClienteID, rec.Seccion, rec.ItemID, rec.Imagen,
	).Scan(&rec.ID, &rec.UpdatedAt)
}

func (r *repository) Get(ctx context.Context, owner uuid.UUID, seccion string, itemID int) (*Record, error) {
	query := `SELECT * FROM imagenes_cliente WHERE cliente_id = $1 AND seccion = $2 AND item_id = $3`
	var rec Record
	err := r.db.GetContext(ctx, &rec, query, owner, seccion, itemID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

func (r *repository) ListByOwner(ctx context.Context, owner uuid.UUID) ([]*Record, error) {
	query := `SELECT * FROM imagenes_cliente WHERE cliente_id = $1 ORDER BY seccion, item_id`
	var records []*Record
	err := r.db.SelectContext(ctx, &records, query, owner)
	return records, err
}

func (r *repository) ListSection(ctx context.Context, owner uuid.UUID, seccion string) ([]*Record, error) {
	query := `SELECT * FROM imagenes_cliente WHERE cliente_id = $1 AND seccion = $2 ORDER BY item_id ASC`
	var records []*Record
	err := r.db.SelectContext(ctx, &records, query, owner, seccion)
	return records, err
}

func (r *repository) InsertNext(ctx context.Context, owner uuid.UUID, seccion, imagen string) (*Record, error) {
	// item_id is computed inside the INSERT so two concurrent adds cannot read
	// the same max; the unique index turns the loser into a retry.
	query := `
		INSERT INTO imagenes_cliente (cliente_id, seccion, item_id, imagen)
		SELECT $1, $2, COALESCE(MAX(item_id), 0) + 1, $3
		FROM imagenes_cliente WHERE cliente_id = $1 AND seccion = $2
		RETURNING id, cliente_id, seccion, item_id, imagen, updated_at
	`
	const maxAttempts = 3
	var rec Record
	for attempt := 0; attempt < maxAttempts; attempt++ {
		err := r.db.QueryRowxContext(ctx, query, owner, seccion, imagen).StructScan(&rec)
		if err == nil {
			return &rec, nil
		}
		if isUniqueViolation(err) && attempt < maxAttempts-1 {
			continue
		}
		return nil, err
	}
	return nil, errors.New("could not allocate a fresh item id")
}

func (r *repository) Delete(ctx context.Context, owner uuid.UUID, seccion string, itemID int) error {
	query := `DELETE FROM imagenes_cliente WHERE cliente_id = $1 AND seccion = $2 AND item_id = $3`
	res, err := r.db.ExecContext(ctx, query, owner, seccion, itemID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (r *repository) ListPublic(ctx context.Context, owner uuid.UUID) ([]*PublicImage, error) {
	query := `SELECT seccion, item_id, imagen FROM imagenes_cliente WHERE cliente_id = $1 ORDER BY seccion, item_id`
	var images []*PublicImage
	err := r.db.SelectContext(ctx, &images, query, owner)
	return images, err
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
