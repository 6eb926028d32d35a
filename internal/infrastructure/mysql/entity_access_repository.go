package mysql

import (
	"context"
	"database/sql"

	"presence-gateway/internal/domain"
)

// EntityAccessRepository answers permission lookups from the
// user_entity_access table.
type EntityAccessRepository struct {
	db *sql.DB
}

func NewEntityAccessRepository(db *sql.DB) *EntityAccessRepository {
	return &EntityAccessRepository{db: db}
}

// GetAccess returns the stored permissions for a (user, entity) pair.
// A missing row grants nothing and is not an error.
func (r *EntityAccessRepository) GetAccess(ctx context.Context, userID, entityName string) (domain.EntityAccess, error) {
	query := `
        SELECT is_readable, is_creatable
        FROM user_entity_access
        WHERE user_id = ? AND entity_name = ?
    `

	var access domain.EntityAccess
	err := r.db.QueryRowContext(ctx, query, userID, entityName).Scan(&access.Readable, &access.Creatable)
	if err == sql.ErrNoRows {
		return domain.EntityAccess{}, nil
	}
	if err != nil {
		return domain.EntityAccess{}, err
	}

	return access, nil
}
