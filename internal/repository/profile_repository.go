package repository

import (
	"context"
	"database/sql"

	"servio/marketplace-core/internal/apperr"
	"servio/marketplace-core/internal/models"
)

// ProfileRepository is read-only: roles and verification flags are owned by
// an external approval workflow, this core only consults them.
type ProfileRepository interface {
	GetByID(ctx context.Context, id string) (*models.Profile, error)
}

type profileRepository struct {
	db *sql.DB
}

func NewProfileRepository(db *sql.DB) ProfileRepository {
	return &profileRepository{db: db}
}

func (r *profileRepository) GetByID(ctx context.Context, id string) (*models.Profile, error) {
	query := `SELECT id, role, verified FROM profiles WHERE id = $1`

	var profile models.Profile
	err := r.db.QueryRowContext(ctx, query, id).Scan(&profile.ID, &profile.Role, &profile.Verified)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperr.Newf(apperr.KindNotFound, "profile %s not found", id)
		}
		return nil, storeErr(err, "get profile")
	}

	return &profile, nil
}
