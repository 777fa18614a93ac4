package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"servio/marketplace-core/internal/apperr"
	"servio/marketplace-core/internal/models"
)

type ReviewRepository interface {
	// Create inserts the review. The UNIQUE constraint on hire_id closes the
	// race between two submissions; the loser gets Conflict.
	Create(ctx context.Context, review *models.Review) error
	GetByHireID(ctx context.Context, hireID string) (*models.Review, error)
	ListForService(ctx context.Context, serviceID string) ([]*models.Review, error)
}

type reviewRepository struct {
	db *sql.DB
}

func NewReviewRepository(db *sql.DB) ReviewRepository {
	return &reviewRepository{db: db}
}

func (r *reviewRepository) Create(ctx context.Context, review *models.Review) error {
	if review.ID == "" {
		review.ID = uuid.New().String()
	}
	if review.Photos == nil {
		review.Photos = []string{}
	}

	query := `
	INSERT INTO reviews (id, hire_id, service_id, client_id, rating, comment, photos, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
	RETURNING created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		review.ID, review.HireID, review.ServiceID, review.ClientID,
		review.Rating, review.Comment, pq.Array(review.Photos),
	).Scan(&review.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.Newf(apperr.KindConflict, "hire %s already has a review", review.HireID)
		}
		return storeErr(err, "create review")
	}

	return nil
}

func (r *reviewRepository) GetByHireID(ctx context.Context, hireID string) (*models.Review, error) {
	query := `
	SELECT id, hire_id, service_id, client_id, rating, comment, photos, created_at
	FROM reviews
	WHERE hire_id = $1
	`

	var review models.Review
	var comment sql.NullString
	err := r.db.QueryRowContext(ctx, query, hireID).Scan(
		&review.ID, &review.HireID, &review.ServiceID, &review.ClientID,
		&review.Rating, &comment, pq.Array(&review.Photos), &review.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperr.Newf(apperr.KindNotFound, "no review for hire %s", hireID)
		}
		return nil, storeErr(err, "get review")
	}
	review.Comment = comment.String

	return &review, nil
}

func (r *reviewRepository) ListForService(ctx context.Context, serviceID string) ([]*models.Review, error) {
	query := `
	SELECT id, hire_id, service_id, client_id, rating, comment, photos, created_at
	FROM reviews
	WHERE service_id = $1
	ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, serviceID)
	if err != nil {
		return nil, storeErr(err, "list reviews")
	}
	defer rows.Close()

	var reviews []*models.Review
	for rows.Next() {
		var review models.Review
		var comment sql.NullString
		err := rows.Scan(
			&review.ID, &review.HireID, &review.ServiceID, &review.ClientID,
			&review.Rating, &comment, pq.Array(&review.Photos), &review.CreatedAt,
		)
		if err != nil {
			return nil, storeErr(err, "scan review")
		}
		review.Comment = comment.String
		reviews = append(reviews, &review)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(err, "list reviews")
	}

	return reviews, nil
}
