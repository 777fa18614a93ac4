package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"servio/marketplace-core/internal/apperr"
	"servio/marketplace-core/internal/feed"
	"servio/marketplace-core/internal/models"
)

type HireRepository interface {
	Create(ctx context.Context, hire *models.Hire) error
	GetByID(ctx context.Context, id string) (*models.Hire, error)
	// Transition moves the hire from one status to another with a single
	// compare-and-set update. A stale or repeated call fails with
	// InvalidTransition; the row is never moved twice.
	Transition(ctx context.Context, hireID string, from, to models.HireStatus) (*models.Hire, error)
	// ListPendingIDs returns ids of pending hires addressed to providerID,
	// used by the notification counter for full recomputation.
	ListPendingIDs(ctx context.Context, providerID string) ([]string, error)
}

type hireRepository struct {
	db     *sql.DB
	broker feed.Broker
	logger *logrus.Logger
}

func NewHireRepository(db *sql.DB, broker feed.Broker, logger *logrus.Logger) HireRepository {
	return &hireRepository{db: db, broker: broker, logger: logger}
}

func (r *hireRepository) Create(ctx context.Context, hire *models.Hire) error {
	if hire.ID == "" {
		hire.ID = uuid.New().String()
	}
	hire.Status = models.HireStatusPending

	query := `
	INSERT INTO hires (id, service_id, client_id, provider_id, status, created_at)
	VALUES ($1, $2, $3, $4, $5, NOW())
	RETURNING created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		hire.ID, hire.ServiceID, hire.ClientID, hire.ProviderID, hire.Status,
	).Scan(&hire.CreatedAt)
	if err != nil {
		return storeErr(err, "create hire")
	}

	r.publish(ctx, feed.OpInsert, hire)
	return nil
}

func (r *hireRepository) GetByID(ctx context.Context, id string) (*models.Hire, error) {
	query := `
	SELECT id, service_id, client_id, provider_id, status, created_at
	FROM hires
	WHERE id = $1
	`

	var hire models.Hire
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&hire.ID, &hire.ServiceID, &hire.ClientID, &hire.ProviderID, &hire.Status, &hire.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperr.Newf(apperr.KindNotFound, "hire %s not found", id)
		}
		return nil, storeErr(err, "get hire")
	}

	return &hire, nil
}

func (r *hireRepository) Transition(ctx context.Context, hireID string, from, to models.HireStatus) (*models.Hire, error) {
	query := `
	UPDATE hires
	SET status = $3
	WHERE id = $1 AND status = $2
	RETURNING id, service_id, client_id, provider_id, status, created_at
	`

	var hire models.Hire
	err := r.db.QueryRowContext(ctx, query, hireID, from, to).Scan(
		&hire.ID, &hire.ServiceID, &hire.ClientID, &hire.ProviderID, &hire.Status, &hire.CreatedAt,
	)
	if err == sql.ErrNoRows {
		// The guard did not match: either the hire is gone or another
		// session moved it first. Re-read to tell the two apart.
		current, getErr := r.GetByID(ctx, hireID)
		if getErr != nil {
			return nil, getErr
		}
		if current.Status.Terminal() {
			return nil, apperr.Newf(apperr.KindInvalidTransition,
				"hire %s is %s and accepts no further transitions", hireID, current.Status)
		}
		return nil, apperr.Newf(apperr.KindInvalidTransition,
			"hire %s is %s, cannot move %s -> %s", hireID, current.Status, from, to)
	}
	if err != nil {
		return nil, storeErr(err, "transition hire")
	}

	r.publish(ctx, feed.OpUpdate, &hire)
	return &hire, nil
}

func (r *hireRepository) ListPendingIDs(ctx context.Context, providerID string) ([]string, error) {
	query := `SELECT id FROM hires WHERE provider_id = $1 AND status = $2`

	rows, err := r.db.QueryContext(ctx, query, providerID, models.HireStatusPending)
	if err != nil {
		return nil, storeErr(err, "list pending hires")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, storeErr(err, "scan pending hire id")
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(err, "list pending hires")
	}

	return ids, nil
}

func (r *hireRepository) publish(ctx context.Context, op string, hire *models.Hire) {
	ev, err := feed.NewEvent(feed.CollectionHires, op, feed.HireState{
		ID:         hire.ID,
		ServiceID:  hire.ServiceID,
		ClientID:   hire.ClientID,
		ProviderID: hire.ProviderID,
		Status:     string(hire.Status),
	})
	if err == nil {
		err = r.broker.Publish(ctx, ev)
	}
	if err != nil {
		r.logger.WithError(err).WithField("hire_id", hire.ID).
			Warn("Failed to publish hire feed event")
	}
}
