package service

import (
	"context"

	"github.com/sirupsen/logrus"

	"servio/marketplace-core/internal/apperr"
	"servio/marketplace-core/internal/metrics"
	"servio/marketplace-core/internal/models"
	"servio/marketplace-core/internal/repository"
)

// SubmitReviewInput carries a client's review of a completed hire. Photos
// are opaque blob-store references, order preserved.
type SubmitReviewInput struct {
	HireID   string
	ClientID string
	Rating   int
	Comment  string
	Photos   []string
}

type ReviewService interface {
	// Submit enforces the review gate: hire completed, submitted by its
	// client, rating in [1,5], at most one review per hire. The uniqueness
	// rule is closed by the storage constraint, not a pre-check, so two
	// racing submissions resolve to exactly one review and one Conflict.
	Submit(ctx context.Context, in SubmitReviewInput) (*models.Review, error)
	GetForHire(ctx context.Context, hireID string) (*models.Review, error)
	ListForService(ctx context.Context, serviceID string) ([]*models.Review, error)
}

type reviewService struct {
	reviews repository.ReviewRepository
	hires   repository.HireRepository
	logger  *logrus.Logger
}

func NewReviewService(
	reviews repository.ReviewRepository,
	hires repository.HireRepository,
	logger *logrus.Logger,
) ReviewService {
	return &reviewService{reviews: reviews, hires: hires, logger: logger}
}

func (s *reviewService) Submit(ctx context.Context, in SubmitReviewInput) (*models.Review, error) {
	if in.Rating < 1 || in.Rating > 5 {
		return nil, apperr.Newf(apperr.KindInvalidArgument, "rating %d is out of range [1,5]", in.Rating)
	}

	hire, err := s.hires.GetByID(ctx, in.HireID)
	if err != nil {
		return nil, err
	}
	if hire.ClientID != in.ClientID {
		return nil, apperr.Newf(apperr.KindNotAuthorized, "user %s is not the client of hire %s", in.ClientID, in.HireID)
	}
	if hire.Status != models.HireStatusCompleted {
		return nil, apperr.Newf(apperr.KindInvalidTransition, "hire %s is %s, reviews require a completed hire", in.HireID, hire.Status)
	}

	review := &models.Review{
		HireID:    in.HireID,
		ServiceID: hire.ServiceID,
		ClientID:  in.ClientID,
		Rating:    in.Rating,
		Comment:   in.Comment,
		Photos:    in.Photos,
	}
	if err := s.reviews.Create(ctx, review); err != nil {
		if !apperr.Is(err, apperr.KindConflict) {
			s.logger.WithError(err).Error("Failed to create review")
		}
		return nil, err
	}
	metrics.ReviewsSubmitted.Inc()

	s.logger.WithFields(logrus.Fields{
		"review_id":  review.ID,
		"hire_id":    in.HireID,
		"service_id": hire.ServiceID,
		"rating":     in.Rating,
	}).Info("Review submitted")

	return review, nil
}

func (s *reviewService) GetForHire(ctx context.Context, hireID string) (*models.Review, error) {
	return s.reviews.GetByHireID(ctx, hireID)
}

func (s *reviewService) ListForService(ctx context.Context, serviceID string) ([]*models.Review, error) {
	if serviceID == "" {
		return nil, apperr.New(apperr.KindInvalidArgument, "service id is required")
	}
	return s.reviews.ListForService(ctx, serviceID)
}
