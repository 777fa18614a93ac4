package service

import (
	"context"

	"github.com/sirupsen/logrus"

	"servio/marketplace-core/internal/apperr"
	"servio/marketplace-core/internal/metrics"
	"servio/marketplace-core/internal/models"
	"servio/marketplace-core/internal/queue"
	"servio/marketplace-core/internal/repository"
)

// allowedTransitions is the complete hire state machine. Every edge is
// performed by the provider; anything not listed is InvalidTransition.
var allowedTransitions = map[models.HireStatus]models.HireStatus{
	models.HireStatusAccepted:  models.HireStatusPending,
	models.HireStatusRejected:  models.HireStatusPending,
	models.HireStatusCompleted: models.HireStatusAccepted,
}

type HireService interface {
	// Create opens a pending hire from the client. It also resolves the
	// pair conversation and queues an opening message as a best-effort side
	// effect: a seeding failure is logged, never rolled back.
	Create(ctx context.Context, serviceID, clientID, providerID string) (*models.Hire, error)
	Get(ctx context.Context, hireID string) (*models.Hire, error)
	Accept(ctx context.Context, hireID, actorID string) (*models.Hire, error)
	Reject(ctx context.Context, hireID, actorID string) (*models.Hire, error)
	Complete(ctx context.Context, hireID, actorID string) (*models.Hire, error)
}

type hireService struct {
	hires         repository.HireRepository
	profiles      repository.ProfileRepository
	conversations ConversationService
	tasks         queue.Client
	logger        *logrus.Logger
}

func NewHireService(
	hires repository.HireRepository,
	profiles repository.ProfileRepository,
	conversations ConversationService,
	tasks queue.Client,
	logger *logrus.Logger,
) HireService {
	return &hireService{
		hires:         hires,
		profiles:      profiles,
		conversations: conversations,
		tasks:         tasks,
		logger:        logger,
	}
}

func (s *hireService) Create(ctx context.Context, serviceID, clientID, providerID string) (*models.Hire, error) {
	if serviceID == "" || clientID == "" || providerID == "" {
		return nil, apperr.New(apperr.KindInvalidArgument, "service, client and provider ids are required")
	}
	if clientID == providerID {
		return nil, apperr.New(apperr.KindInvalidArgument, "cannot hire yourself")
	}

	profile, err := s.profiles.GetByID(ctx, providerID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil, apperr.Newf(apperr.KindInvalidArgument, "provider %s does not exist", providerID)
		}
		return nil, err
	}
	if profile.Role != models.RoleProvider {
		return nil, apperr.Newf(apperr.KindInvalidArgument, "user %s is not a provider", providerID)
	}
	if !profile.Verified {
		return nil, apperr.Newf(apperr.KindInvalidArgument, "provider %s is not verified", providerID)
	}

	hire := &models.Hire{
		ServiceID:  serviceID,
		ClientID:   clientID,
		ProviderID: providerID,
	}
	if err := s.hires.Create(ctx, hire); err != nil {
		s.logger.WithError(err).Error("Failed to create hire")
		return nil, err
	}
	metrics.HiresCreated.Inc()

	s.logger.WithFields(logrus.Fields{
		"hire_id":     hire.ID,
		"service_id":  serviceID,
		"client_id":   clientID,
		"provider_id": providerID,
	}).Info("Hire created")

	s.seedConversation(ctx, hire)

	return hire, nil
}

// seedConversation resolves the pair conversation and queues the opening
// message. Both steps are best-effort: the hire already exists and stands.
func (s *hireService) seedConversation(ctx context.Context, hire *models.Hire) {
	if _, err := s.conversations.Resolve(ctx, hire.ClientID, hire.ProviderID); err != nil {
		s.logger.WithError(err).WithField("hire_id", hire.ID).
			Warn("Failed to resolve conversation for new hire")
		return
	}

	if err := enqueueOpeningMessage(ctx, s.tasks, hire); err != nil {
		s.logger.WithError(err).WithField("hire_id", hire.ID).
			Warn("Failed to queue opening message for new hire")
	}
}

func (s *hireService) Get(ctx context.Context, hireID string) (*models.Hire, error) {
	return s.hires.GetByID(ctx, hireID)
}

func (s *hireService) Accept(ctx context.Context, hireID, actorID string) (*models.Hire, error) {
	return s.transition(ctx, hireID, actorID, models.HireStatusAccepted)
}

func (s *hireService) Reject(ctx context.Context, hireID, actorID string) (*models.Hire, error) {
	return s.transition(ctx, hireID, actorID, models.HireStatusRejected)
}

func (s *hireService) Complete(ctx context.Context, hireID, actorID string) (*models.Hire, error) {
	return s.transition(ctx, hireID, actorID, models.HireStatusCompleted)
}

func (s *hireService) transition(ctx context.Context, hireID, actorID string, to models.HireStatus) (*models.Hire, error) {
	from, ok := allowedTransitions[to]
	if !ok {
		return nil, apperr.Newf(apperr.KindInvalidTransition, "no transition to %s", to)
	}

	hire, err := s.hires.GetByID(ctx, hireID)
	if err != nil {
		return nil, err
	}
	// provider_id is immutable, so this check cannot go stale.
	if hire.ProviderID != actorID {
		return nil, apperr.Newf(apperr.KindNotAuthorized, "user %s is not the provider of hire %s", actorID, hireID)
	}

	profile, err := s.profiles.GetByID(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if profile.Role != models.RoleProvider || !profile.Verified {
		return nil, apperr.Newf(apperr.KindNotAuthorized, "user %s is not a verified provider", actorID)
	}

	updated, err := s.hires.Transition(ctx, hireID, from, to)
	if err != nil {
		return nil, err
	}
	metrics.HireTransitions.WithLabelValues(string(to)).Inc()

	s.logger.WithFields(logrus.Fields{
		"hire_id": hireID,
		"from":    from,
		"to":      to,
	}).Info("Hire transitioned")

	return updated, nil
}
