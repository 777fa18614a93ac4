package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"servio/marketplace-core/internal/models"
	"servio/marketplace-core/internal/queue"
)

// SeedOpeningMessageTaskType is the queue task that writes the opening
// message into the pair conversation after a hire is created.
const SeedOpeningMessageTaskType = "hire:seed_opening_message"

type seedOpeningMessagePayload struct {
	HireID     string `json:"hire_id"`
	ServiceID  string `json:"service_id"`
	ClientID   string `json:"client_id"`
	ProviderID string `json:"provider_id"`
}

func enqueueOpeningMessage(ctx context.Context, tasks queue.Client, hire *models.Hire) error {
	payload, err := json.Marshal(seedOpeningMessagePayload{
		HireID:     hire.ID,
		ServiceID:  hire.ServiceID,
		ClientID:   hire.ClientID,
		ProviderID: hire.ProviderID,
	})
	if err != nil {
		return err
	}
	_, err = tasks.Enqueue(ctx, queue.Task{Type: SeedOpeningMessageTaskType, Payload: payload})
	return err
}

// RegisterSeedOpeningMessageTask binds the seeding handler to the worker
// server. The handler re-resolves the conversation, so it stays correct if
// the synchronous resolve at hire creation failed.
func RegisterSeedOpeningMessageTask(srv queue.Server, conversations ConversationService, logger *logrus.Logger) {
	srv.Register(SeedOpeningMessageTaskType, func(ctx context.Context, t queue.Task) error {
		var p seedOpeningMessagePayload
		if err := json.Unmarshal(t.Payload, &p); err != nil {
			// Malformed payloads never become valid; do not retry.
			logger.WithError(err).Error("Dropping malformed opening-message task")
			return nil
		}

		ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		conv, err := conversations.Resolve(ctx, p.ClientID, p.ProviderID)
		if err != nil {
			return err
		}

		content := fmt.Sprintf("Hi! I just sent you a hire request for your service (ref %s).", p.ServiceID)
		if _, err := conversations.SendMessage(ctx, conv.ID, p.ClientID, content); err != nil {
			return err
		}

		logger.WithFields(logrus.Fields{
			"hire_id":         p.HireID,
			"conversation_id": conv.ID,
		}).Info("Opening message seeded")
		return nil
	})
}
