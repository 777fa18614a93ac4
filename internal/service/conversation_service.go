package service

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"servio/marketplace-core/internal/apperr"
	"servio/marketplace-core/internal/metrics"
	"servio/marketplace-core/internal/models"
	"servio/marketplace-core/internal/repository"
)

const (
	defaultMessagePageSize = 50
	maxMessagePageSize     = 100
)

// ConversationService is the conversation directory, message store and
// read-state tracker behind one interface: every operation here acts on the
// single canonical-pair conversation between two users.
type ConversationService interface {
	// Resolve returns the one conversation for the pair, creating it on
	// first contact. Idempotent under concurrent callers.
	Resolve(ctx context.Context, userA, userB string) (*models.Conversation, error)
	ListForUser(ctx context.Context, userID string) ([]*models.Conversation, error)
	SendMessage(ctx context.Context, conversationID, senderID, content string) (*models.Message, error)
	ListMessages(ctx context.Context, conversationID, requesterID string, limit int, beforeMessageID string) ([]*models.Message, error)
	MarkConversationRead(ctx context.Context, conversationID, readerID string) (int, error)
	MarkAllRead(ctx context.Context, readerID string) (int, error)
}

type conversationService struct {
	conversations repository.ConversationRepository
	messages      repository.MessageRepository
	logger        *logrus.Logger
}

func NewConversationService(
	conversations repository.ConversationRepository,
	messages repository.MessageRepository,
	logger *logrus.Logger,
) ConversationService {
	return &conversationService{
		conversations: conversations,
		messages:      messages,
		logger:        logger,
	}
}

func (s *conversationService) Resolve(ctx context.Context, userA, userB string) (*models.Conversation, error) {
	if userA == "" || userB == "" {
		return nil, apperr.New(apperr.KindInvalidArgument, "both participant ids are required")
	}
	if userA == userB {
		return nil, apperr.New(apperr.KindInvalidArgument, "cannot open a conversation with yourself")
	}

	conv, err := s.conversations.Resolve(ctx, userA, userB)
	if err != nil {
		s.logger.WithError(err).Error("Failed to resolve conversation")
		return nil, err
	}

	return conv, nil
}

func (s *conversationService) ListForUser(ctx context.Context, userID string) ([]*models.Conversation, error) {
	if userID == "" {
		return nil, apperr.New(apperr.KindInvalidArgument, "user id is required")
	}
	return s.conversations.ListForUser(ctx, userID)
}

func (s *conversationService) SendMessage(ctx context.Context, conversationID, senderID, content string) (*models.Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, apperr.New(apperr.KindInvalidArgument, "message content is empty")
	}

	conv, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(senderID) {
		return nil, apperr.Newf(apperr.KindNotAuthorized, "user %s is not a participant of conversation %s", senderID, conversationID)
	}

	msg := &models.Message{
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
	}
	if err := s.messages.Append(ctx, msg, conv.Peer(senderID)); err != nil {
		s.logger.WithError(err).Error("Failed to append message")
		return nil, err
	}
	metrics.MessagesAppended.Inc()

	s.logger.WithFields(logrus.Fields{
		"message_id":      msg.ID,
		"conversation_id": conversationID,
		"sender_id":       senderID,
	}).Info("Message sent")

	return msg, nil
}

func (s *conversationService) ListMessages(ctx context.Context, conversationID, requesterID string, limit int, beforeMessageID string) ([]*models.Message, error) {
	conv, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(requesterID) {
		return nil, apperr.Newf(apperr.KindNotAuthorized, "user %s is not a participant of conversation %s", requesterID, conversationID)
	}

	if limit <= 0 {
		limit = defaultMessagePageSize
	}
	if limit > maxMessagePageSize {
		limit = maxMessagePageSize
	}

	return s.messages.List(ctx, conversationID, limit, beforeMessageID)
}

func (s *conversationService) MarkConversationRead(ctx context.Context, conversationID, readerID string) (int, error) {
	conv, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return 0, err
	}
	if !conv.HasParticipant(readerID) {
		return 0, apperr.Newf(apperr.KindNotAuthorized, "user %s is not a participant of conversation %s", readerID, conversationID)
	}

	count, err := s.messages.MarkConversationRead(ctx, conversationID, readerID)
	if err != nil {
		s.logger.WithError(err).Error("Failed to mark conversation read")
		return 0, err
	}
	metrics.MessagesMarkedRead.Add(float64(count))

	if count > 0 {
		s.logger.WithFields(logrus.Fields{
			"conversation_id": conversationID,
			"reader_id":       readerID,
			"marked":          count,
		}).Info("Conversation marked read")
	}

	return count, nil
}

func (s *conversationService) MarkAllRead(ctx context.Context, readerID string) (int, error) {
	if readerID == "" {
		return 0, apperr.New(apperr.KindInvalidArgument, "reader id is required")
	}

	count, err := s.messages.MarkAllRead(ctx, readerID)
	if err != nil {
		s.logger.WithError(err).Error("Failed to mark all conversations read")
		return 0, err
	}
	metrics.MessagesMarkedRead.Add(float64(count))

	return count, nil
}
