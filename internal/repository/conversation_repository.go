package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"servio/marketplace-core/internal/apperr"
	"servio/marketplace-core/internal/models"
)

type ConversationRepository interface {
	// Resolve returns the conversation for the pair, creating it if absent.
	// Concurrent resolves for the same pair all return the winner's row.
	Resolve(ctx context.Context, userA, userB string) (*models.Conversation, error)
	GetByID(ctx context.Context, id string) (*models.Conversation, error)
	ListForUser(ctx context.Context, userID string) ([]*models.Conversation, error)
}

type conversationRepository struct {
	db *sql.DB
}

func NewConversationRepository(db *sql.DB) ConversationRepository {
	return &conversationRepository{db: db}
}

func (r *conversationRepository) Resolve(ctx context.Context, userA, userB string) (*models.Conversation, error) {
	low, high := models.CanonicalPair(userA, userB)

	// The no-op DO UPDATE makes RETURNING yield the existing row when a
	// concurrent session won the insert race.
	query := `
	INSERT INTO conversations (id, participant1_id, participant2_id, last_message_at, created_at)
	VALUES ($1, $2, $3, NOW(), NOW())
	ON CONFLICT (participant1_id, participant2_id)
	DO UPDATE SET participant1_id = EXCLUDED.participant1_id
	RETURNING id, participant1_id, participant2_id, last_message_at, created_at
	`

	var conv models.Conversation
	err := r.db.QueryRowContext(ctx, query, uuid.New().String(), low, high).Scan(
		&conv.ID, &conv.Participant1ID, &conv.Participant2ID, &conv.LastMessageAt, &conv.CreatedAt,
	)
	if err != nil {
		return nil, storeErr(err, "resolve conversation")
	}

	return &conv, nil
}

func (r *conversationRepository) GetByID(ctx context.Context, id string) (*models.Conversation, error) {
	query := `
	SELECT id, participant1_id, participant2_id, last_message_at, created_at
	FROM conversations
	WHERE id = $1
	`

	var conv models.Conversation
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&conv.ID, &conv.Participant1ID, &conv.Participant2ID, &conv.LastMessageAt, &conv.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperr.Newf(apperr.KindNotFound, "conversation %s not found", id)
		}
		return nil, storeErr(err, "get conversation")
	}

	return &conv, nil
}

func (r *conversationRepository) ListForUser(ctx context.Context, userID string) ([]*models.Conversation, error) {
	query := `
	SELECT id, participant1_id, participant2_id, last_message_at, created_at
	FROM conversations
	WHERE participant1_id = $1 OR participant2_id = $1
	ORDER BY last_message_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, storeErr(err, "list conversations")
	}
	defer rows.Close()

	var conversations []*models.Conversation
	for rows.Next() {
		var conv models.Conversation
		err := rows.Scan(
			&conv.ID, &conv.Participant1ID, &conv.Participant2ID, &conv.LastMessageAt, &conv.CreatedAt,
		)
		if err != nil {
			return nil, storeErr(err, "scan conversation")
		}
		conversations = append(conversations, &conv)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(err, "list conversations")
	}

	return conversations, nil
}
