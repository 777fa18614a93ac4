package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"servio/marketplace-core/internal/feed"
	"servio/marketplace-core/internal/models"
)

type MessageRepository interface {
	// Append persists msg with a server-assigned timestamp and bumps the
	// conversation's last_message_at in the same transaction. recipientID is
	// the non-sender participant, carried into the published feed event.
	Append(ctx context.Context, msg *models.Message, recipientID string) error
	// List returns messages in ascending creation order. When beforeMessageID
	// is set, only messages older than it are returned.
	List(ctx context.Context, conversationID string, limit int, beforeMessageID string) ([]*models.Message, error)
	// MarkConversationRead flips is_read on every unread message in the
	// conversation not sent by readerID. Returns the number transitioned.
	MarkConversationRead(ctx context.Context, conversationID, readerID string) (int, error)
	// MarkAllRead applies the same predicate across every conversation the
	// reader participates in.
	MarkAllRead(ctx context.Context, readerID string) (int, error)
	// ListUnreadIDs returns ids of unread messages addressed to userID,
	// used by the notification counter for full recomputation.
	ListUnreadIDs(ctx context.Context, userID string) ([]string, error)
}

type messageRepository struct {
	db     *sql.DB
	broker feed.Broker
	logger *logrus.Logger
}

func NewMessageRepository(db *sql.DB, broker feed.Broker, logger *logrus.Logger) MessageRepository {
	return &messageRepository{db: db, broker: broker, logger: logger}
}

func (r *messageRepository) Append(ctx context.Context, msg *models.Message, recipientID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr(err, "append message")
	}
	defer tx.Rollback()

	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}

	insert := `
	INSERT INTO messages (id, conversation_id, sender_id, content, created_at)
	VALUES ($1, $2, $3, $4, NOW())
	RETURNING created_at
	`
	err = tx.QueryRowContext(ctx, insert, msg.ID, msg.ConversationID, msg.SenderID, msg.Content).
		Scan(&msg.CreatedAt)
	if err != nil {
		return storeErr(err, "append message")
	}

	touch := `UPDATE conversations SET last_message_at = NOW() WHERE id = $1`
	if _, err := tx.ExecContext(ctx, touch, msg.ConversationID); err != nil {
		return storeErr(err, "touch conversation")
	}

	if err := tx.Commit(); err != nil {
		return storeErr(err, "append message")
	}

	r.publish(ctx, feed.OpInsert, feed.MessageState{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID,
		RecipientID:    recipientID,
		IsRead:         false,
	})
	return nil
}

func (r *messageRepository) List(ctx context.Context, conversationID string, limit int, beforeMessageID string) ([]*models.Message, error) {
	var rows *sql.Rows
	var err error

	if beforeMessageID != "" {
		query := `
		SELECT id, conversation_id, sender_id, content, created_at, is_read
		FROM messages
		WHERE conversation_id = $1
		  AND (created_at, id) < (SELECT created_at, id FROM messages WHERE id = $2)
		ORDER BY created_at DESC, id DESC
		LIMIT $3
		`
		rows, err = r.db.QueryContext(ctx, query, conversationID, beforeMessageID, limit)
	} else {
		query := `
		SELECT id, conversation_id, sender_id, content, created_at, is_read
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
		`
		rows, err = r.db.QueryContext(ctx, query, conversationID, limit)
	}
	if err != nil {
		return nil, storeErr(err, "list messages")
	}
	defer rows.Close()

	var messages []*models.Message
	for rows.Next() {
		var msg models.Message
		err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.SenderID, &msg.Content, &msg.CreatedAt, &msg.IsRead)
		if err != nil {
			return nil, storeErr(err, "scan message")
		}
		messages = append(messages, &msg)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(err, "list messages")
	}

	// Newest page was fetched descending; callers get ascending order.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}

func (r *messageRepository) MarkConversationRead(ctx context.Context, conversationID, readerID string) (int, error) {
	query := `
	UPDATE messages
	SET is_read = TRUE
	WHERE conversation_id = $1 AND sender_id != $2 AND is_read = FALSE
	RETURNING id, sender_id
	`
	return r.markRead(ctx, readerID, query, conversationID, readerID)
}

func (r *messageRepository) MarkAllRead(ctx context.Context, readerID string) (int, error) {
	query := `
	UPDATE messages m
	SET is_read = TRUE
	FROM conversations c
	WHERE m.conversation_id = c.id
	  AND (c.participant1_id = $1 OR c.participant2_id = $1)
	  AND m.sender_id != $1
	  AND m.is_read = FALSE
	RETURNING m.id, m.sender_id
	`
	return r.markRead(ctx, readerID, query, readerID)
}

// markRead runs an UPDATE ... RETURNING id, sender_id statement and
// publishes one update event per transitioned row. Only rows existing at
// statement execution are affected; a message arriving concurrently stays
// unread until the next call.
func (r *messageRepository) markRead(ctx context.Context, readerID, query string, args ...any) (int, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return 0, storeErr(err, "mark messages read")
	}
	defer rows.Close()

	type marked struct{ id, senderID string }
	var flipped []marked
	for rows.Next() {
		var m marked
		if err := rows.Scan(&m.id, &m.senderID); err != nil {
			return 0, storeErr(err, "scan marked message")
		}
		flipped = append(flipped, m)
	}
	if err := rows.Err(); err != nil {
		return 0, storeErr(err, "mark messages read")
	}

	for _, m := range flipped {
		r.publish(ctx, feed.OpUpdate, feed.MessageState{
			ID:          m.id,
			SenderID:    m.senderID,
			RecipientID: readerID,
			IsRead:      true,
		})
	}

	return len(flipped), nil
}

func (r *messageRepository) ListUnreadIDs(ctx context.Context, userID string) ([]string, error) {
	query := `
	SELECT m.id
	FROM messages m
	JOIN conversations c ON m.conversation_id = c.id
	WHERE (c.participant1_id = $1 OR c.participant2_id = $1)
	  AND m.sender_id != $1
	  AND m.is_read = FALSE
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, storeErr(err, "list unread messages")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, storeErr(err, "scan unread message id")
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(err, "list unread messages")
	}

	return ids, nil
}

// publish emits a row-level feed event. Feed delivery is at-least-once and
// consumers resync from ground truth, so a publish failure is logged and
// never fails the write it describes.
func (r *messageRepository) publish(ctx context.Context, op string, state feed.MessageState) {
	ev, err := feed.NewEvent(feed.CollectionMessages, op, state)
	if err == nil {
		err = r.broker.Publish(ctx, ev)
	}
	if err != nil {
		r.logger.WithError(err).WithField("message_id", state.ID).
			Warn("Failed to publish message feed event")
	}
}
