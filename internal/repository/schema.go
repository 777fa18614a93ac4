package repository

import (
	"database/sql"
)

// InitializeTables creates the marketplace core schema. The uniqueness
// constraints here are the only mutual-exclusion mechanism in the system:
// one conversation per canonical participant pair, one review per hire.
func InitializeTables(db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS conversations (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		participant1_id UUID NOT NULL,
		participant2_id UUID NOT NULL,
		last_message_at TIMESTAMP NOT NULL DEFAULT NOW(),
		created_at TIMESTAMP NOT NULL DEFAULT NOW(),
		UNIQUE (participant1_id, participant2_id),
		CHECK (participant1_id < participant2_id)
	);

	CREATE TABLE IF NOT EXISTS messages (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		conversation_id UUID NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
		sender_id UUID NOT NULL,
		content TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT NOW(),
		is_read BOOLEAN NOT NULL DEFAULT FALSE
	);

	CREATE TABLE IF NOT EXISTS hires (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		service_id UUID NOT NULL,
		client_id UUID NOT NULL,
		provider_id UUID NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		created_at TIMESTAMP NOT NULL DEFAULT NOW(),
		CHECK (client_id <> provider_id)
	);

	CREATE TABLE IF NOT EXISTS reviews (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		hire_id UUID NOT NULL UNIQUE REFERENCES hires(id),
		service_id UUID NOT NULL,
		client_id UUID NOT NULL,
		rating INTEGER NOT NULL CHECK (rating BETWEEN 1 AND 5),
		comment TEXT,
		photos TEXT[] NOT NULL DEFAULT '{}',
		created_at TIMESTAMP NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS profiles (
		id UUID PRIMARY KEY,
		role TEXT NOT NULL,
		verified BOOLEAN NOT NULL DEFAULT FALSE
	);

	CREATE INDEX IF NOT EXISTS idx_messages_conversation_id ON messages(conversation_id);
	CREATE INDEX IF NOT EXISTS idx_messages_unread ON messages(conversation_id, is_read) WHERE is_read = FALSE;
	CREATE INDEX IF NOT EXISTS idx_conversations_participant1 ON conversations(participant1_id);
	CREATE INDEX IF NOT EXISTS idx_conversations_participant2 ON conversations(participant2_id);
	CREATE INDEX IF NOT EXISTS idx_hires_provider_status ON hires(provider_id, status);
	CREATE INDEX IF NOT EXISTS idx_hires_client ON hires(client_id);
	CREATE INDEX IF NOT EXISTS idx_reviews_service ON reviews(service_id);
	`

	_, err := db.Exec(query)
	return err
}
