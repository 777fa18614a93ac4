package models

import (
	"strings"
	"time"
)

// HireStatus is the lifecycle state of a hire request.
type HireStatus string

const (
	HireStatusPending   HireStatus = "pending"
	HireStatusAccepted  HireStatus = "accepted"
	HireStatusRejected  HireStatus = "rejected"
	HireStatusCompleted HireStatus = "completed"
)

// Terminal reports whether no further transition may leave the status.
func (s HireStatus) Terminal() bool {
	return s == HireStatusRejected || s == HireStatusCompleted
}

// Profile roles. Provider-only actions require RoleProvider.
const (
	RoleClient   = "client"
	RoleProvider = "provider"
)

// Conversation is the single thread between two users. Participants are
// stored in canonical (low, high) order so a pair has exactly one row.
type Conversation struct {
	ID             string    `json:"id"`
	Participant1ID string    `json:"participant1_id"`
	Participant2ID string    `json:"participant2_id"`
	LastMessageAt  time.Time `json:"last_message_at"`
	CreatedAt      time.Time `json:"created_at"`
}

// HasParticipant reports whether userID is a party to the conversation.
func (c *Conversation) HasParticipant(userID string) bool {
	return c.Participant1ID == userID || c.Participant2ID == userID
}

// Peer returns the other participant for userID, or "" if userID is not a
// participant.
func (c *Conversation) Peer(userID string) string {
	switch userID {
	case c.Participant1ID:
		return c.Participant2ID
	case c.Participant2ID:
		return c.Participant1ID
	}
	return ""
}

// Message is immutable after creation except for IsRead, which only ever
// moves from false to true.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
	IsRead         bool      `json:"is_read"`
}

// Hire is a client's request to engage a provider's service. Status is the
// only mutable field.
type Hire struct {
	ID         string     `json:"id"`
	ServiceID  string     `json:"service_id"`
	ClientID   string     `json:"client_id"`
	ProviderID string     `json:"provider_id"`
	Status     HireStatus `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Review is written once by the client of a completed hire. At most one
// review exists per hire.
type Review struct {
	ID        string    `json:"id"`
	HireID    string    `json:"hire_id"`
	ServiceID string    `json:"service_id"`
	ClientID  string    `json:"client_id"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment,omitempty"`
	Photos    []string  `json:"photos"`
	CreatedAt time.Time `json:"created_at"`
}

// Profile is read-only for this core; verification flags are owned by an
// external approval workflow.
type Profile struct {
	ID       string `json:"id"`
	Role     string `json:"role"`
	Verified bool   `json:"verified"`
}

// CanonicalPair orders two participant identifiers into the fixed
// (low, high) form used for conversation identity. Ids are lowercased
// first: Go's byte-wise string order then agrees with how Postgres
// compares the uuid columns, and a pair canonicalizes identically
// regardless of input casing.
func CanonicalPair(a, b string) (string, string) {
	a, b = strings.ToLower(a), strings.ToLower(b)
	if a > b {
		return b, a
	}
	return a, b
}
