package feed

// MessageState is the record payload for events on the messages collection.
// RecipientID is denormalized at publish time so consumers do not need a
// conversation lookup per event.
type MessageState struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversation_id"`
	SenderID       string `json:"sender_id"`
	RecipientID    string `json:"recipient_id"`
	IsRead         bool   `json:"is_read"`
}

// HireState is the record payload for events on the hires collection.
type HireState struct {
	ID         string `json:"id"`
	ServiceID  string `json:"service_id"`
	ClientID   string `json:"client_id"`
	ProviderID string `json:"provider_id"`
	Status     string `json:"status"`
}
