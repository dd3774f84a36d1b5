package chat

import "time"

// Message is one persisted conversation turn. The history store assigns
// the id and timestamp; clients never mint either.
type Message struct {
	ID        string    `json:"id"`
	ChatID    string    `json:"chatId"`
	SenderID  string    `json:"senderId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}
