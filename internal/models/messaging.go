package models

// Response is an inbound text message from a chat transport.
type Response struct {
	ID   string `json:"id"`   // transport message ID, used for deduplication
	From string `json:"from"` // canonical phone number of the sender
	Body string `json:"body"`
	Time int64  `json:"time"` // unix seconds
}
