// Package notify delivers rendered digests. Delivery is independent of
// persistence: a failed send never touches stored listings.
package notify

import "context"

// Attachment is a file shipped alongside a message.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Message is a transport-neutral notification.
type Message struct {
	Subject     string
	Text        string
	HTML        string
	Attachments []Attachment
}

// Sink is the minimal interface every delivery channel implements.
type Sink interface {
	Name() string
	Send(ctx context.Context, msg Message) error
}
