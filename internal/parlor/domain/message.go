package domain

import "time"

// Message is a post on the public board. Posting requires the comment
// permission; deleting someone else's message requires moderate.
type Message struct {
	ID        string
	AuthorID  string
	Body      string
	CreatedAt time.Time
}

// MaxMessageBody is the longest accepted message body.
const MaxMessageBody = 200
