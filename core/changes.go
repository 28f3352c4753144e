package core

import "time"

// Collections
const (
	CollectionUsers    = "users"
	CollectionPosts    = "posts"
	CollectionComments = "comments"
	CollectionEvents   = "events"
	CollectionJobs     = "jobs"
)

// Operations
const (
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
)

// Change describes a successful write on a collection. Listeners re-fetch what they display.
type Change struct {
	Collection string    `json:"collection"`
	Op         string    `json:"op"`
	ID         string    `json:"id"`
	ParentID   string    `json:"parent_id,omitempty"`
	At         time.Time `json:"at"`
}

// Publisher fans changes out to listeners. Publish never blocks the writer.
type Publisher interface {
	Publish(change Change)
}

// NewChange stamps a Change with the current time.
func NewChange(collection, op, id string, parentID ...string) Change {
	ch := Change{Collection: collection, Op: op, ID: id, At: time.Now().UTC()}
	if len(parentID) > 0 {
		ch.ParentID = parentID[0]
	}
	return ch
}

type nopPublisher struct{}

func (nopPublisher) Publish(Change) {}

// NopPublisher discards every change.
var NopPublisher Publisher = nopPublisher{}
