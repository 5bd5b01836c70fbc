package model

import "time"

// Item is a single post in the remote collection.
// ID is assigned by the server on create and never changes.
type Item struct {
	ID            string     `json:"todoId"`
	Name          string     `json:"name"`
	DueDate       string     `json:"dueDate"`
	Done          bool       `json:"done"`
	Upvote        int        `json:"upvote"`
	Downvote      int        `json:"downvote"`
	AttachmentURL string     `json:"attachmentUrl,omitempty"`
	CreatedAt     *time.Time `json:"createdAt,omitempty"`
}

// CreateRequest is the POST body for a new item.
type CreateRequest struct {
	Name    string `json:"name"`
	DueDate string `json:"dueDate"`
}

// UpdateRequest carries every mutable field; the server replaces all of them.
type UpdateRequest struct {
	Name     string `json:"name"`
	DueDate  string `json:"dueDate"`
	Done     bool   `json:"done"`
	Upvote   int    `json:"upvote"`
	Downvote int    `json:"downvote"`
}

// Update returns the full mutable state of the item as a PATCH body.
func (it Item) Update() UpdateRequest {
	return UpdateRequest{
		Name:     it.Name,
		DueDate:  it.DueDate,
		Done:     it.Done,
		Upvote:   it.Upvote,
		Downvote: it.Downvote,
	}
}

// Apply copies the mutable fields of u onto the item.
func (it Item) Apply(u UpdateRequest) Item {
	it.Name = u.Name
	it.DueDate = u.DueDate
	it.Done = u.Done
	it.Upvote = u.Upvote
	it.Downvote = u.Downvote
	return it
}

// HasAttachment reports whether an image was uploaded for the item.
func (it Item) HasAttachment() bool { return it.AttachmentURL != "" }
