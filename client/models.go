package client

import "time"

// Client is an organization's customer. Commitments copy its identity at
// creation time, so edits here never rewrite existing commitments.
type Client struct {
	ID        string
	OrgID     string
	Name      string
	Email     string
	Company   string
	DeletedAt *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CreateParams contains write parameters for creating clients.
type CreateParams struct {
	OrgID   string `validate:"required"`
	Name    string `validate:"required,max=200"`
	Email   string `validate:"required,email"`
	Company string `validate:"max=200"`
}
