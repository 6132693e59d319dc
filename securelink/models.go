package securelink

import "time"

// Purpose scopes what a link may be used for.
type Purpose string

const (
	PurposeApproval   Purpose = "APPROVAL"
	PurposeAcceptance Purpose = "ACCEPTANCE"
)

// Link is a single-use, time-boxed capability pinned to one commitment
// version. Only the token hash is stored.
type Link struct {
	ID                string
	OrgID             string
	CommitmentID      string
	CommitmentVersion int
	Purpose           Purpose
	TokenHash         string
	ExpiresAt         time.Time
	UsedAt            *time.Time
	CreatedAt         time.Time
}

// Usable reports whether the link can still be consumed at now.
func (l Link) Usable(now time.Time) bool {
	return l.UsedAt == nil && l.ExpiresAt.After(now)
}
