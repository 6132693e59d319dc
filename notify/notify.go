// Package notify delivers best-effort messages about commitment activity.
package notify

import (
	"context"

	"go.uber.org/zap"
)

// Kind names the situation a message reports.
type Kind string

const (
	KindApprovalRequested   Kind = "APPROVAL_REQUESTED"
	KindAcceptanceRequested Kind = "ACCEPTANCE_REQUESTED"
	KindClientApproved      Kind = "CLIENT_APPROVED"
	KindChangeRequested     Kind = "CHANGE_REQUESTED"
	KindClientAccepted      Kind = "CLIENT_ACCEPTED"
)

// Recipient is addressed by email for clients and by user id for members.
type Recipient struct {
	UserID string
	Name   string
	Email  string
}

type Message struct {
	Kind         Kind
	OrgID        string
	CommitmentID string
	Title        string
	To           Recipient
	URL          string
}

// Notifier is called after the triggering change has been committed. Its
// errors never affect the outcome of that change.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// LogNotifier writes messages to a zap logger. It stands in for a mail or
// chat integration.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(_ context.Context, msg Message) error {
	n.logger.Info("notification",
		zap.String("kind", string(msg.Kind)),
		zap.String("org_id", msg.OrgID),
		zap.String("commitment_id", msg.CommitmentID),
		zap.String("to_user_id", msg.To.UserID),
		zap.String("to_email", msg.To.Email),
		zap.String("url", msg.URL),
	)
	return nil
}

// Nop discards every message.
type Nop struct{}

func (Nop) Notify(context.Context, Message) error { return nil }
