package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Log appends events to the audit trail and reads it back in order.
type Log struct {
	repo        Repository
	logger      *zap.Logger
	idGenerator func() string
	now         func() time.Time
}

func NewLog(repo Repository, logger *zap.Logger) *Log {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Log{
		repo:        repo,
		logger:      logger,
		idGenerator: func() string { return uuid.NewString() },
		now:         time.Now,
	}
}

func (l *Log) WithClock(now func() time.Time) *Log {
	l.now = now
	return l
}

func (l *Log) WithIDGenerator(gen func() string) *Log {
	l.idGenerator = gen
	return l
}

// Append writes one event. It joins the transaction carried by ctx, so a
// failure here aborts the surrounding transition.
func (l *Log) Append(ctx context.Context, e Entry) (Event, error) {
	if e.Actor == nil {
		return Event{}, fmt.Errorf("audit: missing actor")
	}
	if e.CommitmentID == "" || e.OrgID == "" {
		return Event{}, fmt.Errorf("audit: missing commitment scope")
	}

	ev := Event{
		ID:                l.idGenerator(),
		OrgID:             e.OrgID,
		CommitmentID:      e.CommitmentID,
		CommitmentVersion: e.CommitmentVersion,
		Actor:             e.Actor,
		Type:              e.Type,
		Message:           e.Message,
		Metadata:          e.Metadata,
		CreatedAt:         l.now().UTC(),
	}
	if err := l.repo.Append(ctx, ev); err != nil {
		return Event{}, err
	}
	return ev, nil
}

// AppendBestEffort writes an event whose loss is tolerable. Failures are
// logged and dropped.
func (l *Log) AppendBestEffort(ctx context.Context, e Entry) {
	if _, err := l.Append(ctx, e); err != nil {
		l.logger.Warn("audit event dropped",
			zap.String("commitment_id", e.CommitmentID),
			zap.String("event", string(e.Type)),
			zap.Error(err),
		)
	}
}

// History returns the events of a commitment, oldest first.
func (l *Log) History(ctx context.Context, orgID, commitmentID string) ([]Event, error) {
	return l.repo.ListForCommitment(ctx, orgID, commitmentID)
}
