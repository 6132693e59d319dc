package commitment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Raguls333/noolix-sub001/apperr"
	"github.com/Raguls333/noolix-sub001/audit"
	"github.com/Raguls333/noolix-sub001/auth"
	"github.com/Raguls333/noolix-sub001/client"
	"github.com/Raguls333/noolix-sub001/db"
	"github.com/Raguls333/noolix-sub001/notify"
	"github.com/Raguls333/noolix-sub001/plan"
	"github.com/Raguls333/noolix-sub001/securelink"
)

// ClientDirectory resolves the live client record a snapshot is taken from.
type ClientDirectory interface {
	GetByID(ctx context.Context, orgID, id string) (client.Client, error)
}

// UserDirectory resolves organization members for assignment.
type UserDirectory interface {
	GetUser(ctx context.Context, orgID, userID string) (*auth.User, error)
}

// FeatureGate answers plan questions for an organization.
type FeatureGate interface {
	IsFeatureAllowed(ctx context.Context, orgID string, f plan.Feature) (bool, error)
}

// Deps wires the collaborators of a Service.
type Deps struct {
	Tx             db.Transactor
	Commitments    Repository
	ChangeRequests ChangeRequestRepository
	Links          *securelink.Service
	Audit          *audit.Log
	Clients        ClientDirectory
	Users          UserDirectory
	Plans          FeatureGate
	Notifier       notify.Notifier
	Logger         *zap.Logger
}

// Service runs the commitment state machine. Every transition loads, guards,
// writes and appends its audit event in one unit of work.
type Service struct {
	tx             db.Transactor
	commitments    Repository
	changeRequests ChangeRequestRepository
	links          *securelink.Service
	audit          *audit.Log
	clients        ClientDirectory
	users          UserDirectory
	plans          FeatureGate
	notifier       notify.Notifier
	logger         *zap.Logger
	idGenerator    func() string
	now            func() time.Time
}

func NewService(d Deps) *Service {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	notifier := d.Notifier
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Service{
		tx:             d.Tx,
		commitments:    d.Commitments,
		changeRequests: d.ChangeRequests,
		links:          d.Links,
		audit:          d.Audit,
		clients:        d.Clients,
		users:          d.Users,
		plans:          d.Plans,
		notifier:       notifier,
		logger:         logger,
		idGenerator:    func() string { return uuid.NewString() },
		now:            time.Now,
	}
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// atomically runs fn in a transaction. Stores that cannot open one get the
// same writes without it.
func (s *Service) atomically(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	err := s.tx.InTx(ctx, fn)
	if !errors.Is(err, db.ErrTxUnsupported) {
		return err
	}
	s.logger.Warn("store does not support transactions, writing without one", zap.String("op", op))
	return fn(ctx)
}

// change describes the audit event a successful transition appends.
type change struct {
	event   audit.EventType
	message string
	meta    map[string]any
	// version overrides the pre-transition version the event is logged against.
	version int
}

// mutate loads the commitment, lets fn transition it and persists the result
// with its event. A zero change from fn means nothing was modified.
func (s *Service) mutate(ctx context.Context, p auth.Principal, id, op string, fn func(ctx context.Context, c *Commitment) (change, error)) (Commitment, error) {
	var (
		out Commitment
		ch  change
	)
	err := s.atomically(ctx, op, func(ctx context.Context) error {
		c, err := s.load(ctx, p, id)
		if err != nil {
			return err
		}
		before := c.Version

		ch, err = fn(ctx, &c)
		if err != nil {
			return err
		}
		if ch.event == "" {
			out = c
			return nil
		}

		c.UpdatedAt = s.now().UTC()
		if err := s.commitments.Update(ctx, c); err != nil {
			return err
		}
		version := before
		if ch.version != 0 {
			version = ch.version
		}
		if err := s.record(ctx, c, version, audit.UserActor{UserID: p.UserID}, ch); err != nil {
			return err
		}
		out = c
		return nil
	})
	if err != nil {
		s.rejected(op, err)
		return Commitment{}, err
	}
	if ch.event != "" {
		transitionsTotal.WithLabelValues(string(ch.event)).Inc()
	}
	return out, nil
}

func (s *Service) record(ctx context.Context, c Commitment, version int, actor audit.Actor, ch change) error {
	_, err := s.audit.Append(ctx, audit.Entry{
		OrgID:             c.OrgID,
		CommitmentID:      c.ID,
		CommitmentVersion: version,
		Actor:             actor,
		Type:              ch.event,
		Message:           ch.message,
		Metadata:          ch.meta,
	})
	return err
}

// load fetches a commitment inside the caller's scope.
func (s *Service) load(ctx context.Context, p auth.Principal, id string) (Commitment, error) {
	c, err := s.commitments.Get(ctx, scopeFor(p), id)
	if err != nil {
		return Commitment{}, err
	}
	if err := assertScope(p, c); err != nil {
		return Commitment{}, err
	}
	return c, nil
}

func scopeFor(p auth.Principal) Scope {
	scope := Scope{OrgID: p.OrgID}
	if p.Role == auth.RoleManager {
		scope.AssigneeID = p.UserID
	}
	return scope
}

// assertScope re-checks a fetched commitment against the caller. The query
// predicate already filters; this catches stores that do not.
func assertScope(p auth.Principal, c Commitment) error {
	if c.OrgID != p.OrgID {
		return apperr.NotFound("commitment %s not found", c.ID)
	}
	if p.Role == auth.RoleManager && (c.AssignedToUserID == nil || *c.AssignedToUserID != p.UserID) {
		return apperr.Forbidden("commitment %s is not assigned to you", c.ID)
	}
	return nil
}

func (s *Service) requireFeature(ctx context.Context, orgID string, f plan.Feature) error {
	ok, err := s.plans.IsFeatureAllowed(ctx, orgID, f)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.New(apperr.KindPlanForbidden, "%s is not included in the organization's plan", f)
	}
	return nil
}

// checkAssignee validates userID as the new assignee chosen by p.
func (s *Service) checkAssignee(ctx context.Context, p auth.Principal, userID string) error {
	if err := s.requireFeature(ctx, p.OrgID, plan.FeatureAssignment); err != nil {
		return err
	}
	if p.Role == auth.RoleManager && userID != p.UserID {
		return apperr.Forbidden("managers can only assign commitments to themselves")
	}
	u, err := s.users.GetUser(ctx, p.OrgID, userID)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			return apperr.NotFound("user %s not found", userID)
		}
		return err
	}
	if !u.Active {
		return apperr.NotFound("user %s not found", userID)
	}
	return nil
}

// notify hands msg to the notifier after commit. Failures are logged only.
func (s *Service) notify(ctx context.Context, msg notify.Message) {
	if err := s.notifier.Notify(ctx, msg); err != nil {
		s.logger.Warn("notification failed",
			zap.String("kind", string(msg.Kind)),
			zap.String("commitment_id", msg.CommitmentID),
			zap.Error(err),
		)
	}
}

// owner is the member notified about client activity on c.
func owner(c Commitment) notify.Recipient {
	if c.AssignedToUserID != nil {
		return notify.Recipient{UserID: *c.AssignedToUserID}
	}
	return notify.Recipient{UserID: c.CreatedByUserID}
}

func (s *Service) rejected(op string, err error) {
	kind := apperr.KindOf(err)
	if kind == "" {
		s.logger.Error("commitment operation failed", zap.String("op", op), zap.Error(err))
		return
	}
	guardRejections.WithLabelValues(string(kind)).Inc()
}
