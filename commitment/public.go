package commitment

import (
	"context"
	"strings"
	"time"

	"github.com/Raguls333/noolix-sub001/apperr"
	"github.com/Raguls333/noolix-sub001/audit"
	"github.com/Raguls333/noolix-sub001/notify"
	"github.com/Raguls333/noolix-sub001/securelink"
)

// ApprovalAction is the client's answer on an approval link.
type ApprovalAction string

const (
	ActionApprove       ApprovalAction = "approve"
	ActionRequestChange ApprovalAction = "request_change"
)

// ClientContext identifies the unauthenticated caller of a public link.
// Empty name and email fall back to the commitment's client snapshot.
type ClientContext struct {
	Name      string
	Email     string
	IP        string
	UserAgent string
}

type ApprovalDecision struct {
	Action ApprovalAction
	Reason string
	Client ClientContext
}

// LinkPreview is what a client sees before acting on a link.
type LinkPreview struct {
	Commitment Commitment
	Purpose    securelink.Purpose
	ExpiresAt  time.Time
}

// ConsumeApproval burns an approval link and applies the client's decision.
//
// A link pinned to an outdated version stays burned and the call fails with
// apperr.ErrLinkOldVersion. A decision the current state does not allow is
// refused before the link is burned, so the link stays usable.
func (s *Service) ConsumeApproval(ctx context.Context, raw string, d ApprovalDecision) (Commitment, error) {
	switch d.Action {
	case ActionApprove:
	case ActionRequestChange:
		if strings.TrimSpace(d.Reason) == "" {
			return Commitment{}, apperr.New(apperr.KindValidation, "a reason is required to request a change")
		}
	default:
		return Commitment{}, apperr.New(apperr.KindValidation, "unknown action %q", d.Action)
	}

	var (
		out   Commitment
		ch    change
		stale error
	)
	err := s.atomically(ctx, "consume_approval", func(ctx context.Context) error {
		link, c, err := s.claim(ctx, raw, securelink.PurposeApproval)
		if err != nil {
			return err
		}
		if c.Version != link.CommitmentVersion {
			// Returning nil commits the burn.
			stale = s.burnStale(ctx, raw, link, c)
			return nil
		}

		actor := clientActor(c, d.Client)
		switch d.Action {
		case ActionApprove:
			if c.Status != StatusAwaitingClientApproval {
				return apperr.InvalidState("commitment is %s, not awaiting approval", c.Status)
			}
		case ActionRequestChange:
			if err := s.checkChangeRequest(ctx, c, actor); err != nil {
				return err
			}
		}
		if link, err = s.links.Consume(ctx, raw, securelink.PurposeApproval); err != nil {
			return err
		}

		before := c.Version
		now := s.now().UTC()

		switch d.Action {
		case ActionApprove:
			c.ApprovedAt = &now
			c.Status = StatusInProgress
			ch = change{event: audit.EventClientApproved, message: "Approved by " + actor.Name}
		case ActionRequestChange:
			cr, err := s.openChangeRequest(ctx, &c, actor, d.Reason, now)
			if err != nil {
				return err
			}
			ch = change{
				event:   audit.EventClientRequestedChange,
				message: "Change requested by " + actor.Name,
				meta:    map[string]any{"changeRequestId": cr.ID, "reason": cr.Reason},
			}
		}
		ch.meta = withClientMeta(ch.meta, link, d.Client)

		c.UpdatedAt = now
		if err := s.commitments.Update(ctx, c); err != nil {
			return err
		}
		if err := s.record(ctx, c, before, actor, ch); err != nil {
			return err
		}
		out = c
		return nil
	})
	if err == nil {
		err = stale
	}
	if err != nil {
		s.rejected("consume_approval", err)
		return Commitment{}, err
	}
	transitionsTotal.WithLabelValues(string(ch.event)).Inc()

	kind := notify.KindClientApproved
	if d.Action == ActionRequestChange {
		kind = notify.KindChangeRequested
	}
	s.notify(ctx, notify.Message{
		Kind:         kind,
		OrgID:        out.OrgID,
		CommitmentID: out.ID,
		Title:        out.Title,
		To:           owner(out),
	})
	return out, nil
}

// ConsumeAcceptance burns an acceptance link and closes the delivered
// commitment.
func (s *Service) ConsumeAcceptance(ctx context.Context, raw string, cc ClientContext) (Commitment, error) {
	var (
		out   Commitment
		stale error
	)
	err := s.atomically(ctx, "consume_acceptance", func(ctx context.Context) error {
		link, c, err := s.claim(ctx, raw, securelink.PurposeAcceptance)
		if err != nil {
			return err
		}
		if c.Version != link.CommitmentVersion {
			stale = s.burnStale(ctx, raw, link, c)
			return nil
		}
		if c.Status != StatusDelivered {
			return apperr.InvalidState("commitment is %s, not delivered", c.Status)
		}
		if link, err = s.links.Consume(ctx, raw, securelink.PurposeAcceptance); err != nil {
			return err
		}

		actor := clientActor(c, cc)
		now := s.now().UTC()
		c.AcceptedAt = &now
		c.Status = StatusClosed
		c.UpdatedAt = now
		if err := s.commitments.Update(ctx, c); err != nil {
			return err
		}
		if err := s.record(ctx, c, c.Version, actor, change{
			event:   audit.EventClientAccepted,
			message: "Accepted by " + actor.Name,
			meta:    withClientMeta(nil, link, cc),
		}); err != nil {
			return err
		}
		out = c
		return nil
	})
	if err == nil {
		err = stale
	}
	if err != nil {
		s.rejected("consume_acceptance", err)
		return Commitment{}, err
	}
	transitionsTotal.WithLabelValues(string(audit.EventClientAccepted)).Inc()

	s.notify(ctx, notify.Message{
		Kind:         notify.KindClientAccepted,
		OrgID:        out.OrgID,
		CommitmentID: out.ID,
		Title:        out.Title,
		To:           owner(out),
	})
	return out, nil
}

// PreviewLink resolves a public link without consuming it. The view is
// logged on a best-effort basis.
func (s *Service) PreviewLink(ctx context.Context, raw string, purpose securelink.Purpose, cc ClientContext) (LinkPreview, error) {
	link, err := s.links.Resolve(ctx, raw, purpose)
	if err != nil {
		return LinkPreview{}, err
	}
	c, err := s.commitments.Get(ctx, Scope{OrgID: link.OrgID}, link.CommitmentID)
	if err != nil {
		return LinkPreview{}, err
	}
	if c.Version != link.CommitmentVersion {
		return LinkPreview{}, apperr.New(apperr.KindLinkOldVersion,
			"link is for version %d, commitment is at version %d", link.CommitmentVersion, c.Version)
	}

	s.audit.AppendBestEffort(ctx, audit.Entry{
		OrgID:             c.OrgID,
		CommitmentID:      c.ID,
		CommitmentVersion: c.Version,
		Actor:             clientActor(c, cc),
		Type:              audit.EventLinkViewed,
		Message:           "Link opened",
		Metadata:          withClientMeta(nil, link, cc),
	})
	return LinkPreview{Commitment: c, Purpose: link.Purpose, ExpiresAt: link.ExpiresAt}, nil
}

// claim resolves raw without burning it and loads the commitment it points
// to. Inside a transaction the commitment row stays locked until commit.
func (s *Service) claim(ctx context.Context, raw string, purpose securelink.Purpose) (securelink.Link, Commitment, error) {
	link, err := s.links.Resolve(ctx, raw, purpose)
	if err != nil {
		return securelink.Link{}, Commitment{}, err
	}
	c, err := s.commitments.Get(ctx, Scope{OrgID: link.OrgID}, link.CommitmentID)
	if err != nil {
		return securelink.Link{}, Commitment{}, err
	}
	return link, c, nil
}

// burnStale consumes a link pinned to an outdated version and returns the
// error the caller reports once the burn is committed.
func (s *Service) burnStale(ctx context.Context, raw string, link securelink.Link, c Commitment) error {
	if _, err := s.links.Consume(ctx, raw, link.Purpose); err != nil {
		return err
	}
	return apperr.New(apperr.KindLinkOldVersion,
		"link is for version %d, commitment is at version %d", link.CommitmentVersion, c.Version)
}

// checkChangeRequest reports whether by may open a change request on c.
func (s *Service) checkChangeRequest(ctx context.Context, c Commitment, by audit.Actor) error {
	_, open, err := s.changeRequests.FindOpen(ctx, c.OrgID, c.ID)
	if err != nil {
		return err
	}
	if open {
		return apperr.Conflict("commitment %s already has an open change request", c.ID)
	}
	if by.Type() == audit.ActorClient {
		if c.Status != StatusAwaitingClientApproval {
			return apperr.InvalidState("commitment is %s, not awaiting approval", c.Status)
		}
	} else if !canRaiseChangeRequest(c.Status) {
		return apperr.InvalidState("cannot request a change while commitment is %s", c.Status)
	}
	return nil
}

// openChangeRequest records a new OPEN change request against c and moves c
// to CHANGE_REQUEST_CREATED.
func (s *Service) openChangeRequest(ctx context.Context, c *Commitment, by audit.Actor, reason string, now time.Time) (ChangeRequest, error) {
	if err := s.checkChangeRequest(ctx, *c, by); err != nil {
		return ChangeRequest{}, err
	}

	cr := ChangeRequest{
		ID:                s.idGenerator(),
		OrgID:             c.OrgID,
		CommitmentID:      c.ID,
		CommitmentVersion: c.Version,
		Reason:            strings.TrimSpace(reason),
		Status:            ChangeRequestOpen,
		PreviousStatus:    c.Status,
		RequestedBy:       by,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.changeRequests.Insert(ctx, cr); err != nil {
		return ChangeRequest{}, err
	}
	c.Status = StatusChangeRequestCreated
	return cr, nil
}

func clientActor(c Commitment, cc ClientContext) audit.ClientActor {
	a := audit.ClientActor{Name: strings.TrimSpace(cc.Name), Email: strings.TrimSpace(cc.Email)}
	if a.Name == "" {
		a.Name = c.Client.Name
	}
	if a.Email == "" {
		a.Email = c.Client.Email
	}
	return a
}

func withClientMeta(meta map[string]any, link securelink.Link, cc ClientContext) map[string]any {
	if meta == nil {
		meta = map[string]any{}
	}
	meta["linkId"] = link.ID
	if cc.IP != "" {
		meta[audit.MetaIP] = cc.IP
	}
	if cc.UserAgent != "" {
		meta[audit.MetaUserAgent] = cc.UserAgent
	}
	return meta
}
