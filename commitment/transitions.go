package commitment

import (
	"context"
	"errors"
	"strings"

	"github.com/Raguls333/noolix-sub001/apperr"
	"github.com/Raguls333/noolix-sub001/audit"
	"github.com/Raguls333/noolix-sub001/auth"
	"github.com/Raguls333/noolix-sub001/notify"
	"github.com/Raguls333/noolix-sub001/securelink"
)

// LinkResult is a commitment after a link was issued for it, plus the public
// URL carrying the raw token.
type LinkResult struct {
	Commitment Commitment
	URL        string
}

// Create stores a new DRAFT commitment at version 1 as the root of its own
// lineage.
func (s *Service) Create(ctx context.Context, p auth.Principal, params CreateParams) (Commitment, error) {
	params.normalize()
	if err := params.validate(); err != nil {
		return Commitment{}, err
	}
	rules, err := DefaultRules().Apply(params.Rules)
	if err != nil {
		return Commitment{}, err
	}

	var assignee *string
	switch {
	case params.AssignedToUserID != nil:
		if err := s.checkAssignee(ctx, p, *params.AssignedToUserID); err != nil {
			return Commitment{}, err
		}
		assignee = params.AssignedToUserID
	case p.Role == auth.RoleManager:
		// A manager only sees what is assigned to them.
		self := p.UserID
		assignee = &self
	}

	var out Commitment
	err = s.atomically(ctx, "create", func(ctx context.Context) error {
		cl, err := s.clients.GetByID(ctx, p.OrgID, params.ClientID)
		if err != nil {
			return err
		}

		now := s.now().UTC()
		id := s.idGenerator()
		c := Commitment{
			ID:               id,
			OrgID:            p.OrgID,
			ClientID:         cl.ID,
			Client:           ClientSnapshot{Name: cl.Name, Email: cl.Email, Company: cl.Company},
			Title:            params.Title,
			ScopeTitle:       params.ScopeTitle,
			ScopeDescription: params.ScopeDescription,
			Amount:           params.Amount,
			Currency:         params.Currency,
			PaymentTerms:     normalizeTerms(params.PaymentTerms),
			Milestones:       normalizeMilestones(params.Milestones),
			Deliverables:     normalizeDeliverables(params.Deliverables),
			Attachments:      params.Attachments,
			Rules:            rules,
			Status:           StatusDraft,
			Version:          1,
			RootCommitmentID: id,
			CreatedByUserID:  p.UserID,
			AssignedToUserID: assignee,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if err := s.commitments.Insert(ctx, c); err != nil {
			return err
		}
		if err := s.record(ctx, c, c.Version, audit.UserActor{UserID: p.UserID}, change{
			event:   audit.EventCommitmentCreated,
			message: "Commitment created",
		}); err != nil {
			return err
		}
		out = c
		return nil
	})
	if err != nil {
		s.rejected("create", err)
		return Commitment{}, err
	}
	transitionsTotal.WithLabelValues(string(audit.EventCommitmentCreated)).Inc()
	return out, nil
}

// SubmitForReview moves a draft into internal review.
func (s *Service) SubmitForReview(ctx context.Context, p auth.Principal, id string) (Commitment, error) {
	return s.mutate(ctx, p, id, "submit_for_review", func(_ context.Context, c *Commitment) (change, error) {
		if c.Status != StatusDraft {
			return change{}, apperr.InvalidState("only drafts can be submitted for review, commitment is %s", c.Status)
		}
		c.Status = StatusInternalReview
		return change{event: audit.EventSubmittedForReview, message: "Submitted for internal review"}, nil
	})
}

// SendApprovalLink issues an approval link pinned to the current version and
// moves the commitment to AWAITING_CLIENT_APPROVAL. With resend, a commitment
// already awaiting approval gets an additional link; earlier ones stay valid.
func (s *Service) SendApprovalLink(ctx context.Context, p auth.Principal, id string, resend bool) (LinkResult, error) {
	var issued securelink.Issued
	c, err := s.mutate(ctx, p, id, "send_approval_link", func(ctx context.Context, c *Commitment) (change, error) {
		if !canSendApprovalLink(c.Status, resend) {
			return change{}, apperr.InvalidState("cannot send an approval link while commitment is %s", c.Status)
		}
		var err error
		issued, err = s.links.Issue(ctx, securelink.IssueParams{
			OrgID:             c.OrgID,
			CommitmentID:      c.ID,
			CommitmentVersion: c.Version,
			Purpose:           securelink.PurposeApproval,
		})
		if err != nil {
			return change{}, err
		}
		now := s.now().UTC()
		c.ApprovalSentAt = &now
		c.Status = StatusAwaitingClientApproval
		return change{
			event:   audit.EventApprovalLinkSent,
			message: "Approval link sent to " + c.Client.Email,
			meta:    map[string]any{"linkId": issued.Link.ID, "resend": resend, "expiresAt": issued.Link.ExpiresAt},
		}, nil
	})
	if err != nil {
		return LinkResult{}, err
	}

	s.notify(ctx, notify.Message{
		Kind:         notify.KindApprovalRequested,
		OrgID:        c.OrgID,
		CommitmentID: c.ID,
		Title:        c.Title,
		To:           notify.Recipient{Name: c.Client.Name, Email: c.Client.Email},
		URL:          issued.URL,
	})
	return LinkResult{Commitment: c, URL: issued.URL}, nil
}

// MarkDelivered records delivery of an in-progress commitment once every
// deliverable is delivered or accepted. Without an acceptance requirement the
// commitment closes immediately.
func (s *Service) MarkDelivered(ctx context.Context, p auth.Principal, id string) (Commitment, error) {
	return s.mutate(ctx, p, id, "mark_delivered", func(_ context.Context, c *Commitment) (change, error) {
		if c.Status != StatusInProgress {
			return change{}, apperr.InvalidState("only in-progress commitments can be delivered, commitment is %s", c.Status)
		}
		if !deliverablesDone(c.Deliverables) {
			return change{}, apperr.InvalidState("every deliverable must be delivered or accepted first")
		}
		now := s.now().UTC()
		c.DeliveredAt = &now
		if c.Rules.AcceptanceRequired {
			c.Status = StatusDelivered
			return change{event: audit.EventMarkedDelivered, message: "Marked as delivered"}, nil
		}
		c.AcceptedAt = &now
		c.Status = StatusClosed
		return change{
			event:   audit.EventMarkedDelivered,
			message: "Marked as delivered and closed",
			meta:    map[string]any{"autoClosed": true},
		}, nil
	})
}

// SendAcceptanceLink issues an acceptance link for a delivered commitment.
// resend is recorded but widens nothing: the commitment must be DELIVERED
// either way.
func (s *Service) SendAcceptanceLink(ctx context.Context, p auth.Principal, id string, resend bool) (LinkResult, error) {
	var issued securelink.Issued
	c, err := s.mutate(ctx, p, id, "send_acceptance_link", func(ctx context.Context, c *Commitment) (change, error) {
		if !canSendAcceptanceLink(*c) {
			return change{}, apperr.InvalidState("acceptance requires a delivered commitment that asks for acceptance, commitment is %s", c.Status)
		}
		var err error
		issued, err = s.links.Issue(ctx, securelink.IssueParams{
			OrgID:             c.OrgID,
			CommitmentID:      c.ID,
			CommitmentVersion: c.Version,
			Purpose:           securelink.PurposeAcceptance,
		})
		if err != nil {
			return change{}, err
		}
		return change{
			event:   audit.EventAcceptanceLinkSent,
			message: "Acceptance link sent to " + c.Client.Email,
			meta:    map[string]any{"linkId": issued.Link.ID, "resend": resend, "expiresAt": issued.Link.ExpiresAt},
		}, nil
	})
	if err != nil {
		return LinkResult{}, err
	}

	s.notify(ctx, notify.Message{
		Kind:         notify.KindAcceptanceRequested,
		OrgID:        c.OrgID,
		CommitmentID: c.ID,
		Title:        c.Title,
		To:           notify.Recipient{Name: c.Client.Name, Email: c.Client.Email},
		URL:          issued.URL,
	})
	return LinkResult{Commitment: c, URL: issued.URL}, nil
}

// Update applies patch under the field locks of the current status. A
// material change to a commitment the client has already seen produces a new
// version that must be approved again. A patch that changes nothing writes
// nothing.
func (s *Service) Update(ctx context.Context, p auth.Principal, id string, patch Patch) (Commitment, error) {
	patch.normalize()
	if err := patch.validate(); err != nil {
		return Commitment{}, err
	}

	return s.mutate(ctx, p, id, "update", func(ctx context.Context, c *Commitment) (change, error) {
		next, cs, err := applyPatch(*c, patch)
		if err != nil {
			return change{}, err
		}
		if cs.empty() {
			return change{}, nil
		}

		hasOpen := false
		if c.Status == StatusAwaitingClientApproval {
			if _, hasOpen, err = s.changeRequests.FindOpen(ctx, c.OrgID, c.ID); err != nil {
				return change{}, err
			}
		}
		reapprove := requiresReapproval(*c, cs)
		if err := checkLocks(*c, cs, hasOpen, reapprove); err != nil {
			return change{}, err
		}

		fields := cs.fields()
		if reapprove {
			from := c.Version
			bump(&next)
			*c = next
			return change{
				event:   audit.EventVersionBumped,
				message: "Changes require client re-approval",
				meta:    map[string]any{"fields": fields, "fromVersion": from},
				version: next.Version,
			}, nil
		}
		*c = next
		return change{
			event:   audit.EventCommitmentUpdated,
			message: "Updated " + strings.Join(fields, ", "),
			meta:    map[string]any{"fields": fields},
		}, nil
	})
}

// Assign hands the commitment to another member of the organization.
func (s *Service) Assign(ctx context.Context, p auth.Principal, id, userID string) (Commitment, error) {
	return s.mutate(ctx, p, id, "assign", func(ctx context.Context, c *Commitment) (change, error) {
		if err := s.checkAssignee(ctx, p, userID); err != nil {
			return change{}, err
		}
		meta := map[string]any{"to": userID}
		if c.AssignedToUserID != nil {
			meta["from"] = *c.AssignedToUserID
		}
		to := userID
		c.AssignedToUserID = &to
		return change{event: audit.EventAssigneeChanged, message: "Assignee changed", meta: meta}, nil
	})
}

// Cancel ends a commitment that has not reached a terminal status. An open
// change request is rejected along with it.
func (s *Service) Cancel(ctx context.Context, p auth.Principal, id, reason string) (Commitment, error) {
	return s.mutate(ctx, p, id, "cancel", func(ctx context.Context, c *Commitment) (change, error) {
		if c.Status.Terminal() {
			return change{}, apperr.InvalidState("commitment is already %s", c.Status)
		}
		cr, open, err := s.changeRequests.FindOpen(ctx, c.OrgID, c.ID)
		if err != nil {
			return change{}, err
		}
		if open {
			now := s.now().UTC()
			note := "commitment cancelled"
			cr.Status = ChangeRequestRejected
			cr.ResolvedAt = &now
			cr.ResolutionNote = &note
			cr.UpdatedAt = now
			if err := s.changeRequests.Update(ctx, cr); err != nil {
				return change{}, err
			}
		}

		from := c.Status
		c.Status = StatusCancelled
		meta := map[string]any{"from": string(from)}
		if reason = strings.TrimSpace(reason); reason != "" {
			meta["reason"] = reason
		}
		return change{event: audit.EventCommitmentCancelled, message: "Commitment cancelled", meta: meta}, nil
	})
}

func isNotFound(err error) bool {
	return errors.Is(err, apperr.ErrNotFound)
}
