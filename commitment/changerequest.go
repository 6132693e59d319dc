package commitment

import (
	"context"
	"strings"

	"github.com/Raguls333/noolix-sub001/apperr"
	"github.com/Raguls333/noolix-sub001/audit"
	"github.com/Raguls333/noolix-sub001/auth"
)

// AcceptChangeParams resolves a change request into a new version.
type AcceptChangeParams struct {
	Patch            Patch
	Note             string
	AssignedToUserID *string
}

// RequestChange opens a change request on behalf of a member.
func (s *Service) RequestChange(ctx context.Context, p auth.Principal, id, reason string) (ChangeRequest, error) {
	if strings.TrimSpace(reason) == "" {
		return ChangeRequest{}, apperr.New(apperr.KindValidation, "a reason is required to request a change")
	}

	var cr ChangeRequest
	_, err := s.mutate(ctx, p, id, "request_change", func(ctx context.Context, c *Commitment) (change, error) {
		var err error
		cr, err = s.openChangeRequest(ctx, c, audit.UserActor{UserID: p.UserID}, reason, s.now().UTC())
		if err != nil {
			return change{}, err
		}
		return change{
			event:   audit.EventChangeRequestCreated,
			message: "Change request opened",
			meta:    map[string]any{"changeRequestId": cr.ID, "reason": cr.Reason},
		}, nil
	})
	if err != nil {
		return ChangeRequest{}, err
	}
	return cr, nil
}

// AcceptChangeRequest forks the commitment the request was raised against
// into a new version carrying params.Patch. The predecessor is left as it is.
func (s *Service) AcceptChangeRequest(ctx context.Context, p auth.Principal, crID string, params AcceptChangeParams) (Commitment, error) {
	params.Patch.normalize()
	if err := params.Patch.validate(); err != nil {
		return Commitment{}, err
	}

	found, err := s.changeRequests.Get(ctx, p.OrgID, crID)
	if err != nil {
		s.rejected("accept_change_request", err)
		return Commitment{}, err
	}

	var out Commitment
	err = s.atomically(ctx, "accept_change_request", func(ctx context.Context) error {
		// Lock order: commitment, then change request.
		prev, err := s.load(ctx, p, found.CommitmentID)
		if err != nil {
			return err
		}
		cr, err := s.changeRequests.Get(ctx, p.OrgID, crID)
		if err != nil {
			return err
		}
		if cr.Status != ChangeRequestOpen {
			return apperr.InvalidState("change request is already %s", cr.Status)
		}

		snapshot := prev.Client
		cl, err := s.clients.GetByID(ctx, prev.OrgID, prev.ClientID)
		switch {
		case err == nil:
			snapshot = ClientSnapshot{Name: cl.Name, Email: cl.Email, Company: cl.Company}
		case !isNotFound(err):
			return err
		}

		now := s.now().UTC()
		next := fork(prev, cr, s.idGenerator(), p.UserID, snapshot, now)
		next, _, err = applyPatch(next, params.Patch)
		if err != nil {
			return err
		}
		if a := params.AssignedToUserID; a != nil && (next.AssignedToUserID == nil || *next.AssignedToUserID != *a) {
			if err := s.checkAssignee(ctx, p, *a); err != nil {
				return err
			}
			assignee := *a
			next.AssignedToUserID = &assignee
		}
		if err := s.commitments.Insert(ctx, next); err != nil {
			return err
		}

		cr.Status = ChangeRequestAccepted
		cr.ResolvedAt = &now
		cr.ResolutionNote = note(params.Note)
		cr.CreatedVersionID = &next.ID
		cr.UpdatedAt = now
		if err := s.changeRequests.Update(ctx, cr); err != nil {
			return err
		}

		actor := audit.UserActor{UserID: p.UserID}
		if err := s.record(ctx, prev, prev.Version, actor, change{
			event:   audit.EventChangeRequestAccepted,
			message: "Change request accepted",
			meta:    map[string]any{"changeRequestId": cr.ID, "newCommitmentId": next.ID},
		}); err != nil {
			return err
		}
		if err := s.record(ctx, next, next.Version, actor, change{
			event:   audit.EventCommitmentCreated,
			message: "New version created from change request",
			meta:    map[string]any{"changeRequestId": cr.ID, "previousCommitmentId": prev.ID},
		}); err != nil {
			return err
		}
		out = next
		return nil
	})
	if err != nil {
		s.rejected("accept_change_request", err)
		return Commitment{}, err
	}
	transitionsTotal.WithLabelValues(string(audit.EventChangeRequestAccepted)).Inc()
	return out, nil
}

// RejectChangeRequest closes the request and returns the commitment to the
// status it had when the request was opened.
func (s *Service) RejectChangeRequest(ctx context.Context, p auth.Principal, crID, resolution string) (Commitment, error) {
	cr, err := s.changeRequests.Get(ctx, p.OrgID, crID)
	if err != nil {
		s.rejected("reject_change_request", err)
		return Commitment{}, err
	}

	return s.mutate(ctx, p, cr.CommitmentID, "reject_change_request", func(ctx context.Context, c *Commitment) (change, error) {
		// Lock order: commitment, then change request.
		cr, err := s.changeRequests.Get(ctx, p.OrgID, crID)
		if err != nil {
			return change{}, err
		}
		if cr.Status != ChangeRequestOpen {
			return change{}, apperr.InvalidState("change request is already %s", cr.Status)
		}

		now := s.now().UTC()
		cr.Status = ChangeRequestRejected
		cr.ResolvedAt = &now
		cr.ResolutionNote = note(resolution)
		cr.UpdatedAt = now
		if err := s.changeRequests.Update(ctx, cr); err != nil {
			return change{}, err
		}

		from := c.Status
		c.Status = cr.PreviousStatus
		return change{
			event:   audit.EventChangeRequestRejected,
			message: "Change request rejected",
			meta:    map[string]any{"changeRequestId": cr.ID, "from": string(from), "to": string(cr.PreviousStatus)},
		}, nil
	})
}

// ListChangeRequests returns the change requests of a commitment, newest first.
func (s *Service) ListChangeRequests(ctx context.Context, p auth.Principal, commitmentID string) ([]ChangeRequest, error) {
	if _, err := s.load(ctx, p, commitmentID); err != nil {
		return nil, err
	}
	return s.changeRequests.ListForCommitment(ctx, p.OrgID, commitmentID)
}

func note(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
