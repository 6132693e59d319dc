package commitment

import (
	"context"
	"errors"
	"slices"

	"github.com/Raguls333/noolix-sub001/apperr"
	"github.com/Raguls333/noolix-sub001/audit"
	"github.com/Raguls333/noolix-sub001/auth"
	"github.com/Raguls333/noolix-sub001/plan"
	"github.com/Raguls333/noolix-sub001/securelink"
)

// Proof bundles what an acceptance certificate is rendered from.
type Proof struct {
	Commitment     Commitment
	Events         []audit.Event
	AcceptanceLink *securelink.Link
}

// Get returns a commitment with its assignee resolved.
func (s *Service) Get(ctx context.Context, p auth.Principal, id string) (Detail, error) {
	c, err := s.load(ctx, p, id)
	if err != nil {
		return Detail{}, err
	}
	d := Detail{Commitment: c}
	if c.AssignedToUserID == nil {
		return d, nil
	}
	u, err := s.users.GetUser(ctx, c.OrgID, *c.AssignedToUserID)
	switch {
	case err == nil:
		d.Assignee = &Person{ID: u.ID, Name: u.FullName, Email: u.Email}
	case !errors.Is(err, auth.ErrUserNotFound):
		return Detail{}, err
	}
	return d, nil
}

// List pages through the commitments visible to p, newest first.
func (s *Service) List(ctx context.Context, p auth.Principal, filter ListFilter) (ListResult, error) {
	if filter.Status != "" && !filter.Status.valid() {
		return ListResult{}, apperr.New(apperr.KindValidation, "unknown status %q", filter.Status)
	}
	return s.commitments.List(ctx, scopeFor(p), filter)
}

// History returns the audit trail of one commitment version, oldest first.
func (s *Service) History(ctx context.Context, p auth.Principal, id string) ([]audit.Event, error) {
	if _, err := s.load(ctx, p, id); err != nil {
		return nil, err
	}
	return s.audit.History(ctx, p.OrgID, id)
}

// Lineage returns the chain of versions ending at id, oldest first. A manager
// sees the chain only back to the first version not assigned to them.
func (s *Service) Lineage(ctx context.Context, p auth.Principal, id string) ([]Commitment, error) {
	c, err := s.load(ctx, p, id)
	if err != nil {
		return nil, err
	}
	scope := scopeFor(p)
	family, err := s.commitments.ListByRoot(ctx, scope, c.RootCommitmentID)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]Commitment, len(family))
	for _, f := range family {
		byID[f.ID] = f
	}

	chain := []Commitment{c}
	seen := map[string]bool{c.ID: true}
	for cur := c; cur.PreviousCommitmentID != nil; {
		prevID := *cur.PreviousCommitmentID
		if seen[prevID] {
			return nil, apperr.InvalidState("lineage of %s loops at %s", id, prevID)
		}
		prev, ok := byID[prevID]
		if scope.AssigneeID != "" && (!ok || assertScope(p, prev) != nil) {
			break
		}
		if !ok {
			return nil, apperr.NotFound("commitment %s not found", prevID)
		}
		seen[prevID] = true
		chain = append(chain, prev)
		cur = prev
	}
	slices.Reverse(chain)
	return chain, nil
}

// AcceptanceProof gathers the evidence that a client accepted the delivered
// work.
func (s *Service) AcceptanceProof(ctx context.Context, p auth.Principal, id string) (Proof, error) {
	c, err := s.load(ctx, p, id)
	if err != nil {
		return Proof{}, err
	}
	if err := s.requireFeature(ctx, p.OrgID, plan.FeatureAcceptanceProof); err != nil {
		s.rejected("acceptance_proof", err)
		return Proof{}, err
	}
	if c.AcceptedAt == nil {
		return Proof{}, apperr.InvalidState("commitment %s has not been accepted", c.ID)
	}

	events, err := s.audit.History(ctx, c.OrgID, c.ID)
	if err != nil {
		return Proof{}, err
	}
	links, err := s.links.ListForCommitment(ctx, c.OrgID, c.ID)
	if err != nil {
		return Proof{}, err
	}

	proof := Proof{Commitment: c, Events: events}
	for i := range links {
		l := links[i]
		if l.Purpose != securelink.PurposeAcceptance || l.UsedAt == nil {
			continue
		}
		if proof.AcceptanceLink == nil || l.UsedAt.After(*proof.AcceptanceLink.UsedAt) {
			proof.AcceptanceLink = &l
		}
	}
	return proof, nil
}
