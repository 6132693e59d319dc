package memstore

import (
	"context"
	"slices"
	"sort"

	"github.com/Raguls333/noolix-sub001/apperr"
	"github.com/Raguls333/noolix-sub001/commitment"
)

// Commitments implements commitment.Repository.
type Commitments struct{ s *Store }

func (r *Commitments) Insert(_ context.Context, c commitment.Commitment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.commitments[c.ID]; exists {
		return apperr.Conflict("commitment %s already exists", c.ID)
	}
	r.s.commitments[c.ID] = cloneCommitment(c)
	return nil
}

func (r *Commitments) Get(_ context.Context, scope commitment.Scope, id string) (commitment.Commitment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c, ok := r.s.commitments[id]
	if !ok || !inScope(c, scope) {
		return commitment.Commitment{}, apperr.NotFound("commitment %s not found", id)
	}
	return cloneCommitment(c), nil
}

func (r *Commitments) Update(_ context.Context, c commitment.Commitment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, ok := r.s.commitments[c.ID]
	if !ok || stored.OrgID != c.OrgID {
		return apperr.NotFound("commitment %s not found", c.ID)
	}
	r.s.commitments[c.ID] = cloneCommitment(c)
	return nil
}

func (r *Commitments) List(_ context.Context, scope commitment.Scope, f commitment.ListFilter) (commitment.ListResult, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var matched []commitment.Commitment
	for _, c := range r.s.commitments {
		if !inScope(c, scope) {
			continue
		}
		if f.Status != "" && c.Status != f.Status {
			continue
		}
		if f.ClientID != "" && c.ClientID != f.ClientID {
			continue
		}
		if f.AssigneeID != "" && (c.AssignedToUserID == nil || *c.AssignedToUserID != f.AssigneeID) {
			continue
		}
		matched = append(matched, c)
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})

	limit, offset := bounds(f.Limit, f.Offset)
	out := commitment.ListResult{Total: len(matched), Items: []commitment.Commitment{}}
	for i := offset; i < len(matched) && i < offset+limit; i++ {
		out.Items = append(out.Items, cloneCommitment(matched[i]))
	}
	return out, nil
}

func (r *Commitments) ListByRoot(_ context.Context, scope commitment.Scope, rootID string) ([]commitment.Commitment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []commitment.Commitment
	for _, c := range r.s.commitments {
		if inScope(c, scope) && c.RootCommitmentID == rootID {
			out = append(out, cloneCommitment(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

func inScope(c commitment.Commitment, scope commitment.Scope) bool {
	if c.OrgID != scope.OrgID {
		return false
	}
	if scope.AssigneeID != "" {
		return c.AssignedToUserID != nil && *c.AssignedToUserID == scope.AssigneeID
	}
	return true
}

func bounds(limit, offset int) (int, int) {
	switch {
	case limit <= 0:
		limit = 50
	case limit > 200:
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func cloneCommitment(c commitment.Commitment) commitment.Commitment {
	c.PaymentTerms = slices.Clone(c.PaymentTerms)
	c.Milestones = slices.Clone(c.Milestones)
	c.Deliverables = slices.Clone(c.Deliverables)
	c.Attachments = slices.Clone(c.Attachments)
	return c
}
