package memstore

import (
	"context"
	"sort"

	"github.com/Raguls333/noolix-sub001/apperr"
	"github.com/Raguls333/noolix-sub001/commitment"
)

// ChangeRequests implements commitment.ChangeRequestRepository. The
// one-open-request rule is checked under the store lock.
type ChangeRequests struct{ s *Store }

func (r *ChangeRequests) Insert(_ context.Context, cr commitment.ChangeRequest) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if cr.Status == commitment.ChangeRequestOpen {
		for _, existing := range r.s.changeRequests {
			if existing.CommitmentID == cr.CommitmentID && existing.Status == commitment.ChangeRequestOpen {
				return apperr.Conflict("commitment %s already has an open change request", cr.CommitmentID)
			}
		}
	}
	r.s.changeRequests[cr.ID] = cr
	return nil
}

func (r *ChangeRequests) Get(_ context.Context, orgID, id string) (commitment.ChangeRequest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	cr, ok := r.s.changeRequests[id]
	if !ok || cr.OrgID != orgID {
		return commitment.ChangeRequest{}, apperr.NotFound("change request %s not found", id)
	}
	return cr, nil
}

func (r *ChangeRequests) FindOpen(_ context.Context, orgID, commitmentID string) (commitment.ChangeRequest, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, cr := range r.s.changeRequests {
		if cr.OrgID == orgID && cr.CommitmentID == commitmentID && cr.Status == commitment.ChangeRequestOpen {
			return cr, true, nil
		}
	}
	return commitment.ChangeRequest{}, false, nil
}

func (r *ChangeRequests) Update(_ context.Context, cr commitment.ChangeRequest) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, ok := r.s.changeRequests[cr.ID]
	if !ok || stored.OrgID != cr.OrgID {
		return apperr.NotFound("change request %s not found", cr.ID)
	}
	stored.Status = cr.Status
	stored.ResolvedAt = cr.ResolvedAt
	stored.ResolutionNote = cr.ResolutionNote
	stored.CreatedVersionID = cr.CreatedVersionID
	stored.UpdatedAt = cr.UpdatedAt
	r.s.changeRequests[cr.ID] = stored
	return nil
}

func (r *ChangeRequests) ListForCommitment(_ context.Context, orgID, commitmentID string) ([]commitment.ChangeRequest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := []commitment.ChangeRequest{}
	for _, cr := range r.s.changeRequests {
		if cr.OrgID == orgID && cr.CommitmentID == commitmentID {
			out = append(out, cr)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
