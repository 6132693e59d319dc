package httpapi

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/Raguls333/noolix-sub001/auth"
	"github.com/Raguls333/noolix-sub001/commitment"
)

type createCommitmentRequest struct {
	ClientID         string                   `json:"clientId"`
	Title            string                   `json:"title"`
	ScopeTitle       string                   `json:"scopeTitle"`
	ScopeDescription string                   `json:"scopeDescription"`
	Amount           decimal.Decimal          `json:"amount"`
	Currency         string                   `json:"currency"`
	PaymentTerms     []commitment.PaymentTerm `json:"paymentTerms"`
	Milestones       []commitment.Milestone   `json:"milestones"`
	Deliverables     []commitment.Deliverable `json:"deliverables"`
	Attachments      []commitment.Attachment  `json:"attachments"`
	Rules            *commitment.RulesPatch   `json:"approvalRules"`
	AssignedToUserID *string                  `json:"assignedToUserId"`
}

type patchRequest struct {
	Title            *string                   `json:"title"`
	ScopeTitle       *string                   `json:"scopeTitle"`
	ScopeDescription *string                   `json:"scopeDescription"`
	Amount           *decimal.Decimal          `json:"amount"`
	Currency         *string                   `json:"currency"`
	PaymentTerms     *[]commitment.PaymentTerm `json:"paymentTerms"`
	Milestones       *[]commitment.Milestone   `json:"milestones"`
	Deliverables     *[]commitment.Deliverable `json:"deliverables"`
	Attachments      *[]commitment.Attachment  `json:"attachments"`
	Rules            *commitment.RulesPatch    `json:"approvalRules"`
}

func (p patchRequest) patch() commitment.Patch {
	return commitment.Patch{
		Title:            p.Title,
		ScopeTitle:       p.ScopeTitle,
		ScopeDescription: p.ScopeDescription,
		Amount:           p.Amount,
		Currency:         p.Currency,
		PaymentTerms:     p.PaymentTerms,
		Milestones:       p.Milestones,
		Deliverables:     p.Deliverables,
		Attachments:      p.Attachments,
		Rules:            p.Rules,
	}
}

type acceptChangeRequest struct {
	patchRequest
	Note             string  `json:"note"`
	AssignedToUserID *string `json:"assignedToUserId"`
}

type resendRequest struct {
	Resend bool `json:"resend"`
}

type assignRequest struct {
	UserID string `json:"userId"`
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

type noteRequest struct {
	Note string `json:"note"`
}

// principal returns the caller set by authenticate.
func (s *Server) principal(w http.ResponseWriter, r *http.Request) (auth.Principal, bool) {
	p, ok := principalFrom(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
	}
	return p, ok
}

func (s *Server) handleCreateCommitment(w http.ResponseWriter, r *http.Request) {
	p, ok := s.principal(w, r)
	if !ok {
		return
	}
	var req createCommitmentRequest
	if err := readJSON(w, r, &req); err != nil {
		s.badRequest(w, r, err)
		return
	}

	c, err := s.commitments.Create(r.Context(), p, commitment.CreateParams{
		ClientID:         req.ClientID,
		Title:            req.Title,
		ScopeTitle:       req.ScopeTitle,
		ScopeDescription: req.ScopeDescription,
		Amount:           req.Amount,
		Currency:         req.Currency,
		PaymentTerms:     req.PaymentTerms,
		Milestones:       req.Milestones,
		Deliverables:     req.Deliverables,
		Attachments:      req.Attachments,
		Rules:            req.Rules,
		AssignedToUserID: req.AssignedToUserID,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newCommitmentResponse(c, p.Role))
}

func (s *Server) handleListCommitments(w http.ResponseWriter, r *http.Request) {
	p, ok := s.principal(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	filter := commitment.ListFilter{
		Status:     commitment.Status(q.Get("status")),
		ClientID:   q.Get("clientId"),
		AssigneeID: q.Get("assignedTo"),
	}
	for name, dst := range map[string]*int{"limit": &filter.Limit, "offset": &filter.Offset} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, r, http.StatusBadRequest, "BAD_REQUEST", name+" must be a non-negative integer")
			return
		}
		*dst = n
	}

	res, err := s.commitments.List(r.Context(), p, filter)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": newCommitmentList(res.Items, p.Role),
		"total": res.Total,
	})
}

func (s *Server) handleGetCommitment(w http.ResponseWriter, r *http.Request) {
	p, ok := s.principal(w, r)
	if !ok {
		return
	}
	d, err := s.commitments.Get(r.Context(), p, chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newDetailResponse(d, p.Role))
}

func (s *Server) handleUpdateCommitment(w http.ResponseWriter, r *http.Request) {
	p, ok := s.principal(w, r)
	if !ok {
		return
	}
	var req patchRequest
	if err := readJSON(w, r, &req); err != nil {
		s.badRequest(w, r, err)
		return
	}
	c, err := s.commitments.Update(r.Context(), p, chi.URLParam(r, "id"), req.patch())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newCommitmentResponse(c, p.Role))
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, s.commitments.SubmitForReview)
}

func (s *Server) handleDeliver(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, s.commitments.MarkDelivered)
}

// transition runs a body-less state change on the commitment in the path.
func (s *Server) transition(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, p auth.Principal, id string) (commitment.Commitment, error)) {
	p, ok := s.principal(w, r)
	if !ok {
		return
	}
	c, err := op(r.Context(), p, chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newCommitmentResponse(c, p.Role))
}

func (s *Server) handleSendApprovalLink(w http.ResponseWriter, r *http.Request) {
	s.sendLink(w, r, s.commitments.SendApprovalLink)
}

func (s *Server) handleSendAcceptanceLink(w http.ResponseWriter, r *http.Request) {
	s.sendLink(w, r, s.commitments.SendAcceptanceLink)
}

func (s *Server) sendLink(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, p auth.Principal, id string, resend bool) (commitment.LinkResult, error)) {
	p, ok := s.principal(w, r)
	if !ok {
		return
	}
	var req resendRequest
	if r.ContentLength != 0 {
		if err := readJSON(w, r, &req); err != nil {
			s.badRequest(w, r, err)
			return
		}
	}
	res, err := op(r.Context(), p, chi.URLParam(r, "id"), req.Resend)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, linkResultResponse{
		URL:        res.URL,
		Commitment: newCommitmentResponse(res.Commitment, p.Role),
	})
}

func (s *Server) handleAssign(w http.ResponseWriter, r *http.Request) {
	p, ok := s.principal(w, r)
	if !ok {
		return
	}
	var req assignRequest
	if err := readJSON(w, r, &req); err != nil {
		s.badRequest(w, r, err)
		return
	}
	c, err := s.commitments.Assign(r.Context(), p, chi.URLParam(r, "id"), req.UserID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newCommitmentResponse(c, p.Role))
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	p, ok := s.principal(w, r)
	if !ok {
		return
	}
	var req reasonRequest
	if r.ContentLength != 0 {
		if err := readJSON(w, r, &req); err != nil {
			s.badRequest(w, r, err)
			return
		}
	}
	c, err := s.commitments.Cancel(r.Context(), p, chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newCommitmentResponse(c, p.Role))
}

func (s *Server) handleRequestChange(w http.ResponseWriter, r *http.Request) {
	p, ok := s.principal(w, r)
	if !ok {
		return
	}
	var req reasonRequest
	if err := readJSON(w, r, &req); err != nil {
		s.badRequest(w, r, err)
		return
	}
	cr, err := s.commitments.RequestChange(r.Context(), p, chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newChangeRequestResponse(cr))
}

func (s *Server) handleListChangeRequests(w http.ResponseWriter, r *http.Request) {
	p, ok := s.principal(w, r)
	if !ok {
		return
	}
	crs, err := s.commitments.ListChangeRequests(r.Context(), p, chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	items := make([]changeRequestResponse, 0, len(crs))
	for _, cr := range crs {
		items = append(items, newChangeRequestResponse(cr))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) handleAcceptChangeRequest(w http.ResponseWriter, r *http.Request) {
	p, ok := s.principal(w, r)
	if !ok {
		return
	}
	var req acceptChangeRequest
	if r.ContentLength != 0 {
		if err := readJSON(w, r, &req); err != nil {
			s.badRequest(w, r, err)
			return
		}
	}
	next, err := s.commitments.AcceptChangeRequest(r.Context(), p, chi.URLParam(r, "id"), commitment.AcceptChangeParams{
		Patch:            req.patch(),
		Note:             req.Note,
		AssignedToUserID: req.AssignedToUserID,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newCommitmentResponse(next, p.Role))
}

func (s *Server) handleRejectChangeRequest(w http.ResponseWriter, r *http.Request) {
	p, ok := s.principal(w, r)
	if !ok {
		return
	}
	var req noteRequest
	if r.ContentLength != 0 {
		if err := readJSON(w, r, &req); err != nil {
			s.badRequest(w, r, err)
			return
		}
	}
	c, err := s.commitments.RejectChangeRequest(r.Context(), p, chi.URLParam(r, "id"), req.Note)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newCommitmentResponse(c, p.Role))
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	p, ok := s.principal(w, r)
	if !ok {
		return
	}
	events, err := s.commitments.History(r.Context(), p, chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": newEventList(events)})
}

func (s *Server) handleLineage(w http.ResponseWriter, r *http.Request) {
	p, ok := s.principal(w, r)
	if !ok {
		return
	}
	chain, err := s.commitments.Lineage(r.Context(), p, chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": newCommitmentList(chain, p.Role)})
}

func (s *Server) handleProof(w http.ResponseWriter, r *http.Request) {
	p, ok := s.principal(w, r)
	if !ok {
		return
	}
	proof, err := s.commitments.AcceptanceProof(r.Context(), p, chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newProofResponse(proof, p.Role))
}
