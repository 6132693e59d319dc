package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Raguls333/noolix-sub001/commitment"
	"github.com/Raguls333/noolix-sub001/securelink"
)

type approvalDecisionRequest struct {
	Action commitment.ApprovalAction `json:"action"`
	Reason string                    `json:"reason"`
	Name   string                    `json:"name"`
	Email  string                    `json:"email"`
}

type acceptanceRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

func clientContext(r *http.Request, name, email string) commitment.ClientContext {
	return commitment.ClientContext{
		Name:      name,
		Email:     email,
		IP:        clientIP(r),
		UserAgent: r.UserAgent(),
	}
}

func (s *Server) handlePreviewApproval(w http.ResponseWriter, r *http.Request) {
	s.preview(w, r, securelink.PurposeApproval)
}

func (s *Server) handlePreviewAcceptance(w http.ResponseWriter, r *http.Request) {
	s.preview(w, r, securelink.PurposeAcceptance)
}

func (s *Server) preview(w http.ResponseWriter, r *http.Request, purpose securelink.Purpose) {
	pv, err := s.commitments.PreviewLink(r.Context(), chi.URLParam(r, "token"), purpose, clientContext(r, "", ""))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, linkPreviewResponse{
		Purpose:    pv.Purpose,
		ExpiresAt:  pv.ExpiresAt.UTC().Format(time.RFC3339),
		Commitment: newPublicCommitmentResponse(pv.Commitment),
	})
}

func (s *Server) handleConsumeApproval(w http.ResponseWriter, r *http.Request) {
	var req approvalDecisionRequest
	if err := readJSON(w, r, &req); err != nil {
		s.badRequest(w, r, err)
		return
	}
	c, err := s.commitments.ConsumeApproval(r.Context(), chi.URLParam(r, "token"), commitment.ApprovalDecision{
		Action: req.Action,
		Reason: req.Reason,
		Client: clientContext(r, req.Name, req.Email),
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newPublicCommitmentResponse(c))
}

func (s *Server) handleConsumeAcceptance(w http.ResponseWriter, r *http.Request) {
	var req acceptanceRequest
	if r.ContentLength != 0 {
		if err := readJSON(w, r, &req); err != nil {
			s.badRequest(w, r, err)
			return
		}
	}
	c, err := s.commitments.ConsumeAcceptance(r.Context(), chi.URLParam(r, "token"), clientContext(r, req.Name, req.Email))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newPublicCommitmentResponse(c))
}
