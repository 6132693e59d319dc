package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/Raguls333/noolix-sub001/auth"
	"github.com/Raguls333/noolix-sub001/client"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	ID       string    `json:"id"`
	OrgID    string    `json:"orgId"`
	Email    string    `json:"email"`
	FullName string    `json:"fullName"`
	Role     auth.Role `json:"role"`
}

func newUserResponse(u auth.User) userResponse {
	return userResponse{ID: u.ID, OrgID: u.OrgID, Email: u.Email, FullName: u.FullName, Role: u.Role}
}

type registerUserRequest struct {
	Email    string    `json:"email"`
	Password string    `json:"password"`
	FullName string    `json:"fullName"`
	Role     auth.Role `json:"role"`
}

type createClientRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Company string `json:"company"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := readJSON(w, r, &req); err != nil {
		s.badRequest(w, r, err)
		return
	}
	res, err := s.auth.Login(r.Context(), auth.LoginRequest{Email: req.Email, Password: req.Password})
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid email or password")
			return
		}
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token": res.Token,
		"user":  newUserResponse(res.User),
	})
}

// handleRegisterUser adds a member to the caller's organization. Only
// founders and admins may do so.
func (s *Server) handleRegisterUser(w http.ResponseWriter, r *http.Request) {
	p, ok := s.principal(w, r)
	if !ok {
		return
	}
	if p.Role != auth.RoleFounder && p.Role != auth.RoleAdmin {
		writeError(w, r, http.StatusForbidden, "FORBIDDEN", "only founders and admins can add users")
		return
	}
	var req registerUserRequest
	if err := readJSON(w, r, &req); err != nil {
		s.badRequest(w, r, err)
		return
	}

	u, err := s.auth.Register(r.Context(), auth.RegisterRequest{
		OrgID:    p.OrgID,
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
		Role:     req.Role,
	})
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, newUserResponse(*u))
	case errors.Is(err, auth.ErrDuplicateEmail):
		writeError(w, r, http.StatusConflict, "CONFLICT", "email already registered")
	case errors.Is(err, auth.ErrWeakPassword):
		writeError(w, r, http.StatusBadRequest, "VALIDATION", err.Error())
	default:
		s.fail(w, r, err)
	}
}

func (s *Server) handleCreateClient(w http.ResponseWriter, r *http.Request) {
	p, ok := s.principal(w, r)
	if !ok {
		return
	}
	var req createClientRequest
	if err := readJSON(w, r, &req); err != nil {
		s.badRequest(w, r, err)
		return
	}
	c, err := s.clients.Create(r.Context(), client.CreateParams{
		OrgID:   p.OrgID,
		Name:    req.Name,
		Email:   req.Email,
		Company: req.Company,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newClientResponse(c))
}

func (s *Server) handleListClients(w http.ResponseWriter, r *http.Request) {
	p, ok := s.principal(w, r)
	if !ok {
		return
	}
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, r, http.StatusBadRequest, "BAD_REQUEST", "limit must be a positive integer")
			return
		}
		limit = n
	}
	clients, err := s.clients.List(r.Context(), p.OrgID, limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	items := make([]clientResponse, 0, len(clients))
	for _, c := range clients {
		items = append(items, newClientResponse(c))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}
