// Package httpapi exposes the commitment service over HTTP. Organization
// routes require a bearer token; the public routes are driven by secure-link
// tokens alone.
package httpapi

import (
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Raguls333/noolix-sub001/auth"
	"github.com/Raguls333/noolix-sub001/client"
	"github.com/Raguls333/noolix-sub001/commitment"
)

// Server holds the services the handlers call into.
type Server struct {
	commitments *commitment.Service
	auth        *auth.Service
	clients     *client.Service
	logger      *zap.Logger
}

func NewServer(commitments *commitment.Service, authService *auth.Service, clients *client.Service, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		commitments: commitments,
		auth:        authService,
		clients:     clients,
		logger:      logger,
	}
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/public", func(r chi.Router) {
		r.Get("/approve/{token}", s.handlePreviewApproval)
		r.Post("/approve/{token}", s.handleConsumeApproval)
		r.Get("/accept/{token}", s.handlePreviewAcceptance)
		r.Post("/accept/{token}", s.handleConsumeAcceptance)
	})

	r.Route("/v1", func(r chi.Router) {
		r.Post("/auth/login", s.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)

			r.Post("/users", s.handleRegisterUser)

			r.Route("/clients", func(r chi.Router) {
				r.Post("/", s.handleCreateClient)
				r.Get("/", s.handleListClients)
			})

			r.Route("/commitments", func(r chi.Router) {
				r.Post("/", s.handleCreateCommitment)
				r.Get("/", s.handleListCommitments)

				r.Route("/{id}", func(r chi.Router) {
					r.Use(requireUUID("id"))
					r.Get("/", s.handleGetCommitment)
					r.Patch("/", s.handleUpdateCommitment)
					r.Post("/submit", s.handleSubmit)
					r.Post("/approval-link", s.handleSendApprovalLink)
					r.Post("/deliver", s.handleDeliver)
					r.Post("/acceptance-link", s.handleSendAcceptanceLink)
					r.Post("/assign", s.handleAssign)
					r.Post("/cancel", s.handleCancel)
					r.Post("/change-requests", s.handleRequestChange)
					r.Get("/change-requests", s.handleListChangeRequests)
					r.Get("/history", s.handleHistory)
					r.Get("/lineage", s.handleLineage)
					r.Get("/proof", s.handleProof)
				})
			})

			r.Route("/change-requests/{id}", func(r chi.Router) {
				r.Use(requireUUID("id"))
				r.Post("/accept", s.handleAcceptChangeRequest)
				r.Post("/reject", s.handleRejectChangeRequest)
			})
		})
	})

	return r
}

// clientIP returns the caller address. RealIP has already applied any
// forwarding headers.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
