package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/Raguls333/noolix-sub001/apperr"
)

const maxBodyBytes = 1 << 20

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"requestId,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, errorBody{Error: errorDetail{
		Code:      code,
		Message:   message,
		RequestID: middleware.GetReqID(r.Context()),
	}})
}

// readJSON decodes a single JSON object from the request body. Unknown
// fields are rejected.
func readJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return err
	}
	if dec.More() {
		return errors.New("request body must hold a single JSON object")
	}
	return nil
}

// statusFor maps an error kind to its HTTP status.
func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindForbidden, apperr.KindPlanForbidden:
		return http.StatusForbidden
	case apperr.KindConflict, apperr.KindInvalidState, apperr.KindLinkOldVersion:
		return http.StatusConflict
	case apperr.KindLinkInvalid:
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err as a JSON error. Infrastructure failures are logged and
// reported without detail.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	if kind == "" {
		s.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
		writeError(w, r, http.StatusInternalServerError, "INTERNAL", "internal error")
		return
	}

	message := string(kind)
	var e *apperr.Error
	if errors.As(err, &e) && e.Message != "" {
		message = e.Message
		// Validator output names the offending fields.
		if kind == apperr.KindValidation && e.Err != nil {
			message += ": " + e.Err.Error()
		}
	}
	writeError(w, r, statusFor(kind), string(kind), message)
}

func (s *Server) badRequest(w http.ResponseWriter, r *http.Request, err error) {
	writeError(w, r, http.StatusBadRequest, "BAD_REQUEST", fmt.Sprintf("invalid request: %v", err))
}
