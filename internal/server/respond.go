package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/concordia-platform/triage/internal/model"
)

// Meta is the attestation envelope attached to every committed decision.
type Meta struct {
	Hash       string                 `json:"hash"`
	Federation model.FederationStatus `json:"federation"`
}

// writeError maps the error taxonomy onto HTTP statuses. Client-caused
// kinds return their message; infrastructure kinds return the kind only,
// with the cause logged server-side.
func (s *Server) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, model.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, model.ErrPolicyNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, model.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, model.ErrStoreUnavailable):
		s.logger.Error("store unavailable", "err", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "store unavailable"})
	case errors.Is(err, model.ErrAttestationIncomplete):
		s.logger.Error("attestation incomplete", "err", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "attestation incomplete"})
	default:
		s.logger.Error("internal error", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
