package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/concordia-platform/triage/internal/escalate"
	"github.com/concordia-platform/triage/internal/model"
	"github.com/concordia-platform/triage/internal/risk"
)

type scoreRequest struct {
	EngineName string         `json:"engine_name"`
	Event      map[string]any `json:"event"`
	SubjectID  string         `json:"subject_id"`
}

// handleScore runs the full chain: score → classify → escalate → attest.
func (s *Server) handleScore(c *gin.Context) {
	var req scoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, model.Validationf("invalid request body"))
		return
	}
	if req.EngineName == "" {
		s.writeError(c, model.Validationf("engine_name is required"))
		return
	}
	if req.Event == nil {
		s.writeError(c, model.Validationf("event is required"))
		return
	}

	ctx := c.Request.Context()
	sig := model.ParseSignal(req.Event)

	var history []model.TransactionEvent
	if req.SubjectID != "" {
		var err error
		history, err = s.stores.History.RecentEvents(ctx, req.SubjectID, historyDepth)
		if err != nil {
			s.writeError(c, err)
			return
		}
	}

	score, contributions := risk.Score(history, sig)

	outcome, err := s.policyEngine.Classify(ctx, req.EngineName, score)
	if err != nil {
		s.writeError(c, err)
		return
	}

	// The scored event joins the subject's history so velocity and
	// deviation see it on later calls.
	if tx := sig.Transaction; tx != nil && req.SubjectID != "" {
		at := tx.OccurredAt
		if at.IsZero() {
			at = time.Now().UTC()
		}
		ev := model.TransactionEvent{
			Subject:       req.SubjectID,
			Amount:        tx.Amount,
			PaymentMethod: tx.PaymentMethod,
			Status:        tx.Status,
			OccurredAt:    at,
		}
		if err := s.stores.History.AppendEvent(ctx, ev); err != nil {
			s.writeError(c, err)
			return
		}
	}

	escOut, err := s.coordinator.Escalate(ctx, escalate.Input{
		Module:   req.EngineName,
		Subject:  req.SubjectID,
		Severity: outcome.Severity,
		Action:   outcome.Action,
		Signal:   req.Event,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"severity":      outcome.Severity,
		"action":        outcome.Action,
		"score":         score,
		"threshold":     outcome.Threshold,
		"contributions": contributions,
		"meta":          Meta{Hash: escOut.Hash, Federation: escOut.Federation},
	})
}

type evaluateRulesRequest struct {
	Context   map[string]any `json:"context"`
	SubjectID string         `json:"subject_id"`
}

func (s *Server) handleEvaluateRules(c *gin.Context) {
	var req evaluateRulesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, model.Validationf("invalid request body"))
		return
	}
	if req.Context == nil {
		s.writeError(c, model.Validationf("context is required"))
		return
	}

	res, err := s.ruleEngine.Evaluate(c.Request.Context(), parseStrengths(req.Context), req.SubjectID)
	if err != nil {
		s.writeError(c, err)
		return
	}

	body := gin.H{
		"effects":        res.Effects,
		"activated_keys": res.ActivatedKeys,
		"total_power":    res.TotalPower,
	}
	if res.Hash != "" && res.Federation != nil {
		body["meta"] = Meta{Hash: res.Hash, Federation: *res.Federation}
	}
	c.JSON(http.StatusOK, body)
}

// parseStrengths accepts both {"key": 0.9} and {"key": {"score": 0.9}}.
// Anything else reads as zero strength.
func parseStrengths(raw map[string]any) map[string]float64 {
	out := make(map[string]float64, len(raw))
	for key, v := range raw {
		switch val := v.(type) {
		case float64:
			out[key] = val
		case int:
			out[key] = float64(val)
		case map[string]any:
			if score, ok := val["score"].(float64); ok {
				out[key] = score
			}
		}
	}
	return out
}

type escalateRequest struct {
	Module    string         `json:"module"`
	Signal    map[string]any `json:"signal"`
	Risk      string         `json:"risk"`
	Action    string         `json:"action"`
	SubjectID string         `json:"subject_id"`
}

func (s *Server) handleEscalate(c *gin.Context) {
	var req escalateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, model.Validationf("invalid request body"))
		return
	}
	if req.Module == "" {
		s.writeError(c, model.Validationf("module is required"))
		return
	}
	if req.Signal == nil {
		s.writeError(c, model.Validationf("signal is required"))
		return
	}
	severity := model.Severity(req.Risk)
	if !severity.Valid() {
		s.writeError(c, model.Validationf("risk %q is not one of low, medium, high, critical", req.Risk))
		return
	}
	action := model.ActionFor(severity)
	if req.Action != "" {
		action = model.Action(req.Action)
		switch action {
		case model.ActionLog, model.ActionWarn, model.ActionQuarantine, model.ActionQuarantineImmediate:
		default:
			s.writeError(c, model.Validationf("unknown action %q", req.Action))
			return
		}
	}

	out, err := s.coordinator.Escalate(c.Request.Context(), escalate.Input{
		Module:   req.Module,
		Subject:  req.SubjectID,
		Severity: severity,
		Action:   action,
		Signal:   req.Signal,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":        out.AlertID,
		"risk":      severity,
		"action":    action,
		"escalated": out.Escalated,
		"meta":      Meta{Hash: out.Hash, Federation: out.Federation},
	})
}

type quarantineRequest struct {
	SubjectID string         `json:"subject_id"`
	Source    string         `json:"source"`
	Signal    map[string]any `json:"signal"`
	Severity  string         `json:"severity"`
}

func (s *Server) handleQuarantine(c *gin.Context) {
	var req quarantineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, model.Validationf("invalid request body"))
		return
	}
	if req.Source == "" {
		s.writeError(c, model.Validationf("source is required"))
		return
	}
	if req.Signal == nil {
		s.writeError(c, model.Validationf("signal is required"))
		return
	}
	severity := model.Severity(req.Severity)
	if req.Severity == "" {
		s.writeError(c, model.Validationf("severity is required"))
		return
	}
	if !severity.Valid() {
		s.writeError(c, model.Validationf("severity %q is not one of low, medium, high, critical", req.Severity))
		return
	}

	q, hash, fed, err := s.coordinator.ManualQuarantine(c.Request.Context(), req.SubjectID, req.Source, req.Signal, severity)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"quarantined": true,
		"id":          q.ID,
		"severity":    q.Severity,
		"meta":        Meta{Hash: hash, Federation: fed},
	})
}

type incidentCreateRequest struct {
	SubjectID   string `json:"subject_id"`
	Context     string `json:"context"`
	Description string `json:"description"`
	Action      string `json:"action"`
	Priority    string `json:"priority"`
}

func (s *Server) handleIncidentCreate(c *gin.Context) {
	var req incidentCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, model.Validationf("invalid request body"))
		return
	}
	if req.SubjectID == "" {
		s.writeError(c, model.Validationf("subject_id is required"))
		return
	}
	if req.Context == "" {
		s.writeError(c, model.Validationf("context is required"))
		return
	}
	if req.Description == "" {
		s.writeError(c, model.Validationf("description is required"))
		return
	}
	if req.Action == "" {
		s.writeError(c, model.Validationf("action is required"))
		return
	}

	inc, hash, fed, err := s.tracker.Create(c.Request.Context(), req.SubjectID, req.Context, req.Description, req.Action, req.Priority)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": inc.Status,
		"id":     inc.ID,
		"meta":   Meta{Hash: hash, Federation: fed},
	})
}

type incidentTransitionRequest struct {
	Op string `json:"op"`
}

func (s *Server) handleIncidentTransition(c *gin.Context) {
	id := c.Param("id")

	var req incidentTransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, model.Validationf("invalid request body"))
		return
	}

	ctx := c.Request.Context()
	switch req.Op {
	case "mitigate":
		inc, err := s.tracker.Mitigate(ctx, id)
		if err != nil {
			s.writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": inc.Status, "id": inc.ID})
	case "close":
		inc, hash, fed, err := s.tracker.Close(ctx, id)
		if err != nil {
			s.writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status": inc.Status,
			"id":     inc.ID,
			"meta":   Meta{Hash: hash, Federation: fed},
		})
	default:
		s.writeError(c, model.Validationf("unknown op %q", req.Op))
	}
}

type verifyTrustRequest struct {
	SubjectID         string `json:"subject_id"`
	BiometricHash     string `json:"biometric_hash"`
	DeviceFingerprint string `json:"device_fingerprint"`
}

func (s *Server) handleVerifyTrust(c *gin.Context) {
	var req verifyTrustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, model.Validationf("invalid request body"))
		return
	}
	if req.SubjectID == "" {
		s.writeError(c, model.Validationf("subject_id is required"))
		return
	}
	if req.BiometricHash == "" {
		s.writeError(c, model.Validationf("biometric_hash is required"))
		return
	}

	rec, hash, fed, err := s.verifier.Verify(c.Request.Context(), req.SubjectID, req.BiometricHash, req.DeviceFingerprint)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"verified":    true,
		"trust_score": rec.TrustScore,
		"meta":        Meta{Hash: hash, Federation: fed},
	})
}

// handleCheckFederation is read-only and never errors on absence: a triple
// missing from one or both registries is verified=false, including the
// transient window right after a commit.
func (s *Server) handleCheckFederation(c *gin.Context) {
	entityType := c.Query("entity_type")
	entityID := c.Query("entity_id")
	hash := c.Query("hash")
	if entityType == "" || entityID == "" || hash == "" {
		s.writeError(c, model.Validationf("entity_type, entity_id and hash are required"))
		return
	}

	fed, err := s.ledger.Verify(c.Request.Context(), entityType, entityID, hash)
	if err != nil {
		s.writeError(c, err)
		return
	}

	body := gin.H{"verified": fed.Verified}
	if fed.LocalAt != nil {
		body["local_at"] = fed.LocalAt
	}
	if fed.ContinentalAt != nil {
		body["continental_at"] = fed.ContinentalAt
	}
	c.JSON(http.StatusOK, body)
}
