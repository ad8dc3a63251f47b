// Package server exposes the triage engine over HTTP: JSON bodies in and
// out, one endpoint per capability, uniform response envelope.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/concordia-platform/triage/internal/attest"
	"github.com/concordia-platform/triage/internal/config"
	"github.com/concordia-platform/triage/internal/escalate"
	"github.com/concordia-platform/triage/internal/incident"
	"github.com/concordia-platform/triage/internal/policy"
	"github.com/concordia-platform/triage/internal/ratelimit"
	"github.com/concordia-platform/triage/internal/rules"
	"github.com/concordia-platform/triage/internal/sentinel"
	"github.com/concordia-platform/triage/internal/store"
	"github.com/concordia-platform/triage/internal/trust"
)

// historyDepth is how much subject history the risk scorer reads per call.
const historyDepth = 100

// Server wires the triage engine behind a gin router.
type Server struct {
	cfg    *config.Config
	stores store.Stores
	ledger *attest.Ledger
	logger *slog.Logger

	policyEngine *policy.Engine
	ruleEngine   *rules.Engine
	coordinator  *escalate.Coordinator
	tracker      *incident.Tracker
	verifier     *trust.Verifier

	router     *gin.Engine
	httpServer *http.Server

	// mu guards config file re-syncs triggered by the hot-reload watcher.
	mu             sync.Mutex
	policyFileHash string
}

// New builds a Server: syncs the operator-owned policy and rules files into
// the store, wires the engines, and registers the routes.
func New(cfg *config.Config, stores store.Stores, ledger *attest.Ledger, dispatcher *sentinel.Dispatcher, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:          cfg,
		stores:       stores,
		ledger:       ledger,
		logger:       logger.With("component", "server"),
		policyEngine: policy.NewEngine(stores.Policies),
		ruleEngine:   rules.NewEngine(stores.Rules, stores.Reactions, ledger),
		coordinator:  escalate.NewCoordinator(stores.Alerts, stores.Quarantine, ledger, dispatcher, logger),
		tracker:      incident.NewTracker(stores.Incidents, ledger),
		verifier:     trust.NewVerifier(stores.Trust, ledger, nil),
	}

	if err := s.syncConfigFiles(); err != nil {
		return nil, err
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	if limiter := ratelimit.New(cfg.Server.RateLimit.Limit()); limiter != nil {
		router.Use(func(c *gin.Context) {
			if !limiter.Allow(c.ClientIP(), time.Now()) {
				c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
				return
			}
			c.Next()
		})
	}

	v1 := router.Group("/v1")
	{
		v1.POST("/triage/score", s.handleScore)
		v1.POST("/rules/evaluate", s.handleEvaluateRules)
		v1.POST("/escalations", s.handleEscalate)
		v1.POST("/quarantine", s.handleQuarantine)
		v1.POST("/incidents", s.handleIncidentCreate)
		v1.POST("/incidents/:id/transition", s.handleIncidentTransition)
		v1.POST("/trust/verify", s.handleVerifyTrust)
		v1.GET("/federation/check", s.handleCheckFederation)
	}
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	s.router = router
	return s, nil
}

// Handler exposes the router for httptest.
func (s *Server) Handler() http.Handler { return s.router }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              s.cfg.Server.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		errc <- s.httpServer.ListenAndServe()
	}()
	s.logger.Info("listening", "addr", s.cfg.Server.Addr)

	select {
	case err := <-errc:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}

// ReloadConfigFiles re-reads the policy and rules files and re-syncs the
// store. Called by the hot-reload watcher; safe under concurrent requests.
func (s *Server) ReloadConfigFiles() error {
	return s.syncConfigFiles()
}

func (s *Server) syncConfigFiles() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Store.Timeout())
	defer cancel()

	policyFile, hash, err := policy.LoadFileWithHash(s.cfg.PoliciesPath)
	if err != nil {
		return fmt.Errorf("load policies: %w", err)
	}
	if err := policyFile.Sync(ctx, s.stores.Policies); err != nil {
		return fmt.Errorf("sync policies: %w", err)
	}
	s.policyFileHash = hash

	rulesFile, err := rules.LoadFile(s.cfg.RulesPath)
	if err != nil {
		return fmt.Errorf("load rules: %w", err)
	}
	if err := rulesFile.Sync(ctx, s.stores.Rules); err != nil {
		return fmt.Errorf("sync rules: %w", err)
	}

	s.logger.Info("config files synced",
		"policies", len(policyFile.Policies),
		"rules", len(rulesFile.Rules),
		"policy_hash", hash,
	)
	return nil
}
