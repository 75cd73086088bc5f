package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"guildgate/internal/app"
	"guildgate/internal/metrics"
	"guildgate/internal/storage"
	"guildgate/internal/verify"
)

const (
	headerGuild  = "X-Guild-Name"
	headerMember = "X-Member-Id"
	headerAdmin  = "X-Admin-Token"
)

// Config holds the HTTP surface settings.
type Config struct {
	AdminTokens []string
}

// Server exposes the verification commands over HTTP.
type Server struct {
	app         *app.App
	adminTokens [][]byte
	logger      *zap.Logger
	engine      *gin.Engine
}

func NewServer(a *app.App, cfg Config) *Server {
	logger := a.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{app: a, logger: logger}
	for _, tok := range cfg.AdminTokens {
		if tok = strings.TrimSpace(tok); tok != "" {
			s.adminTokens = append(s.adminTokens, []byte(tok))
		}
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), s.accessLog())
	s.registerRoutes(r)
	s.engine = r
	return s
}

func (s *Server) registerRoutes(r *gin.Engine) {
	r.GET("/healthz", s.health)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	v1 := r.Group("/v1")
	v1.Use(requireGuild())
	{
		v1.POST("/verify", s.handleVerify)

		admin := v1.Group("")
		admin.Use(s.requireAdmin())
		{
			admin.PUT("/config", s.setConfig)
			admin.GET("/verified", s.listVerified)
			admin.DELETE("/verified/:member", s.unverify)
			admin.PUT("/members/:member", s.registerMember)
			admin.GET("/members/:member/roles", s.memberRoles)
		}
	}
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)),
		)
	}
}

func requireGuild() gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.TrimSpace(c.GetHeader(headerGuild)) == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": headerGuild + " header required"})
			return
		}
		c.Next()
	}
}

// requireAdmin rejects the request before any handler runs unless the
// admin token matches one of the configured tokens.
func (s *Server) requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		got := []byte(c.GetHeader(headerAdmin))
		for _, tok := range s.adminTokens {
			if subtle.ConstantTimeCompare(got, tok) == 1 {
				c.Next()
				return
			}
		}
		s.logger.Warn("admin command rejected",
			zap.String("path", c.FullPath()),
			zap.String("ip", c.ClientIP()),
		)
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin permission required"})
	}
}

func (s *Server) health(c *gin.Context) {
	if err := s.app.Ready(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type setConfigRequest struct {
	IndexerKey      string `json:"indexer_key"`
	ContractAddress string `json:"contract_address" binding:"required"`
	RoleName        string `json:"role_name" binding:"required"`
	Oracle          string `json:"oracle"`
}

func (s *Server) setConfig(c *gin.Context) {
	var req setConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cfg, err := s.app.Service.SetConfig(c.Request.Context(), verify.SetConfigRequest{
		GuildName:       c.GetHeader(headerGuild),
		IndexerKey:      req.IndexerKey,
		ContractAddress: req.ContractAddress,
		RoleName:        req.RoleName,
		Oracle:          req.Oracle,
	})
	if err != nil {
		if errors.Is(err, verify.ErrInvalidInput) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save configuration"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"guild_key":        cfg.GuildKey,
		"contract_address": cfg.AssetContract.Hex(),
		"role_name":        cfg.RoleName,
		"oracle":           cfg.OracleKindOrDefault(),
		"message":          "Configuration saved.",
	})
}

type verifyRequest struct {
	Address string `json:"address"`
}

type verifyResponse struct {
	AttemptID         string         `json:"attempt_id"`
	Outcome           verify.Outcome `json:"outcome"`
	Message           string         `json:"message"`
	GuildKey          string         `json:"guild_key,omitempty"`
	Address           string         `json:"address,omitempty"`
	RoleAssigned      bool           `json:"role_assigned"`
	RetryAfterSeconds int            `json:"retry_after_seconds,omitempty"`
}

func (s *Server) handleVerify(c *gin.Context) {
	memberID := strings.TrimSpace(c.GetHeader(headerMember))
	if memberID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": headerMember + " header required"})
		return
	}
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := s.app.Service.Verify(c.Request.Context(), verify.VerifyRequest{
		GuildName: c.GetHeader(headerGuild),
		MemberID:  memberID,
		Address:   req.Address,
	})
	if errors.Is(err, verify.ErrInvalidInput) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	body := verifyResponse{
		AttemptID:    res.AttemptID,
		Outcome:      res.Outcome,
		Message:      res.Message(),
		GuildKey:     res.GuildKey,
		RoleAssigned: res.RoleAssigned,
	}
	if res.Outcome == verify.OutcomeVerified {
		body.Address = res.Address.Hex()
	}
	if res.Outcome == verify.OutcomeRateLimited {
		body.RetryAfterSeconds = verify.RetryAfterSeconds(res.RetryAfter)
		c.Header("Retry-After", strconv.Itoa(body.RetryAfterSeconds))
	}
	c.JSON(StatusFor(res.Outcome), body)
}

// StatusFor maps a verification outcome to its HTTP status.
func StatusFor(o verify.Outcome) int {
	switch o {
	case verify.OutcomeVerified, verify.OutcomeNotOwned:
		return http.StatusOK
	case verify.OutcomeInvalidAddress:
		return http.StatusBadRequest
	case verify.OutcomeUnconfigured:
		return http.StatusConflict
	case verify.OutcomeRateLimited:
		return http.StatusTooManyRequests
	case verify.OutcomeOracleUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) listVerified(c *gin.Context) {
	res, err := s.app.Service.ListVerified(c.Request.Context(), c.GetHeader(headerGuild))
	if err != nil {
		if errors.Is(err, verify.ErrInvalidInput) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list verified members"})
		return
	}
	if res.RateLimited {
		secs := verify.RetryAfterSeconds(res.RetryAfter)
		c.Header("Retry-After", strconv.Itoa(secs))
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":               "listing is rate limited",
			"retry_after_seconds": secs,
		})
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) unverify(c *gin.Context) {
	res, err := s.app.Service.Unverify(c.Request.Context(), c.GetHeader(headerGuild), c.Param("member"))
	if err != nil {
		if errors.Is(err, verify.ErrInvalidInput) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to unverify member"})
		return
	}
	c.JSON(http.StatusOK, res)
}

type registerMemberRequest struct {
	DisplayName string `json:"display_name" binding:"required"`
}

// registerMember records a member's display name on the in-process platform
// so listings can show names instead of ids.
func (s *Server) registerMember(c *gin.Context) {
	var req registerMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	guildKey, ok := guildKeyFrom(c)
	if !ok {
		return
	}
	s.app.Platform.AddMember(guildKey, c.Param("member"), req.DisplayName)
	c.Status(http.StatusNoContent)
}

func (s *Server) memberRoles(c *gin.Context) {
	guildKey, ok := guildKeyFrom(c)
	if !ok {
		return
	}
	roles := s.app.Platform.MemberRoles(guildKey, c.Param("member"))
	if roles == nil {
		roles = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"member_id": c.Param("member"), "roles": roles})
}

// guildKeyFrom sanitizes the guild header the same way the service keys its
// stores, answering 400 when nothing usable is left.
func guildKeyFrom(c *gin.Context) (string, bool) {
	guildKey, err := storage.SanitizeGuildKey(c.GetHeader(headerGuild))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return "", false
	}
	return guildKey, true
}
