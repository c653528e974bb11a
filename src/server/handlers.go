package server

import (
	"net/http"
	"time"

	"options-observer/src/helpers"
	"options-observer/src/models"
	"options-observer/src/utils"

	"github.com/gin-gonic/gin"
)

// -----------------------------------------------------------------------------
// Route Handlers
// -----------------------------------------------------------------------------

func (s *FastAPIServer) getDashboard(c *gin.Context) {
	dashboard, err := s.Market.Dashboard(c.Request.Context())
	if err != nil {
		s.respondError(c, "dashboard", err)
		return
	}
	respondOK(c, dashboard)
}

// -----------------------------------------------------------------------------

func (s *FastAPIServer) getOptions(c *gin.Context) {
	expiry := c.Query("expiry")
	if expiry == "" {
		s.respondError(c, "options", helpers.NewValidationError("Expiry date is required"))
		return
	}

	chain, err := s.Market.OptionsChain(c.Request.Context(), expiry)
	if err != nil {
		s.respondError(c, "options", err)
		return
	}
	respondOK(c, chain)
}

// -----------------------------------------------------------------------------

func (s *FastAPIServer) getMarketData(c *gin.Context) {
	snapshot, err := s.marketSnapshot(c.Request.Context())
	if err != nil {
		s.respondError(c, "market data", err)
		return
	}
	respondOK(c, snapshot)
}

// -----------------------------------------------------------------------------

func (s *FastAPIServer) getExpiryDates(c *gin.Context) {
	respondOK(c, s.Calendar.ExpiryDates(s.now()))
}

// -----------------------------------------------------------------------------

func (s *FastAPIServer) getSystemStatus(c *gin.Context) {
	now := s.now()
	status := utils.MarketStatusClosed
	if s.Calendar.IsMarketOpen(now) {
		status = utils.MarketStatusOpen
	}

	respondOK(c, models.MSystemStatus{
		ServerTime:   now.UTC().Format(time.RFC3339),
		ServerStatus: "running",
		MarketStatus: status,
		Mode:         s.Config.Mode,
		Version:      utils.AppVersion,
		SessionState: s.Session.StateName(),
	})
}

// -----------------------------------------------------------------------------

func (s *FastAPIServer) postLogin(c *gin.Context) {
	var cred models.MCredential
	if err := c.ShouldBindJSON(&cred); err != nil {
		s.respondError(c, "login", helpers.NewValidationError("invalid login body: %v", err))
		return
	}
	if cred.ClientID == "" || cred.Password == "" {
		s.respondError(c, "login", helpers.NewValidationError("clientId and password are required"))
		return
	}

	tokens, err := s.Session.Login(c.Request.Context(), cred)
	if err != nil {
		s.respondError(c, "login", err)
		return
	}

	c.JSON(http.StatusOK, apiResponse{
		Status:  true,
		Message: "Login successful",
		Data: gin.H{
			"feedToken":    tokens.FeedToken,
			"expiresAt":    tokens.ExpiresAt.UTC().Format(time.RFC3339),
			"sessionState": s.Session.StateName(),
		},
	})
}

// -----------------------------------------------------------------------------

func (s *FastAPIServer) postLogout(c *gin.Context) {
	if err := s.Session.Logout(c.Request.Context()); err != nil {
		// local state is already cleared
		s.Logger.Warning("Logout: %v", err)
	}
	c.JSON(http.StatusOK, apiResponse{Status: true, Message: "Logged out"})
}

// -----------------------------------------------------------------------------

func (s *FastAPIServer) getMetrics(c *gin.Context) {
	if s.Metrics == nil {
		respondOK(c, utils.MetricsSummary{})
		return
	}
	respondOK(c, s.Metrics.Summary())
}

// -----------------------------------------------------------------------------

func (s *FastAPIServer) getConfig(c *gin.Context) {
	respondOK(c, gin.H{
		"chain":     s.Config.Chain,
		"broadcast": s.Config.Broadcast,
		"mode":      s.Config.Mode,
	})
}

// -----------------------------------------------------------------------------

func (s *FastAPIServer) getHealth(c *gin.Context) {
	lastActivity := ""
	if ms := s.lastActivity.Load(); ms > 0 {
		lastActivity = time.UnixMilli(ms).UTC().Format(time.RFC3339)
	}
	c.JSON(http.StatusOK, gin.H{
		"status":             "UP",
		"timestamp":          s.now().UTC().Format(time.RFC3339),
		"socketConnections":  s.SubscriberCount(),
		"lastClientActivity": lastActivity,
	})
}
