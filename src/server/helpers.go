package server

import (
	"context"
	"net/http"
	"strings"

	"options-observer/src/helpers"
	"options-observer/src/models"

	"github.com/gin-gonic/gin"
)

// apiResponse is the REST envelope.
type apiResponse struct {
	Status  bool        `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// -----------------------------------------------------------------------------

func respondOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, apiResponse{Status: true, Data: data})
}

// -----------------------------------------------------------------------------

// respondError maps auth failures to 401 and caller errors to 400.
func (s *FastAPIServer) respondError(c *gin.Context, op string, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		s.Logger.Error("%s: %v", op, err)
	} else {
		s.Logger.Warning("%s: %v", op, err)
	}
	c.JSON(code, apiResponse{Status: false, Message: err.Error()})
}

// -----------------------------------------------------------------------------

func statusFor(err error) int {
	switch {
	case helpers.IsAuthFailure(err):
		return http.StatusUnauthorized
	case helpers.IsValidation(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// -----------------------------------------------------------------------------

// marketSnapshot serves the cached snapshot while fresh.
func (s *FastAPIServer) marketSnapshot(ctx context.Context) (*models.MMarketSnapshot, error) {
	if snapshot, ok := s.Market.LatestMarketSnapshot(); ok {
		return snapshot, nil
	}
	return s.Market.MarketSnapshot(ctx)
}

// -----------------------------------------------------------------------------

// normalizeSymbols upper-cases and de-duplicates. An empty list or an empty
// entry is invalid.
func normalizeSymbols(symbols []string) ([]string, bool) {
	if len(symbols) == 0 {
		return nil, false
	}
	seen := make(map[string]struct{}, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, sym := range symbols {
		sym = strings.ToUpper(strings.TrimSpace(sym))
		if sym == "" {
			return nil, false
		}
		if _, ok := seen[sym]; ok {
			continue
		}
		seen[sym] = struct{}{}
		out = append(out, sym)
	}
	return out, true
}
