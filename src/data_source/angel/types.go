package angel

import (
	"encoding/json"

	"options-observer/src/models"
)

// Endpoint paths relative to the broker base url.
const (
	pathLogin          = "/rest/auth/angelbroking/user/v1/loginByPassword"
	pathGenerateTokens = "/rest/auth/angelbroking/jwt/v1/generateTokens"
	pathProfile        = "/rest/secure/angelbroking/user/v1/getProfile"
	pathFunds          = "/rest/secure/angelbroking/user/v1/getRMS"
	pathQuote          = "/rest/secure/angelbroking/market/v1/quote/"
	pathLogout         = "/rest/secure/angelbroking/user/v1/logout"
)

// Error codes the broker uses for an invalid or expired access token.
var unauthorizedCodes = map[string]bool{
	"AG8001": true,
	"AG8002": true,
	"AG8003": true,
}

// envelope wraps every broker response.
type envelope struct {
	Status    bool            `json:"status"`
	Message   string          `json:"message"`
	ErrorCode string          `json:"errorcode"`
	Data      json.RawMessage `json:"data"`
}

type loginRequest struct {
	ClientCode string `json:"clientcode"`
	Password   string `json:"password"`
	TOTP       string `json:"totp"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type logoutRequest struct {
	ClientCode string `json:"clientcode"`
}

type tokenData struct {
	JWTToken     string `json:"jwtToken" validate:"required"`
	RefreshToken string `json:"refreshToken" validate:"required"`
	FeedToken    string `json:"feedToken"`
}

type quoteData struct {
	Fetched   []models.MQuote `json:"fetched" validate:"dive"`
	Unfetched []struct {
		Exchange    string `json:"exchange"`
		SymbolToken string `json:"symbolToken"`
		Message     string `json:"message"`
		ErrorCode   string `json:"errorCode"`
	} `json:"unfetched"`
}
