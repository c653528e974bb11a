package angel

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"options-observer/src/helpers"
	"options-observer/src/interfaces"
	"options-observer/src/logger"
	"options-observer/src/models"

	"github.com/bytedance/sonic"
	"github.com/go-playground/validator/v10"
)

const defaultTimeout = 15 * time.Second

// Client is the typed SmartAPI REST surface. It holds no session state; every
// secured call takes the access token from the caller.
type Client struct {
	BaseURL  string
	APIKey   string
	Identity helpers.ClientIdentity
	Timeout  time.Duration
	Network  interfaces.INetworkManager
	Logger   *logger.Logger
	validate *validator.Validate
}

// -----------------------------------------------------------------------------

func NewClient(cfg models.MBrokerConfig, identity helpers.ClientIdentity, netMgr interfaces.INetworkManager, log *logger.Logger) *Client {
	timeout := time.Duration(cfg.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		BaseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		APIKey:   cfg.APIKey,
		Identity: identity,
		Timeout:  timeout,
		Network:  netMgr,
		Logger:   log,
		validate: validator.New(),
	}
}

// -----------------------------------------------------------------------------

// Login exchanges client code, password and a 6 digit TOTP for a token set.
func (c *Client) Login(ctx context.Context, clientCode, password, totp string) (*models.MSessionTokens, error) {
	var data tokenData
	err := c.call(ctx, "login", http.MethodPost, pathLogin, "", loginRequest{
		ClientCode: clientCode,
		Password:   password,
		TOTP:       totp,
	}, &data)
	if err != nil {
		return nil, err
	}
	return toSessionTokens(data), nil
}

// -----------------------------------------------------------------------------

// GenerateTokens trades the refresh token for a new token set.
func (c *Client) GenerateTokens(ctx context.Context, accessToken, refreshToken string) (*models.MSessionTokens, error) {
	var data tokenData
	err := c.call(ctx, "generateTokens", http.MethodPost, pathGenerateTokens, accessToken, refreshRequest{
		RefreshToken: refreshToken,
	}, &data)
	if err != nil {
		return nil, err
	}
	return toSessionTokens(data), nil
}

// -----------------------------------------------------------------------------

func (c *Client) Logout(ctx context.Context, accessToken, clientCode string) error {
	return c.call(ctx, "logout", http.MethodPost, pathLogout, accessToken, logoutRequest{ClientCode: clientCode}, nil)
}

// -----------------------------------------------------------------------------

func (c *Client) Profile(ctx context.Context, accessToken string) (*models.MProfile, error) {
	var profile models.MProfile
	if err := c.call(ctx, "getProfile", http.MethodGet, pathProfile, accessToken, nil, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// -----------------------------------------------------------------------------

func (c *Client) Funds(ctx context.Context, accessToken string) (*models.MFunds, error) {
	var funds models.MFunds
	if err := c.call(ctx, "getRMS", http.MethodGet, pathFunds, accessToken, nil, &funds); err != nil {
		return nil, err
	}
	return &funds, nil
}

// -----------------------------------------------------------------------------

// Quote returns the fetched rows. Tokens the broker could not serve are
// logged and left out.
func (c *Client) Quote(ctx context.Context, accessToken string, req models.MQuoteRequest) ([]models.MQuote, error) {
	if req.Mode == "" {
		req.Mode = "FULL"
	}

	var data quoteData
	if err := c.call(ctx, "quote", http.MethodPost, pathQuote, accessToken, req, &data); err != nil {
		return nil, err
	}

	if len(data.Unfetched) > 0 && c.Logger != nil {
		c.Logger.Debug("Quote: %d tokens unfetched (first: %s %s)",
			len(data.Unfetched), data.Unfetched[0].SymbolToken, data.Unfetched[0].Message)
	}
	return data.Fetched, nil
}

// -----------------------------------------------------------------------------

// call sends one request and decodes the envelope into out. out may be nil
// when only the status matters.
func (c *Client) call(ctx context.Context, op, method, path, accessToken string, body, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	var payload []byte
	if body != nil {
		var err error
		if payload, err = sonic.Marshal(body); err != nil {
			return fmt.Errorf("%s: encoding request: %w", op, err)
		}
	}

	status, raw, err := c.Network.Do(ctx, method, c.BaseURL+path, c.headers(accessToken), payload)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if status == http.StatusUnauthorized {
		return fmt.Errorf("%s: %w", op, helpers.ErrUnauthorized)
	}

	var env envelope
	if err := sonic.Unmarshal(raw, &env); err != nil {
		if status < 200 || status > 299 {
			return &helpers.UpstreamError{Operation: op, Message: fmt.Sprintf("HTTP %d", status)}
		}
		return helpers.NewDecodeError(op+": invalid response envelope", err)
	}

	if unauthorizedCodes[env.ErrorCode] {
		return fmt.Errorf("%s: %s: %w", op, env.Message, helpers.ErrUnauthorized)
	}

	if !env.Status || status < 200 || status > 299 {
		msg := env.Message
		if msg == "" {
			msg = fmt.Sprintf("HTTP %d", status)
		}
		return &helpers.UpstreamError{Operation: op, Code: env.ErrorCode, Message: msg}
	}

	if out == nil {
		return nil
	}

	if len(env.Data) == 0 || string(env.Data) == "null" {
		return helpers.NewDecodeError(op+": response has no data", nil)
	}
	if err := sonic.Unmarshal(env.Data, out); err != nil {
		return helpers.NewDecodeError(op+": invalid response data", err)
	}
	if err := c.validate.Struct(out); err != nil {
		return helpers.NewDecodeError(op+": response failed validation", err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (c *Client) headers(accessToken string) map[string]string {
	h := map[string]string{
		"Content-Type":     "application/json",
		"Accept":           "application/json",
		"X-UserType":       "USER",
		"X-SourceID":       "WEB",
		"X-ClientLocalIP":  c.Identity.LocalIP,
		"X-ClientPublicIP": c.Identity.PublicIP,
		"X-MACAddress":     c.Identity.MACAddress,
		"X-PrivateKey":     c.APIKey,
	}
	if accessToken != "" {
		h["Authorization"] = "Bearer " + accessToken
	}
	return h
}

// -----------------------------------------------------------------------------

// toSessionTokens strips the "Bearer " prefix the login endpoint sometimes
// returns so headers are never doubled.
func toSessionTokens(d tokenData) *models.MSessionTokens {
	return &models.MSessionTokens{
		AccessToken:  strings.TrimPrefix(d.JWTToken, "Bearer "),
		RefreshToken: d.RefreshToken,
		FeedToken:    d.FeedToken,
	}
}
