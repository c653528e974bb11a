package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"options-observer/src/helpers"
	"options-observer/src/interfaces"
	"options-observer/src/logger"
	"options-observer/src/models"

	"golang.org/x/sync/singleflight"
)

const (
	DefaultMaxRetries = 3
	DefaultTokenTTL   = 28 * time.Hour
)

// State of the broker session.
type State int

const (
	StateUnauthenticated State = iota
	StateAuthenticated
	StateRefreshInProgress
)

func (s State) String() string {
	switch s {
	case StateAuthenticated:
		return "authenticated"
	case StateRefreshInProgress:
		return "refreshing"
	default:
		return "unauthenticated"
	}
}

// Manager owns the single live token set. Requests that hit an expired token
// share one refresh and are retried with the new token; refreshes are
// budgeted and a spent budget forces a new login.
type Manager struct {
	API        interfaces.IBrokerAPI
	Store      interfaces.ITokenStore
	Logger     *logger.Logger
	ClientCode string
	TOTPSecret string
	MaxRetries int
	TokenTTL   time.Duration

	mu           sync.RWMutex
	tokens       *models.MSessionTokens
	activeClient string
	refreshing   bool
	retryCount   int

	group singleflight.Group
	now   func() time.Time
}

// -----------------------------------------------------------------------------

func NewManager(api interfaces.IBrokerAPI, store interfaces.ITokenStore, cfg models.MBrokerConfig, log *logger.Logger) *Manager {
	m := &Manager{
		API:        api,
		Store:      store,
		Logger:     log,
		ClientCode: cfg.ClientCode,
		TOTPSecret: cfg.TOTPSecret,
		MaxRetries: cfg.MaxRefreshRetries,
		TokenTTL:   time.Duration(cfg.TokenTTLHours) * time.Hour,
		now:        time.Now,
	}
	if m.MaxRetries <= 0 {
		m.MaxRetries = DefaultMaxRetries
	}
	if m.TokenTTL <= 0 {
		m.TokenTTL = DefaultTokenTTL
	}
	return m
}

// -----------------------------------------------------------------------------

// SetClock replaces the time source. Tests only.
func (m *Manager) SetClock(now func() time.Time) {
	m.now = now
}

// -----------------------------------------------------------------------------

// Login authenticates with the broker. An empty TOTP is generated from the
// configured secret; a malformed one is rejected before any request.
func (m *Manager) Login(ctx context.Context, cred models.MCredential) (*models.MSessionTokens, error) {
	clientID := strings.TrimSpace(cred.ClientID)
	if clientID == "" {
		clientID = m.ClientCode
	}
	if clientID == "" || cred.Password == "" {
		return nil, helpers.NewValidationError("client ID and password are required")
	}

	code := strings.TrimSpace(cred.TOTP)
	if code != "" && !ValidTOTP(code) {
		return nil, helpers.NewValidationError("invalid TOTP format, please provide a 6-digit code")
	}
	if code == "" {
		generated, err := GenerateTOTP(m.TOTPSecret, m.now())
		if err != nil {
			return nil, err
		}
		code = generated
		m.Logger.Info("Generated TOTP from configured secret")
	}

	m.Logger.Info("Logging in client %s", clientID)
	tokens, err := m.API.Login(ctx, clientID, cred.Password, code)
	if err != nil {
		var netErr *helpers.NetworkError
		if errors.As(err, &netErr) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("login: %w", err)
		}
		return nil, helpers.NewAuthError("login failed", err)
	}

	m.stamp(tokens)

	m.mu.Lock()
	m.tokens = tokens
	m.activeClient = clientID
	m.retryCount = 0
	m.refreshing = false
	m.persist(ctx, tokens)
	m.mu.Unlock()

	m.Logger.Info("Login successful, session valid until %s", tokens.ExpiresAt.Format(time.RFC3339))
	return copyTokens(tokens), nil
}

// -----------------------------------------------------------------------------

// EnsureValid returns the live token set, reloading a persisted one after a
// restart. It fails with ErrNotAuthenticated when there is none.
func (m *Manager) EnsureValid(ctx context.Context) (*models.MSessionTokens, error) {
	m.mu.RLock()
	cur := m.tokens
	m.mu.RUnlock()

	if cur != nil && !cur.Expired(m.now()) {
		return copyTokens(cur), nil
	}

	if m.Store != nil {
		stored, err := m.Store.LoadTokens(ctx)
		if err != nil {
			m.Logger.Warning("Token store read failed: %v", err)
		}
		if stored != nil && stored.AccessToken != "" && !stored.Expired(m.now()) {
			m.mu.Lock()
			if m.tokens == nil || m.tokens.Expired(m.now()) {
				m.tokens = stored
				if m.activeClient == "" {
					m.activeClient = m.ClientCode
				}
			}
			cur = m.tokens
			m.mu.Unlock()
			return copyTokens(cur), nil
		}
	}

	if cur != nil {
		m.mu.Lock()
		if m.tokens == cur {
			m.clearLocked(ctx)
		}
		m.mu.Unlock()
	}
	return nil, helpers.ErrNotAuthenticated
}

// -----------------------------------------------------------------------------

// AuthorizedRequest runs fn with the current access token. On ErrUnauthorized
// it refreshes once and retries; the refresh budget bounds the loop.
func (m *Manager) AuthorizedRequest(ctx context.Context, fn func(ctx context.Context, accessToken string) error) error {
	tokens, err := m.EnsureValid(ctx)
	if err != nil {
		return err
	}

	access := tokens.AccessToken
	for {
		err := fn(ctx, access)
		if err == nil || !errors.Is(err, helpers.ErrUnauthorized) {
			m.resetRetries()
			return err
		}

		m.Logger.Warning("Access token rejected, refreshing: %v", err)
		fresh, err := m.refresh(ctx, access)
		if err != nil {
			return err
		}
		access = fresh.AccessToken
	}
}

// -----------------------------------------------------------------------------

// Logout ends the upstream session. Local state is cleared even when the
// upstream call fails.
func (m *Manager) Logout(ctx context.Context) error {
	tokens, err := m.EnsureValid(ctx)

	m.mu.RLock()
	clientCode := m.activeClient
	m.mu.RUnlock()
	if clientCode == "" {
		clientCode = m.ClientCode
	}

	var upstreamErr error
	if err == nil {
		upstreamErr = m.API.Logout(ctx, tokens.AccessToken, clientCode)
	}

	m.clear(ctx)
	m.Logger.Info("Session cleared")

	if upstreamErr != nil {
		return fmt.Errorf("upstream logout: %w", upstreamErr)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (m *Manager) Quote(ctx context.Context, req models.MQuoteRequest) ([]models.MQuote, error) {
	var quotes []models.MQuote
	err := m.AuthorizedRequest(ctx, func(ctx context.Context, access string) error {
		var err error
		quotes, err = m.API.Quote(ctx, access, req)
		return err
	})
	return quotes, err
}

// -----------------------------------------------------------------------------

func (m *Manager) Profile(ctx context.Context) (*models.MProfile, error) {
	var profile *models.MProfile
	err := m.AuthorizedRequest(ctx, func(ctx context.Context, access string) error {
		var err error
		profile, err = m.API.Profile(ctx, access)
		return err
	})
	return profile, err
}

// -----------------------------------------------------------------------------

func (m *Manager) Funds(ctx context.Context) (*models.MFunds, error) {
	var funds *models.MFunds
	err := m.AuthorizedRequest(ctx, func(ctx context.Context, access string) error {
		var err error
		funds, err = m.API.Funds(ctx, access)
		return err
	})
	return funds, err
}

// -----------------------------------------------------------------------------

func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()

	switch {
	case m.tokens == nil:
		return StateUnauthenticated
	case m.refreshing:
		return StateRefreshInProgress
	default:
		return StateAuthenticated
	}
}

// -----------------------------------------------------------------------------

func (m *Manager) StateName() string {
	return m.State().String()
}

// -----------------------------------------------------------------------------

// RetryCount is the number of refreshes since the last successful request.
func (m *Manager) RetryCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.retryCount
}

// -----------------------------------------------------------------------------

// refresh returns a token set newer than stale. Callers holding the same stale
// token share one upstream refresh.
func (m *Manager) refresh(ctx context.Context, stale string) (*models.MSessionTokens, error) {
	m.mu.RLock()
	cur := m.tokens
	m.mu.RUnlock()

	if cur == nil {
		return nil, helpers.ErrReloginRequired
	}
	if cur.AccessToken != stale {
		return copyTokens(cur), nil
	}

	ch := m.group.DoChan("refresh", func() (interface{}, error) {
		return m.doRefresh(context.WithoutCancel(ctx), stale)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return copyTokens(res.Val.(*models.MSessionTokens)), nil
	}
}

// -----------------------------------------------------------------------------

func (m *Manager) doRefresh(ctx context.Context, stale string) (*models.MSessionTokens, error) {
	m.mu.Lock()
	cur := m.tokens
	if cur == nil {
		m.mu.Unlock()
		return nil, helpers.ErrReloginRequired
	}
	if cur.AccessToken != stale {
		m.mu.Unlock()
		return cur, nil
	}
	if m.retryCount >= m.MaxRetries {
		m.clearLocked(ctx)
		m.mu.Unlock()
		m.Logger.Error("Token refresh budget of %d spent, login required", m.MaxRetries)
		return nil, helpers.ErrReloginRequired
	}
	m.retryCount++
	m.refreshing = true
	attempt := m.retryCount
	m.mu.Unlock()

	m.Logger.Info("Refreshing session tokens (attempt %d/%d)", attempt, m.MaxRetries)
	fresh, err := m.API.GenerateTokens(ctx, cur.AccessToken, cur.RefreshToken)

	// A login or logout during the call owns the session now.
	m.mu.Lock()
	if m.tokens == nil || m.tokens.AccessToken != stale {
		current := copyTokens(m.tokens)
		m.mu.Unlock()
		m.Logger.Info("Session changed during token refresh, dropping the result")
		if current == nil {
			return nil, helpers.ErrReloginRequired
		}
		return current, nil
	}

	if err != nil {
		m.clearLocked(ctx)
		m.mu.Unlock()
		m.Logger.Error("Token refresh failed: %v", err)
		return nil, fmt.Errorf("%w: %v", helpers.ErrReloginRequired, err)
	}

	m.stamp(fresh)
	m.tokens = fresh
	m.refreshing = false
	// persisted under the lock so a concurrent clear lands after it
	m.persist(ctx, fresh)
	m.mu.Unlock()

	return fresh, nil
}

// -----------------------------------------------------------------------------

func (m *Manager) resetRetries() {
	m.mu.Lock()
	m.retryCount = 0
	m.mu.Unlock()
}

// -----------------------------------------------------------------------------

func (m *Manager) stamp(tokens *models.MSessionTokens) {
	now := m.now()
	tokens.IssuedAt = now
	tokens.ExpiresAt = now.Add(m.TokenTTL)
}

// -----------------------------------------------------------------------------

func (m *Manager) persist(ctx context.Context, tokens *models.MSessionTokens) {
	if m.Store == nil {
		return
	}
	if err := m.Store.SaveTokens(ctx, tokens); err != nil {
		m.Logger.Warning("Failed to persist session tokens: %v", err)
	}
}

// -----------------------------------------------------------------------------

func (m *Manager) clear(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clearLocked(ctx)
}

// -----------------------------------------------------------------------------

// clearLocked drops the session in memory and in the store. m.mu must be held.
func (m *Manager) clearLocked(ctx context.Context) {
	m.tokens = nil
	m.retryCount = 0
	m.refreshing = false

	if m.Store == nil {
		return
	}
	if err := m.Store.ClearTokens(ctx); err != nil {
		m.Logger.Warning("Failed to clear stored tokens: %v", err)
	}
}

// -----------------------------------------------------------------------------

func copyTokens(t *models.MSessionTokens) *models.MSessionTokens {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
