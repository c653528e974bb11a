package models

import "time"

// MCredential is supplied per login call and never stored.
type MCredential struct {
	ClientID string `json:"clientId"`
	Password string `json:"password"`
	TOTP     string `json:"totp"`
}

// MSessionTokens is the token set issued by login or refresh.
type MSessionTokens struct {
	AccessToken  string    `json:"jwtToken"`
	RefreshToken string    `json:"refreshToken"`
	FeedToken    string    `json:"feedToken"`
	IssuedAt     time.Time `json:"issuedAt"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// Expired reports whether the set is past its local expiry. A zero ExpiresAt
// never expires.
func (t *MSessionTokens) Expired(now time.Time) bool {
	return !t.ExpiresAt.IsZero() && !now.Before(t.ExpiresAt)
}

// MProfile is the subset of getProfile the dashboard shows.
type MProfile struct {
	ClientCode string   `json:"clientcode" validate:"required"`
	Name       string   `json:"name"`
	Email      string   `json:"email"`
	MobileNo   string   `json:"mobileno"`
	Exchanges  []string `json:"exchanges"`
	Products   []string `json:"products"`
	LastLogin  string   `json:"lastlogintime"`
	BrokerID   string   `json:"brokerid"`
}

// MFunds mirrors getRMS. Amounts are reported as decimal strings.
type MFunds struct {
	Net                    string `json:"net"`
	AvailableCash          string `json:"availablecash"`
	AvailableIntradayPayin string `json:"availableintradaypayin"`
	AvailableLimitMargin   string `json:"availablelimitmargin"`
	Collateral             string `json:"collateral"`
	M2MUnrealized          string `json:"m2munrealized"`
	M2MRealized            string `json:"m2mrealized"`
	UtilisedDebits         string `json:"utiliseddebits"`
	UtilisedSpan           string `json:"utilisedspan"`
	UtilisedPayout         string `json:"utilisedpayout"`
}

// MDashboard combines profile and funds.
type MDashboard struct {
	Profile *MProfile `json:"profile"`
	Funds   *MFunds   `json:"funds"`
}
