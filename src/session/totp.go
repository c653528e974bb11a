package session

import (
	"regexp"
	"strings"
	"time"

	"options-observer/src/helpers"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

var totpFormat = regexp.MustCompile(`^\d{6}$`)

// GenerateTOTP derives the current 6 digit code from a base32 shared secret.
func GenerateTOTP(secret string, now time.Time) (string, error) {
	if strings.TrimSpace(secret) == "" {
		return "", helpers.NewValidationError("TOTP secret is not configured, provide a 6-digit code")
	}

	code, err := totp.GenerateCodeCustom(secret, now, totp.ValidateOpts{
		Period:    30,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", helpers.NewValidationError("cannot generate TOTP from configured secret: %v", err)
	}
	return code, nil
}

// -----------------------------------------------------------------------------

// ValidTOTP reports whether code has the exact 6 digit form the broker accepts.
func ValidTOTP(code string) bool {
	return totpFormat.MatchString(code)
}
