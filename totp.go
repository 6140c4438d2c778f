package sshauth

import (
	"bytes"
	"crypto/rand"
	"encoding/base32"
	"encoding/base64"
	"encoding/hex"
	"image/png"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// totpManager owns the MFA code material: secret generation, provisioning
// URIs, code verification, and backup codes. It is stateless; per-user
// secrets live on the [Account].
type totpManager struct {
	config TOTPConfig
}

func newTOTPManager(cfg TOTPConfig) *totpManager {
	return &totpManager{config: cfg}
}

// GenerateSecret returns a fresh base32 secret (no padding). 20 random bytes
// encode to the 32 characters authenticator apps expect.
func (m *totpManager) GenerateSecret() (string, error) {
	raw := make([]byte, 20)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(raw), nil
}

// ProvisionURI builds the otpauth:// URI an authenticator app enrolls from.
func (m *totpManager) ProvisionURI(secret, accountName string) string {
	params := url.Values{}
	params.Set("secret", secret)
	params.Set("issuer", m.config.Issuer)
	params.Set("algorithm", "SHA1")
	params.Set("digits", strconv.Itoa(m.config.Digits))
	params.Set("period", strconv.Itoa(m.config.Period))

	label := url.PathEscape(m.config.Issuer + ":" + accountName)
	return "otpauth://totp/" + label + "?" + params.Encode()
}

// QRDataURI renders the provisioning URI as a PNG QR code wrapped in a
// base64 data URI, ready to drop into an <img> tag.
func (m *totpManager) QRDataURI(provisionURI string) (string, error) {
	key, err := otp.NewKeyFromURL(provisionURI)
	if err != nil {
		return "", err
	}

	img, err := key.Image(200, 200)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", err
	}

	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// VerifyCode checks code against secret at the given instant, accepting the
// configured skew in adjacent time steps. A code remains valid for the whole
// window it falls in; single-use enforcement is out of scope here.
func (m *totpManager) VerifyCode(secret, code string, at time.Time) bool {
	code = strings.TrimSpace(code)
	if len(code) != m.config.Digits {
		return false
	}

	ok, err := totp.ValidateCustom(code, secret, at, totp.ValidateOpts{
		Period:    uint(m.config.Period),
		Skew:      uint(m.config.Skew),
		Digits:    otp.Digits(m.config.Digits),
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		return false
	}
	return ok
}

// GenerateBackupCodes returns the configured number of single-use codes,
// each an uppercase hex string. Codes are unique within the batch.
func (m *totpManager) GenerateBackupCodes() ([]string, error) {
	count := m.config.BackupCodeCount
	length := m.config.BackupCodeLength

	codes := make([]string, 0, count)
	seen := make(map[string]struct{}, count)
	for len(codes) < count {
		raw := make([]byte, (length+1)/2)
		if _, err := rand.Read(raw); err != nil {
			return nil, err
		}
		code := strings.ToUpper(hex.EncodeToString(raw))[:length]
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
	}
	return codes, nil
}

// normalizeBackupCode uppercases the input and strips hyphens and spaces so
// users can enter codes however their password manager formatted them.
func normalizeBackupCode(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	code = strings.ReplaceAll(code, "-", "")
	return strings.ReplaceAll(code, " ", "")
}

// consumeBackupCode removes the first code matching input from codes.
// Returns the remaining codes and whether a match was consumed.
func consumeBackupCode(codes []string, input string) ([]string, bool) {
	normalized := normalizeBackupCode(input)
	if normalized == "" {
		return codes, false
	}
	for i, code := range codes {
		if code == normalized {
			remaining := make([]string, 0, len(codes)-1)
			remaining = append(remaining, codes[:i]...)
			remaining = append(remaining, codes[i+1:]...)
			return remaining, true
		}
	}
	return codes, false
}
