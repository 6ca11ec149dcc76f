package webhooks

import (
	// Go Internal Packages
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net"
	"strings"

	// Local Packages
	errors "payflow/errors"
)

// SignatureHeader carries hex(HMAC-SHA256(secret, body)).
const SignatureHeader = "X-Signature"

// Verifier authenticates callbacks by shared-secret signature and/or source address.
// Each configured check must pass; with nothing configured every callback is accepted.
type Verifier struct {
	secret  []byte
	allowed []*net.IPNet
}

func NewVerifier(secret string, allowedIPs []string) (*Verifier, error) {
	v := &Verifier{}
	if secret != "" {
		v.secret = []byte(secret)
	}
	for _, entry := range allowedIPs {
		if !strings.Contains(entry, "/") {
			if ip := net.ParseIP(entry); ip != nil && ip.To4() != nil {
				entry += "/32"
			} else {
				entry += "/128"
			}
		}
		_, n, err := net.ParseCIDR(entry)
		if err != nil {
			return nil, fmt.Errorf("invalid webhook allowlist entry %q: %w", entry, err)
		}
		v.allowed = append(v.allowed, n)
	}
	return v, nil
}

func (v *Verifier) Enabled() bool {
	return len(v.secret) > 0 || len(v.allowed) > 0
}

func (v *Verifier) Verify(body []byte, signature, remoteIP string) error {
	if len(v.allowed) > 0 {
		ip := net.ParseIP(remoteIP)
		if ip == nil || !v.allows(ip) {
			return errors.UnauthorizedErr("callback source not allowed")
		}
	}
	if len(v.secret) > 0 {
		got, err := hex.DecodeString(strings.TrimSpace(strings.TrimPrefix(signature, "sha256=")))
		if err != nil || len(got) == 0 {
			return errors.UnauthorizedErr("missing or malformed callback signature")
		}
		if !hmac.Equal(got, Sign(v.secret, body)) {
			return errors.UnauthorizedErr("invalid callback signature")
		}
	}
	return nil
}

func (v *Verifier) allows(ip net.IP) bool {
	for _, n := range v.allowed {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

func Sign(secret, body []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return mac.Sum(nil)
}
