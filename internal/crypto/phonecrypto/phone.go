// Package phonecrypto normalises phone numbers and protects them at rest:
// AES-256-GCM for the stored value and HMAC-SHA256 for equality lookups.
package phonecrypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/and161185/hogar/internal/errs"
)

const (
	KeyLen    = 32
	nonceSize = 12
	tagSize   = 16
	version   = "v1"
)

var (
	e164Re  = regexp.MustCompile(`^\+[1-9]\d{7,14}$`)
	localRe = regexp.MustCompile(`^\d{6,15}$`)
)

// Normalize returns the E.164 form (+ and 8..15 digits) or bare local digits (6..15).
// Separators are dropped. Invalid input yields "".
func Normalize(phone string) string {
	raw := strings.TrimSpace(phone)
	if raw == "" {
		return ""
	}
	hasPlus := strings.HasPrefix(raw, "+")
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if digits == "" {
		return ""
	}
	if hasPlus {
		n := "+" + digits
		if !e164Re.MatchString(n) {
			return ""
		}
		return n
	}
	if !localRe.MatchString(digits) {
		return ""
	}
	return digits
}

// Cipher holds the phone key. A nil *Cipher means phone support is disabled,
// and every operation then fails with errs.ErrPhoneAuthUnavailable.
type Cipher struct {
	key  []byte
	aead cipher.AEAD
}

// New builds a Cipher from a 32-byte key.
func New(key []byte) (*Cipher, error) {
	if len(key) != KeyLen {
		return nil, fmt.Errorf("phone key: want %d bytes, got %d", KeyLen, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Cipher{key: append([]byte(nil), key...), aead: aead}, nil
}

// Enabled reports whether phone operations are available.
func (c *Cipher) Enabled() bool { return c != nil }

// Encrypt seals a normalised phone as v1:<iv>:<tag>:<cipher>, each part base64url.
func (c *Cipher) Encrypt(normalized string) (string, error) {
	if c == nil {
		return "", errs.ErrPhoneAuthUnavailable
	}
	iv := make([]byte, nonceSize)
	if _, err := rand.Read(iv); err != nil {
		return "", err
	}
	sealed := c.aead.Seal(nil, iv, []byte(normalized), nil)
	ct, tag := sealed[:len(sealed)-tagSize], sealed[len(sealed)-tagSize:]
	enc := base64.RawURLEncoding
	return strings.Join([]string{version, enc.EncodeToString(iv), enc.EncodeToString(tag), enc.EncodeToString(ct)}, ":"), nil
}

// Decrypt opens a value produced by Encrypt and re-normalises it.
func (c *Cipher) Decrypt(stored string) (string, error) {
	if c == nil {
		return "", errs.ErrPhoneAuthUnavailable
	}
	parts := strings.Split(strings.TrimSpace(stored), ":")
	if len(parts) != 4 || parts[0] != version {
		return "", errors.New("phone: unknown format")
	}
	dec := base64.RawURLEncoding
	iv, err := dec.DecodeString(parts[1])
	if err != nil || len(iv) != nonceSize {
		return "", errors.New("phone: bad iv")
	}
	tag, err := dec.DecodeString(parts[2])
	if err != nil || len(tag) != tagSize {
		return "", errors.New("phone: bad tag")
	}
	ct, err := dec.DecodeString(parts[3])
	if err != nil {
		return "", errors.New("phone: bad ciphertext")
	}
	plain, err := c.aead.Open(nil, iv, append(ct, tag...), nil)
	if err != nil {
		return "", err
	}
	n := Normalize(string(plain))
	if n == "" {
		return "", errors.New("phone: decrypted value is not a phone")
	}
	return n, nil
}

// LookupHash returns hex HMAC-SHA256 of a normalised phone.
func (c *Cipher) LookupHash(normalized string) (string, error) {
	if c == nil {
		return "", errs.ErrPhoneAuthUnavailable
	}
	m := hmac.New(sha256.New, c.key)
	m.Write([]byte(normalized))
	return hex.EncodeToString(m.Sum(nil)), nil
}

// Protect normalises raw and returns its ciphertext and lookup hash.
func (c *Cipher) Protect(raw string) (normalized, encrypted, lookup string, err error) {
	if c == nil {
		return "", "", "", errs.ErrPhoneAuthUnavailable
	}
	normalized = Normalize(raw)
	if normalized == "" {
		return "", "", "", errs.ErrInvalidPhone
	}
	if encrypted, err = c.Encrypt(normalized); err != nil {
		return "", "", "", err
	}
	lookup, err = c.LookupHash(normalized)
	return normalized, encrypted, lookup, err
}
