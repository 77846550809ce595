// Package session carries the guest identity between requests in a signed
// cookie.
package session

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/hkdf"
)

// MaxAge is the lifetime of the guest cookie: one year.
const MaxAge = 365 * 24 * time.Hour

const (
	keyInfo     = "guest-session-cookie v1"
	secretBytes = 32
	separator   = "."
)

var (
	ErrInvalidCookie = errors.New("invalid session cookie")
	ErrWeakSecret    = errors.New("cookie secret is empty")
)

var encoding = base64.RawURLEncoding

// Options configures a Codec.
type Options struct {
	// Secret is the server-side key material the HMAC key is derived from.
	Secret string
	// Name of the cookie.
	Name string
	// Domain attribute, e.g. ".example.com" to share across subdomains.
	Domain string
	// APIOrigin is the API's own origin. When empty it is derived from the
	// request's Host and scheme.
	APIOrigin string
}

// Codec encodes guest credentials into a cookie value of the form
// "<guestID>.<secret>.<mac>" where mac is HMAC-SHA256 over the first two
// parts.
type Codec struct {
	key       []byte
	name      string
	domain    string
	apiOrigin *url.URL
}

func NewCodec(opts Options) (*Codec, error) {
	if opts.Secret == "" {
		return nil, ErrWeakSecret
	}
	if opts.Name == "" {
		return nil, errors.New("cookie name is required")
	}

	key := make([]byte, sha256.Size)
	kdf := hkdf.New(sha256.New, []byte(opts.Secret), nil, []byte(keyInfo))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("derive cookie key: %w", err)
	}

	c := &Codec{key: key, name: opts.Name, domain: opts.Domain}
	if opts.APIOrigin != "" {
		u, err := url.Parse(opts.APIOrigin)
		if err != nil || u.Host == "" {
			return nil, fmt.Errorf("invalid api origin %q", opts.APIOrigin)
		}
		c.apiOrigin = u
	}
	return c, nil
}

// Name returns the cookie name.
func (c *Codec) Name() string {
	return c.name
}

// Encode returns the signed cookie value for a guest.
func (c *Codec) Encode(guestID uuid.UUID, secret string) string {
	payload := guestID.String() + separator + secret
	return payload + separator + encoding.EncodeToString(c.sign(payload))
}

// Decode verifies and splits a cookie value. Any malformed or tampered value
// yields ErrInvalidCookie.
func (c *Codec) Decode(value string) (uuid.UUID, string, error) {
	parts := strings.Split(value, separator)
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return uuid.Nil, "", ErrInvalidCookie
	}

	mac, err := encoding.DecodeString(parts[2])
	if err != nil {
		return uuid.Nil, "", ErrInvalidCookie
	}
	if !hmac.Equal(mac, c.sign(parts[0]+separator+parts[1])) {
		return uuid.Nil, "", ErrInvalidCookie
	}

	guestID, err := uuid.Parse(parts[0])
	if err != nil || guestID == uuid.Nil {
		return uuid.Nil, "", ErrInvalidCookie
	}
	return guestID, parts[1], nil
}

func (c *Codec) sign(payload string) []byte {
	h := hmac.New(sha256.New, c.key)
	h.Write([]byte(payload))
	return h.Sum(nil)
}

// Read returns the raw guest cookie value of r, or "" if absent.
func (c *Codec) Read(r *http.Request) string {
	cookie, err := r.Cookie(c.name)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// Cookie builds the Set-Cookie for value with attributes chosen for r.
func (c *Codec) Cookie(r *http.Request, value string) *http.Cookie {
	cookie := &http.Cookie{
		Name:     c.name,
		Value:    value,
		Path:     "/",
		Domain:   c.domain,
		MaxAge:   int(MaxAge / time.Second),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   isTLS(r),
	}
	if c.IsCrossSite(r) {
		cookie.SameSite = http.SameSiteNoneMode
		cookie.Secure = true
	}
	return cookie
}

// Expired builds a Set-Cookie that removes the guest cookie.
func (c *Codec) Expired(r *http.Request) *http.Cookie {
	cookie := c.Cookie(r, "")
	cookie.MaxAge = -1
	return cookie
}

// IsCrossSite reports whether r's Origin differs from the API's origin.
// Requests without an Origin header are treated as same-site.
func (c *Codec) IsCrossSite(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return false
	}
	o, err := url.Parse(origin)
	if err != nil || o.Host == "" {
		return true
	}

	api := c.apiOrigin
	if api == nil {
		scheme := "http"
		if isTLS(r) {
			scheme = "https"
		}
		api = &url.URL{Scheme: scheme, Host: r.Host}
	}
	return !strings.EqualFold(o.Scheme, api.Scheme) || !strings.EqualFold(o.Host, api.Host)
}

func isTLS(r *http.Request) bool {
	return r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}

// GenerateSecret returns a random URL-safe conversion token.
func GenerateSecret() (string, error) {
	b := make([]byte, secretBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate guest secret: %w", err)
	}
	return encoding.EncodeToString(b), nil
}
