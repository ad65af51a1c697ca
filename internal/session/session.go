package session

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"storesync/internal/kv"
	"storesync/internal/security/secretbox"
)

// Manager owns the backend session token in durable storage. It is a
// holder, not an issuer: the token comes from the marketplace login
// flow and is treated as opaque unless it parses as a JWT, in which
// case expiry is checked locally so doomed requests are not sent.
type Manager struct {
	store  kv.Store
	secret string
	box    *secretbox.Box
}

// NewManager builds a session manager. jwtSecret, when set, enables
// signature verification of stored tokens; box, when non-nil, seals
// the token at rest.
func NewManager(store kv.Store, jwtSecret string, box *secretbox.Box) *Manager {
	return &Manager{store: store, secret: jwtSecret, box: box}
}

func (m *Manager) Set(token string) error {
	if token == "" {
		return errors.New("empty session token")
	}
	stored := token
	if m.box != nil {
		sealed, err := m.box.Seal(token)
		if err != nil {
			return err
		}
		stored = sealed
	}
	return m.store.Set(kv.KeySessionToken, stored)
}

func (m *Manager) Clear() error {
	return m.store.Delete(kv.KeySessionToken)
}

// Token returns the stored token, if any.
func (m *Manager) Token() (string, bool) {
	stored, err := m.store.Get(kv.KeySessionToken)
	if err != nil || stored == "" {
		return "", false
	}
	if m.box != nil {
		token, err := m.box.Open(stored)
		if err != nil {
			return "", false
		}
		return token, true
	}
	return stored, true
}

// Valid returns the token when it is present and not known to be
// expired. Opaque (non-JWT) tokens pass: the backend is the judge of
// those.
func (m *Manager) Valid() (string, bool) {
	token, ok := m.Token()
	if !ok {
		return "", false
	}

	if m.secret != "" {
		parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return []byte(m.secret), nil
		})
		if err != nil || !parsed.Valid {
			return "", false
		}
		return token, true
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		// Not a JWT at all; present is good enough.
		return token, true
	}
	exp, err := claims.GetExpirationTime()
	if err == nil && exp != nil && exp.Before(time.Now()) {
		return "", false
	}
	return token, true
}
