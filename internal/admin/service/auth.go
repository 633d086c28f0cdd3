// Package service provides the admin surface: login, compliance
// aggregation, and the audit trail view.
package service

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	id "minderdesk/pkg/domain"
	dErrors "minderdesk/pkg/domain-errors"
)

// Authenticator issues and validates admin session tokens. A single
// seeded admin account; the password is stored as a bcrypt hash.
type Authenticator struct {
	email        string
	passwordHash string
	signingKey   []byte
	sessionTTL   time.Duration
	adminID      id.AdminID
	now          func() time.Time
}

func NewAuthenticator(email, passwordHash, signingKey string, sessionTTL time.Duration) *Authenticator {
	return &Authenticator{
		email:        email,
		passwordHash: passwordHash,
		signingKey:   []byte(signingKey),
		sessionTTL:   sessionTTL,
		// Deterministic per email so tokens survive restarts.
		adminID: id.AdminID(uuid.NewSHA1(uuid.NameSpaceOID, []byte(email))),
		now:     time.Now,
	}
}

// Login checks credentials and returns a signed session token.
func (a *Authenticator) Login(email, password string) (string, error) {
	if a.passwordHash == "" {
		return "", dErrors.New(dErrors.CodeUnavailable, "admin login is not configured")
	}
	if email != a.email {
		return "", dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(a.passwordHash), []byte(password)); err != nil {
		return "", dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
	}

	now := a.now()
	claims := jwt.RegisteredClaims{
		Subject:   a.adminID.String(),
		Issuer:    "minderdesk",
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(a.sessionTTL)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.signingKey)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign session token")
	}
	return signed, nil
}

// ValidateToken parses a bearer token and returns the admin identity.
// Satisfies middleware.AdminTokenValidator.
func (a *Authenticator) ValidateToken(tokenString string) (id.AdminID, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{},
		func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, dErrors.New(dErrors.CodeUnauthorized, "unexpected signing method")
			}
			return a.signingKey, nil
		},
		jwt.WithTimeFunc(a.now),
	)
	if err != nil || !token.Valid {
		return id.AdminID{}, dErrors.New(dErrors.CodeUnauthorized, "invalid or expired token")
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok {
		return id.AdminID{}, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	adminID, err := id.ParseAdminID(claims.Subject)
	if err != nil {
		return id.AdminID{}, dErrors.New(dErrors.CodeUnauthorized, "invalid token subject")
	}
	return adminID, nil
}
