package crewkit

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken is returned when a bearer token fails verification.
var ErrInvalidToken = errors.New("crewkit: invalid token")

// IdentityClaims are the claims of a caller token. The subject is the user ID.
type IdentityClaims struct {
	jwt.RegisteredClaims
}

// JWTIdentity verifies HS256 bearer tokens and yields the caller's user ID.
type JWTIdentity struct {
	secret []byte
	issuer string
	parser *jwt.Parser
}

// NewJWTIdentity creates a verifier for tokens signed with secret.
// When issuer is set, tokens must carry it.
func NewJWTIdentity(secret, issuer string) (*JWTIdentity, error) {
	if secret == "" {
		return nil, errors.New("crewkit: JWT secret is required")
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	}
	if issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(issuer))
	}

	return &JWTIdentity{
		secret: []byte(secret),
		issuer: issuer,
		parser: jwt.NewParser(parserOpts...),
	}, nil
}

// Verify checks the token signature and claims and returns its subject.
func (j *JWTIdentity) Verify(token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrInvalidToken
	}

	claims := &IdentityClaims{}
	parsed, err := j.parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return j.secret, nil
	})
	if err != nil || !parsed.Valid {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return "", fmt.Errorf("%w: subject missing", ErrInvalidToken)
	}
	return claims.Subject, nil
}

// UserID extracts and verifies the bearer token of r. It returns "" when the
// request carries no valid token, which makes it usable with
// WithUserIDExtractor.
func (j *JWTIdentity) UserID(r *http.Request) string {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	userID, err := j.Verify(token)
	if err != nil {
		return ""
	}
	return userID
}

// Issue signs a token for userID valid for ttl.
func (j *JWTIdentity) Issue(userID string, ttl time.Duration) (string, error) {
	if userID == "" {
		return "", errors.New("crewkit: user ID is required")
	}
	if ttl <= 0 {
		return "", errors.New("crewkit: ttl must be greater than zero")
	}

	now := time.Now().UTC()
	claims := IdentityClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    j.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
