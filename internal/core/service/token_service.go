package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/stockpulse/authcore/internal/core/domain"
)

// DefaultTokenTTL is the session token lifetime when none is configured.
const DefaultTokenTTL = 12 * time.Hour

// TokenConfig configures TokenService.
type TokenConfig struct {
	Secret string
	Issuer string
	TTL    time.Duration
	Clock  Clock
}

// TokenService issues and validates HS256-signed session tokens. The token
// carries only the subject; authorities are looked up per request.
type TokenService struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    Clock
	parser *jwt.Parser
}

func NewTokenService(cfg TokenConfig) (*TokenService, error) {
	if cfg.Secret == "" {
		return nil, errors.New("token service: signing secret is required")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTokenTTL
	}
	now := orSystemClock(cfg.Clock)

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(now),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithStrictDecoding(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}

	return &TokenService{
		secret: []byte(cfg.Secret),
		issuer: cfg.Issuer,
		ttl:    cfg.TTL,
		now:    now,
		parser: jwt.NewParser(opts...),
	}, nil
}

// Issue signs a token for subject expiring ttl from now.
func (s *TokenService) Issue(subject string) (string, time.Time, error) {
	if subject == "" {
		return "", time.Time{}, errors.New("token service: empty subject")
	}
	issuedAt := s.now().Truncate(time.Second)
	expiresAt := issuedAt.Add(s.ttl)

	claims := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   subject,
		Issuer:    s.issuer,
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Validate verifies signature and expiry and returns the token subject.
// Failures map onto domain.ErrTokenMalformed, domain.ErrSignatureInvalid or
// domain.ErrTokenExpired.
func (s *TokenService) Validate(token string) (string, error) {
	if token == "" {
		return "", domain.ErrTokenMalformed
	}

	claims := &jwt.RegisteredClaims{}
	parsed, err := s.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		return "", classifyTokenError(err)
	}
	if !parsed.Valid || claims.Subject == "" {
		return "", domain.ErrTokenMalformed
	}
	return claims.Subject, nil
}

func classifyTokenError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return domain.ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenUnverifiable):
		return domain.ErrSignatureInvalid
	default:
		return domain.ErrTokenMalformed
	}
}
