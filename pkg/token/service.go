package token

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Audiences distinguishing authenticated-user tokens from anonymous ones.
const (
	AudienceUsers     = "users"
	AudienceAnonymous = "anonymous"
)

// Default token lifetimes.
const (
	DefaultAuthenticatedTTL = 7 * 24 * time.Hour
	DefaultAnonymousTTL     = 30 * 24 * time.Hour
)

// Verification errors. Verify distinguishes a bad signature from an
// expired-but-honest token; everything else is ErrInvalidToken.
var (
	ErrExpired          = errors.New("token expired")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrInvalidToken     = errors.New("invalid token")
)

// Config holds the token service configuration.
type Config struct {
	// Secret is the HS256 signing key. Required.
	Secret []byte

	// Issuer tags every token. Defaults to "storecore".
	Issuer string

	// AuthenticatedTTL is the lifetime of registered-user tokens (7 days).
	AuthenticatedTTL time.Duration

	// AnonymousTTL is the lifetime of anonymous tokens (30 days).
	AnonymousTTL time.Duration

	// Leeway tolerates clock skew during verification.
	Leeway time.Duration
}

// DefaultConfig returns the default token configuration for a signing key.
func DefaultConfig(secret []byte) Config {
	return Config{
		Secret:           secret,
		Issuer:           "storecore",
		AuthenticatedTTL: DefaultAuthenticatedTTL,
		AnonymousTTL:     DefaultAnonymousTTL,
	}
}

// Service issues and verifies signed identity tokens. Tokens are immutable
// once issued; refreshing an identity means issuing a new token.
type Service struct {
	cfg    Config
	dir    Directory
	logger zerolog.Logger

	// now is replaceable in tests.
	now func() time.Time
}

// claims is the wire shape other systems read. Standard fields (issuer,
// audience, expiry) ride in RegisteredClaims.
type claims struct {
	ID          string `json:"id"`
	Email       string `json:"email,omitempty"`
	Role        string `json:"role"`
	IsAnonymous bool   `json:"isAnonymous"`
	SessionID   string `json:"sessionId,omitempty"`
	CreatedAt   string `json:"createdAt,omitempty"`
	jwt.RegisteredClaims
}

// NewService creates a token service. A nil directory behaves like an
// empty one: every authenticated token gets role customer.
func NewService(cfg Config, dir Directory) (*Service, error) {
	if len(cfg.Secret) == 0 {
		return nil, fmt.Errorf("signing secret is required")
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "storecore"
	}
	if cfg.AuthenticatedTTL <= 0 {
		cfg.AuthenticatedTTL = DefaultAuthenticatedTTL
	}
	if cfg.AnonymousTTL <= 0 {
		cfg.AnonymousTTL = DefaultAnonymousTTL
	}
	if cfg.Leeway < 0 {
		return nil, fmt.Errorf("invalid leeway configuration")
	}
	if dir == nil {
		dir = NopDirectory{}
	}

	return &Service{
		cfg:    cfg,
		dir:    dir,
		logger: log.With().Str("component", "token").Logger(),
		now:    time.Now,
	}, nil
}

// IssueAuthenticated signs a 7-day token for a registered user. Role and,
// when not supplied, email are resolved from the directory; a failed or
// empty lookup degrades to role customer rather than failing issuance.
func (s *Service) IssueAuthenticated(ctx context.Context, userID, email string) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("user id is required")
	}

	role := s.resolveRole(ctx, userID)
	if email == "" {
		email = s.resolveEmail(ctx, userID)
	}

	now := s.now()
	c := claims{
		ID:    userID,
		Email: email,
		Role:  string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    s.cfg.Issuer,
			Audience:  jwt.ClaimStrings{AudienceUsers},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.AuthenticatedTTL)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.cfg.Secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	tokensIssuedTotal.WithLabelValues("authenticated").Inc()
	s.logger.Debug().
		Str("user_id", userID).
		Str("role", string(role)).
		Str("audience", AudienceUsers).
		Msg("Issued authenticated token")
	return signed, nil
}

// IssueAnonymous mints a 30-day token for a fresh anonymous visitor. Pure
// function of the clock and randomness; no backend lookup.
func (s *Service) IssueAnonymous() (string, Anonymous, error) {
	now := s.now()
	anon := Anonymous{
		VisitorID: prefixedID("anon", now),
		SessionID: prefixedID("sess", now),
		CreatedAt: now,
	}

	c := claims{
		ID:          anon.VisitorID,
		Role:        string(RoleCustomer),
		IsAnonymous: true,
		SessionID:   anon.SessionID,
		CreatedAt:   now.UTC().Format(time.RFC3339),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   anon.VisitorID,
			Issuer:    s.cfg.Issuer,
			Audience:  jwt.ClaimStrings{AudienceAnonymous},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.AnonymousTTL)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.cfg.Secret)
	if err != nil {
		return "", Anonymous{}, fmt.Errorf("sign token: %w", err)
	}

	tokensIssuedTotal.WithLabelValues("anonymous").Inc()
	return signed, anon, nil
}

// Verify validates signature and expiry and returns the decoded identity.
// Failures map onto ErrExpired, ErrInvalidSignature or ErrInvalidToken.
func (s *Service) Verify(tokenStr string) (Identity, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.cfg.Issuer),
		jwt.WithLeeway(s.cfg.Leeway),
	)

	parsed, err := parser.ParseWithClaims(tokenStr, &claims{}, func(t *jwt.Token) (interface{}, error) {
		return s.cfg.Secret, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			tokenVerifyFailuresTotal.WithLabelValues("expired").Inc()
			return nil, fmt.Errorf("%w: %v", ErrExpired, err)
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			tokenVerifyFailuresTotal.WithLabelValues("invalid_signature").Inc()
			return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
		default:
			tokenVerifyFailuresTotal.WithLabelValues("invalid").Inc()
			return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
		}
	}

	c, ok := parsed.Claims.(*claims)
	if !ok || !parsed.Valid {
		tokenVerifyFailuresTotal.WithLabelValues("invalid").Inc()
		return nil, ErrInvalidToken
	}

	if c.IsAnonymous {
		createdAt, _ := time.Parse(time.RFC3339, c.CreatedAt)
		return Anonymous{
			VisitorID: c.ID,
			SessionID: c.SessionID,
			CreatedAt: createdAt,
		}, nil
	}
	return Authenticated{
		UserID: c.ID,
		Email:  c.Email,
		Role:   ParseRole(c.Role),
	}, nil
}

// Auth is a request's identity with its derived authorization and the
// bearer token in effect (freshly minted for anonymous visitors).
type Auth struct {
	Identity Identity
	Access   Access
	Token    string
}

// AuthenticateRequest resolves the identity for an inbound request. No
// bearer token, a malformed header, or an invalid or expired token all
// downgrade to a freshly minted anonymous identity; absence of valid auth
// never fails the request. The only error is a signing failure, which
// means misconfiguration.
func (s *Service) AuthenticateRequest(r *http.Request) (Auth, error) {
	raw := bearerToken(r)
	if raw == "" {
		return s.mintAnonymous("minted")
	}

	id, err := s.Verify(raw)
	if err != nil {
		s.logger.Debug().
			Err(err).
			Msg("Bearer token rejected, downgrading to anonymous")
		return s.mintAnonymous("downgraded")
	}

	access := AccessFor(id)
	if access.IsAuthenticated {
		authRequestsTotal.WithLabelValues("authenticated").Inc()
	} else {
		authRequestsTotal.WithLabelValues("anonymous").Inc()
	}
	return Auth{Identity: id, Access: access, Token: raw}, nil
}

func (s *Service) mintAnonymous(outcome string) (Auth, error) {
	signed, anon, err := s.IssueAnonymous()
	if err != nil {
		return Auth{}, err
	}
	authRequestsTotal.WithLabelValues(outcome).Inc()
	return Auth{Identity: anon, Access: AccessFor(anon), Token: signed}, nil
}

// resolveRole looks up a user's role, degrading to customer on failure.
func (s *Service) resolveRole(ctx context.Context, userID string) Role {
	role, err := s.dir.UserRole(ctx, userID)
	if err != nil {
		if !errors.Is(err, ErrNoProfile) {
			s.logger.Warn().
				Err(err).
				Str("user_id", userID).
				Msg("Role lookup failed, degrading to customer")
		}
		return RoleCustomer
	}
	if role == "" {
		return RoleCustomer
	}
	return ParseRole(string(role))
}

// resolveEmail looks up a user's email, degrading to empty on failure.
func (s *Service) resolveEmail(ctx context.Context, userID string) string {
	email, err := s.dir.UserEmail(ctx, userID)
	if err != nil {
		if !errors.Is(err, ErrNoProfile) {
			s.logger.Warn().
				Err(err).
				Str("user_id", userID).
				Msg("Email lookup failed, issuing without email")
		}
		return ""
	}
	return email
}

// bearerToken extracts the bearer token from the Authorization header.
// Absent or malformed headers read as "no token", never as an error.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// prefixedID builds the time-plus-randomness identifiers used for
// anonymous visitors and their sessions, e.g. anon_1767225600000_1a2b3c4d5e6f.
func prefixedID(prefix string, now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return fmt.Sprintf("%s_%d_%s", prefix, now.UnixMilli(), suffix)
}
