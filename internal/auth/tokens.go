package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwt"
	"github.com/oklog/ulid/v2"
)

// TokenType distinguishes access tokens from refresh tokens.
type TokenType string

// Token types carried in the "type" claim.
const (
	TokenAccess  TokenType = "access"
	TokenRefresh TokenType = "refresh"
)

const claimType = "type"

var (
	// ErrInvalidToken covers malformed tokens, bad signatures and missing claims.
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenExpired indicates the exp claim is in the past.
	ErrTokenExpired = errors.New("token expired")
	// ErrWrongTokenType indicates a refresh token was used as an access token or vice versa.
	ErrWrongTokenType = errors.New("token type not valid")
)

// Claims are the validated contents of a token.
type Claims struct {
	UserID    int64
	Type      TokenType
	ID        string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenPair is the result of a login, signup or refresh.
type TokenPair struct {
	Access        string
	Refresh       string
	AccessClaims  Claims
	RefreshClaims Claims
}

// TokenIssuer signs and verifies HS256 JWTs.
type TokenIssuer struct {
	key        []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewTokenIssuer creates an issuer. now may be nil, in which case time.Now is used.
func NewTokenIssuer(secret string, accessTTL, refreshTTL time.Duration, now func() time.Time) *TokenIssuer {
	if now == nil {
		now = time.Now
	}
	return &TokenIssuer{
		key:        []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        now,
	}
}

// AccessTTL returns the access token lifetime.
func (i *TokenIssuer) AccessTTL() time.Duration { return i.accessTTL }

// RefreshTTL returns the refresh token lifetime.
func (i *TokenIssuer) RefreshTTL() time.Duration { return i.refreshTTL }

// IssuePair creates a fresh access and refresh token for userID.
func (i *TokenIssuer) IssuePair(userID int64) (TokenPair, error) {
	// JWT times have second precision; truncate so exp-iat equals the TTL exactly.
	now := i.now().Truncate(time.Second)

	access, accessClaims, err := i.sign(userID, TokenAccess, now, i.accessTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, refreshClaims, err := i.sign(userID, TokenRefresh, now, i.refreshTTL)
	if err != nil {
		return TokenPair{}, err
	}

	return TokenPair{
		Access:        access,
		Refresh:       refresh,
		AccessClaims:  accessClaims,
		RefreshClaims: refreshClaims,
	}, nil
}

func (i *TokenIssuer) sign(userID int64, typ TokenType, now time.Time, ttl time.Duration) (string, Claims, error) {
	claims := Claims{
		UserID:    userID,
		Type:      typ,
		ID:        ulid.Make().String(),
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
	}

	tok, err := jwt.NewBuilder().
		Subject(strconv.FormatInt(userID, 10)).
		JwtID(claims.ID).
		IssuedAt(claims.IssuedAt).
		Expiration(claims.ExpiresAt).
		Claim(claimType, string(typ)).
		Build()
	if err != nil {
		return "", Claims{}, fmt.Errorf("build %s token: %w", typ, err)
	}

	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256(), i.key))
	if err != nil {
		return "", Claims{}, fmt.Errorf("sign %s token: %w", typ, err)
	}

	return string(signed), claims, nil
}

// Parse verifies the signature of raw and validates its claims against want.
func (i *TokenIssuer) Parse(raw string, want TokenType) (Claims, error) {
	// Time-based validation is done below against the injected clock.
	tok, err := jwt.Parse([]byte(raw), jwt.WithKey(jwa.HS256(), i.key), jwt.WithValidate(false))
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	var typ string
	if err := tok.Get(claimType, &typ); err != nil {
		return Claims{}, fmt.Errorf("%w: missing type claim", ErrInvalidToken)
	}
	if TokenType(typ) != want {
		return Claims{}, ErrWrongTokenType
	}

	sub, ok := tok.Subject()
	if !ok {
		return Claims{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	userID, err := strconv.ParseInt(sub, 10, 64)
	if err != nil || userID <= 0 {
		return Claims{}, fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}

	exp, ok := tok.Expiration()
	if !ok {
		return Claims{}, fmt.Errorf("%w: no expiration time", ErrInvalidToken)
	}
	if !i.now().Before(exp) {
		return Claims{}, ErrTokenExpired
	}

	jti, ok := tok.JwtID()
	if !ok || jti == "" {
		return Claims{}, fmt.Errorf("%w: missing jti", ErrInvalidToken)
	}
	iat, _ := tok.IssuedAt()

	return Claims{
		UserID:    userID,
		Type:      TokenType(typ),
		ID:        jti,
		IssuedAt:  iat,
		ExpiresAt: exp,
	}, nil
}
