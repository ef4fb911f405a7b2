package utils

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/GabeYou/Hack-The-Valley-2025/config"
	"github.com/GabeYou/Hack-The-Valley-2025/models"

	"github.com/golang-jwt/jwt/v5"
	redis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type contextKey string

const UserIDKey = contextKey("userID")
const ClaimsKey = contextKey("claims")
const RequestIDKey = contextKey("requestID")

const TokenCookieName = "token"

// TokenClaims is what a verified token says about its bearer.
type TokenClaims struct {
	UserID    string
	TokenID   string
	ExpiresAt time.Time
}

// RevocationStore remembers logged-out token ids until they expire.
type RevocationStore interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

type RedisRevocationStore struct {
	client *redis.Client
}

func NewRedisRevocationStore(client *redis.Client) *RedisRevocationStore {
	return &RedisRevocationStore{client: client}
}

func (s *RedisRevocationStore) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	return s.client.Set(ctx, "jwt:blacklist:"+jti, "1", ttl).Err()
}

func (s *RedisRevocationStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	res, err := s.client.Get(ctx, "jwt:blacklist:"+jti).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return res == "1", nil
}

// DBRevocationStore keeps revoked ids in the revoked_tokens table.
type DBRevocationStore struct {
	db *gorm.DB
}

func NewDBRevocationStore(db *gorm.DB) *DBRevocationStore {
	return &DBRevocationStore{db: db}
}

func (s *DBRevocationStore) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	now := time.Now()
	rec := models.RevokedToken{ID: jti, RevokedAt: now, ExpiresAt: now.Add(ttl)}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"revoked_at", "expires_at"}),
	}).Create(&rec).Error
}

func (s *DBRevocationStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.RevokedToken{}).Where("id = ?", jti).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

// TokenCodec issues and verifies HS256 access tokens.
type TokenCodec struct {
	secret   []byte
	issuer   string
	audience string
	ttl      time.Duration
	revoked  RevocationStore
}

func NewTokenCodec(cfg config.Config, revoked RevocationStore) *TokenCodec {
	return &TokenCodec{
		secret:   []byte(cfg.JWTSecret),
		issuer:   cfg.JWTIssuer,
		audience: cfg.JWTAudience,
		ttl:      cfg.TokenTTL,
		revoked:  revoked,
	}
}

func (c *TokenCodec) TTL() time.Duration {
	return c.ttl
}

// Issue signs a token for userID.
func (c *TokenCodec) Issue(userID string) (string, TokenClaims, error) {
	if len(c.secret) == 0 {
		return "", TokenClaims{}, errors.New("JWT_SECRET is not set")
	}
	now := time.Now()
	exp := now.Add(c.ttl)
	jti, err := generateJTI(16)
	if err != nil {
		return "", TokenClaims{}, err
	}

	claims := jwt.MapClaims{
		"userId": userID,
		"exp":    exp.Unix(),
		"iat":    now.Unix(),
		"nbf":    now.Unix(),
		"jti":    jti,
	}
	if c.issuer != "" {
		claims["iss"] = c.issuer
	}
	if c.audience != "" {
		claims["aud"] = c.audience
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", TokenClaims{}, err
	}
	return signed, TokenClaims{UserID: userID, TokenID: jti, ExpiresAt: time.Unix(exp.Unix(), 0)}, nil
}

// Validate verifies signature, registered claims and revocation.
func (c *TokenCodec) Validate(ctx context.Context, tokenStr string) (TokenClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if c.issuer != "" {
		opts = append(opts, jwt.WithIssuer(c.issuer))
	}
	if c.audience != "" {
		opts = append(opts, jwt.WithAudience(c.audience))
	}

	token, err := jwt.ParseWithClaims(tokenStr, jwt.MapClaims{}, func(t *jwt.Token) (interface{}, error) {
		return c.secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return TokenClaims{}, errors.New("invalid token")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return TokenClaims{}, errors.New("invalid claims")
	}

	userID := claimString(claims, "userId")
	if userID == "" {
		userID = claimString(claims, "id")
	}
	if userID == "" {
		return TokenClaims{}, errors.New("invalid token payload")
	}

	out := TokenClaims{UserID: userID, TokenID: claimString(claims, "jti")}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		out.ExpiresAt = exp.Time
	}

	if out.TokenID != "" && c.revoked != nil {
		revoked, err := c.revoked.IsRevoked(ctx, out.TokenID)
		// a revocation store outage does not fail authentication
		if err == nil && revoked {
			return TokenClaims{}, errors.New("token revoked")
		}
	}
	return out, nil
}

// Revoke blacklists the token until its natural expiry.
func (c *TokenCodec) Revoke(ctx context.Context, claims TokenClaims) error {
	if claims.TokenID == "" {
		return errors.New("empty jti")
	}
	if c.revoked == nil {
		return errors.New("no revocation store configured")
	}
	ttl := time.Until(claims.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	return c.revoked.Revoke(ctx, claims.TokenID, ttl)
}

func claimString(claims jwt.MapClaims, key string) string {
	switch v := claims[key].(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%.0f", v)
	}
	return ""
}

// TokenFromRequest returns the token from the "token" cookie, falling back to
// an Authorization: Bearer header.
func TokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(TokenCookieName); err == nil && strings.TrimSpace(c.Value) != "" {
		return strings.TrimSpace(c.Value)
	}
	authz := r.Header.Get("Authorization")
	if strings.HasPrefix(authz, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authz, "Bearer "))
	}
	return ""
}

// generateJTI creates a random hex identifier used as JWT ID
func generateJTI(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func WithUser(ctx context.Context, claims TokenClaims) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, claims.UserID)
	return context.WithValue(ctx, ClaimsKey, claims)
}

// Get userID from context
func GetUserID(r *http.Request) (string, bool) {
	id, ok := r.Context().Value(UserIDKey).(string)
	return id, ok && id != ""
}

func GetClaims(r *http.Request) (TokenClaims, bool) {
	c, ok := r.Context().Value(ClaimsKey).(TokenClaims)
	return c, ok
}
