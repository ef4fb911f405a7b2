package utils_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/GabeYou/Hack-The-Valley-2025/config"
	"github.com/GabeYou/Hack-The-Valley-2025/database"
	"github.com/GabeYou/Hack-The-Valley-2025/utils"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestSniffImageType(t *testing.T) {
	cases := map[string]struct {
		in   []byte
		want string
	}{
		"png":       {[]byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0x00}, "image/png"},
		"short png": {[]byte{0x89, 0x50, 0x4E, 0x47}, utils.OctetStream},
		"jpeg":      {[]byte{0xFF, 0xD8, 0x00}, "image/jpeg"},
		"gif":       {[]byte("GIF89a"), "image/gif"},
		"text":      {[]byte("hello"), utils.OctetStream},
		"empty":     {nil, utils.OctetStream},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, utils.SniffImageType(tc.in))
		})
	}
	assert.Equal(t, ".png", utils.ImageExtension("image/png"))
	assert.Equal(t, ".bin", utils.ImageExtension(utils.OctetStream))
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, utils.KindConflict, utils.KindOf(utils.ErrConflict("x")))
	assert.Equal(t, utils.KindNotFound, utils.KindOf(fmt.Errorf("wrap: %w", utils.ErrNotFound("gone"))))
	assert.Equal(t, utils.KindNotFound, utils.KindOf(gorm.ErrRecordNotFound))
	assert.Equal(t, utils.KindConflict, utils.KindOf(gorm.ErrDuplicatedKey))
	assert.Equal(t, utils.KindInternal, utils.KindOf(errors.New("boom")))

	assert.Equal(t, http.StatusBadRequest, utils.KindInsufficientFunds.Status())
	assert.Equal(t, http.StatusConflict, utils.KindConflict.Status())
	assert.Equal(t, http.StatusInternalServerError, utils.KindInternal.Status())
}

func TestPublicMessageHidesInternalCause(t *testing.T) {
	err := utils.ErrInternal("Failed to fetch tasks", errors.New("dial tcp 10.0.0.1: refused"))
	assert.Equal(t, "Failed to fetch tasks", utils.PublicMessage(err))
	assert.Equal(t, "Internal server error", utils.PublicMessage(errors.New("secret detail")))
	assert.Equal(t, "Task not found", utils.PublicMessage(utils.ErrNotFound("Task not found")))
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	utils.WriteError(rec, utils.ErrForbidden("nope"))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"error":"nope"}`, rec.Body.String())
}

func TestOrderIDs(t *testing.T) {
	gen, err := utils.NewOrderIDGenerator(3)
	require.NoError(t, err)
	seen := map[string]bool{}
	for i := 0; i < 1000; i++ {
		id := gen.Next()
		require.True(t, strings.HasPrefix(id, "BTY-"))
		require.False(t, seen[id], "duplicate %s", id)
		seen[id] = true
	}
	_, err = utils.NewOrderIDGenerator(5000)
	require.Error(t, err)
}

type signup struct {
	Name  string `json:"name" validate:"notblank"`
	Email string `json:"email" validate:"required,email"`
	Phone string `json:"phoneNumber" validate:"required,phone"`
}

func TestValidateStruct(t *testing.T) {
	require.NoError(t, utils.ValidateStruct(signup{Name: "A", Email: "a@example.com", Phone: "+1 555 555 0100"}))

	err := utils.ValidateStruct(signup{Name: "  ", Email: "a@example.com", Phone: "+15555550100"})
	require.EqualError(t, err, "name is required")

	err = utils.ValidateStruct(signup{Name: "A", Email: "nope", Phone: "+15555550100"})
	require.EqualError(t, err, "email must be a valid email address")

	err = utils.ValidateStruct(signup{Name: "A", Email: "a@example.com", Phone: "call me"})
	require.EqualError(t, err, "phoneNumber must be a valid phone number")
}

func newCodec(t *testing.T) (*utils.TokenCodec, config.Config) {
	t.Helper()
	db, err := database.OpenSQLite("file:" + uuid.NewString() + "?mode=memory&cache=shared")
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	cfg := config.Config{JWTSecret: "test-secret", JWTIssuer: "bountyboard", TokenTTL: time.Hour}
	return utils.NewTokenCodec(cfg, utils.NewDBRevocationStore(db)), cfg
}

func TestTokenIssueValidateRevoke(t *testing.T) {
	codec, _ := newCodec(t)
	ctx := context.Background()

	tok, issued, err := codec.Issue("user-1")
	require.NoError(t, err)
	assert.NotEmpty(t, issued.TokenID)

	claims, err := codec.Validate(ctx, tok)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, issued.TokenID, claims.TokenID)

	require.NoError(t, codec.Revoke(ctx, claims))
	_, err = codec.Validate(ctx, tok)
	require.Error(t, err)
}

func TestTokenRejectsForgedAndExpired(t *testing.T) {
	codec, cfg := newCodec(t)
	ctx := context.Background()

	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"userId": "user-1",
		"iss":    cfg.JWTIssuer,
		"exp":    time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("other-secret"))
	require.NoError(t, err)
	_, err = codec.Validate(ctx, forged)
	require.Error(t, err)

	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"userId": "user-1",
		"iss":    cfg.JWTIssuer,
		"exp":    time.Now().Add(-time.Minute).Unix(),
	}).SignedString([]byte(cfg.JWTSecret))
	require.NoError(t, err)
	_, err = codec.Validate(ctx, expired)
	require.Error(t, err)

	legacy, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id":  "user-2",
		"iss": cfg.JWTIssuer,
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(cfg.JWTSecret))
	require.NoError(t, err)
	claims, err := codec.Validate(ctx, legacy)
	require.NoError(t, err)
	assert.Equal(t, "user-2", claims.UserID)
}

func TestTokenFromRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, utils.TokenFromRequest(r))

	r.Header.Set("Authorization", "Bearer abc")
	assert.Equal(t, "abc", utils.TokenFromRequest(r))

	r.AddCookie(&http.Cookie{Name: utils.TokenCookieName, Value: "from-cookie"})
	assert.Equal(t, "from-cookie", utils.TokenFromRequest(r))
}
