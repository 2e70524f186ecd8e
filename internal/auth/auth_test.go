package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MimeLyc/subtitle-editor/internal/apperr"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestJWTService_RoundTrip(t *testing.T) {
	svc, err := NewJWTService(testSecret, time.Hour)
	require.NoError(t, err)

	token, err := svc.GenerateToken(42, "alice", RoleUser)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, RoleUser, claims.Role)
	assert.Equal(t, "42", claims.Subject)
}

func TestJWTService_RejectsForeignAndExpiredTokens(t *testing.T) {
	svc, err := NewJWTService(testSecret, time.Hour)
	require.NoError(t, err)
	other, err := NewJWTService("ffffffffffffffffffffffffffffffff", time.Hour)
	require.NoError(t, err)

	foreign, err := other.GenerateToken(1, "", RoleUser)
	require.NoError(t, err)
	_, err = svc.ValidateToken(foreign)
	assert.Error(t, err)

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID: 1,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "subtitle-editor",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})
	signed, err := expired.SignedString([]byte(testSecret))
	require.NoError(t, err)
	_, err = svc.ValidateToken(signed)
	assert.Error(t, err)

	_, err = NewJWTService("short", time.Hour)
	assert.Error(t, err)
}

func TestMiddleware(t *testing.T) {
	svc, err := NewJWTService(testSecret, time.Hour)
	require.NoError(t, err)
	token, err := svc.GenerateToken(7, "bob", RoleAdmin)
	require.NoError(t, err)

	var seen *Claims
	handler := Middleware(svc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = ClaimsFrom(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing", "", http.StatusForbidden},
		{"wrong scheme", "Basic " + token, http.StatusForbidden},
		{"garbage", "Bearer nope", http.StatusForbidden},
		{"valid", "Bearer " + token, http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/lock", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusForbidden {
				assert.JSONEq(t, `{}`, rec.Body.String())
			}
		})
	}
	require.NotNil(t, seen)
	assert.Equal(t, int64(7), seen.UserID)
}

func TestRequireRole(t *testing.T) {
	handler := RequireRole(RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/settings", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req.WithContext(WithClaims(req.Context(), &Claims{Role: RoleUser})))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req.WithContext(WithClaims(req.Context(), &Claims{Role: RoleAdmin})))
	assert.Equal(t, http.StatusOK, rec.Code)
}

type fakeDirectory struct {
	channels map[string]int64
	owners   map[int64]int64
	err      error
}

func (d *fakeDirectory) ChannelOfVideo(_ context.Context, videoID string) (int64, bool, error) {
	if d.err != nil {
		return 0, false, d.err
	}
	id, ok := d.channels[videoID]
	return id, ok, nil
}

func (d *fakeDirectory) CanAccessChannel(_ context.Context, userID, channelID int64) (bool, error) {
	return d.owners[channelID] == userID, nil
}

func TestAuthorizer_CanEditVideo(t *testing.T) {
	dir := &fakeDirectory{
		channels: map[string]int64{"v1": 10},
		owners:   map[int64]int64{10: 1},
	}
	a := NewAuthorizer(dir)
	ctx := context.Background()

	ok, err := a.CanEditVideo(ctx, &Claims{UserID: 1}, "v1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = a.CanEditVideo(ctx, &Claims{UserID: 2}, "v1")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = a.CanEditVideo(ctx, &Claims{UserID: 1}, "unknown")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = a.CanEditVideo(ctx, nil, "v1")
	require.NoError(t, err)
	assert.False(t, ok)

	dir.err = errors.New("db down")
	_, err = a.CanEditVideo(ctx, &Claims{UserID: 1}, "v1")
	assert.True(t, apperr.IsErrorType(err, apperr.ErrStorage))
}
