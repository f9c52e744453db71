package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hilthontt/ticketchat/internal/domain"
	"github.com/hilthontt/ticketchat/internal/infrastructure/logging"
)

const testSecret = "test-secret"

type stubProfiles map[string]domain.Identity

func (s stubProfiles) GetByID(_ context.Context, id string) (*domain.Identity, error) {
	if id == "broken" {
		return nil, errors.New("connection reset")
	}
	user, ok := s[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return &user, nil
}

func sign(t *testing.T, method jwt.SigningMethod, key any, claims jwt.Claims) string {
	t.Helper()

	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func claimsFor(id string, expiresIn time.Duration) Claims {
	return Claims{
		UserID: id,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
}

func TestJWTVerifier(t *testing.T) {
	profiles := stubProfiles{"u-alice": {ID: "u-alice", Fullname: "Alice Nguyen"}}
	v := NewJWTVerifier(testSecret, profiles, logging.NewNopLogger())

	tests := []struct {
		name       string
		token      string
		want       string
		credential bool
	}{
		{
			name:  "valid",
			token: sign(t, jwt.SigningMethodHS256, []byte(testSecret), claimsFor("u-alice", time.Hour)),
			want:  "Alice Nguyen",
		},
		{
			name:       "expired",
			token:      sign(t, jwt.SigningMethodHS256, []byte(testSecret), claimsFor("u-alice", -time.Hour)),
			credential: true,
		},
		{
			name:       "wrong secret",
			token:      sign(t, jwt.SigningMethodHS256, []byte("other"), claimsFor("u-alice", time.Hour)),
			credential: true,
		},
		{
			name:       "wrong algorithm",
			token:      sign(t, jwt.SigningMethodHS512, []byte(testSecret), claimsFor("u-alice", time.Hour)),
			credential: true,
		},
		{
			name:       "missing id claim",
			token:      sign(t, jwt.SigningMethodHS256, []byte(testSecret), claimsFor("", time.Hour)),
			credential: true,
		},
		{
			name:       "deleted user",
			token:      sign(t, jwt.SigningMethodHS256, []byte(testSecret), claimsFor("u-ghost", time.Hour)),
			credential: true,
		},
		{name: "garbage", token: "not.a.jwt", credential: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, err := v.Verify(context.Background(), tt.token)
			if tt.credential {
				assert.ErrorIs(t, err, domain.ErrInvalidCredential)
				assert.Nil(t, user)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, user.Fullname)
		})
	}
}

func TestJWTVerifierProfileFailure(t *testing.T) {
	v := NewJWTVerifier(testSecret, stubProfiles{}, logging.NewNopLogger())

	_, err := v.Verify(context.Background(), sign(t, jwt.SigningMethodHS256, []byte(testSecret), claimsFor("broken", time.Hour)))

	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrInvalidCredential)
}

func TestJWTVerifierWithoutProfiles(t *testing.T) {
	v := NewJWTVerifier(testSecret, nil, logging.NewNopLogger())

	user, err := v.Verify(context.Background(), sign(t, jwt.SigningMethodHS256, []byte(testSecret), claimsFor("u-bob", time.Hour)))

	require.NoError(t, err)
	assert.Equal(t, &domain.Identity{ID: "u-bob"}, user)
}
