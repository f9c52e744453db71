package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hilthontt/ticketchat/internal/domain"
	"github.com/hilthontt/ticketchat/internal/infrastructure/logging"
)

// Claims carries the portal user id in the "_id" claim, as issued by the
// ticketing portal.
type Claims struct {
	UserID string `json:"_id"`
	jwt.RegisteredClaims
}

// JWTVerifier validates HS256 tokens and loads the caller's profile.
type JWTVerifier struct {
	secret   []byte
	profiles domain.ProfileRepository
	logger   logging.Logger
	leeway   time.Duration
}

func NewJWTVerifier(secret string, profiles domain.ProfileRepository, logger logging.Logger) *JWTVerifier {
	return &JWTVerifier{
		secret:   []byte(secret),
		profiles: profiles,
		logger:   logger,
		leeway:   30 * time.Second,
	}
}

func (v *JWTVerifier) Verify(ctx context.Context, credential string) (*domain.Identity, error) {
	claims, err := v.parse(credential)
	if err != nil {
		v.logger.Info(logging.Auth, logging.Verify, "token rejected", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidCredential, err)
	}

	if v.profiles == nil {
		return &domain.Identity{ID: claims.UserID}, nil
	}

	user, err := v.profiles.GetByID(ctx, claims.UserID)
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil, fmt.Errorf("%w: user %s no longer exists", domain.ErrInvalidCredential, claims.UserID)
	}
	if err != nil {
		return nil, fmt.Errorf("load profile %s: %w", claims.UserID, err)
	}
	return user, nil
}

func (v *JWTVerifier) parse(credential string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(credential, &Claims{}, func(token *jwt.Token) (any, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithLeeway(v.leeway))
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.UserID == "" {
		return nil, errors.New("token has no _id claim")
	}
	return claims, nil
}
