package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"

	"github.com/feedfuse/feedfuse/internal/config"
	"github.com/feedfuse/feedfuse/internal/store"
	"github.com/feedfuse/feedfuse/pkg/models"
)

// Service issues and validates JWT tokens. Active sessions live in the
// feature store under the sessions namespace so revocation works across
// instances.
type Service struct {
	cfg       *config.AuthConfig
	store     store.FeatureStore
	logger    *logrus.Logger
	jwtSecret []byte
}

func NewService(cfg *config.AuthConfig, featureStore store.FeatureStore, logger *logrus.Logger) *Service {
	return &Service{
		cfg:       cfg,
		store:     featureStore,
		logger:    logger,
		jwtSecret: []byte(cfg.JWTSecret),
	}
}

func (s *Service) GenerateToken(userID, interestToken string) (string, error) {
	now := time.Now()
	claims := &models.JWTClaims{
		UserID:        userID,
		InterestToken: interestToken,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.TokenTTL)),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    "github.com/feedfuse/feedfuse",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	session := map[string]interface{}{
		"issued_at": now.Format(time.RFC3339),
	}
	if err := s.store.Set(context.Background(), store.NamespaceSessions, userID, session, s.cfg.TokenTTL); err != nil {
		// Token generation still succeeds when the store is down.
		s.logger.WithError(err).Warn("Failed to store session")
	}

	return tokenString, nil
}

func (s *Service) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	session, err := s.store.Get(context.Background(), store.NamespaceSessions, claims.UserID)
	if err != nil {
		s.logger.WithError(err).Warn("Failed to check session")
		// Signature already verified; continue when the store is down.
	} else if session == nil {
		return nil, fmt.Errorf("session not found or expired")
	}

	return claims, nil
}

func (s *Service) RevokeToken(userID string) error {
	if err := s.store.Delete(context.Background(), store.NamespaceSessions, userID); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}
