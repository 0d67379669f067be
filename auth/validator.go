package auth

import (
	"bytes"
	"collab-server/core"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrUnauthorized is returned for every validation failure. The handshake
// boundary does not leak why a token was rejected.
var ErrUnauthorized = errors.New("unauthorized")

// JWTValidator validates session tokens locally against the shared secret.
type JWTValidator struct{}

func (JWTValidator) Validate(ctx context.Context, token string) (string, error) {
	claims, err := ParseToken(token)
	if err != nil {
		logrus.WithError(err).Debug("Token validation failed")
		return "", ErrUnauthorized
	}
	if claims.Subject == "" {
		return "", ErrUnauthorized
	}
	return claims.Subject, nil
}

// ServiceValidator delegates token validation to an external authentication
// service. Expired, malformed and rejected tokens, as well as the service
// being unreachable, all collapse to ErrUnauthorized.
type ServiceValidator struct {
	baseURL string
	client  *http.Client
}

// NewServiceValidator creates a validator calling POST {baseURL}/validate.
func NewServiceValidator(baseURL string) *ServiceValidator {
	return &ServiceValidator{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 5 * time.Second},
	}
}

func (v *ServiceValidator) Validate(ctx context.Context, token string) (string, error) {
	body, err := json.Marshal(map[string]string{"token": token})
	if err != nil {
		return "", ErrUnauthorized
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.baseURL+"/validate", bytes.NewReader(body))
	if err != nil {
		return "", ErrUnauthorized
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		logrus.WithError(err).Warn("Auth service unreachable")
		return "", ErrUnauthorized
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", ErrUnauthorized
	}

	var result struct {
		Valid  bool   `json:"valid"`
		UserID string `json:"userId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		logrus.WithError(err).Warn("Failed to decode auth service response")
		return "", ErrUnauthorized
	}
	if !result.Valid || result.UserID == "" {
		return "", ErrUnauthorized
	}
	return result.UserID, nil
}

// GetValidator selects the token validator from the environment: the external
// auth service when AUTH_SERVICE_URL is set, local JWT validation otherwise.
func GetValidator() core.TokenValidator {
	if url := os.Getenv("AUTH_SERVICE_URL"); url != "" {
		logrus.WithField("url", url).Info("Using external auth service for token validation")
		return NewServiceValidator(url)
	}
	logrus.Info("Using local JWT token validation")
	return JWTValidator{}
}
