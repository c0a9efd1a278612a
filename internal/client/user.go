// Package client calls services this one depends on.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/GabrijelGordic/Suzeraj/internal/domain"
	apperrors "github.com/GabrijelGordic/Suzeraj/pkg/errors"
	"github.com/GabrijelGordic/Suzeraj/pkg/httpclient"
)

const userService = "user-service"

// UserClient fetches public profiles from the user service.
type UserClient struct {
	http    httpclient.Doer
	baseURL string
	logger  *slog.Logger
}

// NewUserClient creates a client for the user service at baseURL. doer is
// normally an httpclient.CircuitBreakerClient.
func NewUserClient(doer httpclient.Doer, baseURL string, logger *slog.Logger) *UserClient {
	return &UserClient{
		http:    doer,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

type userResponse struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Avatar    string    `json:"avatar"`
	Bio       string    `json:"bio"`
	Location  string    `json:"location"`
	UpdatedAt time.Time `json:"updated_at"`
}

// GetByUsername returns the profile for username. Unknown users map to a
// NotFound error; transport failures, 5xx responses and an open breaker map
// to Transient.
func (c *UserClient) GetByUsername(ctx context.Context, username string) (*domain.Profile, error) {
	endpoint := c.baseURL + "/api/v1/users/by-username/" + url.PathEscape(username)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create user request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, apperrors.Transient(fmt.Errorf("call %s: %w", userService, err))
	}

	if resp.StatusCode == http.StatusNotFound {
		_ = resp.Body.Close()
		return nil, apperrors.NotFound("seller", username)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, httpclient.ParseResponseError(resp, userService)
	}
	defer resp.Body.Close()

	var body userResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, apperrors.Transient(fmt.Errorf("decode %s response: %w", userService, err))
	}
	if body.ID == "" {
		return nil, apperrors.Transient(fmt.Errorf("%s returned a profile without id", userService))
	}

	c.logger.DebugContext(ctx, "fetched profile from user service", slog.String("username", username))

	return &domain.Profile{
		UserID:    body.ID,
		Username:  body.Username,
		Avatar:    body.Avatar,
		Bio:       body.Bio,
		Location:  body.Location,
		UpdatedAt: body.UpdatedAt,
	}, nil
}
