package ozonclient

import (
	"context"
	"net/http"

	"github.com/pkg/errors"
)

type tokenRequest struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	GrantType    string `json:"grant_type"`
}

// Authenticate exchanges an account's client credentials for a short-lived
// access token. A 4xx answer becomes an AuthError so the caller can skip
// the account without treating it as an infrastructure failure.
func (c *OzonClient) Authenticate(ctx context.Context, clientID, clientSecret string) (string, error) {
	payload := tokenRequest{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		GrantType:    "client_credentials",
	}

	status, body, err := c.do(ctx, http.MethodPost, "/api/client/token", "", payload)
	if err != nil {
		return "", err
	}

	if status >= http.StatusBadRequest && status < http.StatusInternalServerError {
		return "", &AuthError{
			ClientID:   clientID,
			StatusCode: status,
			Message:    string(body),
		}
	}
	if status != http.StatusOK {
		return "", errors.Errorf("token endpoint returned status %d: %s", status, body)
	}

	var token struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(body, &token); err != nil {
		return "", errors.Wrap(err, "decoding token response")
	}

	if token.AccessToken == "" {
		return "", &AuthError{
			ClientID:   clientID,
			StatusCode: status,
			Message:    "empty access token in response",
		}
	}

	return token.AccessToken, nil
}
