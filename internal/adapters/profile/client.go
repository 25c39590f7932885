package profile

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/campuskit/identity-service/internal/domain"
	"github.com/campuskit/identity-service/internal/ports"
)

// Client resolves profile ids against the campus profile service. Registration
// uses it to confirm the referenced person exists before creating an account.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) GetProfile(ctx context.Context, profileID uuid.UUID) (ports.ProfileRecord, error) {
	endpoint, err := url.JoinPath(c.baseURL, "profiles", "v1", profileID.String())
	if err != nil {
		return ports.ProfileRecord{}, fmt.Errorf("build profile url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return ports.ProfileRecord{}, fmt.Errorf("build profile request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ports.ProfileRecord{}, fmt.Errorf("fetch profile %s: %w", profileID, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return ports.ProfileRecord{}, domain.ErrNotFound
	default:
		return ports.ProfileRecord{}, fmt.Errorf("fetch profile %s: unexpected status %d", profileID, resp.StatusCode)
	}

	var body struct {
		Status string `json:"status"`
		Data   struct {
			ProfileID uuid.UUID `json:"profile_id"`
			FullName  string    `json:"full_name"`
			Email     string    `json:"email"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return ports.ProfileRecord{}, fmt.Errorf("decode profile %s: %w", profileID, err)
	}

	return ports.ProfileRecord{
		ProfileID: body.Data.ProfileID,
		FullName:  body.Data.FullName,
		Email:     body.Data.Email,
	}, nil
}
