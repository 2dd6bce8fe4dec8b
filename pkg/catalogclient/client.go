package catalogclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/XavierBriggs/fortuna/services/player-catalog/internal/retry"
	"github.com/XavierBriggs/fortuna/services/player-catalog/pkg/models"
)

// ErrNotFound is returned when the service has no matching player
var ErrNotFound = errors.New("player not found")

// StatusError is a non-2xx answer from the catalog service
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("catalog error (status %d): %s", e.StatusCode, e.Message)
}

// Client handles HTTP communication with the player catalog service
type Client struct {
	baseURL    string
	httpClient *http.Client
	retry      *retry.RetryPolicy
}

// New creates a catalog client. httpClient may be nil.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: 10 * time.Second,
		}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		retry:      retry.NewRetryPolicy(3, 200*time.Millisecond).WithMaxDelay(2 * time.Second),
	}
}

// WithRetryPolicy replaces the default policy of 3 attempts
func (c *Client) WithRetryPolicy(p *retry.RetryPolicy) *Client {
	c.retry = p
	return c
}

// SearchPlayers runs a remote search. An empty sport lets the server default to NBA.
func (c *Client) SearchPlayers(ctx context.Context, query string, sport models.Sport) ([]models.PlayerRecord, error) {
	params := url.Values{}
	params.Set("q", query)
	if sport != "" {
		params.Set("sport", string(sport))
	}

	results := []models.PlayerRecord{}
	if err := c.get(ctx, "/api/v1/players/search", params, &results); err != nil {
		return nil, err
	}
	return results, nil
}

// GetPlayer fetches one player by bare id or composite key
func (c *Client) GetPlayer(ctx context.Context, id string, sport models.Sport) (*models.PlayerRecord, error) {
	params := url.Values{}
	if sport != "" {
		params.Set("sport", string(sport))
	}

	var player models.PlayerRecord
	err := c.get(ctx, "/api/v1/players/"+url.PathEscape(id), params, &player)
	if err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &player, nil
}

// Sports lists the sports the service serves with their load states
func (c *Client) Sports(ctx context.Context) ([]models.SportStatus, error) {
	var result struct {
		Sports []models.SportStatus `json:"sports"`
	}
	if err := c.get(ctx, "/api/v1/sports", nil, &result); err != nil {
		return nil, err
	}
	return result.Sports, nil
}

// get issues a GET, retrying network errors and 5xx answers
func (c *Client) get(ctx context.Context, path string, params url.Values, out interface{}) error {
	target := c.baseURL + path
	if len(params) > 0 {
		target += "?" + params.Encode()
	}
	requestID := uuid.New().String()

	return c.retry.Execute(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return retry.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("X-Request-Id", requestID)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return retry.Permanent(ctx.Err())
			}
			return fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response: %w", err)
		}

		if resp.StatusCode >= 400 {
			statusErr := &StatusError{StatusCode: resp.StatusCode, Message: errorMessage(body)}
			if resp.StatusCode >= 500 {
				return statusErr
			}
			return retry.Permanent(statusErr)
		}

		if err := json.Unmarshal(body, out); err != nil {
			return retry.Permanent(fmt.Errorf("failed to unmarshal response: %w", err))
		}
		return nil
	})
}

func errorMessage(body []byte) string {
	var errResp models.ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Message != "" {
		return errResp.Message
	}
	return strings.TrimSpace(string(body))
}
