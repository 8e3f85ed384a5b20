package profile

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/ieltsprediction/payment-server/config"
	"github.com/ieltsprediction/payment-server/internal/model"
)

var ErrProfileNotFound = errors.New("profile not found")

// Client 用户资料目录 HTTP 客户端
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(cfg *config.ProfileConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// GetProfile GET {base}/profiles/{userId}
func (c *Client) GetProfile(ctx context.Context, userID string) (*model.Profile, error) {
	req, err := c.newRequest(ctx, http.MethodGet, userID, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "get profile")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrProfileNotFound
	}
	if err := checkStatus(resp); err != nil {
		return nil, errors.Wrap(err, "get profile")
	}

	var p model.Profile
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, errors.Wrap(err, "decode profile")
	}
	if p.UserID == "" {
		p.UserID = userID
	}
	return &p, nil
}

// UpdateProfile POST {base}/profiles/{userId}
func (c *Client) UpdateProfile(ctx context.Context, userID string, update model.ProfileUpdate) error {
	body, err := json.Marshal(update)
	if err != nil {
		return errors.Wrap(err, "marshal profile update")
	}

	req, err := c.newRequest(ctx, http.MethodPost, userID, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "update profile")
	}
	defer resp.Body.Close()

	return errors.Wrap(checkStatus(resp), "update profile")
}

func (c *Client) newRequest(ctx context.Context, method, userID string, body io.Reader) (*http.Request, error) {
	if userID == "" {
		return nil, errors.New("empty user id")
	}
	u := fmt.Sprintf("%s/profiles/%s", c.baseURL, url.PathEscape(userID))
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, errors.Wrap(err, "build profile request")
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	return req, nil
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
	return errors.Errorf("profile directory returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
}
