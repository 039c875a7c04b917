// Package client connects an editing session to a remote papanskor server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"papanskor/internal/permission"
	"papanskor/internal/scoreboard/model"
)

var ErrNotFound = errors.New("client: scoreboard not found")

// HTTPStore writes patches through the REST update endpoint.
type HTTPStore struct {
	BaseURL    string
	Token      string // bearer JWT, optional
	ShareToken string // control share token, optional
	HTTP       *http.Client
}

func NewHTTPStore(baseURL, token, shareToken string) *HTTPStore {
	return &HTTPStore{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Token:      token,
		ShareToken: shareToken,
		HTTP:       http.DefaultClient,
	}
}

// Save performs one partial write and returns the committed row.
func (s *HTTPStore) Save(ctx context.Context, docID string, patch model.Patch) (*model.Scoreboard, error) {
	body, err := json.Marshal(patch)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	if docID != "" {
		q.Set("docId", docID)
	}
	if s.ShareToken != "" {
		q.Set("share", s.ShareToken)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, s.BaseURL+"/api/scoreboards/update?"+q.Encode(), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.Token)
	}

	resp, err := s.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp)
	}

	var row model.Scoreboard
	if err := json.NewDecoder(resp.Body).Decode(&row); err != nil {
		return nil, fmt.Errorf("decode committed row: %w", err)
	}
	return &row, nil
}

func statusError(resp *http.Response) error {
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	text := strings.TrimSpace(string(msg))
	switch resp.StatusCode {
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusForbidden:
		if resp.Header.Get("X-Required-Action") == "sign-in" {
			return fmt.Errorf("%w: %s", permission.ErrSignInRequired, text)
		}
		return fmt.Errorf("%w: %s", permission.ErrReadOnly, text)
	default:
		return fmt.Errorf("update failed with status %d: %s", resp.StatusCode, text)
	}
}
