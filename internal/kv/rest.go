package kv

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

	"github.com/rs/zerolog"

	ferrors "github.com/foliolab/folio/internal/errors"
	"github.com/foliolab/folio/internal/retry"
)

// RESTStore talks to an Upstash-compatible Redis REST endpoint.
// Reads (Get, Ping) retry on transient failures; writes are single-shot so a
// failed Set surfaces immediately to the caller — the tracker store depends
// on that to roll back optimistic mutations.
type RESTStore struct {
	baseURL    string
	token      string
	httpClient *http.Client
	retryCfg   retry.Config
	logger     zerolog.Logger
}

// restResult mirrors the REST API response envelope.
type restResult struct {
	Result *string `json:"result"`
	Error  string  `json:"error,omitempty"`
}

// NewRESTStore creates a REST-backed store.
func NewRESTStore(baseURL, token string, logger zerolog.Logger) *RESTStore {
	return &RESTStore{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		retryCfg:   retry.DefaultConfig(),
		logger:     logger.With().Str("component", "kv").Logger(),
	}
}

func (s *RESTStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := retry.Do(ctx, s.retryCfg, func(ctx context.Context) error {
		res, err := s.call(ctx, http.MethodGet, "/get/"+url.PathEscape(key), nil)
		if err != nil {
			return err
		}
		if res.Result == nil {
			return ferrors.ErrNotFound
		}
		value = []byte(*res.Result)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (s *RESTStore) Set(ctx context.Context, key string, value []byte) error {
	res, err := s.call(ctx, http.MethodPost, "/set/"+url.PathEscape(key), value)
	if err != nil {
		return err
	}
	if res.Result == nil || *res.Result != "OK" {
		return ferrors.NewAPIError("kv", 0, fmt.Sprintf("unexpected set result for %s", key))
	}
	return nil
}

func (s *RESTStore) Ping(ctx context.Context) error {
	return retry.Do(ctx, s.retryCfg, func(ctx context.Context) error {
		res, err := s.call(ctx, http.MethodGet, "/ping", nil)
		if err != nil {
			return err
		}
		if res.Result == nil || *res.Result != "PONG" {
			return ferrors.ErrUnavailable
		}
		return nil
	})
}

func (s *RESTStore) call(ctx context.Context, method, path string, body []byte) (*restResult, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, &ferrors.APIError{Service: "kv", StatusCode: 503, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, ferrors.NewAPIError("kv", resp.StatusCode, string(respBody))
	}

	var res restResult
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, fmt.Errorf("decoding kv response: %w", err)
	}
	if res.Error != "" {
		return nil, ferrors.NewAPIError("kv", resp.StatusCode, res.Error)
	}
	return &res, nil
}
