// Package brokerclient is a concrete brokerage surface (C5) client: a thin
// REST transport plus a streaming hint (stream.go) that nudges the
// market-data sync on push notifications. Per spec.md, only the
// capability surface (domain.Brokerage) matters to the core; this client
// is illustrative rather than a specified wire protocol.
package brokerclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/fedormatantsev/candlerunner/internal/domain"
)

// Client implements domain.Brokerage over a JSON/REST transport.
type Client struct {
	baseURL string
	http    *http.Client
	apiKey  string
}

// New creates a Client pointed at baseURL, authenticating with apiKey.
func New(baseURL, apiKey string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{baseURL: baseURL, http: httpClient, apiKey: apiKey}
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reqBody *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("brokerclient: marshal request: %w", err)
		}
		reqBody = bytes.NewReader(payload)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return fmt.Errorf("brokerclient: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("brokerclient: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("brokerclient: %s %s: unexpected status %d", method, path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("brokerclient: decode %s %s response: %w", method, path, err)
	}
	return nil
}

type instrumentDTO struct {
	Figi        string `json:"figi"`
	Ticker      string `json:"ticker"`
	DisplayName string `json:"display_name"`
}

func (c *Client) ListInstruments(ctx context.Context) ([]domain.Instrument, error) {
	var dtos []instrumentDTO
	if err := c.do(ctx, http.MethodGet, "/v1/instruments", nil, nil, &dtos); err != nil {
		return nil, err
	}

	out := make([]domain.Instrument, len(dtos))
	for i, d := range dtos {
		out[i] = domain.Instrument{Figi: domain.Figi(d.Figi), Ticker: domain.Ticker(d.Ticker), DisplayName: d.DisplayName}
	}
	return out, nil
}

type candleDTO struct {
	Timestamp time.Time `json:"ts"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    uint64    `json:"volume"`
}

func (c *Client) GetCandles(ctx context.Context, figi domain.Figi, from, to time.Time) (domain.CandleTimeline, error) {
	query := url.Values{
		"figi": {string(figi)},
		"from": {from.UTC().Format(time.RFC3339)},
		"to":   {to.UTC().Format(time.RFC3339)},
	}

	var dtos []candleDTO
	if err := c.do(ctx, http.MethodGet, "/v1/candles", query, nil, &dtos); err != nil {
		return nil, err
	}

	out := make(domain.CandleTimeline, len(dtos))
	for _, d := range dtos {
		out[d.Timestamp] = domain.Candle{Open: d.Open, High: d.High, Low: d.Low, Close: d.Close, Volume: d.Volume}
	}
	return out, nil
}

type accountDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	AccessLevel int    `json:"access_level"`
	Environment int    `json:"environment"`
}

func (c *Client) ListAccounts(ctx context.Context) ([]domain.Account, error) {
	var dtos []accountDTO
	if err := c.do(ctx, http.MethodGet, "/v1/accounts", nil, nil, &dtos); err != nil {
		return nil, err
	}

	out := make([]domain.Account, len(dtos))
	for i, d := range dtos {
		out[i] = domain.Account{
			ID:          domain.AccountID(d.ID),
			Name:        d.Name,
			AccessLevel: domain.AccessLevel(d.AccessLevel),
			Environment: domain.Environment(d.Environment),
		}
	}
	return out, nil
}

type positionsDTO struct {
	Currencies []domain.Currency `json:"currencies"`
	Positions  []domain.Position `json:"positions"`
}

func (c *Client) ListPositions(ctx context.Context, account domain.AccountID) (domain.AccountPositions, error) {
	query := url.Values{"account": {string(account)}}

	var dto positionsDTO
	if err := c.do(ctx, http.MethodGet, "/v1/positions", query, nil, &dto); err != nil {
		return domain.AccountPositions{}, err
	}
	return domain.AccountPositions{Currencies: dto.Currencies, Positions: dto.Positions}, nil
}

func (c *Client) OpenSandboxAccount(ctx context.Context) (domain.AccountID, error) {
	var dto accountDTO
	if err := c.do(ctx, http.MethodPost, "/v1/sandbox/accounts", nil, nil, &dto); err != nil {
		return "", err
	}
	return domain.AccountID(dto.ID), nil
}

func (c *Client) CloseSandboxAccount(ctx context.Context, account domain.AccountID) error {
	return c.do(ctx, http.MethodDelete, "/v1/sandbox/accounts/"+url.PathEscape(string(account)), nil, nil, nil)
}
