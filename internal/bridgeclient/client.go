// Package bridgeclient talks to the bridge HTTP API.
package bridgeclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/alovak/cardflow-bridge/bridge/models"
)

var ErrNoChallenge = errors.New("no pending challenge")

// APIError is a non-2xx answer from the bridge.
type APIError struct {
	Status    int
	Code      string
	Message   string
	Reference string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("bridge status=%d body=%s", e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

type Client struct {
	Base string
	HTTP *http.Client
}

func New(base string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{Base: strings.TrimRight(base, "/"), HTTP: hc}
}

func (c *Client) Initialize(ctx context.Context, publicKey string) error {
	return c.do(ctx, http.MethodPost, "/initialize", models.InitializeRequest{PublicKey: publicKey}, nil)
}

func (c *Client) AddCard(ctx context.Context, card models.CardDetails) error {
	return c.do(ctx, http.MethodPost, "/card", card, nil)
}

func (c *Client) ValidateCard(ctx context.Context) (bool, error) {
	res := models.CardValidationResult{}
	if err := c.do(ctx, http.MethodGet, "/card/validation", nil, &res); err != nil {
		return false, err
	}
	return res.IsValid, nil
}

func (c *Client) CardType(ctx context.Context) (string, error) {
	res := models.CardTypeResult{}
	if err := c.do(ctx, http.MethodGet, "/card/type", nil, &res); err != nil {
		return "", err
	}
	return res.CardType, nil
}

func (c *Client) PutMetadata(ctx context.Context, metadata map[string]string) (models.BatchResponse, error) {
	res := models.BatchResponse{}
	err := c.do(ctx, http.MethodPost, "/charge/metadata", metadata, &res)
	return res, err
}

// PutCustomFields sends the fields as one JSON object in slice order.
func (c *Client) PutCustomFields(ctx context.Context, fields models.OrderedFields) (models.BatchResponse, error) {
	res := models.BatchResponse{}
	err := c.do(ctx, http.MethodPost, "/charge/custom-fields", fields, &res)
	return res, err
}

func (c *Client) SetEmail(ctx context.Context, email string) error {
	return c.do(ctx, http.MethodPut, "/charge/email", models.EmailRequest{Email: email}, nil)
}

func (c *Client) SetAmount(ctx context.Context, amount string) error {
	return c.do(ctx, http.MethodPut, "/charge/amount", models.AmountRequest{Amount: amount}, nil)
}

func (c *Client) SetAccessCode(ctx context.Context, code string) error {
	return c.do(ctx, http.MethodPut, "/charge/access-code", models.AccessCodeRequest{AccessCode: code}, nil)
}

func (c *Client) SetSplit(ctx context.Context, subaccount string, bearer models.Bearer) error {
	return c.do(ctx, http.MethodPut, "/charge/split", models.SplitRequest{Subaccount: subaccount, Bearer: bearer}, nil)
}

// Charge starts the charge. A response with status awaiting_validation means a challenge
// has to be answered before Result reports the outcome.
func (c *Client) Charge(ctx context.Context) (models.ChargeResponse, error) {
	res := models.ChargeResponse{}
	err := c.do(ctx, http.MethodPost, "/charge", nil, &res)
	return res, err
}

func (c *Client) Result(ctx context.Context) (models.ChargeResponse, error) {
	res := models.ChargeResponse{}
	err := c.do(ctx, http.MethodGet, "/charge/result", nil, &res)
	return res, err
}

func (c *Client) Challenge(ctx context.Context) (models.Challenge, error) {
	res := models.Challenge{}
	err := c.do(ctx, http.MethodGet, "/charge/challenge", nil, &res)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
		return res, ErrNoChallenge
	}
	return res, err
}

// AwaitChallenge polls until the processor has presented a challenge or ctx is done.
func (c *Client) AwaitChallenge(ctx context.Context, every time.Duration) (models.Challenge, error) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		challenge, err := c.Challenge(ctx)
		if !errors.Is(err, ErrNoChallenge) {
			return challenge, err
		}
		select {
		case <-ctx.Done():
			return models.Challenge{}, fmt.Errorf("awaiting challenge: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

func (c *Client) AnswerChallenge(ctx context.Context, reference, response string) error {
	return c.do(ctx, http.MethodPost, "/charge/challenge", models.ChallengeAnswer{Reference: reference, Response: response}, nil)
}

func (c *Client) Session(ctx context.Context) (models.SessionView, error) {
	res := models.SessionView{}
	err := c.do(ctx, http.MethodGet, "/session", nil, &res)
	return res, err
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.Base+path, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(b))}
		payload := models.ErrorResponse{}
		if json.Unmarshal(b, &payload) == nil && payload.Code != "" {
			apiErr.Code, apiErr.Message, apiErr.Reference = payload.Code, payload.Message, payload.Reference
		}
		return apiErr
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s %s: %w", method, path, err)
	}
	return nil
}
