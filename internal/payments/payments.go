package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Session is a hosted checkout session for a one-off donation.
type Session struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// CompletedSession is the subset of a checkout.session.completed event the
// donation ledger records.
type CompletedSession struct {
	SessionID string
	Amount    float64 // major units
	Currency  string
	Email     string
}

// CheckoutClient creates hosted checkout sessions and verifies completion
// webhooks. Satisfied by Client; tests substitute fakes.
type CheckoutClient interface {
	CreateSession(ctx context.Context, amountCents int64, currency, successURL, cancelURL string) (Session, error)
	ParseWebhook(payload []byte, signature string) (*CompletedSession, error)
}

// Client talks to a Stripe-compatible checkout API over form-encoded HTTP.
type Client struct {
	baseURL       string
	secretKey     string
	webhookSecret string
	http          *http.Client
}

// NewClient builds a payments client. An empty baseURL targets the public
// Stripe API.
func NewClient(secretKey, webhookSecret, baseURL string) *Client {
	if baseURL == "" {
		baseURL = "https://api.stripe.com"
	}
	return &Client{
		baseURL:       strings.TrimSuffix(baseURL, "/"),
		secretKey:     secretKey,
		webhookSecret: webhookSecret,
		http:          &http.Client{Timeout: 10 * time.Second},
	}
}

// CreateSession opens a hosted checkout session for the given amount.
func (c *Client) CreateSession(ctx context.Context, amountCents int64, currency, successURL, cancelURL string) (Session, error) {
	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("success_url", successURL)
	form.Set("cancel_url", cancelURL)
	form.Set("line_items[0][quantity]", "1")
	form.Set("line_items[0][price_data][currency]", currency)
	form.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(amountCents, 10))
	form.Set("line_items[0][price_data][product_data][name]", "Donation")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/checkout/sessions", strings.NewReader(form.Encode()))
	if err != nil {
		return Session{}, fmt.Errorf("build checkout request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return Session{}, fmt.Errorf("create checkout session: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Session{}, fmt.Errorf("create checkout session: status %d", resp.StatusCode)
	}

	var session Session
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return Session{}, fmt.Errorf("decode checkout session: %w", err)
	}
	return session, nil
}

type webhookEvent struct {
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID             string `json:"id"`
			AmountTotal    int64  `json:"amount_total"`
			Currency       string `json:"currency"`
			CustomerEmail  string `json:"customer_email"`
			CustomerDetail struct {
				Email string `json:"email"`
			} `json:"customer_details"`
		} `json:"object"`
	} `json:"data"`
}

// ParseWebhook verifies the event signature and returns the completed session,
// or (nil, nil) for event types the donation ledger ignores.
func (c *Client) ParseWebhook(payload []byte, signature string) (*CompletedSession, error) {
	if err := verifySignature(payload, signature, c.webhookSecret, time.Now()); err != nil {
		return nil, err
	}

	var event webhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("decode webhook event: %w", err)
	}
	if event.Type != "checkout.session.completed" {
		return nil, nil
	}

	obj := event.Data.Object
	email := obj.CustomerEmail
	if email == "" {
		email = obj.CustomerDetail.Email
	}
	return &CompletedSession{
		SessionID: obj.ID,
		Amount:    float64(obj.AmountTotal) / 100,
		Currency:  obj.Currency,
		Email:     email,
	}, nil
}

// signatureTolerance bounds how stale a webhook timestamp may be before the
// event is rejected as a possible replay.
const signatureTolerance = 5 * time.Minute

// verifySignature checks the "t=...,v1=..." header: v1 must be the HMAC-SHA256
// of "<t>.<payload>" under the webhook secret.
func verifySignature(payload []byte, header, secret string, now time.Time) error {
	var ts string
	var sigs []string
	for _, part := range strings.Split(header, ",") {
		k, v, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch k {
		case "t":
			ts = v
		case "v1":
			sigs = append(sigs, v)
		}
	}
	if ts == "" || len(sigs) == 0 {
		return fmt.Errorf("webhook signature: malformed header")
	}

	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return fmt.Errorf("webhook signature: bad timestamp: %w", err)
	}
	age := now.Sub(time.Unix(unix, 0))
	if age > signatureTolerance || age < -signatureTolerance {
		return fmt.Errorf("webhook signature: timestamp outside tolerance")
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, sig := range sigs {
		if hmac.Equal([]byte(sig), []byte(expected)) {
			return nil
		}
	}
	return fmt.Errorf("webhook signature: no matching signature")
}
