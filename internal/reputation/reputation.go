package reputation

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Result is what an IP reputation lookup tells us about a client.
type Result struct {
	Flagged bool   `json:"flagged"`
	Type    string `json:"type,omitempty"` // vpn, proxy, tor, relay
	Risk    string `json:"risk,omitempty"` // low, medium, high
	ASN     string `json:"asn,omitempty"`  // network operator
}

// Checker classifies an IP as VPN/proxy/datacenter traffic. Callers treat
// every error as "no signal".
type Checker interface {
	Check(ctx context.Context, ip string) (Result, error)
}

// Disabled is the Checker used when no reputation service is configured.
type Disabled struct{}

// Check always reports a clean result.
func (Disabled) Check(context.Context, string) (Result, error) {
	return Result{}, nil
}

// Client queries a vpnapi-style HTTP reputation service:
// GET {base}/{ip}?key={key} returning security flags plus network metadata.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewClient builds a reputation client with a bounded per-lookup timeout.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 4 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
	}
}

type lookupResponse struct {
	Security struct {
		VPN   bool `json:"vpn"`
		Proxy bool `json:"proxy"`
		Tor   bool `json:"tor"`
		Relay bool `json:"relay"`
	} `json:"security"`
	Network struct {
		ASNumber string `json:"autonomous_system_number"`
		ASOrg    string `json:"autonomous_system_organization"`
	} `json:"network"`
}

// Check implements Checker.
func (c *Client) Check(ctx context.Context, ip string) (Result, error) {
	endpoint := fmt.Sprintf("%s/%s", c.baseURL, url.PathEscape(ip))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Result{}, fmt.Errorf("build reputation request: %w", err)
	}
	if c.apiKey != "" {
		q := req.URL.Query()
		q.Set("key", c.apiKey)
		req.URL.RawQuery = q.Encode()
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("reputation lookup: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("reputation lookup: status %d", resp.StatusCode)
	}

	var body lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Result{}, fmt.Errorf("decode reputation response: %w", err)
	}

	return classify(body), nil
}

func classify(body lookupResponse) Result {
	sec := body.Security
	res := Result{ASN: body.Network.ASOrg}
	if res.ASN == "" {
		res.ASN = body.Network.ASNumber
	}

	switch {
	case sec.Tor:
		res.Flagged, res.Type, res.Risk = true, "tor", "high"
	case sec.VPN && sec.Proxy:
		res.Flagged, res.Type, res.Risk = true, "vpn", "high"
	case sec.VPN:
		res.Flagged, res.Type, res.Risk = true, "vpn", "medium"
	case sec.Proxy:
		res.Flagged, res.Type, res.Risk = true, "proxy", "medium"
	case sec.Relay:
		res.Flagged, res.Type, res.Risk = true, "relay", "low"
	}
	return res
}
