package admission

import (
	"context"
	"regexp"
	"strconv"
	"time"

	"github.com/mathi4s/gatehouse/internal/logger"
	"github.com/mathi4s/gatehouse/internal/metrics"
	"github.com/mathi4s/gatehouse/internal/models"
	"github.com/mathi4s/gatehouse/internal/reputation"
)

// spamPatterns are network prefixes with a long spam history. Matching
// clients are blocked on sight and recorded in the ledger.
var spamPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^45\.155\.`),  // known spam range
	regexp.MustCompile(`^185\.220\.`), // Tor exit nodes
}

// Ledger is the durable moderation state the classifier consults. Backed by
// the moderation service; re-read on every request so stale decisions are
// never served.
type Ledger interface {
	IsAllowlisted(ctx context.Context, ip string) (bool, error)
	ActiveBlock(ctx context.Context, ip string, now time.Time) (*models.BlockedIP, error)
	AutoBlock(ctx context.Context, ip, reason string) (*models.BlockedIP, error)
}

// AlertSink receives reputation-positive detections.
type AlertSink interface {
	RecordDetection(ctx context.Context, ip string, action string, rep reputation.Result) (*models.VpnAlert, error)
}

// Notifier delivers best-effort admin notifications.
type Notifier interface {
	VPNDetected(ip, action string, rep reputation.Result)
	IPBlocked(ip, reason string, autoBlocked bool)
}

// Decision is the classifier's verdict, shaped to map 1:1 onto the admission
// endpoint's response payload.
type Decision struct {
	Allowed           bool   `json:"allowed"`
	Reason            string `json:"reason,omitempty"`
	Blocked           bool   `json:"blocked,omitempty"`
	RateLimited       bool   `json:"rateLimited,omitempty"`
	RetryAfterMinutes int    `json:"retryAfterMinutes,omitempty"`
	AppealURL         string `json:"appealUrl,omitempty"`
	Allowlisted       bool   `json:"allowlisted,omitempty"`
	VPNDetected       bool   `json:"vpnDetected,omitempty"`
	VPNType           string `json:"vpnType,omitempty"`
	VPNRisk           string `json:"vpnRisk,omitempty"`

	// StrictMode is internal: it records which limit table applied.
	StrictMode bool `json:"-"`
}

// Classifier decides, per request, whether to reject outright, tighten the
// limits, or admit normally. Every collaborator failure is non-fatal: public
// form availability outranks strict abuse prevention, so the classifier
// fails open by policy.
type Classifier struct {
	ledger     Ledger
	alerts     AlertSink
	reputation reputation.Checker
	notifier   Notifier
	limiter    *Limiter
	cooldown   *Cooldown
	appealURL  string
}

// NewClassifier wires the admission pipeline.
func NewClassifier(ledger Ledger, alerts AlertSink, rep reputation.Checker, notifier Notifier, limiter *Limiter, cooldown *Cooldown, appealURL string) *Classifier {
	return &Classifier{
		ledger:     ledger,
		alerts:     alerts,
		reputation: rep,
		notifier:   notifier,
		limiter:    limiter,
		cooldown:   cooldown,
		appealURL:  appealURL,
	}
}

// Classify runs the admission pipeline: allowlist, reputation, block list,
// spam patterns, then the rate limiter.
func (c *Classifier) Classify(ctx context.Context, clientID string, action Action) Decision {
	now := time.Now()
	metrics.IncAdmissionCheck(string(action))

	// 1. Allowlist short-circuits every other check.
	if allowlisted := c.checkAllowlist(ctx, clientID); allowlisted {
		return Decision{Allowed: true, Allowlisted: true}
	}

	// 2. Reputation lookup. Errors count as clean; a positive result
	// tightens the limit table and raises an alert.
	decision := Decision{Allowed: true}
	rep := c.checkReputation(ctx, clientID, action)
	if rep.Flagged {
		decision.StrictMode = true
		decision.VPNDetected = true
		decision.VPNType = rep.Type
		decision.VPNRisk = rep.Risk
	}

	// 3. Active block from the ledger.
	if block := c.checkBlock(ctx, clientID, now); block != nil {
		metrics.IncAdmissionBlocked(string(action))
		logger.WithFields(map[string]interface{}{"ip": clientID, "reason": block.Reason}).Info("blocked IP attempt")
		return Decision{
			Allowed:   false,
			Reason:    "Your IP has been blocked due to suspicious activity",
			Blocked:   true,
			AppealURL: c.appealURL,
		}
	}

	// 4. Static spam patterns auto-block on first contact.
	if c.matchSpamPattern(ctx, clientID) {
		metrics.IncAdmissionBlocked(string(action))
		return Decision{
			Allowed:   false,
			Reason:    "Suspicious IP address detected",
			Blocked:   true,
			AppealURL: c.appealURL,
		}
	}

	// 5. Rate limiter, strict table when flagged. A limiter failure admits
	// the request like every other collaborator failure.
	res, err := c.limiter.CheckAndRecord(ctx, clientID, action, decision.StrictMode, now)
	if err != nil {
		logger.Log().WithError(err).Warn("rate limiter unavailable, admitting request")
		return decision
	}
	if !res.Allowed {
		metrics.IncAdmissionRateLimited(string(action))
		minutes := res.RetryAfterMinutes()
		decision.Allowed = false
		decision.RateLimited = true
		decision.RetryAfterMinutes = minutes
		decision.Reason = rateLimitReason(minutes)
		return decision
	}

	return decision
}

func (c *Classifier) checkAllowlist(ctx context.Context, ip string) bool {
	allowed, err := c.ledger.IsAllowlisted(ctx, ip)
	if err != nil {
		logger.Log().WithError(err).Warn("allowlist lookup failed, continuing")
		return false
	}
	return allowed
}

func (c *Classifier) checkReputation(ctx context.Context, ip string, action Action) reputation.Result {
	rep, err := c.reputation.Check(ctx, ip)
	if err != nil {
		metrics.IncReputationError()
		logger.Log().WithError(err).Debug("reputation lookup failed, treating as clean")
		return reputation.Result{}
	}
	if !rep.Flagged {
		return rep
	}

	metrics.IncVPNDetection()

	if _, err := c.alerts.RecordDetection(ctx, ip, string(action), rep); err != nil {
		logger.Log().WithError(err).Warn("vpn alert upsert failed, continuing")
	}

	// Notifications are throttled per (ip, action) so a burst of requests
	// produces one ping, not dozens.
	if c.cooldown.Allow(ip+":"+string(action), time.Now()) {
		c.notifier.VPNDetected(ip, string(action), rep)
	}

	return rep
}

func (c *Classifier) checkBlock(ctx context.Context, ip string, now time.Time) *models.BlockedIP {
	block, err := c.ledger.ActiveBlock(ctx, ip, now)
	if err != nil {
		logger.Log().WithError(err).Warn("block list lookup failed, continuing")
		return nil
	}
	return block
}

func (c *Classifier) matchSpamPattern(ctx context.Context, ip string) bool {
	for _, pattern := range spamPatterns {
		if !pattern.MatchString(ip) {
			continue
		}
		logger.WithFields(map[string]interface{}{"ip": ip}).Info("spam IP pattern matched")
		const reason = "Matched known spam IP pattern"
		if _, err := c.ledger.AutoBlock(ctx, ip, reason); err != nil {
			logger.Log().WithError(err).Warn("auto-block failed, rejecting anyway")
		} else {
			c.notifier.IPBlocked(ip, reason, true)
		}
		return true
	}
	return false
}

func rateLimitReason(minutes int) string {
	if minutes <= 0 {
		minutes = 1
	}
	if minutes == 1 {
		return "Too many requests. Please try again in 1 minute."
	}
	return "Too many requests. Please try again in " + strconv.Itoa(minutes) + " minutes."
}
