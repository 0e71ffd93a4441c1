package services

import (
	"fmt"
	"regexp"

	"github.com/containrrr/shoutrrr"

	"github.com/mathi4s/gatehouse/internal/logger"
	"github.com/mathi4s/gatehouse/internal/reputation"
	"github.com/mathi4s/gatehouse/internal/util"
)

var discordWebhookRegex = regexp.MustCompile(`^https://discord(?:app)?\.com/api/webhooks/(\d+)/([a-zA-Z0-9_-]+)`)

// normalizeWebhookURL rewrites a raw Discord webhook URL into the discord://
// service URL shoutrrr expects. Other URLs pass through untouched.
func normalizeWebhookURL(rawURL string) string {
	matches := discordWebhookRegex.FindStringSubmatch(rawURL)
	if len(matches) == 3 {
		return fmt.Sprintf("discord://%s@%s", matches[2], matches[1])
	}
	return rawURL
}

// NotificationService relays moderation and site events to the configured
// chat webhook. Delivery is asynchronous and best effort: a dead webhook
// never slows a request down. Satisfies the admission classifier's Notifier
// interface.
type NotificationService struct {
	url       string
	mentionID string
}

// NewNotificationService returns a NotificationService sending to the given
// webhook URL. An empty URL disables delivery.
func NewNotificationService(webhookURL, mentionID string) *NotificationService {
	return &NotificationService{url: normalizeWebhookURL(webhookURL), mentionID: mentionID}
}

// Enabled reports whether a webhook is configured.
func (s *NotificationService) Enabled() bool { return s.url != "" }

func (s *NotificationService) send(title, message string) {
	if s.url == "" {
		return
	}
	go func() {
		msg := fmt.Sprintf("%s\n\n%s", title, message)
		if err := shoutrrr.Send(s.url, msg); err != nil {
			logger.Log().WithError(err).Warn("failed to send notification")
		}
	}()
}

// mention prefixes high-priority messages with a user ping when configured.
func (s *NotificationService) mention() string {
	if s.mentionID == "" {
		return ""
	}
	return fmt.Sprintf("<@%s> ", s.mentionID)
}

// VPNDetected reports a reputation-flagged request.
func (s *NotificationService) VPNDetected(ip, action string, rep reputation.Result) {
	prefix := ""
	if rep.Risk == "high" {
		prefix = s.mention()
	}
	s.send("🛡️ VPN/Proxy Detected",
		fmt.Sprintf("%sIP: %s\nAction: %s\nType: %s\nRisk: %s\nNetwork: %s",
			prefix, ip, util.SanitizeForLog(action), rep.Type, rep.Risk, util.SanitizeForLog(rep.ASN)))
}

// IPBlocked reports a new block ledger entry.
func (s *NotificationService) IPBlocked(ip, reason string, autoBlocked bool) {
	source := "manual"
	if autoBlocked {
		source = "automatic"
	}
	s.send("🚫 IP Blocked",
		fmt.Sprintf("IP: %s\nReason: %s\nSource: %s", ip, util.SanitizeForLog(reason), source))
}

// AppealReceived reports a newly filed appeal.
func (s *NotificationService) AppealReceived(ip, email, restriction string, timesAppealed int) {
	s.send("⚖️ Block Appeal Received",
		fmt.Sprintf("IP: %s\nEmail: %s\nRestriction: %s\nAppeal #%d",
			ip, util.SanitizeForLog(email), restriction, timesAppealed))
}

// NewSubscriber reports a confirmed newsletter signup.
func (s *NotificationService) NewSubscriber(email string) {
	s.send("📬 New Subscriber", fmt.Sprintf("Email: %s", util.SanitizeForLog(email)))
}

// Unsubscribed reports a newsletter removal.
func (s *NotificationService) Unsubscribed(email, reason string) {
	s.send("👋 Unsubscribed",
		fmt.Sprintf("Email: %s\nReason: %s", util.SanitizeForLog(email), util.SanitizeForLog(reason)))
}

// DonationReceived reports a completed donation.
func (s *NotificationService) DonationReceived(amount float64, currency, email string) {
	s.send("💖 Donation Received",
		fmt.Sprintf("Amount: %.2f %s\nFrom: %s", amount, currency, util.SanitizeForLog(email)))
}

// ContactMessage reports a contact form submission.
func (s *NotificationService) ContactMessage(name, email, subject string) {
	s.send("✉️ Contact Message",
		fmt.Sprintf("From: %s <%s>\nSubject: %s",
			util.SanitizeForLog(name), util.SanitizeForLog(email), util.SanitizeForLog(subject)))
}

// NewSignup reports a new account registration.
func (s *NotificationService) NewSignup(email, name string) {
	s.send("👤 New Account",
		fmt.Sprintf("Email: %s\nName: %s", util.SanitizeForLog(email), util.SanitizeForLog(name)))
}

// Test sends a test message synchronously so the admin endpoint can report
// delivery errors.
func (s *NotificationService) Test() error {
	if s.url == "" {
		return fmt.Errorf("no webhook configured")
	}
	return shoutrrr.Send(s.url, "Test notification from Gatehouse")
}
