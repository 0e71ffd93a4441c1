package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/mathi4s/gatehouse/internal/config"
	"github.com/mathi4s/gatehouse/internal/logger"
)

var ErrMailNotConfigured = errors.New("mailer is not configured")

// Mailer sends transactional email. Callers treat failures as non-fatal:
// a dead mailer never blocks the flow that requested the send.
type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// NoopMailer drops every message. Used when no mail credentials are set.
type NoopMailer struct{}

// Send implements Mailer.
func (NoopMailer) Send(context.Context, string, string, string) error {
	return ErrMailNotConfigured
}

// GraphMailer sends mail through the Microsoft Graph sendMail endpoint using
// the client-credentials flow. Access tokens are cached until shortly before
// expiry.
type GraphMailer struct {
	tenantID     string
	clientID     string
	clientSecret string
	sender       string

	tokenURL string
	graphURL string
	http     *http.Client

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// NewGraphMailer builds a GraphMailer from mail config.
func NewGraphMailer(cfg config.MailConfig) *GraphMailer {
	return &GraphMailer{
		tenantID:     cfg.TenantID,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		sender:       cfg.SenderEmail,
		tokenURL:     fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", cfg.TenantID),
		graphURL:     "https://graph.microsoft.com/v1.0",
		http:         &http.Client{Timeout: 15 * time.Second},
	}
}

func (m *GraphMailer) accessToken(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.token != "" && time.Now().Before(m.tokenExpiry) {
		return m.token, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", m.clientID)
	form.Set("client_secret", m.clientSecret)
	form.Set("scope", "https://graph.microsoft.com/.default")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token request: status %d", resp.StatusCode)
	}

	var body struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}

	m.token = body.AccessToken
	// Refresh a minute early so a token never expires mid-send.
	m.tokenExpiry = time.Now().Add(time.Duration(body.ExpiresIn)*time.Second - time.Minute)
	return m.token, nil
}

type graphMessage struct {
	Message struct {
		Subject string `json:"subject"`
		Body    struct {
			ContentType string `json:"contentType"`
			Content     string `json:"content"`
		} `json:"body"`
		ToRecipients []struct {
			EmailAddress struct {
				Address string `json:"address"`
			} `json:"emailAddress"`
		} `json:"toRecipients"`
	} `json:"message"`
	SaveToSentItems bool `json:"saveToSentItems"`
}

// Send implements Mailer.
func (m *GraphMailer) Send(ctx context.Context, to, subject, htmlBody string) error {
	token, err := m.accessToken(ctx)
	if err != nil {
		return err
	}

	var msg graphMessage
	msg.Message.Subject = subject
	msg.Message.Body.ContentType = "HTML"
	msg.Message.Body.Content = htmlBody
	msg.Message.ToRecipients = make([]struct {
		EmailAddress struct {
			Address string `json:"address"`
		} `json:"emailAddress"`
	}, 1)
	msg.Message.ToRecipients[0].EmailAddress.Address = to

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode mail: %w", err)
	}

	endpoint := fmt.Sprintf("%s/users/%s/sendMail", m.graphURL, url.PathEscape(m.sender))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build mail request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.http.Do(req)
	if err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("send mail: status %d", resp.StatusCode)
	}
	return nil
}

// MailService composes the site's transactional emails over a Mailer.
type MailService struct {
	mailer  Mailer
	siteURL string
}

// NewMailService returns a MailService sending through the given mailer.
func NewMailService(mailer Mailer, siteURL string) *MailService {
	if mailer == nil {
		mailer = NoopMailer{}
	}
	return &MailService{mailer: mailer, siteURL: strings.TrimSuffix(siteURL, "/")}
}

// sendAsync delivers in the background and logs failures.
func (s *MailService) sendAsync(to, subject, body string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.mailer.Send(ctx, to, subject, body); err != nil {
			if !errors.Is(err, ErrMailNotConfigured) {
				logger.Log().WithError(err).Warn("failed to send email")
			}
		}
	}()
}

// SendSubscribeConfirmation sends the newsletter opt-in email.
func (s *MailService) SendSubscribeConfirmation(email, token string) {
	link := fmt.Sprintf("%s/api/v1/newsletter/confirm?token=%s", s.siteURL, url.QueryEscape(token))
	body := fmt.Sprintf(
		`<p>Thanks for subscribing!</p><p>Please confirm your address by clicking <a href="%s">here</a>.</p><p>If you didn't request this, ignore this email.</p>`,
		link)
	s.sendAsync(email, "Confirm your subscription", body)
}

// SendVerificationEmail sends the account email-verification link.
func (s *MailService) SendVerificationEmail(email, token string) {
	link := fmt.Sprintf("%s/api/v1/account/verify?token=%s", s.siteURL, url.QueryEscape(token))
	body := fmt.Sprintf(
		`<p>Welcome!</p><p>Verify your email address by clicking <a href="%s">here</a>. The link expires in 48 hours.</p>`,
		link)
	s.sendAsync(email, "Verify your email", body)
}

// SendDonationThanks sends the post-donation thank-you note.
func (s *MailService) SendDonationThanks(email string, amount float64, currency string) {
	if email == "" {
		return
	}
	body := fmt.Sprintf(
		`<p>Thank you so much for your donation of %.2f %s!</p><p>It means a lot.</p>`,
		amount, strings.ToUpper(currency))
	s.sendAsync(email, "Thank you for your donation", body)
}

// SendPasswordReset sends the password reset link.
func (s *MailService) SendPasswordReset(email, token string) {
	link := fmt.Sprintf("%s/reset-password?token=%s", s.siteURL, url.QueryEscape(token))
	body := fmt.Sprintf(
		`<p>Someone requested a password reset for this address.</p><p>Reset your password by clicking <a href="%s">here</a>. The link expires in 1 hour.</p><p>If this wasn't you, ignore this email.</p>`,
		link)
	s.sendAsync(email, "Reset your password", body)
}

// SendNewsletterIssue delivers one broadcast issue to a subscriber with an
// unsubscribe pointer appended.
func (s *MailService) SendNewsletterIssue(email, subject, htmlBody string) {
	footer := fmt.Sprintf(`<hr><p><a href="%s/unsubscribe">Unsubscribe</a></p>`, s.siteURL)
	s.sendAsync(email, subject, htmlBody+footer)
}

// RelayContactMessage forwards a contact form submission to the site owner.
func (s *MailService) RelayContactMessage(ownerEmail, name, fromEmail, subject, message string) {
	body := fmt.Sprintf(
		`<p><strong>From:</strong> %s &lt;%s&gt;</p><p><strong>Subject:</strong> %s</p><hr><p>%s</p>`,
		htmlEscape(name), htmlEscape(fromEmail), htmlEscape(subject), htmlEscape(message))
	s.sendAsync(ownerEmail, "Contact form: "+subject, body)
}

func htmlEscape(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")
	return r.Replace(s)
}
