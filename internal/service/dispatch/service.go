package dispatch

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	gomail "gopkg.in/gomail.v2"

	"github.com/mondo989/ReallyGoodJob/pkg/logger"
)

// DefaultGmailSendURL is the Gmail API raw-message send endpoint.
const DefaultGmailSendURL = "https://gmail.googleapis.com/gmail/v1/users/me/messages/send"

const sendTimeout = 30 * time.Second

// TokenProvider yields a bearer token valid for at least the provider's
// expiry buffer.
type TokenProvider interface {
	ValidToken(ctx context.Context, userID uuid.UUID) (string, error)
}

// ProviderError is a provider-level rejection of one message, such as an
// invalid address or a provider-side quota limit. It fails the single attempt
// without implicating the user's credentials.
type ProviderError struct {
	StatusCode int
	Detail     string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("gmail send returned %d: %s", e.StatusCode, e.Detail)
}

// Message is one fully rendered outbound email.
type Message struct {
	EmailLogID uuid.UUID
	FromName   string
	FromEmail  string
	ToName     string
	ToEmail    string
	Subject    string
	Body       string
}

// Service builds MIME messages and sends them through the Gmail API on
// behalf of the sending user.
type Service struct {
	tokens      TokenProvider
	client      *http.Client
	sendURL     string
	trackingURL string
	logger      *logger.Logger
}

// Option customizes the dispatcher.
type Option func(*Service)

// WithSendURL overrides the Gmail endpoint, for tests.
func WithSendURL(url string) Option {
	return func(s *Service) { s.sendURL = url }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(s *Service) { s.client = client }
}

func NewService(tokens TokenProvider, trackingBaseURL string, log *logger.Logger, opts ...Option) *Service {
	s := &Service{
		tokens:      tokens,
		client:      &http.Client{Timeout: sendTimeout},
		sendURL:     DefaultGmailSendURL,
		trackingURL: strings.TrimRight(trackingBaseURL, "/"),
		logger:      log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Send dispatches one message as the given user. A non-nil error means this
// recipient's attempt failed; callers decide whether to continue the batch.
func (s *Service) Send(ctx context.Context, userID uuid.UUID, msg Message) error {
	token, err := s.tokens.ValidToken(ctx, userID)
	if err != nil {
		return fmt.Errorf("credential lookup failed: %w", err)
	}

	raw, err := s.buildMIME(msg)
	if err != nil {
		return fmt.Errorf("failed to build message: %w", err)
	}

	payload, err := json.Marshal(map[string]string{
		"raw": base64.URLEncoding.EncodeToString(raw),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal send request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.sendURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build send request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("gmail send request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &ProviderError{StatusCode: resp.StatusCode, Detail: string(body)}
	}

	s.logger.Debug("email dispatched", map[string]interface{}{
		"email_log_id": msg.EmailLogID.String(),
		"to":           msg.ToEmail,
	})
	return nil
}

// buildMIME renders the message as a multipart/alternative MIME document with
// a plain part and an HTML part carrying the open-tracking pixel.
func (s *Service) buildMIME(msg Message) ([]byte, error) {
	// 8bit bodies keep the tracking URL intact; quoted-printable would split
	// it across soft-wrapped lines.
	m := gomail.NewMessage(gomail.SetEncoding(gomail.Unencoded))
	m.SetAddressHeader("From", msg.FromEmail, msg.FromName)
	m.SetAddressHeader("To", msg.ToEmail, msg.ToName)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Body)
	m.AddAlternative("text/html", s.htmlBody(msg))

	var buf bytes.Buffer
	if _, err := m.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *Service) htmlBody(msg Message) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	for _, line := range strings.Split(msg.Body, "\n") {
		b.WriteString("<p>")
		b.WriteString(htmlEscape(line))
		b.WriteString("</p>")
	}
	fmt.Fprintf(&b, `<img src="%s/track/open.png?emailLogId=%s" width="1" height="1" alt="" />`,
		s.trackingURL, msg.EmailLogID.String())
	b.WriteString("</body></html>")
	return b.String()
}

func htmlEscape(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	return r.Replace(s)
}
