package notify

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/resend/resend-go/v3"
	"github.com/wneessen/go-mail"

	"ms-storefront/internal/config"
)

// Message is a rendered email ready for a transport.
type Message struct {
	MessageID string
	From      string
	FromName  string
	ReplyTo   string
	To        string
	Subject   string
	HTML      string
	Text      string
}

// Transport delivers one message. Failures should be *TransportError so the dispatcher can
// report the right kind.
type Transport interface {
	Send(ctx context.Context, msg Message) (string, error)
}

type TransportError struct {
	Kind ErrorKind
	Err  error
}

func (e *TransportError) Error() string { return fmt.Sprintf("%s: %v", e.Kind, e.Err) }

func (e *TransportError) Unwrap() error { return e.Err }

// NewTransport picks Resend when an API key is set and SMTP otherwise.
func NewTransport(cfg config.EmailConfig) Transport {
	if cfg.ResendAPIKey != "" {
		return NewResendTransport(resend.NewClient(cfg.ResendAPIKey))
	}
	return NewSMTPTransport(cfg)
}

// ---------------- SMTP ----------------

type SMTPTransport struct {
	cfg config.EmailConfig
}

func NewSMTPTransport(cfg config.EmailConfig) *SMTPTransport {
	return &SMTPTransport{cfg: cfg}
}

func (t *SMTPTransport) Send(ctx context.Context, msg Message) (string, error) {
	m, err := buildMailMsg(msg)
	if err != nil {
		return "", &TransportError{Kind: ErrValidation, Err: err}
	}

	timeout := t.cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	client, err := mail.NewClient(t.cfg.SMTPHost,
		mail.WithPort(t.cfg.SMTPPort),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(t.cfg.SMTPUsername),
		mail.WithPassword(t.cfg.SMTPPassword),
		mail.WithTLSPolicy(mail.TLSMandatory),
		mail.WithTimeout(timeout),
	)
	if err != nil {
		return "", &TransportError{Kind: ErrConnection, Err: err}
	}

	if err := client.DialWithContext(ctx); err != nil {
		return "", &TransportError{Kind: ErrConnection, Err: err}
	}
	defer client.Close()

	if err := client.Send(m); err != nil {
		return "", &TransportError{Kind: ErrSend, Err: err}
	}
	return msg.MessageID, nil
}

func buildMailMsg(msg Message) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.FromFormat(msg.FromName, msg.From); err != nil {
		return nil, fmt.Errorf("from address: %w", err)
	}
	if err := m.To(msg.To); err != nil {
		return nil, fmt.Errorf("to address: %w", err)
	}
	if msg.ReplyTo != "" {
		if err := m.ReplyTo(msg.ReplyTo); err != nil {
			return nil, fmt.Errorf("reply-to address: %w", err)
		}
	}
	m.Subject(msg.Subject)
	m.SetMessageIDWithValue(msg.MessageID)
	m.SetDate()
	m.SetBodyString(mail.TypeTextPlain, msg.Text)
	m.AddAlternativeString(mail.TypeTextHTML, msg.HTML)
	return m, nil
}

// ---------------- RESEND ----------------

type resendSender interface {
	SendWithContext(ctx context.Context, params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

type ResendTransport struct {
	emails resendSender
}

func NewResendTransport(client *resend.Client) *ResendTransport {
	return &ResendTransport{emails: client.Emails}
}

func (t *ResendTransport) Send(ctx context.Context, msg Message) (string, error) {
	from := msg.From
	if msg.FromName != "" {
		from = fmt.Sprintf("%s <%s>", msg.FromName, msg.From)
	}
	params := &resend.SendEmailRequest{
		From:    from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Html:    msg.HTML,
		Text:    msg.Text,
		Headers: map[string]string{"X-Entity-Ref-ID": msg.MessageID},
	}
	if msg.ReplyTo != "" {
		params.Headers["Reply-To"] = msg.ReplyTo
	}

	resp, err := t.emails.SendWithContext(ctx, params)
	if err != nil {
		kind := ErrSend
		var netErr net.Error
		if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
			kind = ErrConnection
		}
		return "", &TransportError{Kind: kind, Err: err}
	}
	return resp.Id, nil
}
