package mail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"

	"github.com/mrz1836/postmark"
)

var (
	ErrFailedToSend   = errors.New("mail: failed to send")
	ErrRejected       = errors.New("mail: rejected by provider")
	ErrInvalidConfig  = errors.New("mail: invalid config")
	ErrInvalidMessage = errors.New("mail: invalid message")
)

// Message is a plain-text transactional email.
type Message struct {
	To       string
	Subject  string
	TextBody string
	Tag      string
}

// Validate checks the fields every transport needs.
func (m Message) Validate() error {
	if _, err := mail.ParseAddress(m.To); err != nil {
		return fmt.Errorf("%w: recipient %q: %v", ErrInvalidMessage, m.To, err)
	}
	if m.Subject == "" {
		return fmt.Errorf("%w: subject is required", ErrInvalidMessage)
	}
	return nil
}

// Sender delivers a message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// PostmarkConfig holds Postmark credentials and the sender address.
type PostmarkConfig struct {
	ServerToken  string
	AccountToken string
	From         string

	// BaseURL overrides the API endpoint; empty uses Postmark's.
	BaseURL string
}

// Postmark sends through the Postmark transactional API.
type Postmark struct {
	client *postmark.Client
	from   string
}

var _ Sender = (*Postmark)(nil)

// NewPostmark validates cfg and returns a Postmark sender.
func NewPostmark(cfg PostmarkConfig) (*Postmark, error) {
	if cfg.ServerToken == "" {
		return nil, fmt.Errorf("%w: server token is required", ErrInvalidConfig)
	}
	if _, err := mail.ParseAddress(cfg.From); err != nil {
		return nil, fmt.Errorf("%w: from address %q: %v", ErrInvalidConfig, cfg.From, err)
	}

	client := postmark.NewClient(cfg.ServerToken, cfg.AccountToken)
	if cfg.BaseURL != "" {
		client.BaseURL = cfg.BaseURL
	}
	return &Postmark{client: client, from: cfg.From}, nil
}

// Send implements Sender. Transport errors are reported as ErrFailedToSend
// and Postmark API error codes as ErrRejected.
func (p *Postmark) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	resp, err := p.client.SendEmail(ctx, postmark.Email{
		From:     p.from,
		To:       msg.To,
		Subject:  msg.Subject,
		Tag:      msg.Tag,
		TextBody: msg.TextBody,
	})
	if err != nil {
		return errors.Join(ErrFailedToSend, err)
	}
	if resp.ErrorCode > 0 {
		return errors.Join(
			ErrRejected,
			fmt.Errorf("postmark error: %d - %s", resp.ErrorCode, resp.Message),
		)
	}
	return nil
}

// LogSender logs messages instead of delivering them.
type LogSender struct {
	logger *slog.Logger
}

var _ Sender = (*LogSender)(nil)

func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "mail not sent, log transport",
		"to", msg.To,
		"subject", msg.Subject,
		"tag", msg.Tag,
		"body", msg.TextBody,
	)
	return nil
}
