// Package mail delivers verification and password reset mails over SMTP with
// go-mail.
package mail

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	gomail "github.com/wneessen/go-mail"

	"github.com/stockpulse/authcore/internal/core/ports"
	"github.com/stockpulse/authcore/internal/pkg/config"
)

const (
	subject      = "Verify your email address"
	resetSubject = "Reset your password"
)

// Links holds the pages a mailed token is appended to.
type Links struct {
	Verify string
	Reset  string
}

// LinksFrom picks the link bases out of the mail config.
func LinksFrom(cfg config.MailConfig) Links {
	return Links{Verify: cfg.VerifyBaseURL, Reset: cfg.ResetBaseURL}
}

// For returns the link that carries the token of vm.
func (l Links) For(vm ports.VerificationMail) string {
	if vm.Purpose == ports.PurposeResetPassword {
		return VerifyLink(l.Reset, vm.Token)
	}
	return VerifyLink(l.Verify, vm.Token)
}

// SMTPMailer sends token mails through a single SMTP relay.
type SMTPMailer struct {
	cfg   config.SMTPConfig
	links Links
}

// NewSMTPMailer validates the relay settings and both link bases.
func NewSMTPMailer(cfg config.SMTPConfig, links Links) (*SMTPMailer, error) {
	if cfg.Host == "" {
		return nil, errors.New("mail: SMTP host is required")
	}
	if cfg.From == "" {
		return nil, errors.New("mail: SMTP from address is required")
	}
	if _, err := url.ParseRequestURI(links.Verify); err != nil {
		return nil, fmt.Errorf("mail: invalid verification base URL: %w", err)
	}
	if _, err := url.ParseRequestURI(links.Reset); err != nil {
		return nil, fmt.Errorf("mail: invalid reset base URL: %w", err)
	}
	return &SMTPMailer{cfg: cfg, links: links}, nil
}

// Send implements queue.Mailer.
func (m *SMTPMailer) Send(ctx context.Context, vm ports.VerificationMail) error {
	msg, err := m.buildMessage(vm)
	if err != nil {
		return err
	}

	client, err := gomail.NewClient(m.cfg.Host, m.clientOptions()...)
	if err != nil {
		return fmt.Errorf("mail: creating client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("mail: sending to %s: %w", vm.Email, err)
	}
	return nil
}

func (m *SMTPMailer) clientOptions() []gomail.Option {
	opts := []gomail.Option{gomail.WithPort(m.cfg.Port)}

	if m.cfg.TLS {
		opts = append(opts, gomail.WithTLSPolicy(gomail.TLSMandatory))
		// 465 is implicit TLS, anything else negotiates STARTTLS.
		if m.cfg.Port == 465 {
			opts = append(opts, gomail.WithSSL())
		}
	} else {
		opts = append(opts, gomail.WithTLSPolicy(gomail.NoTLS))
	}

	if m.cfg.Username != "" && m.cfg.Password != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(m.cfg.Username),
			gomail.WithPassword(m.cfg.Password),
		)
	}
	return opts
}

func (m *SMTPMailer) buildMessage(vm ports.VerificationMail) (*gomail.Msg, error) {
	msg := gomail.NewMsg()

	if m.cfg.FromName != "" {
		if err := msg.FromFormat(m.cfg.FromName, m.cfg.From); err != nil {
			return nil, fmt.Errorf("mail: setting from address: %w", err)
		}
	} else if err := msg.From(m.cfg.From); err != nil {
		return nil, fmt.Errorf("mail: setting from address: %w", err)
	}
	if err := msg.To(vm.Email); err != nil {
		return nil, fmt.Errorf("mail: setting to address: %w", err)
	}

	if vm.Purpose == ports.PurposeResetPassword {
		msg.Subject(resetSubject)
	} else {
		msg.Subject(subject)
	}
	msg.SetBodyString(gomail.TypeTextPlain, Body(vm, m.links.For(vm)))
	return msg, nil
}

// VerifyLink appends the token as the "token" query parameter of base.
func VerifyLink(base, token string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base + "?token=" + url.QueryEscape(token)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String()
}

// Body renders the plain-text message for the purpose of vm.
func Body(vm ports.VerificationMail, link string) string {
	name := strings.TrimSpace(vm.FullName)
	if name == "" {
		name = vm.Email
	}
	reset := vm.Purpose == ports.PurposeResetPassword

	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s,\n\n", name)
	if reset {
		b.WriteString("Choose a new password by opening the link below:\n\n")
	} else {
		b.WriteString("Please confirm your email address by opening the link below:\n\n")
	}
	b.WriteString(link)
	b.WriteString("\n\n")
	if !vm.ExpiresAt.IsZero() {
		fmt.Fprintf(&b, "The link expires at %s.\n", vm.ExpiresAt.UTC().Format(time.RFC1123))
	}
	if reset {
		b.WriteString("If you did not ask for a password reset you can ignore this message.\n")
	} else {
		b.WriteString("If you did not create an account you can ignore this message.\n")
	}
	return b.String()
}
