package mail

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/stockpulse/authcore/internal/core/ports"
)

// LogMailer stands in for SMTP in development. It logs the token link at
// info level, so it must never be used in production.
type LogMailer struct {
	links Links
	log   zerolog.Logger
}

func NewLogMailer(links Links, log zerolog.Logger) *LogMailer {
	return &LogMailer{links: links, log: log}
}

func (m *LogMailer) Send(_ context.Context, vm ports.VerificationMail) error {
	purpose := "verify_email"
	if vm.Purpose != ports.PurposeVerifyEmail {
		purpose = string(vm.Purpose)
	}
	m.log.Info().
		Str("email", vm.Email).
		Str("purpose", purpose).
		Str("link", m.links.For(vm)).
		Time("expires_at", vm.ExpiresAt).
		Msg("token mail (not sent, SMTP disabled)")
	return nil
}
