package ports

import (
	"context"
	"time"
)

// MailPurpose tells the mailer which flow a token belongs to.
type MailPurpose string

const (
	// PurposeVerifyEmail is the zero value so registration mails need no tag.
	PurposeVerifyEmail   MailPurpose = ""
	PurposeResetPassword MailPurpose = "reset_password"
)

// VerificationMail is the payload handed to the notification channel after a
// registration, a resend or a password reset request.
type VerificationMail struct {
	Email     string
	FullName  string
	Token     string
	ExpiresAt time.Time
	Purpose   MailPurpose
}

// VerificationNotifier delivers single-use tokens to account owners.
type VerificationNotifier interface {
	SendVerification(ctx context.Context, mail VerificationMail) error
}
