package authkit

import "log"

// EmailSender is the outbound notification boundary. Core only needs the two
// message types the credential flows produce; transport is up to the app.
// Delivery failures are reported to the caller, which logs them and carries
// on - the flows stay retryable by the user re-requesting a link.
type EmailSender interface {
	SendActivationEmail(to string, username string, confirmLink string) error
	SendPasswordResetEmail(to string, username string, resetLink string) error
}

// ConsoleEmailSender is a development implementation that logs emails to console
type ConsoleEmailSender struct{}

func (c *ConsoleEmailSender) SendActivationEmail(to string, username string, confirmLink string) error {
	log.Printf("\n=== EMAIL: Activation ===")
	log.Printf("To: %s", to)
	log.Printf("Subject: Activate Your Account")
	log.Printf("Body: Hi %s, confirm your email by clicking: %s", username, confirmLink)
	log.Printf("=========================\n")
	return nil
}

func (c *ConsoleEmailSender) SendPasswordResetEmail(to string, username string, resetLink string) error {
	log.Printf("\n=== EMAIL: Password Reset ===")
	log.Printf("To: %s", to)
	log.Printf("Subject: Reset Your Password")
	log.Printf("Body: Hi %s, reset your password by clicking: %s", username, resetLink)
	log.Printf("==============================\n")
	return nil
}
