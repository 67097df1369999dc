// Copyright (c) 2026 Finai. All rights reserved.
// Author: duccodon.dev@gmail.com

/*
Package mail delivers transactional auth emails.

The orchestrator treats delivery as a black-box capability behind the
[Sender] interface: it hands over an address and a reset session id and
never learns whether SMTP, an API relay, or a log line carried it.
*/
package mail

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/smtp"
)

// Sender is the email capability consumed by the auth orchestrator.
type Sender interface {

	/*
		SendResetEmail delivers a password-reset link for the given address.

		Parameters:
		  - context: context.Context
		  - email: string (recipient)
		  - resetSessionID: string (single-use reset session identifier)

		Returns:
		  - error: Delivery failures
	*/
	SendResetEmail(context context.Context, email, resetSessionID string) error
}

// # SMTP Delivery

// SMTPConfig holds the relay settings for [SMTPSender].
type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	// AppURL is the public frontend origin the reset link points at.
	AppURL string
}

// SMTPSender delivers reset emails over SMTP with STARTTLS.
type SMTPSender struct {
	config SMTPConfig
}

// NewSMTPSender constructs an [SMTPSender] from relay settings.
func NewSMTPSender(config SMTPConfig) *SMTPSender {
	return &SMTPSender{config: config}
}

// SendResetEmail sends a plain-text reset link to the recipient.
func (sender *SMTPSender) SendResetEmail(context context.Context, email, resetSessionID string) error {

	resetURL := fmt.Sprintf("%s/reset-password?sid=%s", sender.config.AppURL, resetSessionID)
	subject := "Reset your Finai password"
	body := "A password reset was requested for this address.\n\n" +
		"Open the link below within 15 minutes to choose a new password:\n" +
		resetURL + "\n\n" +
		"If you did not request this, you can ignore this email."

	message := []byte("To: " + email + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"\r\n" + body)

	addr := sender.config.Host + ":" + sender.config.Port

	client, err := smtp.Dial(addr)
	if err != nil {
		return fmt.Errorf("mail: smtp dial failed: %w", err)
	}
	defer client.Close()

	// Upgrade the connection before credentials are sent.
	tlsConfig := &tls.Config{ServerName: sender.config.Host}
	if err := client.StartTLS(tlsConfig); err != nil {
		return fmt.Errorf("mail: starttls failed: %w", err)
	}

	auth := smtp.PlainAuth("", sender.config.Username, sender.config.Password, sender.config.Host)
	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("mail: smtp auth failed: %w", err)
	}

	if err := client.Mail(sender.config.Username); err != nil {
		return fmt.Errorf("mail: MAIL FROM failed: %w", err)
	}
	if err := client.Rcpt(email); err != nil {
		return fmt.Errorf("mail: RCPT TO failed: %w", err)
	}

	writer, err := client.Data()
	if err != nil {
		return fmt.Errorf("mail: DATA failed: %w", err)
	}
	if _, err := writer.Write(message); err != nil {
		return fmt.Errorf("mail: message write failed: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("mail: message close failed: %w", err)
	}

	return client.Quit()
}

// # Development Delivery

// LogSender writes reset links to the structured log instead of sending
// email. Used in development where no SMTP relay is configured.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender constructs a [LogSender].
func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// SendResetEmail logs the reset session id for the recipient.
func (sender *LogSender) SendResetEmail(context context.Context, email, resetSessionID string) error {
	sender.logger.InfoContext(context, "password_reset_email_skipped",
		slog.String("email", email),
		slog.String("reset_session_id", resetSessionID),
	)
	return nil
}
