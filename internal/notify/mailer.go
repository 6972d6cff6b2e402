// Kometa-AI - AI-Powered Collection Management for Radarr
// Copyright 2026 tikibozo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tikibozo/kometa-ai

// Package notify delivers run reports by email.
package notify

import (
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/tikibozo/kometa-ai/internal/config"
	"github.com/tikibozo/kometa-ai/internal/logging"
	"github.com/tikibozo/kometa-ai/internal/metrics"
)

// Mailer sends plain-text reports over SMTP. Implicit TLS (UseSSL) and
// STARTTLS (UseTLS) are supported; configuring both falls back to
// STARTTLS with a warning.
type Mailer struct {
	smtp   config.SMTPConfig
	notify config.NotifyConfig
}

// NewMailer builds a mailer from configuration.
func NewMailer(smtpCfg config.SMTPConfig, notifyCfg config.NotifyConfig) *Mailer {
	if smtpCfg.UseSSL && smtpCfg.UseTLS {
		logging.Warn().Msg("both smtp use_ssl and use_tls set, using starttls")
		smtpCfg.UseSSL = false
	}
	if notifyCfg.From == "" {
		notifyCfg.From = "kometa-ai@localhost"
	}
	if notifyCfg.ReplyTo == "" {
		notifyCfg.ReplyTo = notifyCfg.From
	}
	return &Mailer{smtp: smtpCfg, notify: notifyCfg}
}

// CanSend reports whether delivery is configured at all.
func (m *Mailer) CanSend() bool {
	return m.smtp.Server != "" && len(m.notify.Recipients) > 0
}

// ShouldSend applies the notification gates: errors always notify when
// on_errors_only is set, changes always notify, and quiet runs notify
// only when on_no_changes is set.
func (m *Mailer) ShouldSend(hasChanges, hasErrors bool) bool {
	if hasErrors && m.notify.OnErrorsOnly {
		return true
	}
	if hasChanges {
		return true
	}
	return m.notify.OnNoChanges
}

// Send delivers one message to all configured recipients.
func (m *Mailer) Send(subject, body string) error {
	if !m.CanSend() {
		return fmt.Errorf("email delivery not configured: smtp server and recipients required")
	}

	err := m.deliver(subject, body)
	metrics.RecordNotification(err)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	logging.Info().
		Str("subject", subject).
		Strs("recipients", m.notify.Recipients).
		Msg("email sent")
	return nil
}

// SendTest sends a short configuration-verification message.
func (m *Mailer) SendTest() error {
	body := strings.Join([]string{
		"This is a test message from Kometa-AI.",
		"",
		"If you received this, SMTP delivery is configured correctly.",
		"",
		"Sent: " + time.Now().UTC().Format(time.RFC1123Z),
	}, "\r\n")
	return m.Send("Kometa-AI Test Email", body)
}

func (m *Mailer) deliver(subject, body string) error {
	addr := net.JoinHostPort(m.smtp.Server, strconv.Itoa(m.smtp.Port))

	client, err := m.connect(addr)
	if err != nil {
		return err
	}
	defer client.Close()

	if m.smtp.Username != "" && m.smtp.Password != "" {
		auth := smtp.PlainAuth("", m.smtp.Username, m.smtp.Password, m.smtp.Server)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth failed: %w", err)
		}
	}

	if err := client.Mail(m.notify.From); err != nil {
		return err
	}
	for _, rcpt := range m.notify.Recipients {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("recipient %s rejected: %w", rcpt, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write([]byte(m.message(subject, body))); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return client.Quit()
}

// connect dials the server, wrapping in TLS as configured.
func (m *Mailer) connect(addr string) (*smtp.Client, error) {
	if m.smtp.UseSSL {
		conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: m.smtp.Server})
		if err != nil {
			return nil, fmt.Errorf("tls connection failed: %w", err)
		}
		client, err := smtp.NewClient(conn, m.smtp.Server)
		if err != nil {
			conn.Close()
			return nil, err
		}
		return client, nil
	}

	client, err := smtp.Dial(addr)
	if err != nil {
		return nil, fmt.Errorf("smtp connection failed: %w", err)
	}
	if m.smtp.UseTLS {
		if err := client.StartTLS(&tls.Config{ServerName: m.smtp.Server}); err != nil {
			client.Close()
			return nil, fmt.Errorf("starttls failed: %w", err)
		}
	}
	return client, nil
}

// message assembles the RFC 5322 envelope and body.
func (m *Mailer) message(subject, body string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", m.notify.From)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(m.notify.Recipients, ", "))
	fmt.Fprintf(&b, "Reply-To: %s\r\n", m.notify.ReplyTo)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	b.WriteString("\r\n")
	return b.String()
}
