package authkit

import (
	"bytes"
	"crypto/tls"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"
)

var activationBody = template.Must(template.New("activation").Parse(`<html><body>
<p>Hi {{.Username}},</p>
<p>Thanks for registering. Please confirm your email address to activate your account:</p>
<p><a href="{{.Link}}">Activate my account</a></p>
<p>If you did not register, you can ignore this email.</p>
</body></html>`))

var resetBody = template.Must(template.New("reset").Parse(`<html><body>
<p>Hi {{.Username}},</p>
<p>We received a request to reset your password. Follow the link below to choose a new one:</p>
<p><a href="{{.Link}}">Reset my password</a></p>
<p>If you did not request this, you can ignore this email.</p>
</body></html>`))

// SMTPEmailSender delivers activation and reset emails over SMTP.
type SMTPEmailSender struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
	UseTLS   bool
}

func NewSMTPEmailSender(host string, port int, username, password, from, fromName string, useTLS bool) (*SMTPEmailSender, error) {
	if strings.TrimSpace(host) == "" {
		return nil, fmt.Errorf("smtp host is required")
	}
	if strings.TrimSpace(from) == "" {
		return nil, fmt.Errorf("smtp from is required")
	}
	if port == 0 {
		port = 587
	}
	return &SMTPEmailSender{
		Host:     host,
		Port:     port,
		Username: username,
		Password: password,
		From:     from,
		FromName: fromName,
		UseTLS:   useTLS,
	}, nil
}

func (s *SMTPEmailSender) SendActivationEmail(to string, username string, confirmLink string) error {
	body, err := renderBody(activationBody, username, confirmLink)
	if err != nil {
		return err
	}
	return s.send(to, "Activate Your Account", body)
}

func (s *SMTPEmailSender) SendPasswordResetEmail(to string, username string, resetLink string) error {
	body, err := renderBody(resetBody, username, resetLink)
	if err != nil {
		return err
	}
	return s.send(to, "Reset Your Password", body)
}

func renderBody(t *template.Template, username, link string) (string, error) {
	var buf bytes.Buffer
	err := t.Execute(&buf, struct {
		Username string
		Link     string
	}{Username: username, Link: link})
	if err != nil {
		return "", fmt.Errorf("failed to render email body: %w", err)
	}
	return buf.String(), nil
}

func (s *SMTPEmailSender) send(to, subject, htmlBody string) error {
	if strings.TrimSpace(to) == "" {
		return fmt.Errorf("to email is required")
	}

	msg := buildMessage(s.From, s.FromName, to, subject, htmlBody)
	addr := fmt.Sprintf("%s:%d", s.Host, s.Port)

	var auth smtp.Auth
	if s.Username != "" {
		auth = smtp.PlainAuth("", s.Username, s.Password, s.Host)
	}

	if s.UseTLS {
		conn, err := tls.Dial("tcp", addr, &tls.Config{
			ServerName: s.Host,
		})
		if err != nil {
			return err
		}
		defer conn.Close()

		client, err := smtp.NewClient(conn, s.Host)
		if err != nil {
			return err
		}
		defer client.Quit()

		if auth != nil {
			if err := client.Auth(auth); err != nil {
				return err
			}
		}
		if err := client.Mail(s.From); err != nil {
			return err
		}
		if err := client.Rcpt(to); err != nil {
			return err
		}
		writer, err := client.Data()
		if err != nil {
			return err
		}
		if _, err := writer.Write([]byte(msg)); err != nil {
			_ = writer.Close()
			return err
		}
		return writer.Close()
	}

	return smtp.SendMail(addr, auth, s.From, []string{to}, []byte(msg))
}

func buildMessage(from, fromName, to, subject, body string) string {
	fromHeader := from
	if strings.TrimSpace(fromName) != "" {
		fromHeader = fmt.Sprintf("%s <%s>", fromName, from)
	}

	headers := []string{
		fmt.Sprintf("From: %s", fromHeader),
		fmt.Sprintf("To: %s", to),
		fmt.Sprintf("Subject: %s", subject),
		"MIME-Version: 1.0",
		"Content-Type: text/html; charset=\"UTF-8\"",
	}

	return strings.Join(headers, "\r\n") + "\r\n\r\n" + body
}
