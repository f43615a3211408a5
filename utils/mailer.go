package utils

import (
	"fmt"
	"net"
	"net/smtp"
	"os"
	"time"
)

// Mailer delivers a rendered message to a recipient. Transport details
// stay behind this boundary so handlers can be tested with a stub.
type Mailer interface {
	Send(to, subject, body string) error
}

type SMTPMailer struct {
	host    string
	port    string
	from    string
	user    string
	pass    string
	timeout time.Duration
}

func NewSMTPMailer() *SMTPMailer {
	return &SMTPMailer{
		host:    os.Getenv("SMTP_HOST"),
		port:    os.Getenv("SMTP_PORT"),
		from:    os.Getenv("SMTP_FROM"),
		user:    os.Getenv("SMTP_USER"),
		pass:    os.Getenv("SMTP_PASS"),
		timeout: time.Duration(ParseIntDefault(os.Getenv("SMTP_TIMEOUT_SECONDS"), 10)) * time.Second,
	}
}

// Send dials with a deadline so a stuck SMTP server cannot hang the
// request that triggered the mail.
func (m *SMTPMailer) Send(to, subject, body string) error {
	addr := net.JoinHostPort(m.host, m.port)
	conn, err := net.DialTimeout("tcp", addr, m.timeout)
	if err != nil {
		return fmt.Errorf("smtp dial: %w", err)
	}
	if err := conn.SetDeadline(time.Now().Add(m.timeout)); err != nil {
		conn.Close()
		return err
	}

	client, err := smtp.NewClient(conn, m.host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp client: %w", err)
	}
	defer client.Close()

	if ok, _ := client.Extension("AUTH"); ok {
		auth := smtp.PlainAuth("", m.user, m.pass, m.host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}

	if err := client.Mail(m.from); err != nil {
		return err
	}
	if err := client.Rcpt(to); err != nil {
		return err
	}
	w, err := client.Data()
	if err != nil {
		return err
	}

	msg := "From: " + m.from + "\r\n" +
		"To: " + to + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"Content-Type: text/plain; charset=\"utf-8\"\r\n" +
		"\r\n" +
		body + "\r\n"
	if _, err := w.Write([]byte(msg)); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return client.Quit()
}
