package auth

import (
	"fmt"
	"net/smtp"
)

type Mailer interface {
	SendOTP(to, code string) error
}

// SMTPMailer delivers one-time codes over authenticated SMTP.
type SMTPMailer struct {
	Host     string
	Port     string
	From     string
	Password string
}

func (m *SMTPMailer) SendOTP(to, code string) error {
	auth := smtp.PlainAuth("", m.From, m.Password, m.Host)

	subject := "Your One-Time Password (OTP) for Verification"
	body := fmt.Sprintf("Your one-time password is: %s\n\nIt is valid for a limited time. Do not share it with anyone.\nIf you did not request it, ignore this email.", code)

	message := []byte("Subject: " + subject + "\r\n" +
		"From: " + m.From + "\r\n" +
		"To: " + to + "\r\n" +
		"Content-Type: text/plain; charset=UTF-8\r\n" +
		"\r\n" +
		body + "\r\n")

	if err := smtp.SendMail(m.Host+":"+m.Port, auth, m.From, []string{to}, message); err != nil {
		return fmt.Errorf("smtp send to %s: %w", to, err)
	}
	return nil
}
