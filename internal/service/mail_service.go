package service

import (
	"aut_portal_backend/internal/config"
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"net/smtp"
	"net/url"
	"strings"
)

var ErrMailNotConfigured = errors.New("mail server is not configured")

// Mailer 发送账号相关邮件
type Mailer interface {
	SendVerificationEmail(to, token string) error
}

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

type MailService struct {
	Cfg       config.MailConfig
	PublicURL string
	send      sendMailFunc
}

func NewMailService(cfg config.MailConfig, publicURL string) *MailService {
	return &MailService{Cfg: cfg, PublicURL: publicURL, send: smtp.SendMail}
}

var verificationTemplate = template.Must(template.New("verify").Parse(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">
  <h2 style="color: #2563EB;">AUT Platform</h2>
  <p>Hello!</p>
  <p>Click the button below to complete your registration:</p>
  <div style="text-align: center; margin: 30px 0;">
    <a href="{{.URL}}" style="background-color: #2563EB; color: white; padding: 12px 30px; text-decoration: none; border-radius: 8px; font-weight: bold;">Verify Email</a>
  </div>
  <p style="color: #666; font-size: 14px;">If the button doesn't work, copy the link below into your browser:</p>
  <p style="color: #2563EB; font-size: 14px; word-break: break-all;">{{.URL}}</p>
  <p style="color: #999; font-size: 12px; margin-top: 30px;">This link is valid for 24 hours.</p>
</div>`))

func (s *MailService) VerifyURL(token string) string {
	return strings.TrimRight(s.PublicURL, "/") + "/verify?token=" + url.QueryEscape(token)
}

func (s *MailService) SendVerificationEmail(to, token string) error {
	if s.Cfg.Host == "" || s.Cfg.Username == "" {
		return ErrMailNotConfigured
	}

	var body bytes.Buffer
	if err := verificationTemplate.Execute(&body, struct{ URL string }{s.VerifyURL(token)}); err != nil {
		return err
	}

	from := s.Cfg.From
	if from == "" {
		from = s.Cfg.Username
	}

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: \"AUT Platform\" <%s>\r\n", from)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	msg.WriteString("Subject: Verify your email - AUT Platform\r\n")
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=UTF-8\r\n\r\n")
	msg.Write(body.Bytes())

	addr := fmt.Sprintf("%s:%d", s.Cfg.Host, s.Cfg.Port)
	auth := smtp.PlainAuth("", s.Cfg.Username, s.Cfg.Password, s.Cfg.Host)
	return s.send(addr, auth, from, []string{to}, msg.Bytes())
}
