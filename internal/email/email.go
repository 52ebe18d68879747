// Package email provides email sending functionality
package email

import (
	"bytes"
	"crypto/tls"
	"fmt"
	"html/template"
	"log"
	"net/smtp"
	"strings"
)

// Config holds email configuration
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	FromName string
	UseTLS   bool
}

// Service handles email sending
type Service struct {
	config    *Config
	templates map[string]*template.Template
}

// NewService creates a new email service
func NewService(config *Config) *Service {
	s := &Service{
		config:    config,
		templates: make(map[string]*template.Template),
	}
	s.loadTemplates()
	return s
}

// Email represents an email message
type Email struct {
	To       []string
	CC       []string
	BCC      []string
	Subject  string
	Body     string
	HTMLBody string
}

func (s *Service) loadTemplates() {

	// New User Invitation Template
	s.templates["new_user_invitation"] = template.Must(template.New("new_user_invitation").Parse(`
<!DOCTYPE html>
<html>
<head>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Helvetica, Arial, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { background: linear-gradient(135deg, #10b981 0%, #059669 100%); color: white; padding: 30px; border-radius: 10px 10px 0 0; }
        .content { background: #f9fafb; padding: 30px; border-radius: 0 0 10px 10px; }
        .btn { display: inline-block; background: #10b981; color: white; padding: 12px 24px; text-decoration: none; border-radius: 6px; margin-top: 15px; }
        .footer { text-align: center; color: #6b7280; font-size: 12px; margin-top: 20px; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>🎉 You're Invited</h1>
        </div>
        <div class="content">
            <p>Hi there!</p>
            <p><strong>{{.InviterName}}</strong> has invited you to join <strong>{{.CompanyName}}</strong> on Capstack.</p>
            <p>You've been assigned the role of <strong>{{.Role}}</strong>.</p>

            <a href="{{.InviteURL}}" class="btn">Accept Invitation</a>

            <p style="margin-top: 20px; color: #6b7280; font-size: 14px;">
                This invitation will expire in {{.ExpiresInDays}} days.
            </p>
        </div>
        <div class="footer">
            <p>If you didn't expect this invitation, you can safely ignore this email.</p>
        </div>
    </div>
</body>
</html>
`))

	// Role Assigned Template (existing users)
	s.templates["role_assigned"] = template.Must(template.New("role_assigned").Parse(`
<!DOCTYPE html>
<html>
<head>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Helvetica, Arial, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { background: linear-gradient(135deg, #667eea 0%, #764ba2 100%); color: white; padding: 30px; border-radius: 10px 10px 0 0; }
        .content { background: #f9fafb; padding: 30px; border-radius: 0 0 10px 10px; }
        .btn { display: inline-block; background: #667eea; color: white; padding: 12px 24px; text-decoration: none; border-radius: 6px; margin-top: 15px; }
        .footer { text-align: center; color: #6b7280; font-size: 12px; margin-top: 20px; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>👥 New Role Assigned</h1>
        </div>
        <div class="content">
            <p>Hi {{.UserName}},</p>
            <p>You are now a <strong>{{.Role}}</strong> of <strong>{{.CompanyName}}</strong> on Capstack.</p>

            <a href="{{.CompanyURL}}" class="btn">Open {{.CompanyName}}</a>
        </div>
        <div class="footer">
            <p>This email was sent from Capstack</p>
        </div>
    </div>
</body>
</html>
`))

	// Dividend Payment Template
	s.templates["dividend_payment"] = template.Must(template.New("dividend_payment").Parse(`
<!DOCTYPE html>
<html>
<head>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Helvetica, Arial, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { background: linear-gradient(135deg, #f59e0b 0%, #d97706 100%); color: white; padding: 30px; border-radius: 10px 10px 0 0; }
        .content { background: #f9fafb; padding: 30px; border-radius: 0 0 10px 10px; }
        .amount-card { background: white; border-radius: 8px; padding: 20px; margin: 20px 0; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        .btn { display: inline-block; background: #f59e0b; color: white; padding: 12px 24px; text-decoration: none; border-radius: 6px; margin-top: 15px; }
        .footer { text-align: center; color: #6b7280; font-size: 12px; margin-top: 20px; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>💰 Dividend Paid</h1>
        </div>
        <div class="content">
            <p>Hi {{.UserName}},</p>
            <p>A dividend payment from <strong>{{.CompanyName}}</strong> has been completed.</p>

            <div class="amount-card">
                <h2>{{.Amount}}</h2>
                <p><strong>Company:</strong> {{.CompanyName}}</p>
            </div>

            <a href="{{.DashboardURL}}" class="btn">View Dividends</a>
        </div>
        <div class="footer">
            <p>This email was sent from Capstack</p>
        </div>
    </div>
</body>
</html>
`))

	// Grant Cancelled Template
	s.templates["grant_cancelled"] = template.Must(template.New("grant_cancelled").Parse(`
<!DOCTYPE html>
<html>
<head>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Helvetica, Arial, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { background: linear-gradient(135deg, #ef4444 0%, #dc2626 100%); color: white; padding: 30px; border-radius: 10px 10px 0 0; }
        .content { background: #f9fafb; padding: 30px; border-radius: 0 0 10px 10px; }
        .footer { text-align: center; color: #6b7280; font-size: 12px; margin-top: 20px; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>Equity Grant Cancelled</h1>
        </div>
        <div class="content">
            <p>Hi {{.UserName}},</p>
            <p>Your equity grant with <strong>{{.CompanyName}}</strong> has been cancelled.</p>
            <p><strong>Vested shares retained:</strong> {{.VestedShares}}</p>
            {{if .Reason}}<p><strong>Reason:</strong> {{.Reason}}</p>{{end}}
        </div>
        <div class="footer">
            <p>This email was sent from Capstack</p>
        </div>
    </div>
</body>
</html>
`))
}

// Send sends an email
func (s *Service) Send(email *Email) error {
	if s.config.Host == "" {
		log.Println("Email not configured, skipping send")
		return nil
	}

	// Build message
	var msg bytes.Buffer

	// Headers
	msg.WriteString(fmt.Sprintf("From: %s <%s>\r\n", s.config.FromName, s.config.From))
	msg.WriteString(fmt.Sprintf("To: %s\r\n", strings.Join(email.To, ", ")))
	if len(email.CC) > 0 {
		msg.WriteString(fmt.Sprintf("Cc: %s\r\n", strings.Join(email.CC, ", ")))
	}
	msg.WriteString(fmt.Sprintf("Subject: %s\r\n", email.Subject))
	msg.WriteString("MIME-Version: 1.0\r\n")

	if email.HTMLBody != "" {
		msg.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
		msg.WriteString("\r\n")
		msg.WriteString(email.HTMLBody)
	} else {
		msg.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
		msg.WriteString("\r\n")
		msg.WriteString(email.Body)
	}

	// Build recipient list
	recipients := append(email.To, email.CC...)
	recipients = append(recipients, email.BCC...)

	// Create auth
	auth := smtp.PlainAuth("", s.config.User, s.config.Password, s.config.Host)

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	if s.config.UseTLS {
		// TLS connection
		tlsConfig := &tls.Config{
			ServerName: s.config.Host,
		}

		conn, err := tls.Dial("tcp", addr, tlsConfig)
		if err != nil {
			return fmt.Errorf("TLS dial error: %w", err)
		}
		defer conn.Close()

		client, err := smtp.NewClient(conn, s.config.Host)
		if err != nil {
			return fmt.Errorf("SMTP client error: %w", err)
		}
		defer client.Close()

		if err = client.Auth(auth); err != nil {
			return fmt.Errorf("auth error: %w", err)
		}

		if err = client.Mail(s.config.From); err != nil {
			return fmt.Errorf("mail error: %w", err)
		}

		for _, rcpt := range recipients {
			if err = client.Rcpt(rcpt); err != nil {
				return fmt.Errorf("rcpt error: %w", err)
			}
		}

		w, err := client.Data()
		if err != nil {
			return fmt.Errorf("data error: %w", err)
		}

		_, err = w.Write(msg.Bytes())
		if err != nil {
			return fmt.Errorf("write error: %w", err)
		}

		err = w.Close()
		if err != nil {
			return fmt.Errorf("close error: %w", err)
		}

		return client.Quit()
	}

	// Non-TLS
	return smtp.SendMail(addr, auth, s.config.From, recipients, msg.Bytes())
}

// SendWithTemplate sends an email using a template
func (s *Service) SendWithTemplate(to []string, subject, templateName string, data interface{}) error {
	tmpl, ok := s.templates[templateName]
	if !ok {
		return fmt.Errorf("template not found: %s", templateName)
	}

	var body bytes.Buffer
	if err := tmpl.Execute(&body, data); err != nil {
		return fmt.Errorf("template execution error: %w", err)
	}

	return s.Send(&Email{
		To:       to,
		Subject:  subject,
		HTMLBody: body.String(),
	})
}

// ============================================
// Convenience Methods
// ============================================

// NewUserInvitationData holds data for new user invitation email
type NewUserInvitationData struct {
	InviterName   string
	CompanyName   string
	Role          string
	InviteURL     string
	ExpiresInDays int
}

// SendNewUserInvitation sends an invitation email to a user without an account
func (s *Service) SendNewUserInvitation(to string, data NewUserInvitationData) error {
	if data.InviterName == "" {
		data.InviterName = "Someone"
	}
	return s.SendWithTemplate(
		[]string{to},
		fmt.Sprintf("[Capstack] Invitation to join %s", data.CompanyName),
		"new_user_invitation",
		data,
	)
}

// RoleAssignedData holds data for role assigned email
type RoleAssignedData struct {
	UserName    string
	CompanyName string
	Role        string
	CompanyURL  string
}

// SendRoleAssigned notifies an existing user of a new company role
func (s *Service) SendRoleAssigned(to string, data RoleAssignedData) error {
	return s.SendWithTemplate(
		[]string{to},
		fmt.Sprintf("[Capstack] You've been added to %s", data.CompanyName),
		"role_assigned",
		data,
	)
}

// DividendPaymentData holds data for dividend payment email
type DividendPaymentData struct {
	UserName     string
	CompanyName  string
	Amount       string
	DashboardURL string
}

// SendDividendPayment sends a dividend completed email
func (s *Service) SendDividendPayment(to string, data DividendPaymentData) error {
	return s.SendWithTemplate(
		[]string{to},
		fmt.Sprintf("[Capstack] Dividend paid by %s", data.CompanyName),
		"dividend_payment",
		data,
	)
}

// GrantCancelledData holds data for grant cancelled email
type GrantCancelledData struct {
	UserName     string
	CompanyName  string
	VestedShares int64
	Reason       string
}

// SendGrantCancelled notifies a grant holder of a cancellation
func (s *Service) SendGrantCancelled(to string, data GrantCancelledData) error {
	return s.SendWithTemplate(
		[]string{to},
		fmt.Sprintf("[Capstack] Equity grant cancelled at %s", data.CompanyName),
		"grant_cancelled",
		data,
	)
}
