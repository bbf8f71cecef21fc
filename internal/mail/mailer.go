package mail

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
)

type VerificationData struct {
	Username        string
	Email           string
	VerificationURL string
	ExpiryHours     int
}

type OrderConfirmationData struct {
	Username    string
	Email       string
	OrderNumber string
	TotalAmount string
	Items       []OrderLine
}

type OrderLine struct {
	Name     string
	Quantity int
	Subtotal string
}

var (
	verificationTmpl = template.Must(template.New("verification").Parse(verificationTemplate))
	orderTmpl        = template.Must(template.New("order").Parse(orderConfirmationTemplate))
)

// Mailer renders the application's emails and hands them to an EmailSender.
type Mailer struct {
	sender EmailSender
}

func NewMailer(sender EmailSender) *Mailer {
	return &Mailer{sender: sender}
}

func (m *Mailer) SendVerificationEmail(ctx context.Context, data VerificationData) error {
	html, err := render(verificationTmpl, data)
	if err != nil {
		return err
	}
	return m.sender.SendEmail(ctx, "Verify your email address", html, []string{data.Email})
}

func (m *Mailer) SendOrderConfirmation(ctx context.Context, data OrderConfirmationData) error {
	html, err := render(orderTmpl, data)
	if err != nil {
		return err
	}
	return m.sender.SendEmail(ctx, fmt.Sprintf("Order %s received", data.OrderNumber), html, []string{data.Email})
}

func render(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("execute %s template: %w", tmpl.Name(), err)
	}
	return buf.String(), nil
}

const verificationTemplate = `<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"><title>Verify your email</title></head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
    <h2>Welcome, {{.Username}}!</h2>
    <p>Please confirm your email address to activate your account:</p>
    <p><a href="{{.VerificationURL}}">Verify email</a></p>
    <p style="word-break: break-all;">{{.VerificationURL}}</p>
    <p>This link expires in {{.ExpiryHours}} hours.</p>
    <p>If you did not create an account, you can ignore this message.</p>
</body>
</html>
`

const orderConfirmationTemplate = `<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"><title>Order {{.OrderNumber}}</title></head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
    <h2>Thanks for your order, {{.Username}}!</h2>
    <p>Order number: <strong>{{.OrderNumber}}</strong></p>
    <table>
        {{range .Items}}<tr><td>{{.Name}}</td><td>x{{.Quantity}}</td><td>{{.Subtotal}}</td></tr>
        {{end}}
    </table>
    <p>Total: <strong>{{.TotalAmount}}</strong></p>
</body>
</html>
`
