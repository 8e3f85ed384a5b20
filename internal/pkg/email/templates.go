package email

import (
	"fmt"
	"html"
)

// PaymentFacts 付款确认邮件里用到的订单信息
type PaymentFacts struct {
	CustomerName   string
	CustomerEmail  string
	UserID         string
	OrderReference string
	PackageKind    string
	Skill          string
	DurationMonths int
	Amount         int64
	ExpirationDate string // 可能为空（资料更新失败时）
}

// CustomerConfirmation 客户付款确认邮件
func CustomerConfirmation(f PaymentFacts) (subject, body string) {
	subject = fmt.Sprintf("Payment confirmed - %s", f.OrderReference)

	name := f.CustomerName
	if name == "" {
		name = "there"
	}
	expiry := ""
	if f.ExpirationDate != "" {
		expiry = fmt.Sprintf(`<p>Your Pro access is now valid until <strong>%s</strong>.</p>`, html.EscapeString(f.ExpirationDate))
	}

	body = fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
</head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
    <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
        <h2 style="color: #2563eb;">Payment received</h2>
        <p>Hi %s,</p>
        <p>We have received your bank transfer for order <strong>%s</strong>.</p>
        <table style="border-collapse: collapse; margin: 20px 0;">
            <tr><td style="padding: 4px 12px 4px 0;">Package</td><td>%s</td></tr>
            <tr><td style="padding: 4px 12px 4px 0;">Duration</td><td>%d month(s)</td></tr>
            <tr><td style="padding: 4px 12px 4px 0;">Amount</td><td>%s VND</td></tr>
        </table>
        %s
        <hr style="border: none; border-top: 1px solid #e5e7eb; margin: 20px 0;">
        <p style="color: #6b7280; font-size: 12px;">This email was sent automatically, please do not reply.</p>
    </div>
</body>
</html>
`, html.EscapeString(name), html.EscapeString(f.OrderReference), packageLabel(f), f.DurationMonths, formatVND(f.Amount), expiry)

	return subject, body
}

// AdminPaymentNotice 管理员新付款通知
func AdminPaymentNotice(f PaymentFacts) (subject, body string) {
	subject = fmt.Sprintf("New payment: %s (%s VND)", f.OrderReference, formatVND(f.Amount))

	body = fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
</head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
    <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
        <h2 style="color: #16a34a;">New bank transfer payment</h2>
        <table style="border-collapse: collapse; margin: 20px 0;">
            <tr><td style="padding: 4px 12px 4px 0;">Order</td><td>%s</td></tr>
            <tr><td style="padding: 4px 12px 4px 0;">User</td><td>%s</td></tr>
            <tr><td style="padding: 4px 12px 4px 0;">Email</td><td>%s</td></tr>
            <tr><td style="padding: 4px 12px 4px 0;">Package</td><td>%s</td></tr>
            <tr><td style="padding: 4px 12px 4px 0;">Duration</td><td>%d month(s)</td></tr>
            <tr><td style="padding: 4px 12px 4px 0;">Amount</td><td>%s VND</td></tr>
            <tr><td style="padding: 4px 12px 4px 0;">Expires</td><td>%s</td></tr>
        </table>
    </div>
</body>
</html>
`, html.EscapeString(f.OrderReference), html.EscapeString(f.UserID), html.EscapeString(orDash(f.CustomerEmail)),
		packageLabel(f), f.DurationMonths, formatVND(f.Amount), html.EscapeString(orDash(f.ExpirationDate)))

	return subject, body
}

func packageLabel(f PaymentFacts) string {
	if f.Skill != "" {
		return html.EscapeString(fmt.Sprintf("%s (%s)", f.PackageKind, f.Skill))
	}
	return html.EscapeString(f.PackageKind)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// formatVND 千位分隔，例如 200000 -> 200,000
func formatVND(amount int64) string {
	neg := amount < 0
	if neg {
		amount = -amount
	}
	s := fmt.Sprintf("%d", amount)
	var out []byte
	for i, c := range []byte(s) {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, c)
	}
	if neg {
		return "-" + string(out)
	}
	return string(out)
}
