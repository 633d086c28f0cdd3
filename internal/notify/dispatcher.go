// Package notify renders templated transactional emails and sends them
// through a Mailer. The dispatcher reports provider failures to the
// caller; each workflow decides whether a failed send blocks its state
// transition.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"minderdesk/internal/platform/metrics"
)

// Mailer delivers a rendered email. Implementations: SES, memory (tests),
// disabled (logs and succeeds).
type Mailer interface {
	SendEmail(ctx context.Context, to, subject, htmlBody, textBody string) error
}

// Dispatcher renders a template and sends the result.
type Dispatcher struct {
	mailer  Mailer
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewDispatcher(mailer Mailer, logger *slog.Logger, m *metrics.Metrics) *Dispatcher {
	return &Dispatcher{mailer: mailer, logger: logger, metrics: m}
}

// Send renders the template with params and delivers it to recipient.
// The returned error is the provider failure, if any; the template and
// recipient are attached for caller logging.
func (d *Dispatcher) Send(ctx context.Context, tmpl Template, recipient string, params Params) error {
	ctx, span := otel.Tracer("minderdesk/notify").Start(ctx, "notify.Send")
	span.SetAttributes(attribute.String("template", string(tmpl)))
	defer span.End()

	subject, body, err := Render(tmpl, params)
	if err != nil {
		return err
	}

	if err := d.mailer.SendEmail(ctx, recipient, subject, wrapHTML(subject, body), body); err != nil {
		if d.metrics != nil {
			d.metrics.NotificationsFailed.WithLabelValues(string(tmpl)).Inc()
		}
		return fmt.Errorf("send %s to %s: %w", tmpl, recipient, err)
	}

	if d.metrics != nil {
		d.metrics.NotificationsSent.WithLabelValues(string(tmpl)).Inc()
	}
	d.logger.InfoContext(ctx, "notification sent",
		"template", tmpl,
		"recipient", recipient,
	)
	return nil
}

// wrapHTML puts the plain-text body into the shared HTML frame. Emails
// always carry both parts; clients pick.
func wrapHTML(subject, body string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
	<meta charset="UTF-8">
	<style>
		body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
		.container { max-width: 600px; margin: 0 auto; padding: 20px; }
		.header { background-color: #2a7d4f; color: white; padding: 20px; text-align: center; border-radius: 5px 5px 0 0; }
		.content { background-color: #f9f9f9; padding: 30px; border-radius: 0 0 5px 5px; white-space: pre-line; }
		.footer { text-align: center; margin-top: 20px; font-size: 12px; color: #666; }
	</style>
</head>
<body>
	<div class="container">
		<div class="header"><h1>%s</h1></div>
		<div class="content">%s</div>
		<div class="footer"><p>This is an automated email from MinderDesk. Please do not reply.</p></div>
	</div>
</body>
</html>`, subject, body)
}
