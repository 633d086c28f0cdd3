package notify

import (
	"bytes"
	"fmt"
	"text/template"
)

// Template identifies a transactional email template.
type Template string

const (
	TemplateDBSRequest            Template = "dbs_request"
	TemplateDBSReminder           Template = "dbs_reminder"
	TemplateHouseholdConfirmation Template = "household_confirmation"
	TemplateStatusChanged         Template = "status_changed"
	TemplateBirthdayAlert         Template = "birthday_alert"
	TemplateReferenceInvitation   Template = "reference_invitation"
	TemplateReferenceConfirmation Template = "reference_confirmation"
)

// Params is the parameter bag rendered into a template.
type Params map[string]any

type emailTemplate struct {
	subject *template.Template
	body    *template.Template
}

func mustTemplate(name, subject, body string) emailTemplate {
	return emailTemplate{
		subject: template.Must(template.New(name + ".subject").Parse(subject)),
		body:    template.Must(template.New(name + ".body").Parse(body)),
	}
}

// The registry renders plain-text bodies; the mailer wraps them in the
// shared HTML frame. Parameter names match the calling workflows.
var registry = map[Template]emailTemplate{
	TemplateDBSRequest: mustTemplate("dbs_request",
		"DBS check required for your role with {{.RequesterName}}",
		`Hi {{.MemberName}},

{{.RequesterName}} has requested a DBS (Disclosure and Barring Service) check as part of their childminder registration. Everyone aged 16 or over in a childminding household must hold a valid DBS certificate.

Please complete the household suitability form using your personal link:
{{.FormURL}}

If you already hold a DBS certificate, have the certificate number and issue date ready.`),

	TemplateDBSReminder: mustTemplate("dbs_reminder",
		"Reminder: DBS check still outstanding",
		`Hi {{.MemberName}},

This is a reminder that your DBS check for {{.RequesterName}}'s childminder registration is still outstanding. This is reminder number {{.ReminderCount}}.

Please complete the household suitability form:
{{.FormURL}}`),

	TemplateHouseholdConfirmation: mustTemplate("household_confirmation",
		"Household suitability form received",
		`Hi {{.MemberName}},

Thank you - we have received your household suitability form. {{if .HasCertificate}}Your DBS certificate details have been recorded.{{else}}We will be in touch about arranging your DBS check.{{end}}

No further action is needed from you at this stage.`),

	TemplateStatusChanged: mustTemplate("status_changed",
		"Compliance update for {{.MemberName}}",
		`Hi {{.ApplicantName}},

{{.MemberName}} has completed their household suitability form. Their DBS status is now: {{.DBSStatus}}.

You can review your household's compliance in your dashboard.`),

	TemplateBirthdayAlert: mustTemplate("birthday_alert",
		"{{.Urgency}}: {{.ChildName}} turns 16 {{if eq .DaysUntil16 0}}today{{else}}in {{.DaysUntil16}} days{{end}}",
		`Hi {{.ApplicantName}},

{{.ChildName}} (date of birth {{.DateOfBirth}}) {{if eq .DaysUntil16 0}}turns 16 today{{else}}turns 16 in {{.DaysUntil16}} days{{end}}.

From their 16th birthday, everyone in a childminding household must hold a valid DBS certificate. Please arrange a DBS check for {{.ChildName}} now to stay compliant.`),

	TemplateReferenceInvitation: mustTemplate("reference_invitation",
		"Reference request for {{.ApplicantName}}",
		`Hi {{.RefereeName}},

{{.ApplicantName}} has named you as a reference ({{.RefereeRelationship}}) in their application to register as a childminder.

Please complete the reference form using this link:
{{.FormURL}}

The form takes around ten minutes.`),

	TemplateReferenceConfirmation: mustTemplate("reference_confirmation",
		"Reference received - thank you",
		`Hi {{.RefereeName}},

Thank you for completing the reference for {{.ApplicantName}}. Your response has been recorded and no further action is needed.`),
}

// Render produces the subject and body for a template.
func Render(tmpl Template, params Params) (subject, body string, err error) {
	t, ok := registry[tmpl]
	if !ok {
		return "", "", fmt.Errorf("unknown template %q", tmpl)
	}

	var subjBuf, bodyBuf bytes.Buffer
	if err := t.subject.Execute(&subjBuf, params); err != nil {
		return "", "", fmt.Errorf("render subject for %s: %w", tmpl, err)
	}
	if err := t.body.Execute(&bodyBuf, params); err != nil {
		return "", "", fmt.Errorf("render body for %s: %w", tmpl, err)
	}
	return subjBuf.String(), bodyBuf.String(), nil
}
