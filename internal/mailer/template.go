package mailer

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"campusevents/internal/model"
)

var reminderTmpl = template.Must(template.New("reminder").Parse(`<!DOCTYPE html>
<html>
  <body style="font-family: sans-serif; color: #1a1a1a;">
    <h2>{{.Title}}</h2>
    <p>Your event starts {{.Lead}}.</p>
    <p>
      <strong>When:</strong> {{.When}}<br>
      {{if .Location}}<strong>Where:</strong> {{.Location}}{{end}}
    </p>
    <p style="color: #666; font-size: 12px;">
      You are receiving this because you opted into reminders for this event.
    </p>
  </body>
</html>
`))

type reminderTmplData struct {
	Title    string
	Lead     string
	When     string
	Location string
}

// RenderReminder produces the subject and HTML body for one claimed row.
func RenderReminder(c model.ClaimedReminder) (subject, html string, err error) {
	var lead string
	switch c.ReminderType {
	case model.ReminderOneHour:
		lead = "in 1 hour"
	case model.ReminderOneDay:
		lead = "tomorrow"
	default:
		return "", "", fmt.Errorf("unknown reminder type: %q", c.ReminderType)
	}

	subject = fmt.Sprintf("Reminder: %s starts %s", c.EventTitle, lead)

	var buf bytes.Buffer
	err = reminderTmpl.Execute(&buf, reminderTmplData{
		Title:    c.EventTitle,
		Lead:     lead,
		When:     c.StartTime.Format(time.RFC1123),
		Location: c.Location,
	})
	if err != nil {
		return "", "", fmt.Errorf("failed to render reminder email: %w", err)
	}
	return subject, buf.String(), nil
}
