// internal/notify/templates.go
package notify

import (
	"fmt"
	"strings"

	"filing-automation/internal/models"
)

type template struct {
	subject string
	body    string
}

var templates = map[string]template{
	models.EventRecordCreated: {
		subject: "Application {{submissionId}} received",
		body:    "We received your {{registrationType}} application {{submissionId}}. Automation job {{jobId}} has started.",
	},
	models.EventRecordStatusChanged: {
		subject: "Application {{submissionId}} is now {{status}}",
		body:    "Your {{registrationType}} application {{submissionId}} moved to {{status}}. {{message}}",
	},
}

func eventData(e models.NotificationEvent) map[string]interface{} {
	return map[string]interface{}{
		"submissionId":     e.SubmissionID,
		"jobId":            e.JobID,
		"registrationType": e.RegistrationType,
		"status":           string(e.Status),
		"message":          e.Message,
	}
}

// render returns the subject and body for an event. Unknown event types fall
// back to a generic message.
func render(e models.NotificationEvent) (string, string) {
	tmpl, ok := templates[e.Type]
	if !ok {
		tmpl = template{subject: "Application {{submissionId}} update", body: "{{message}}"}
	}
	data := eventData(e)
	return strings.TrimSpace(renderTemplate(tmpl.subject, data)), strings.TrimSpace(renderTemplate(tmpl.body, data))
}

// renderTemplate substitutes {{key}} placeholders and drops unknown ones.
func renderTemplate(tmpl string, data map[string]interface{}) string {
	result := tmpl
	for k, v := range data {
		value := ""
		if s, ok := v.(string); ok {
			value = s
		} else if v != nil {
			value = fmt.Sprintf("%v", v)
		}
		result = strings.ReplaceAll(result, "{{"+k+"}}", value)
	}

	for {
		start := strings.Index(result, "{{")
		if start == -1 {
			break
		}
		end := strings.Index(result[start:], "}}")
		if end == -1 {
			break
		}
		result = result[:start] + result[start+end+2:]
	}
	return result
}
