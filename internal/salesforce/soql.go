package salesforce

import (
	"fmt"
	"strings"
)

// escapeString escapes a value for embedding in a single-quoted SOQL string
// literal. Backslashes are doubled before quotes are escaped; reversing the
// order would corrupt values that contain both.
func escapeString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `'`, `\'`)
	return s
}

// leadByEmailQuery selects the most recently created Lead with an exact email
// match, limited to one record.
func leadByEmailQuery(email string) string {
	return fmt.Sprintf(
		"SELECT Id, Name, %s, %s FROM Lead WHERE Email = '%s' ORDER BY CreatedDate DESC LIMIT 1",
		FieldSurveyScheduled, FieldSurveyPaymentComplete, escapeString(email),
	)
}
