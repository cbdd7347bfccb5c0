package salesforce

import "fmt"

// The two Lead fields this engine owns. Everything else on the record is
// off-limits: updates are field overwrites, never read-modify-write.
const (
	FieldSurveyScheduled       = "Survey_scheduled__c"
	FieldSurveyPaymentComplete = "Survey_payment_complete__c"
)

// Lead is the slice of a CRM Lead record this engine reads and writes.
type Lead struct {
	ID                    string
	Name                  string
	SurveyScheduled       string
	SurveyPaymentComplete bool
}

type queryResponse struct {
	TotalSize int          `json:"totalSize"`
	Records   []leadRecord `json:"records"`
}

type leadRecord struct {
	ID                    string `json:"Id"`
	Name                  string `json:"Name"`
	SurveyScheduled       string `json:"Survey_scheduled__c"`
	SurveyPaymentComplete bool   `json:"Survey_payment_complete__c"`
}

type authResponse struct {
	AccessToken string `json:"access_token"`
	InstanceURL string `json:"instance_url"`
}

// APIError is a non-success response from the CRM.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("salesforce: status %d: %s", e.Status, e.Body)
}
