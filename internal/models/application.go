// internal/models/application.go
package models

import "time"

// ApplicationStatus is the lifecycle status of a submission's business record.
type ApplicationStatus string

const (
	ApplicationStatusInitiated              ApplicationStatus = "INITIATED"
	ApplicationStatusVerificationInProgress ApplicationStatus = "VERIFICATION_IN_PROGRESS"
	ApplicationStatusDrafting               ApplicationStatus = "DRAFTING"
	ApplicationStatusReadyForFiling         ApplicationStatus = "READY_FOR_FILING"
	ApplicationStatusCompleted              ApplicationStatus = "COMPLETED"
	ApplicationStatusErrorInAutomation      ApplicationStatus = "ERROR_IN_AUTOMATION"
	ApplicationStatusActionRequired         ApplicationStatus = "ACTION_REQUIRED"
)

// ApplicationRecord is the durable per-submission record the orchestrator reads and mutates.
type ApplicationRecord struct {
	SubmissionID      string                 `json:"submissionId"`
	RegistrationType  string                 `json:"registrationType"`
	Status            ApplicationStatus      `json:"status"`
	UploadedDocuments map[string]string      `json:"uploadedDocuments"`
	GeneratedDrafts   map[string]string      `json:"generatedDrafts"`
	FormData          map[string]interface{} `json:"formData"`
	PackagePath       string                 `json:"packagePath,omitempty"`
	CreatedAt         time.Time              `json:"createdAt"`
	UpdatedAt         time.Time              `json:"updatedAt"`
}

// NewApplicationRecord returns a freshly initiated record with empty maps.
func NewApplicationRecord(submissionID, registrationType string) *ApplicationRecord {
	now := time.Now().UTC()
	return &ApplicationRecord{
		SubmissionID:      submissionID,
		RegistrationType:  registrationType,
		Status:            ApplicationStatusInitiated,
		UploadedDocuments: map[string]string{},
		GeneratedDrafts:   map[string]string{},
		FormData:          map[string]interface{}{},
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// EnsureMaps replaces nil maps with empty ones.
func (r *ApplicationRecord) EnsureMaps() {
	if r.UploadedDocuments == nil {
		r.UploadedDocuments = map[string]string{}
	}
	if r.GeneratedDrafts == nil {
		r.GeneratedDrafts = map[string]string{}
	}
	if r.FormData == nil {
		r.FormData = map[string]interface{}{}
	}
}

// MergeDrafts adds drafts to GeneratedDrafts, overwriting only the keys present in drafts.
func (r *ApplicationRecord) MergeDrafts(drafts map[string]string) {
	r.EnsureMaps()
	for kind, ref := range drafts {
		r.GeneratedDrafts[kind] = ref
	}
}

// Clone returns a deep copy so stores never share maps with callers.
func (r *ApplicationRecord) Clone() *ApplicationRecord {
	if r == nil {
		return nil
	}
	out := *r
	out.UploadedDocuments = make(map[string]string, len(r.UploadedDocuments))
	for k, v := range r.UploadedDocuments {
		out.UploadedDocuments[k] = v
	}
	out.GeneratedDrafts = make(map[string]string, len(r.GeneratedDrafts))
	for k, v := range r.GeneratedDrafts {
		out.GeneratedDrafts[k] = v
	}
	out.FormData = make(map[string]interface{}, len(r.FormData))
	for k, v := range r.FormData {
		out.FormData[k] = v
	}
	return &out
}
