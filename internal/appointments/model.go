package appointments

import (
	"strings"
	"time"
)

// Status is the appointment lifecycle state.
type Status string

const (
	StatusPending     Status = "pending"
	StatusConfirmed   Status = "confirmed"
	StatusInProgress  Status = "in-progress"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
	StatusRescheduled Status = "rescheduled"
	StatusCancelled   Status = "cancelled"
	StatusInitiated   Status = "initiated"
)

// ValidStatus reports whether s is one of the accepted values.
func ValidStatus(s Status) bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusInProgress, StatusCompleted,
		StatusFailed, StatusRescheduled, StatusCancelled, StatusInitiated:
		return true
	}
	return false
}

// Appointment is a scheduled patient encounter. Each appointment belongs to
// exactly one patient; the medical id is denormalized so post-call webhook
// processing can find the patient's appointment without a join.
type Appointment struct {
	ID        string    `json:"id" dynamodbav:"id"`
	PatientID string    `json:"patientId" dynamodbav:"patientId"`
	MedicalID string    `json:"medicalId" dynamodbav:"medicalId"`
	Status    Status    `json:"status" dynamodbav:"status"`
	Date      string    `json:"date" dynamodbav:"date"`
	Time      string    `json:"time" dynamodbav:"time"`
	Note      string    `json:"note,omitempty" dynamodbav:"note,omitempty"`
	CreatedAt time.Time `json:"createdAt" dynamodbav:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" dynamodbav:"updatedAt"`
}

// CreateAppointmentRequest is the booking payload.
type CreateAppointmentRequest struct {
	PatientID string `json:"patientId"`
	MedicalID string `json:"medicalId"`
	Status    Status `json:"status,omitempty"`
	Date      string `json:"date"`
	Time      string `json:"time"`
	Note      string `json:"note,omitempty"`
}

// Validate checks the booking payload.
func (r *CreateAppointmentRequest) Validate() error {
	if strings.TrimSpace(r.PatientID) == "" {
		return ErrMissingPatient
	}
	if strings.TrimSpace(r.Date) == "" || strings.TrimSpace(r.Time) == "" {
		return ErrMissingSchedule
	}
	if r.Status != "" && !ValidStatus(r.Status) {
		return ErrInvalidStatus
	}
	return nil
}

// Outcome captures the caller-stated decision applied after a call ends.
// Date/Time are only honored for rescheduled outcomes.
type Outcome struct {
	Status Status
	Date   string
	Time   string
	Note   string
}
