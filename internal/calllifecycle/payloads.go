package calllifecycle

import (
	"errors"
	"strings"
	"time"

	"github.com/medintake/intake-ai-platform/internal/insights"
	"github.com/medintake/intake-ai-platform/internal/patients"
)

// FunctionGetPatientInfo is the only function the live conversation may
// invoke; anything else is a provider misconfiguration.
const FunctionGetPatientInfo = "get_patient_info"

var (
	ErrMissingCallID    = errors.New("call_id is required")
	ErrMissingBotID     = errors.New("bot_id is required")
	ErrMissingPhone     = errors.New("phone_number is required")
	ErrMissingFunction  = errors.New("function_name is required")
	ErrMissingMedicalID = errors.New("medical id parameter is required")
	ErrUnknownFunction  = errors.New("unknown function")
)

// PreCallPayload announces a call the provider is about to connect.
type PreCallPayload struct {
	CallID      string `json:"call_id"`
	BotID       string `json:"bot_id"`
	PhoneNumber string `json:"phone_number"`
	Timestamp   string `json:"timestamp"`
}

func (p *PreCallPayload) Validate() error {
	if strings.TrimSpace(p.CallID) == "" {
		return ErrMissingCallID
	}
	if strings.TrimSpace(p.BotID) == "" {
		return ErrMissingBotID
	}
	if strings.TrimSpace(p.PhoneNumber) == "" {
		return ErrMissingPhone
	}
	return nil
}

// FunctionCallPayload is a mid-conversation function invocation.
type FunctionCallPayload struct {
	CallID       string                 `json:"call_id"`
	BotID        string                 `json:"bot_id"`
	FunctionName string                 `json:"function_name"`
	Parameters   map[string]interface{} `json:"parameters"`
	Timestamp    string                 `json:"timestamp"`
}

func (p *FunctionCallPayload) Validate() error {
	if strings.TrimSpace(p.CallID) == "" {
		return ErrMissingCallID
	}
	if strings.TrimSpace(p.FunctionName) == "" {
		return ErrMissingFunction
	}
	if p.FunctionName != FunctionGetPatientInfo {
		return ErrUnknownFunction
	}
	return nil
}

// MedicalID extracts the canonical medical-id parameter.
func (p *FunctionCallPayload) MedicalID() string {
	if p.Parameters == nil {
		return ""
	}
	if v, ok := p.Parameters["medical_id"].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

// PostCallPayload carries the final result of a finished call.
type PostCallPayload struct {
	CallID      string `json:"call_id"`
	BotID       string `json:"bot_id"`
	PhoneNumber string `json:"phone_number"`
	Duration    int    `json:"duration"`
	Transcript  string `json:"transcript"`
	Summary     string `json:"summary"`
	Status      string `json:"status"`
	Timestamp   string `json:"timestamp"`

	// Caller-stated appointment outcome, optional.
	Date string `json:"date,omitempty"`
	Time string `json:"time,omitempty"`
	Note string `json:"note,omitempty"`
}

func (p *PostCallPayload) Validate() error {
	if strings.TrimSpace(p.CallID) == "" {
		return ErrMissingCallID
	}
	return nil
}

// ReceivedAt parses the provider timestamp, falling back to now so a missing
// or malformed timestamp never blocks processing.
func (p *PostCallPayload) ReceivedAt() time.Time {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if ts, err := time.Parse(layout, p.Timestamp); err == nil {
			return ts
		}
	}
	return time.Now().UTC()
}

// PatientSnapshot is the clinical summary spoken back to the caller.
type PatientSnapshot struct {
	MedicalID   string   `json:"medical_id"`
	Name        string   `json:"name"`
	LastVisit   string   `json:"last_visit,omitempty"`
	Allergies   []string `json:"allergies,omitempty"`
	Medications []string `json:"medications,omitempty"`
	Conditions  []string `json:"conditions,omitempty"`
}

func snapshotOf(p *patients.Patient) *PatientSnapshot {
	if p == nil {
		return nil
	}
	snap := &PatientSnapshot{
		MedicalID:   p.MedicalID,
		Name:        p.FullName(),
		Allergies:   p.MedicalHistory.Allergies,
		Medications: p.MedicalHistory.Medications,
		Conditions:  p.MedicalHistory.Conditions,
	}
	if p.LastVisit != nil {
		snap.LastVisit = p.LastVisit.Format("2006-01-02")
	}
	return snap
}

// PreCallResponse seeds the live conversation's opening variables.
type PreCallResponse struct {
	CallID       string           `json:"call_id"`
	PatientFound bool             `json:"patient_found"`
	PatientData  *PatientSnapshot `json:"patient_data,omitempty"`
	Message      string           `json:"message"`
}

// LookupResponse answers a get_patient_info invocation.
type LookupResponse struct {
	PatientFound bool             `json:"patient_found"`
	PatientData  *PatientSnapshot `json:"patient_data,omitempty"`
	Message      string           `json:"message"`
}

// PostCallResponse acknowledges terminal processing.
type PostCallResponse struct {
	Success  bool              `json:"success"`
	CallID   string            `json:"call_id"`
	Insights insights.Insights `json:"insights"`
	Message  string            `json:"message"`
}
