package patients

import (
	"strings"
	"time"
)

// Gender is the patient's self-reported gender.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

// ValidGender reports whether g is one of the accepted values.
func ValidGender(g Gender) bool {
	switch g {
	case GenderMale, GenderFemale, GenderOther:
		return true
	}
	return false
}

// Address is the patient's mailing address.
type Address struct {
	Street  string `json:"street" dynamodbav:"street"`
	City    string `json:"city" dynamodbav:"city"`
	State   string `json:"state" dynamodbav:"state"`
	ZipCode string `json:"zipCode" dynamodbav:"zipCode"`
}

// EmergencyContact is who to reach when the patient cannot be.
type EmergencyContact struct {
	Name         string `json:"name" dynamodbav:"name"`
	Relationship string `json:"relationship" dynamodbav:"relationship"`
	Phone        string `json:"phone" dynamodbav:"phone"`
}

// MedicalHistory holds the clinical lists surfaced to the voice agent.
// Entries are unique; repository writes use set-union semantics.
type MedicalHistory struct {
	Allergies   []string `json:"allergies" dynamodbav:"allergies,stringset,omitempty"`
	Medications []string `json:"medications" dynamodbav:"medications,stringset,omitempty"`
	Conditions  []string `json:"conditions" dynamodbav:"conditions,stringset,omitempty"`
	Surgeries   []string `json:"surgeries" dynamodbav:"surgeries,stringset,omitempty"`
}

// normalizeAllergy lowercases entries before storage so every backend
// dedupes on the same key; DynamoDB string sets compare case-sensitively.
func normalizeAllergy(allergy string) string {
	return strings.ToLower(strings.TrimSpace(allergy))
}

// Insurance identifies the patient's coverage.
type Insurance struct {
	Provider     string `json:"provider" dynamodbav:"provider"`
	PolicyNumber string `json:"policyNumber" dynamodbav:"policyNumber"`
	GroupNumber  string `json:"groupNumber" dynamodbav:"groupNumber"`
}

// Patient is a clinic patient record. MedicalID is the human-facing
// identifier handed out at intake; it is unique and never reassigned.
type Patient struct {
	// ID is the storage identifier; MedicalID is the clinic-issued one.
	ID               string           `json:"id" dynamodbav:"id"`
	MedicalID        string           `json:"medicalId" dynamodbav:"medicalId"`
	FirstName        string           `json:"firstName" dynamodbav:"firstName"`
	LastName         string           `json:"lastName" dynamodbav:"lastName"`
	Email            string           `json:"email" dynamodbav:"email"`
	Phone            string           `json:"phone" dynamodbav:"phone"`
	DateOfBirth      time.Time        `json:"dateOfBirth" dynamodbav:"dateOfBirth"`
	Gender           Gender           `json:"gender" dynamodbav:"gender"`
	Address          Address          `json:"address" dynamodbav:"address"`
	EmergencyContact EmergencyContact `json:"emergencyContact" dynamodbav:"emergencyContact"`
	MedicalHistory   MedicalHistory   `json:"medicalHistory" dynamodbav:"medicalHistory"`
	Insurance        Insurance        `json:"insurance" dynamodbav:"insurance"`
	LastVisit        *time.Time       `json:"lastVisit,omitempty" dynamodbav:"lastVisit,omitempty"`
	Notes            []string         `json:"notes" dynamodbav:"notes,stringset,omitempty"`
	AvailableTimes   []string         `json:"availableTimes" dynamodbav:"availableTimes,omitempty"`
	CreatedAt        time.Time        `json:"createdAt" dynamodbav:"createdAt"`
	UpdatedAt        time.Time        `json:"updatedAt" dynamodbav:"updatedAt"`
}

// FullName joins first and last name for spoken responses.
func (p *Patient) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// CreatePatientRequest is the intake payload from the dashboard.
type CreatePatientRequest struct {
	FirstName   string  `json:"firstName"`
	LastName    string  `json:"lastName"`
	Email       string  `json:"email"`
	Phone       string  `json:"phone"`
	DateOfBirth string  `json:"dateOfBirth"`
	Gender      Gender  `json:"gender"`
	Address     Address `json:"address"`
}

// Validate checks the intake payload.
func (r *CreatePatientRequest) Validate() error {
	if strings.TrimSpace(r.FirstName) == "" || strings.TrimSpace(r.LastName) == "" {
		return ErrInvalidName
	}
	if strings.TrimSpace(r.Phone) == "" {
		return ErrMissingPhone
	}
	if r.Gender != "" && !ValidGender(r.Gender) {
		return ErrInvalidGender
	}
	return nil
}

// UpdatePatientRequest carries staff edits; nil fields are left untouched.
type UpdatePatientRequest struct {
	Email          *string         `json:"email,omitempty"`
	Phone          *string         `json:"phone,omitempty"`
	Address        *Address        `json:"address,omitempty"`
	Insurance      *Insurance      `json:"insurance,omitempty"`
	MedicalHistory *MedicalHistory `json:"medicalHistory,omitempty"`
}
