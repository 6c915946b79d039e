package calls

import (
	"encoding/json"
	"strings"
	"time"
)

// Status is the call lifecycle state.
type Status string

const (
	StatusInitiated  Status = "initiated"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// ValidStatus reports whether s is one of the accepted values.
func ValidStatus(s Status) bool {
	switch s {
	case StatusInitiated, StatusInProgress, StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether s is an end state.
func Terminal(s Status) bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// ExtractedData holds the facts the assistant surfaced during the call.
type ExtractedData struct {
	MedicalID        string `json:"medicalId,omitempty" dynamodbav:"medicalId,omitempty"`
	PatientName      string `json:"patientName,omitempty" dynamodbav:"patientName,omitempty"`
	ReasonForCall    string `json:"reasonForCall,omitempty" dynamodbav:"reasonForCall,omitempty"`
	UrgencyLevel     string `json:"urgencyLevel,omitempty" dynamodbav:"urgencyLevel,omitempty"`
	FollowUpRequired bool   `json:"followUpRequired" dynamodbav:"followUpRequired"`
}

// WebhookData keeps the raw provider payloads for audit.
type WebhookData struct {
	PreCall      json.RawMessage `json:"preCall,omitempty" dynamodbav:"preCall,omitempty"`
	FunctionCall json.RawMessage `json:"functionCall,omitempty" dynamodbav:"functionCall,omitempty"`
	PostCall     json.RawMessage `json:"postCall,omitempty" dynamodbav:"postCall,omitempty"`
}

// Metadata carries timing and quality facts about the call.
type Metadata struct {
	StartTime        *time.Time `json:"startTime,omitempty" dynamodbav:"startTime,omitempty"`
	EndTime          *time.Time `json:"endTime,omitempty" dynamodbav:"endTime,omitempty"`
	CallQuality      string     `json:"callQuality,omitempty" dynamodbav:"callQuality,omitempty"`
	UserSatisfaction string     `json:"userSatisfaction,omitempty" dynamodbav:"userSatisfaction,omitempty"`
}

// Call is one phone conversation handled by a voice bot. CallID is the
// provider's correlation key and is unique across all webhooks for the
// conversation.
type Call struct {
	CallID        string        `json:"callId" dynamodbav:"callId"`
	ProviderBotID string        `json:"providerBotId" dynamodbav:"providerBotId"`
	PatientID     string        `json:"patientId,omitempty" dynamodbav:"patientId,omitempty"`
	PhoneNumber   string        `json:"phoneNumber" dynamodbav:"phoneNumber"`
	Status        Status        `json:"status" dynamodbav:"status"`
	Duration      int           `json:"duration" dynamodbav:"duration"`
	Transcript    string        `json:"transcript,omitempty" dynamodbav:"transcript,omitempty"`
	Summary       string        `json:"summary,omitempty" dynamodbav:"summary,omitempty"`
	ExtractedData ExtractedData `json:"extractedData" dynamodbav:"extractedData"`
	WebhookData   WebhookData   `json:"webhookData" dynamodbav:"webhookData"`
	Metadata      Metadata      `json:"metadata" dynamodbav:"metadata"`

	// PostCallDigest marks which post-call payload has been applied, so a
	// provider retry of the same payload is a no-op.
	PostCallDigest string `json:"-" dynamodbav:"postCallDigest,omitempty"`

	CreatedAt time.Time `json:"createdAt" dynamodbav:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" dynamodbav:"updatedAt"`
}

// Validate checks the minimum fields needed to record a call.
func (c *Call) Validate() error {
	if strings.TrimSpace(c.CallID) == "" {
		return ErrMissingCallID
	}
	if c.Status != "" && !ValidStatus(c.Status) {
		return ErrInvalidStatus
	}
	return nil
}

// Filter narrows a call listing.
type Filter struct {
	BotID  string
	Status Status
}

// PostCallUpdate is everything CompletePostCall writes in one conditional
// update.
type PostCallUpdate struct {
	Status        Status
	Duration      int
	Transcript    string
	Summary       string
	ExtractedData ExtractedData
	Metadata      Metadata
	Snapshot      json.RawMessage
	Digest        string
}
