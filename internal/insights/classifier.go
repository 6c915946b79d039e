// Package insights derives structured intake facts from a finished call's
// transcript and summary. It is deterministic keyword matching, not NLP: the
// same inputs always produce the same Insights, and the package never touches
// storage.
package insights

import (
	"regexp"
	"strings"
)

// Urgency buckets a call by how soon staff should react.
type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)

// Reasons a call is classified under, most specific first.
const (
	ReasonAppointment  = "Appointment scheduling"
	ReasonPrescription = "Prescription/Medication"
	ReasonTestResults  = "Test results"
	ReasonUrgentCare   = "Emergency/Urgent care"
	ReasonInsurance    = "Insurance/Billing"
	ReasonGeneral      = "General inquiry"
)

// Call quality labels derived from duration.
const (
	QualityGood  = "good"
	QualityShort = "short"
)

// medicalKeywords is the closed vocabulary surfaced to the dashboard.
var medicalKeywords = []string{
	"pain", "medication", "prescription", "allergy", "symptoms",
	"appointment", "emergency", "urgent", "test", "results",
	"insurance", "billing", "doctor", "nurse", "surgery",
}

var allergyPattern = regexp.MustCompile(`(?i)allergic to (\w+)`)

// Insights is the classification result for one completed call.
type Insights struct {
	ReasonForCall       string   `json:"reasonForCall"`
	UrgencyLevel        Urgency  `json:"urgencyLevel"`
	FollowUpRequired    bool     `json:"followUpRequired"`
	ShouldUpdatePatient bool     `json:"shouldUpdatePatient"`
	CallQuality         string   `json:"callQuality"`
	ExtractedKeywords   []string `json:"extractedKeywords"`
}

// Classify derives insights from the call content. hasPatient reports whether
// the call was tied to a known patient record; duration is in seconds.
func Classify(transcript, summary string, hasPatient bool, duration int) Insights {
	t := strings.ToLower(transcript)
	s := strings.ToLower(summary)

	return Insights{
		ReasonForCall:       classifyReason(t, s),
		UrgencyLevel:        classifyUrgency(t),
		FollowUpRequired:    followUpRequired(t),
		ShouldUpdatePatient: shouldUpdatePatient(t, hasPatient),
		CallQuality:         classifyQuality(duration),
		ExtractedKeywords:   extractKeywords(t),
	}
}

// classifyReason picks the first matching category. Appointment intent also
// checks the summary because callers often state scheduling requests that the
// assistant paraphrases rather than the caller.
func classifyReason(transcript, summary string) string {
	switch {
	case strings.Contains(transcript, "appointment") || strings.Contains(summary, "appointment"):
		return ReasonAppointment
	case strings.Contains(transcript, "prescription") || strings.Contains(transcript, "medication"):
		return ReasonPrescription
	case strings.Contains(transcript, "test result") || strings.Contains(transcript, "lab"):
		return ReasonTestResults
	case strings.Contains(transcript, "emergency") || strings.Contains(transcript, "urgent"):
		return ReasonUrgentCare
	case strings.Contains(transcript, "insurance") || strings.Contains(transcript, "billing"):
		return ReasonInsurance
	}
	return ReasonGeneral
}

func classifyUrgency(transcript string) Urgency {
	for _, kw := range []string{"emergency", "urgent", "pain", "bleeding"} {
		if strings.Contains(transcript, kw) {
			return UrgencyHigh
		}
	}
	for _, kw := range []string{"soon", "today", "asap"} {
		if strings.Contains(transcript, kw) {
			return UrgencyMedium
		}
	}
	return UrgencyLow
}

func followUpRequired(transcript string) bool {
	if classifyUrgency(transcript) == UrgencyHigh {
		return true
	}
	for _, kw := range []string{"follow up", "callback", "appointment"} {
		if strings.Contains(transcript, kw) {
			return true
		}
	}
	return false
}

func shouldUpdatePatient(transcript string, hasPatient bool) bool {
	if !hasPatient {
		return false
	}
	for _, kw := range []string{"new medication", "allergy", "address change", "phone change"} {
		if strings.Contains(transcript, kw) {
			return true
		}
	}
	return false
}

func classifyQuality(duration int) string {
	if duration > 60 {
		return QualityGood
	}
	return QualityShort
}

func extractKeywords(transcript string) []string {
	found := make([]string, 0, 4)
	for _, kw := range medicalKeywords {
		if strings.Contains(transcript, kw) {
			found = append(found, kw)
		}
	}
	return found
}

// ExtractAllergy pulls the allergen from a "new allergy" mention, e.g.
// "I have a new allergy, I'm allergic to penicillin" yields "penicillin".
// The second return is false when the transcript carries no such mention.
func ExtractAllergy(transcript string) (string, bool) {
	if !strings.Contains(strings.ToLower(transcript), "new allergy") {
		return "", false
	}
	match := allergyPattern.FindStringSubmatch(transcript)
	if match == nil {
		return "", false
	}
	return match[1], true
}
