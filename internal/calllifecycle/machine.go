package calllifecycle

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/medintake/intake-ai-platform/internal/appointments"
	"github.com/medintake/intake-ai-platform/internal/calls"
	"github.com/medintake/intake-ai-platform/internal/insights"
	"github.com/medintake/intake-ai-platform/internal/patients"
	"github.com/medintake/intake-ai-platform/pkg/logging"
)

// Outcome tags what a transition did.
type Outcome int

const (
	// Applied means the transition ran and mutated the call.
	Applied Outcome = iota
	// AlreadyApplied means an identical event was processed before; the
	// call is unchanged and the original response can be re-sent.
	AlreadyApplied
	// InvalidTransition means the call is in a state that forbids the event.
	InvalidTransition
	// NotFound means no call exists for the correlation key.
	NotFound
)

// TransitionResult is the tagged result of one transition attempt.
type TransitionResult struct {
	Outcome  Outcome
	Call     *calls.Call
	Patient  *patients.Patient
	Insights *insights.Insights
}

// Machine drives a call through initiated → in-progress → terminal using
// guarded, idempotent transitions. Every mutation goes through the call
// repository's atomic operations; the machine itself holds no state.
type Machine struct {
	calls        calls.Repository
	patients     patients.Repository
	appointments appointments.Repository
	logger       *logging.Logger
}

// NewMachine wires the state machine to its stores.
func NewMachine(callRepo calls.Repository, patientRepo patients.Repository, apptRepo appointments.Repository, logger *logging.Logger) *Machine {
	if logger == nil {
		logger = logging.Default()
	}
	return &Machine{
		calls:        callRepo,
		patients:     patientRepo,
		appointments: apptRepo,
		logger:       logger.WithComponent("calllifecycle"),
	}
}

// ApplyPreCall creates the call in initiated state and attempts patient
// resolution by phone. A duplicate pre-call for the same call id is
// AlreadyApplied, never an error.
func (m *Machine) ApplyPreCall(ctx context.Context, p PreCallPayload, raw json.RawMessage) (TransitionResult, error) {
	patient := m.resolvePatientByPhone(ctx, p.PhoneNumber, p.BotID)

	now := time.Now().UTC()
	call := &calls.Call{
		CallID:        p.CallID,
		ProviderBotID: p.BotID,
		PhoneNumber:   p.PhoneNumber,
		Status:        calls.StatusInitiated,
		WebhookData:   calls.WebhookData{PreCall: raw},
		Metadata:      calls.Metadata{StartTime: &now},
	}
	if patient != nil {
		call.PatientID = patient.ID
		call.ExtractedData = calls.ExtractedData{
			MedicalID:   patient.MedicalID,
			PatientName: patient.FullName(),
		}
	}

	if err := m.calls.Create(ctx, call); err != nil {
		if errors.Is(err, calls.ErrDuplicateCall) {
			existing, getErr := m.calls.GetByCallID(ctx, p.CallID)
			if getErr != nil {
				return TransitionResult{}, getErr
			}
			return TransitionResult{Outcome: AlreadyApplied, Call: existing, Patient: patient}, nil
		}
		return TransitionResult{}, fmt.Errorf("create call: %w", err)
	}

	return TransitionResult{Outcome: Applied, Call: call, Patient: patient}, nil
}

// resolvePatientByPhone matches the caller's number directly, then falls back
// to the patient resolved on a previous call from the same phone to the same
// bot.
func (m *Machine) resolvePatientByPhone(ctx context.Context, phone, botID string) *patients.Patient {
	patient, err := m.patients.GetByPhone(ctx, phone)
	if err == nil {
		return patient
	}
	if !errors.Is(err, patients.ErrPatientNotFound) {
		m.logger.Error("patient lookup by phone failed", "phone", phone, "error", err)
		return nil
	}

	prior, err := m.calls.FindByPhoneAndBot(ctx, phone, botID)
	if err != nil {
		if !errors.Is(err, calls.ErrCallNotFound) {
			m.logger.Error("prior call lookup failed", "phone", phone, "error", err)
		}
		return nil
	}
	if prior.ExtractedData.MedicalID == "" {
		return nil
	}
	patient, err = m.patients.GetByMedicalID(ctx, prior.ExtractedData.MedicalID)
	if err != nil {
		if !errors.Is(err, patients.ErrPatientNotFound) {
			m.logger.Error("patient lookup by prior call failed",
				"medical_id", prior.ExtractedData.MedicalID, "error", err)
		}
		return nil
	}
	return patient
}

// ApplyFunctionCall moves the call to in-progress and, when a medical id is
// supplied, resolves the patient by exact match. The patient result rides on
// TransitionResult.Patient: nil with Outcome Applied means the lookup missed
// but the conversation may continue.
func (m *Machine) ApplyFunctionCall(ctx context.Context, p FunctionCallPayload, raw json.RawMessage) (TransitionResult, error) {
	if err := m.calls.MarkInProgress(ctx, p.CallID, raw); err != nil {
		switch {
		case errors.Is(err, calls.ErrCallNotFound):
			return TransitionResult{Outcome: NotFound}, nil
		case errors.Is(err, calls.ErrInvalidTransition):
			return TransitionResult{Outcome: InvalidTransition}, nil
		}
		return TransitionResult{}, fmt.Errorf("mark in progress: %w", err)
	}

	medicalID := p.MedicalID()
	if medicalID == "" {
		return TransitionResult{Outcome: Applied}, nil
	}

	patient, err := m.patients.GetByMedicalID(ctx, medicalID)
	if err != nil {
		if errors.Is(err, patients.ErrPatientNotFound) {
			return TransitionResult{Outcome: Applied}, nil
		}
		return TransitionResult{}, fmt.Errorf("patient lookup: %w", err)
	}

	// Repeat lookups overwrite the previous extraction rather than merging.
	if err := m.calls.AttachPatient(ctx, p.CallID, patient.ID, calls.ExtractedData{
		MedicalID:   patient.MedicalID,
		PatientName: patient.FullName(),
	}); err != nil {
		m.logger.Error("failed to attach patient to call",
			"call_id", p.CallID, "medical_id", medicalID, "error", err)
	}

	return TransitionResult{Outcome: Applied, Patient: patient}, nil
}

// ApplyPostCall applies the terminal result exactly once. The digest over the
// payload's identifying content makes provider redeliveries of the same
// post-call event AlreadyApplied no-ops.
func (m *Machine) ApplyPostCall(ctx context.Context, p PostCallPayload, raw json.RawMessage) (TransitionResult, error) {
	call, err := m.calls.GetByCallID(ctx, p.CallID)
	if err != nil {
		if errors.Is(err, calls.ErrCallNotFound) {
			return TransitionResult{Outcome: NotFound}, nil
		}
		return TransitionResult{}, fmt.Errorf("fetch call: %w", err)
	}

	digest := PostCallDigest(p)
	hasPatient := call.PatientID != ""
	ins := insights.Classify(p.Transcript, p.Summary, hasPatient, p.Duration)

	if call.PostCallDigest == digest {
		return TransitionResult{Outcome: AlreadyApplied, Call: call, Insights: &ins}, nil
	}

	extracted := call.ExtractedData
	extracted.ReasonForCall = ins.ReasonForCall
	extracted.UrgencyLevel = string(ins.UrgencyLevel)
	extracted.FollowUpRequired = ins.FollowUpRequired

	endTime := p.ReceivedAt()
	metadata := call.Metadata
	metadata.EndTime = &endTime
	metadata.CallQuality = ins.CallQuality

	updated, err := m.calls.CompletePostCall(ctx, p.CallID, calls.PostCallUpdate{
		Status:        terminalStatus(p.Status),
		Duration:      p.Duration,
		Transcript:    p.Transcript,
		Summary:       p.Summary,
		ExtractedData: extracted,
		Metadata:      metadata,
		Snapshot:      raw,
		Digest:        digest,
	})
	if err != nil {
		switch {
		case errors.Is(err, calls.ErrAlreadyCompleted):
			// Lost the race against a concurrent retry; the result stands.
			return TransitionResult{Outcome: AlreadyApplied, Call: call, Insights: &ins}, nil
		case errors.Is(err, calls.ErrCallNotFound):
			return TransitionResult{Outcome: NotFound}, nil
		}
		return TransitionResult{}, fmt.Errorf("complete post-call: %w", err)
	}

	m.applyAppointmentOutcome(ctx, updated, p)
	if ins.ShouldUpdatePatient {
		m.updatePatientRecord(ctx, updated, p)
	}

	return TransitionResult{Outcome: Applied, Call: updated, Insights: &ins}, nil
}

// applyAppointmentOutcome propagates the caller-stated decision onto the
// patient's latest appointment. Failures are logged, never surfaced: the
// webhook must still acknowledge receipt.
func (m *Machine) applyAppointmentOutcome(ctx context.Context, call *calls.Call, p PostCallPayload) {
	medicalID := call.ExtractedData.MedicalID
	if medicalID == "" {
		return
	}
	status := appointments.Status(p.Status)
	switch status {
	case appointments.StatusConfirmed, appointments.StatusCancelled, appointments.StatusRescheduled:
	default:
		return
	}

	appt, err := m.appointments.LatestForMedicalID(ctx, medicalID)
	if err != nil {
		if !errors.Is(err, appointments.ErrAppointmentNotFound) {
			m.logger.Error("appointment lookup failed", "medical_id", medicalID, "error", err)
		}
		return
	}
	if _, err := m.appointments.ApplyOutcome(ctx, appt.ID, appointments.Outcome{
		Status: status,
		Date:   p.Date,
		Time:   p.Time,
		Note:   p.Note,
	}); err != nil {
		m.logger.Error("failed to apply appointment outcome",
			"appointment_id", appt.ID, "status", p.Status, "error", err)
		return
	}
	m.logger.Info("appointment outcome applied",
		"appointment_id", appt.ID, "medical_id", medicalID, "status", p.Status)
}

// updatePatientRecord appends a dated call note and unions any newly
// disclosed allergy into the history. Both operations deduplicate in the
// store, so a replay cannot double-write.
func (m *Machine) updatePatientRecord(ctx context.Context, call *calls.Call, p PostCallPayload) {
	medicalID := call.ExtractedData.MedicalID
	if medicalID == "" {
		return
	}
	at := p.ReceivedAt()

	note := fmt.Sprintf("Call on %s: %s", at.Format("2006-01-02"), p.Summary)
	if err := m.patients.AppendNote(ctx, medicalID, note); err != nil {
		m.logger.Error("failed to append call note", "medical_id", medicalID, "error", err)
	}

	if allergen, ok := insights.ExtractAllergy(p.Transcript); ok {
		if err := m.patients.AddAllergy(ctx, medicalID, allergen); err != nil {
			m.logger.Error("failed to record allergy",
				"medical_id", medicalID, "allergen", allergen, "error", err)
		}
	}

	if err := m.patients.TouchLastVisit(ctx, medicalID, at); err != nil {
		m.logger.Error("failed to stamp last visit", "medical_id", medicalID, "error", err)
	}
}

func terminalStatus(providerStatus string) calls.Status {
	switch providerStatus {
	case "failed", "error", "no-answer":
		return calls.StatusFailed
	case "cancelled":
		return calls.StatusCancelled
	}
	return calls.StatusCompleted
}

// PostCallDigest fingerprints the fields that define a post-call result, so
// a redelivered payload can be recognized without storing the whole body.
func PostCallDigest(p PostCallPayload) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00%s\x00%s\x00%d", p.CallID, p.Transcript, p.Summary, p.Status, p.Duration)
	return hex.EncodeToString(h.Sum(nil))
}
