package appointments

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for appointment storage
type Repository interface {
	Create(ctx context.Context, req *CreateAppointmentRequest) (*Appointment, error)
	GetByID(ctx context.Context, id string) (*Appointment, error)
	List(ctx context.Context) ([]*Appointment, error)

	// LatestForMedicalID returns the most recently created appointment for
	// the patient identified by medical id.
	LatestForMedicalID(ctx context.Context, medicalID string) (*Appointment, error)

	// ApplyOutcome updates status (and, for reschedules, date/time) from the
	// caller-stated decision. Re-applying the same outcome is harmless.
	ApplyOutcome(ctx context.Context, id string, outcome Outcome) (*Appointment, error)

	Delete(ctx context.Context, id string) error
}

// InMemoryRepository is a Repository backed by a mutex-guarded map.
type InMemoryRepository struct {
	mu           sync.RWMutex
	appointments map[string]*Appointment
}

// NewInMemoryRepository creates a new in-memory repository
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		appointments: make(map[string]*Appointment),
	}
}

func (r *InMemoryRepository) Create(ctx context.Context, req *CreateAppointmentRequest) (*Appointment, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	status := req.Status
	if status == "" {
		status = StatusPending
	}
	now := time.Now().UTC()
	appt := &Appointment{
		ID:        uuid.NewString(),
		PatientID: req.PatientID,
		MedicalID: req.MedicalID,
		Status:    status,
		Date:      req.Date,
		Time:      req.Time,
		Note:      req.Note,
		CreatedAt: now,
		UpdatedAt: now,
	}

	r.mu.Lock()
	clone := *appt
	r.appointments[appt.ID] = &clone
	r.mu.Unlock()

	return appt, nil
}

func (r *InMemoryRepository) GetByID(ctx context.Context, id string) (*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	appt, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	clone := *appt
	return &clone, nil
}

func (r *InMemoryRepository) List(ctx context.Context) ([]*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Appointment, 0, len(r.appointments))
	for _, appt := range r.appointments {
		clone := *appt
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *InMemoryRepository) LatestForMedicalID(ctx context.Context, medicalID string) (*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var latest *Appointment
	for _, appt := range r.appointments {
		if appt.MedicalID != medicalID {
			continue
		}
		if latest == nil || appt.CreatedAt.After(latest.CreatedAt) {
			latest = appt
		}
	}
	if latest == nil {
		return nil, ErrAppointmentNotFound
	}
	clone := *latest
	return &clone, nil
}

func (r *InMemoryRepository) ApplyOutcome(ctx context.Context, id string, outcome Outcome) (*Appointment, error) {
	if !ValidStatus(outcome.Status) {
		return nil, ErrInvalidStatus
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	appt, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	appt.Status = outcome.Status
	if outcome.Status == StatusRescheduled {
		if outcome.Date != "" {
			appt.Date = outcome.Date
		}
		if outcome.Time != "" {
			appt.Time = outcome.Time
		}
	}
	if outcome.Note != "" {
		appt.Note = outcome.Note
	}
	appt.UpdatedAt = time.Now().UTC()
	clone := *appt
	return &clone, nil
}

func (r *InMemoryRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.appointments[id]; !ok {
		return ErrAppointmentNotFound
	}
	delete(r.appointments, id)
	return nil
}
