package patients

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// Repository defines the interface for patient storage
type Repository interface {
	Create(ctx context.Context, patient *Patient) error
	GetByMedicalID(ctx context.Context, medicalID string) (*Patient, error)
	GetByPhone(ctx context.Context, phone string) (*Patient, error)
	List(ctx context.Context) ([]*Patient, error)
	Update(ctx context.Context, medicalID string, req *UpdatePatientRequest) (*Patient, error)
	Delete(ctx context.Context, medicalID string) error

	// AppendNote records a call note. Appending an identical note twice is a
	// no-op so retried post-call webhooks cannot duplicate history.
	AppendNote(ctx context.Context, medicalID, note string) error

	// AddAllergy unions a newly disclosed allergy into the history.
	AddAllergy(ctx context.Context, medicalID, allergy string) error

	// TouchLastVisit stamps the last contact time.
	TouchLastVisit(ctx context.Context, medicalID string, at time.Time) error
}

// InMemoryRepository is a Repository backed by a mutex-guarded map, used in
// development mode and tests.
type InMemoryRepository struct {
	mu       sync.RWMutex
	patients map[string]*Patient
}

// NewInMemoryRepository creates a new in-memory repository
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		patients: make(map[string]*Patient),
	}
}

func (r *InMemoryRepository) Create(ctx context.Context, patient *Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.patients[patient.MedicalID]; ok {
		return ErrDuplicateMedicalID
	}
	now := time.Now().UTC()
	if patient.CreatedAt.IsZero() {
		patient.CreatedAt = now
	}
	patient.UpdatedAt = now
	clone := *patient
	r.patients[patient.MedicalID] = &clone
	return nil
}

func (r *InMemoryRepository) GetByMedicalID(ctx context.Context, medicalID string) (*Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	patient, ok := r.patients[medicalID]
	if !ok {
		return nil, ErrPatientNotFound
	}
	clone := *patient
	return &clone, nil
}

func (r *InMemoryRepository) GetByPhone(ctx context.Context, phone string) (*Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, patient := range r.patients {
		if patient.Phone == phone {
			clone := *patient
			return &clone, nil
		}
	}
	return nil, ErrPatientNotFound
}

func (r *InMemoryRepository) List(ctx context.Context) ([]*Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Patient, 0, len(r.patients))
	for _, patient := range r.patients {
		clone := *patient
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *InMemoryRepository) Update(ctx context.Context, medicalID string, req *UpdatePatientRequest) (*Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	patient, ok := r.patients[medicalID]
	if !ok {
		return nil, ErrPatientNotFound
	}
	if req.Email != nil {
		patient.Email = *req.Email
	}
	if req.Phone != nil {
		patient.Phone = *req.Phone
	}
	if req.Address != nil {
		patient.Address = *req.Address
	}
	if req.Insurance != nil {
		patient.Insurance = *req.Insurance
	}
	if req.MedicalHistory != nil {
		patient.MedicalHistory = *req.MedicalHistory
	}
	patient.UpdatedAt = time.Now().UTC()
	clone := *patient
	return &clone, nil
}

func (r *InMemoryRepository) Delete(ctx context.Context, medicalID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.patients[medicalID]; !ok {
		return ErrPatientNotFound
	}
	delete(r.patients, medicalID)
	return nil
}

func (r *InMemoryRepository) AppendNote(ctx context.Context, medicalID, note string) error {
	note = strings.TrimSpace(note)
	if note == "" {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	patient, ok := r.patients[medicalID]
	if !ok {
		return ErrPatientNotFound
	}
	for _, existing := range patient.Notes {
		if existing == note {
			return nil
		}
	}
	patient.Notes = append(patient.Notes, note)
	patient.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *InMemoryRepository) AddAllergy(ctx context.Context, medicalID, allergy string) error {
	allergy = normalizeAllergy(allergy)
	if allergy == "" {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	patient, ok := r.patients[medicalID]
	if !ok {
		return ErrPatientNotFound
	}
	for _, existing := range patient.MedicalHistory.Allergies {
		if existing == allergy {
			return nil
		}
	}
	patient.MedicalHistory.Allergies = append(patient.MedicalHistory.Allergies, allergy)
	patient.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *InMemoryRepository) TouchLastVisit(ctx context.Context, medicalID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	patient, ok := r.patients[medicalID]
	if !ok {
		return ErrPatientNotFound
	}
	visit := at.UTC()
	patient.LastVisit = &visit
	patient.UpdatedAt = time.Now().UTC()
	return nil
}
