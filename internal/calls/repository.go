package calls

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"
)

// Repository defines the interface for call storage. Updates are field-level
// and atomic so concurrent webhook deliveries for the same call never
// clobber each other.
type Repository interface {
	// Create records a new call. Fails with ErrDuplicateCall when the call
	// id has already been seen.
	Create(ctx context.Context, call *Call) error

	GetByCallID(ctx context.Context, callID string) (*Call, error)

	// FindByPhoneAndBot returns the most recent call for phone+bot that has
	// a resolved patient, so a repeat caller is recognized even when the
	// phone lookup misses.
	FindByPhoneAndBot(ctx context.Context, phone, botID string) (*Call, error)

	List(ctx context.Context, filter Filter) ([]*Call, error)

	// MarkInProgress moves the call to in-progress and snapshots the
	// function-call payload. A call already in progress is left as is; a
	// terminal call fails with ErrInvalidTransition.
	MarkInProgress(ctx context.Context, callID string, snapshot json.RawMessage) error

	// AttachPatient records the resolved patient and the extracted facts.
	// Repeat lookups overwrite the previous extraction.
	AttachPatient(ctx context.Context, callID, patientID string, extracted ExtractedData) error

	// CompletePostCall applies the terminal result in one guarded update.
	// When the stored digest already equals upd.Digest it fails with
	// ErrAlreadyCompleted and writes nothing.
	CompletePostCall(ctx context.Context, callID string, upd PostCallUpdate) (*Call, error)
}

// InMemoryRepository is a Repository backed by a mutex-guarded map.
type InMemoryRepository struct {
	mu    sync.RWMutex
	calls map[string]*Call
}

// NewInMemoryRepository creates a new in-memory repository
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{calls: make(map[string]*Call)}
}

func (r *InMemoryRepository) Create(ctx context.Context, call *Call) error {
	if err := call.Validate(); err != nil {
		return err
	}
	if call.Status == "" {
		call.Status = StatusInitiated
	}
	now := time.Now().UTC()
	call.CreatedAt = now
	call.UpdatedAt = now

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.calls[call.CallID]; ok {
		return ErrDuplicateCall
	}
	clone := *call
	r.calls[call.CallID] = &clone
	return nil
}

func (r *InMemoryRepository) GetByCallID(ctx context.Context, callID string) (*Call, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	call, ok := r.calls[callID]
	if !ok {
		return nil, ErrCallNotFound
	}
	clone := *call
	return &clone, nil
}

func (r *InMemoryRepository) FindByPhoneAndBot(ctx context.Context, phone, botID string) (*Call, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var match *Call
	for _, call := range r.calls {
		if call.PhoneNumber != phone || call.ProviderBotID != botID || call.PatientID == "" {
			continue
		}
		if match == nil || call.CreatedAt.After(match.CreatedAt) {
			match = call
		}
	}
	if match == nil {
		return nil, ErrCallNotFound
	}
	clone := *match
	return &clone, nil
}

func (r *InMemoryRepository) List(ctx context.Context, filter Filter) ([]*Call, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Call, 0, len(r.calls))
	for _, call := range r.calls {
		if filter.BotID != "" && call.ProviderBotID != filter.BotID {
			continue
		}
		if filter.Status != "" && call.Status != filter.Status {
			continue
		}
		clone := *call
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *InMemoryRepository) MarkInProgress(ctx context.Context, callID string, snapshot json.RawMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	call, ok := r.calls[callID]
	if !ok {
		return ErrCallNotFound
	}
	if call.Status != StatusInitiated && call.Status != StatusInProgress {
		return ErrInvalidTransition
	}
	call.Status = StatusInProgress
	if len(snapshot) > 0 {
		call.WebhookData.FunctionCall = append(json.RawMessage(nil), snapshot...)
	}
	call.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *InMemoryRepository) AttachPatient(ctx context.Context, callID, patientID string, extracted ExtractedData) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	call, ok := r.calls[callID]
	if !ok {
		return ErrCallNotFound
	}
	call.PatientID = patientID
	call.ExtractedData = extracted
	call.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *InMemoryRepository) CompletePostCall(ctx context.Context, callID string, upd PostCallUpdate) (*Call, error) {
	if !Terminal(upd.Status) {
		return nil, ErrInvalidStatus
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	call, ok := r.calls[callID]
	if !ok {
		return nil, ErrCallNotFound
	}
	if call.PostCallDigest != "" && call.PostCallDigest == upd.Digest {
		return nil, ErrAlreadyCompleted
	}
	call.Status = upd.Status
	call.Duration = upd.Duration
	call.Transcript = upd.Transcript
	call.Summary = upd.Summary
	call.ExtractedData = upd.ExtractedData
	call.Metadata = upd.Metadata
	if len(upd.Snapshot) > 0 {
		call.WebhookData.PostCall = append(json.RawMessage(nil), upd.Snapshot...)
	}
	call.PostCallDigest = upd.Digest
	call.UpdatedAt = time.Now().UTC()

	clone := *call
	return &clone, nil
}
