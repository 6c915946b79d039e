package appointments

import (
	"context"
	"errors"
	"testing"
	"time"
)

func seedAppointment(t *testing.T, repo Repository, medicalID, date, tm string) *Appointment {
	t.Helper()
	appt, err := repo.Create(context.Background(), &CreateAppointmentRequest{
		PatientID: "patient-" + medicalID,
		MedicalID: medicalID,
		Date:      date,
		Time:      tm,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	return appt
}

func TestInMemoryCreateDefaultsToPending(t *testing.T) {
	repo := NewInMemoryRepository()
	appt := seedAppointment(t, repo, "MED-1", "2026-09-01", "10:00 AM")

	if appt.Status != StatusPending {
		t.Fatalf("expected pending status, got %s", appt.Status)
	}
	if appt.ID == "" {
		t.Fatal("expected an id to be minted")
	}
	if appt.CreatedAt.IsZero() {
		t.Fatal("expected createdAt to be set")
	}
}

func TestInMemoryCreateValidation(t *testing.T) {
	repo := NewInMemoryRepository()

	_, err := repo.Create(context.Background(), &CreateAppointmentRequest{
		MedicalID: "MED-1", Date: "2026-09-01", Time: "10:00 AM",
	})
	if !errors.Is(err, ErrMissingPatient) {
		t.Fatalf("expected ErrMissingPatient, got %v", err)
	}

	_, err = repo.Create(context.Background(), &CreateAppointmentRequest{
		PatientID: "p1", MedicalID: "MED-1", Date: "2026-09-01",
	})
	if !errors.Is(err, ErrMissingSchedule) {
		t.Fatalf("expected ErrMissingSchedule, got %v", err)
	}

	_, err = repo.Create(context.Background(), &CreateAppointmentRequest{
		PatientID: "p1", MedicalID: "MED-1", Date: "2026-09-01", Time: "10:00 AM",
		Status: Status("bogus"),
	})
	if !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
}

func TestInMemoryLatestForMedicalID(t *testing.T) {
	repo := NewInMemoryRepository()
	first := seedAppointment(t, repo, "MED-7", "2026-09-01", "9:00 AM")
	// Ensure distinct creation timestamps.
	time.Sleep(2 * time.Millisecond)
	second := seedAppointment(t, repo, "MED-7", "2026-09-08", "9:00 AM")
	seedAppointment(t, repo, "MED-9", "2026-09-02", "1:00 PM")

	latest, err := repo.LatestForMedicalID(context.Background(), "MED-7")
	if err != nil {
		t.Fatalf("LatestForMedicalID failed: %v", err)
	}
	if latest.ID != second.ID {
		t.Fatalf("expected newest appointment %s, got %s", second.ID, latest.ID)
	}
	if latest.ID == first.ID {
		t.Fatal("returned the older appointment")
	}

	if _, err := repo.LatestForMedicalID(context.Background(), "MED-404"); !errors.Is(err, ErrAppointmentNotFound) {
		t.Fatalf("expected ErrAppointmentNotFound, got %v", err)
	}
}

func TestInMemoryApplyOutcome(t *testing.T) {
	repo := NewInMemoryRepository()
	appt := seedAppointment(t, repo, "MED-1", "2026-09-01", "10:00 AM")

	updated, err := repo.ApplyOutcome(context.Background(), appt.ID, Outcome{
		Status: StatusConfirmed,
		Date:   "2099-01-01",
		Time:   "11:00 AM",
	})
	if err != nil {
		t.Fatalf("ApplyOutcome failed: %v", err)
	}
	if updated.Status != StatusConfirmed {
		t.Fatalf("expected confirmed, got %s", updated.Status)
	}
	// A non-reschedule outcome never moves the slot.
	if updated.Date != "2026-09-01" || updated.Time != "10:00 AM" {
		t.Fatalf("expected original slot to be kept, got %s %s", updated.Date, updated.Time)
	}
}

func TestInMemoryApplyOutcomeReschedule(t *testing.T) {
	repo := NewInMemoryRepository()
	appt := seedAppointment(t, repo, "MED-1", "2026-09-01", "10:00 AM")

	updated, err := repo.ApplyOutcome(context.Background(), appt.ID, Outcome{
		Status: StatusRescheduled,
		Date:   "2026-09-15",
		Time:   "2:00 PM",
		Note:   "patient requested afternoon",
	})
	if err != nil {
		t.Fatalf("ApplyOutcome failed: %v", err)
	}
	if updated.Date != "2026-09-15" || updated.Time != "2:00 PM" {
		t.Fatalf("expected slot to move, got %s %s", updated.Date, updated.Time)
	}
	if updated.Note != "patient requested afternoon" {
		t.Fatalf("expected note to be recorded, got %q", updated.Note)
	}

	// Re-applying the same outcome lands in the same state.
	again, err := repo.ApplyOutcome(context.Background(), appt.ID, Outcome{
		Status: StatusRescheduled,
		Date:   "2026-09-15",
		Time:   "2:00 PM",
		Note:   "patient requested afternoon",
	})
	if err != nil {
		t.Fatalf("second ApplyOutcome failed: %v", err)
	}
	if again.Date != updated.Date || again.Time != updated.Time || again.Status != updated.Status {
		t.Fatal("expected repeated outcome to be a no-op")
	}
}

func TestInMemoryApplyOutcomeInvalidStatus(t *testing.T) {
	repo := NewInMemoryRepository()
	appt := seedAppointment(t, repo, "MED-1", "2026-09-01", "10:00 AM")

	if _, err := repo.ApplyOutcome(context.Background(), appt.ID, Outcome{Status: "no-show"}); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
}

func TestInMemoryDelete(t *testing.T) {
	repo := NewInMemoryRepository()
	appt := seedAppointment(t, repo, "MED-1", "2026-09-01", "10:00 AM")

	if err := repo.Delete(context.Background(), appt.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := repo.GetByID(context.Background(), appt.ID); !errors.Is(err, ErrAppointmentNotFound) {
		t.Fatalf("expected ErrAppointmentNotFound after delete, got %v", err)
	}
	if err := repo.Delete(context.Background(), appt.ID); !errors.Is(err, ErrAppointmentNotFound) {
		t.Fatalf("expected ErrAppointmentNotFound on double delete, got %v", err)
	}
}

func TestInMemoryListNewestFirst(t *testing.T) {
	repo := NewInMemoryRepository()
	seedAppointment(t, repo, "MED-1", "2026-09-01", "10:00 AM")
	time.Sleep(2 * time.Millisecond)
	newest := seedAppointment(t, repo, "MED-2", "2026-09-02", "10:00 AM")

	all, err := repo.List(context.Background())
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 appointments, got %d", len(all))
	}
	if all[0].ID != newest.ID {
		t.Fatal("expected newest appointment first")
	}
}
