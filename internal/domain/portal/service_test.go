package portal

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bugijo/eumaeus-system-sub002/internal/domain/billing"
	"github.com/bugijo/eumaeus-system-sub002/internal/domain/scheduling"
	"github.com/bugijo/eumaeus-system-sub002/internal/domain/tutor"
)

// -- Fakes --

type fakePets struct {
	items map[uuid.UUID]*tutor.Pet
}

func (f *fakePets) GetPet(_ context.Context, id uuid.UUID) (*tutor.Pet, error) {
	p, ok := f.items[id]
	if !ok {
		return nil, tutor.ErrPetNotFound
	}
	return p, nil
}

func (f *fakePets) ListPetsByTutor(_ context.Context, tutorID uuid.UUID, _, _ int) ([]*tutor.Pet, int, error) {
	var out []*tutor.Pet
	for _, p := range f.items {
		if p.TutorID == tutorID {
			out = append(out, p)
		}
	}
	return out, len(out), nil
}

type fakeAppointments struct {
	items map[uuid.UUID]*scheduling.Appointment
	pets  *fakePets
}

func (f *fakeAppointments) CreateAppointment(_ context.Context, a *scheduling.Appointment) error {
	pet, ok := f.pets.items[a.PetID]
	if !ok {
		return scheduling.ErrPetNotFound
	}
	a.ID = uuid.New()
	a.TutorID = pet.TutorID
	a.Status = scheduling.StatusScheduled
	f.items[a.ID] = a
	return nil
}

func (f *fakeAppointments) GetAppointment(_ context.Context, id uuid.UUID) (*scheduling.Appointment, error) {
	a, ok := f.items[id]
	if !ok {
		return nil, scheduling.ErrAppointmentNotFound
	}
	cp := *a
	return &cp, nil
}

func (f *fakeAppointments) ListAppointments(_ context.Context, filter scheduling.AppointmentFilter, _, _ int) ([]*scheduling.Appointment, int, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, 0, scheduling.ErrValidation
	}
	var out []*scheduling.Appointment
	for _, a := range f.items {
		if filter.TutorID != nil && a.TutorID != *filter.TutorID {
			continue
		}
		if filter.Status != "" && a.Status != filter.Status {
			continue
		}
		out = append(out, a)
	}
	return out, len(out), nil
}

func (f *fakeAppointments) UpdateStatus(_ context.Context, id uuid.UUID, status scheduling.Status) (*scheduling.Appointment, error) {
	a, ok := f.items[id]
	if !ok {
		return nil, scheduling.ErrAppointmentNotFound
	}
	if a.Status != status && !scheduling.CanTransition(a.Status, status) {
		return nil, scheduling.ErrInvalidTransition
	}
	a.Status = status
	cp := *a
	return &cp, nil
}

type fakeInvoices struct {
	byTutor map[uuid.UUID][]*billing.Invoice
}

func (f *fakeInvoices) ListByTutor(_ context.Context, tutorID uuid.UUID, _, _ int) ([]*billing.Invoice, int, error) {
	items := f.byTutor[tutorID]
	return items, len(items), nil
}

type testEnv struct {
	svc      *Service
	pets     *fakePets
	appts    *fakeAppointments
	invoices *fakeInvoices
}

func newTestEnv() *testEnv {
	pets := &fakePets{items: make(map[uuid.UUID]*tutor.Pet)}
	appts := &fakeAppointments{items: make(map[uuid.UUID]*scheduling.Appointment), pets: pets}
	invoices := &fakeInvoices{byTutor: make(map[uuid.UUID][]*billing.Invoice)}
	return &testEnv{svc: NewService(pets, appts, invoices), pets: pets, appts: appts, invoices: invoices}
}

func (e *testEnv) addPet(owner uuid.UUID) *tutor.Pet {
	p := &tutor.Pet{ID: uuid.New(), TutorID: owner, Name: "Rex", Species: "dog"}
	e.pets.items[p.ID] = p
	return p
}

func (e *testEnv) addAppointment(pet *tutor.Pet, status scheduling.Status) *scheduling.Appointment {
	a := &scheduling.Appointment{ID: uuid.New(), PetID: pet.ID, TutorID: pet.TutorID, Status: status, ScheduledAt: time.Now()}
	e.appts.items[a.ID] = a
	return a
}

// -- Tests --

func TestMyPets_OnlyOwn(t *testing.T) {
	env := newTestEnv()
	me, other := uuid.New(), uuid.New()
	env.addPet(me)
	env.addPet(me)
	env.addPet(other)

	pets, total, err := env.svc.MyPets(context.Background(), me, 20, 0)
	if err != nil {
		t.Fatalf("my pets: %v", err)
	}
	if total != 2 || len(pets) != 2 {
		t.Errorf("expected 2 pets, got %d", total)
	}
}

func TestMyAppointments_ScopedAndFiltered(t *testing.T) {
	env := newTestEnv()
	me := uuid.New()
	pet := env.addPet(me)
	env.addAppointment(pet, scheduling.StatusScheduled)
	env.addAppointment(pet, scheduling.StatusCompleted)
	env.addAppointment(env.addPet(uuid.New()), scheduling.StatusScheduled)
	ctx := context.Background()

	_, total, err := env.svc.MyAppointments(ctx, me, "", 20, 0)
	if err != nil || total != 2 {
		t.Errorf("expected 2 appointments, got %d (%v)", total, err)
	}
	_, total, _ = env.svc.MyAppointments(ctx, me, scheduling.StatusCompleted, 20, 0)
	if total != 1 {
		t.Errorf("expected 1 completed appointment, got %d", total)
	}
	if _, _, err := env.svc.MyAppointments(ctx, me, "LATE", 20, 0); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}

func TestMyAppointment_OtherTutorIsNotFound(t *testing.T) {
	env := newTestEnv()
	theirs := env.addAppointment(env.addPet(uuid.New()), scheduling.StatusScheduled)

	if _, err := env.svc.MyAppointment(context.Background(), uuid.New(), theirs.ID); !errors.Is(err, ErrAppointmentNotFound) {
		t.Errorf("expected ErrAppointmentNotFound, got %v", err)
	}
}

func TestBook(t *testing.T) {
	env := newTestEnv()
	me := uuid.New()
	pet := env.addPet(me)
	when := time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC)

	a, err := env.svc.Book(context.Background(), me, BookingRequest{PetID: pet.ID, ScheduledAt: when})
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	if a.TutorID != me || a.Status != scheduling.StatusScheduled || !a.ScheduledAt.Equal(when) {
		t.Errorf("unexpected appointment %+v", a)
	}
}

func TestBook_Errors(t *testing.T) {
	env := newTestEnv()
	me := uuid.New()
	theirs := env.addPet(uuid.New())
	when := time.Now().Add(24 * time.Hour)

	tests := []struct {
		name string
		req  BookingRequest
		want error
	}{
		{"no pet", BookingRequest{ScheduledAt: when}, ErrValidation},
		{"no time", BookingRequest{PetID: theirs.ID}, ErrValidation},
		{"unknown pet", BookingRequest{PetID: uuid.New(), ScheduledAt: when}, ErrPetNotFound},
		{"someone else's pet", BookingRequest{PetID: theirs.ID, ScheduledAt: when}, ErrPetNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := env.svc.Book(context.Background(), me, tt.req); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
	if len(env.appts.items) != 0 {
		t.Errorf("expected nothing booked, got %d", len(env.appts.items))
	}
}

func TestCancel(t *testing.T) {
	env := newTestEnv()
	me := uuid.New()
	pet := env.addPet(me)
	ctx := context.Background()

	for _, status := range []scheduling.Status{scheduling.StatusScheduled, scheduling.StatusConfirmed} {
		a := env.addAppointment(pet, status)
		got, err := env.svc.Cancel(ctx, me, a.ID)
		if err != nil {
			t.Fatalf("cancel %s: %v", status, err)
		}
		if got.Status != scheduling.StatusCancelled {
			t.Errorf("expected CANCELLED, got %s", got.Status)
		}
	}

	for _, status := range []scheduling.Status{scheduling.StatusCompleted, scheduling.StatusCancelled} {
		a := env.addAppointment(pet, status)
		if _, err := env.svc.Cancel(ctx, me, a.ID); !errors.Is(err, ErrNotCancellable) {
			t.Errorf("cancel %s: expected ErrNotCancellable, got %v", status, err)
		}
	}

	theirs := env.addAppointment(env.addPet(uuid.New()), scheduling.StatusScheduled)
	if _, err := env.svc.Cancel(ctx, me, theirs.ID); !errors.Is(err, ErrAppointmentNotFound) {
		t.Errorf("expected ErrAppointmentNotFound, got %v", err)
	}
	if env.appts.items[theirs.ID].Status != scheduling.StatusScheduled {
		t.Error("another tutor's appointment must not change")
	}
}

func TestMyInvoices(t *testing.T) {
	env := newTestEnv()
	me := uuid.New()
	env.invoices.byTutor[me] = []*billing.Invoice{
		{ID: uuid.New(), Status: billing.StatusPending, TotalAmount: decimal.RequireFromString("80.00")},
	}

	items, total, err := env.svc.MyInvoices(context.Background(), me, 20, 0)
	if err != nil {
		t.Fatalf("my invoices: %v", err)
	}
	if total != 1 || !items[0].TotalAmount.Equal(decimal.RequireFromString("80")) {
		t.Errorf("unexpected invoices %+v", items)
	}
	if _, total, _ := env.svc.MyInvoices(context.Background(), uuid.New(), 20, 0); total != 0 {
		t.Errorf("expected no invoices for another tutor, got %d", total)
	}
}
