//go:build integration

package integration

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/bugijo/eumaeus-system-sub002/internal/domain/account"
	"github.com/bugijo/eumaeus-system-sub002/internal/domain/billing"
	"github.com/bugijo/eumaeus-system-sub002/internal/domain/clinical"
	"github.com/bugijo/eumaeus-system-sub002/internal/domain/inventory"
	"github.com/bugijo/eumaeus-system-sub002/internal/domain/scheduling"
	"github.com/bugijo/eumaeus-system-sub002/internal/domain/tutor"
	"github.com/bugijo/eumaeus-system-sub002/internal/platform/auth"
	"github.com/bugijo/eumaeus-system-sub002/internal/platform/db"
	"github.com/bugijo/eumaeus-system-sub002/internal/platform/events"
	"github.com/bugijo/eumaeus-system-sub002/migrations"
)

// globalPool is the migrated test database, shared by every test. Tests create
// their own rows and never assume an empty table.
var globalPool *pgxpool.Pool

// TestMain uses PULSEVET_TEST_DATABASE_URL when set and otherwise starts a
// throwaway postgres container.
func TestMain(m *testing.M) {
	ctx := context.Background()

	connStr := os.Getenv("PULSEVET_TEST_DATABASE_URL")
	cleanup := func() {}
	if connStr == "" {
		var err error
		connStr, cleanup, err = startPostgresContainer(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start postgres container: %v\n", err)
			os.Exit(1)
		}
	}

	pool, err := db.NewPool(ctx, connStr, 10, 1)
	if err != nil {
		cleanup()
		fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
		os.Exit(1)
	}
	if _, err := db.NewMigrator(pool, migrations.FS).Up(ctx, "public"); err != nil {
		pool.Close()
		cleanup()
		fmt.Fprintf(os.Stderr, "failed to migrate: %v\n", err)
		os.Exit(1)
	}

	globalPool = pool
	code := m.Run()
	pool.Close()
	cleanup()
	os.Exit(code)
}

// stack is every service wired against the test database, the way the server
// wires them.
type stack struct {
	accounts   *account.Service
	tutors     *tutor.Service
	scheduling *scheduling.Service
	inventory  *inventory.Service
	clinical   *clinical.Service
	billing    *billing.Service
	events     *events.Recorder
	issuer     *auth.TokenIssuer
}

func newStack() *stack {
	pool := globalPool
	tx := db.NewTransactor(pool)
	rec := &events.Recorder{}
	issuer := auth.NewTokenIssuer(auth.TokenConfig{
		Issuer:        "pulsevet-integration",
		AccessSecret:  []byte("integration-access-secret"),
		RefreshSecret: []byte("integration-refresh-secret"),
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    time.Hour,
	})

	tutors := tutor.NewService(tutor.NewTutorRepoPG(pool), tutor.NewPetRepoPG(pool), tx)
	inv := inventory.NewService(inventory.NewProductRepoPG(pool), tx)
	return &stack{
		accounts: account.NewService(account.NewRepoPG(pool), tx, issuer,
			auth.NewPasswordHasher(bcrypt.MinCost), auth.NewMemoryRevocationStore(time.Hour)),
		tutors:     tutors,
		scheduling: scheduling.NewService(scheduling.NewAppointmentRepoPG(pool), scheduling.NewCatalogRepoPG(pool), tutors, tx),
		inventory:  inv,
		clinical:   clinical.NewService(clinical.NewRecordRepoPG(pool), inv, tx, rec),
		billing:    billing.NewService(billing.NewInvoiceRepoPG(pool), tx, rec, decimal.RequireFromString("100.00")),
		events:     rec,
		issuer:     issuer,
	}
}

func uniqueEmail(prefix string) string {
	return fmt.Sprintf("%s-%s@pulsevet.test", prefix, uuid.NewString()[:8])
}

func (s *stack) newPet(t *testing.T) (*tutor.Tutor, *tutor.Pet) {
	t.Helper()
	ctx := context.Background()
	email := uniqueEmail("tutor")
	tu := &tutor.Tutor{Name: "Carla Souza", Email: &email}
	if err := s.tutors.CreateTutor(ctx, tu); err != nil {
		t.Fatalf("create tutor: %v", err)
	}
	p := &tutor.Pet{TutorID: tu.ID, Name: "Thor", Species: "dog"}
	if err := s.tutors.CreatePet(ctx, p); err != nil {
		t.Fatalf("create pet: %v", err)
	}
	return tu, p
}

func (s *stack) newAppointment(t *testing.T, pet *tutor.Pet) *scheduling.Appointment {
	t.Helper()
	a := &scheduling.Appointment{PetID: pet.ID, ScheduledAt: time.Now().Add(time.Hour)}
	if err := s.scheduling.CreateAppointment(context.Background(), a); err != nil {
		t.Fatalf("create appointment: %v", err)
	}
	return a
}

func (s *stack) newService(t *testing.T, price string) *scheduling.ClinicService {
	t.Helper()
	cs := &scheduling.ClinicService{Name: "Consulta " + uuid.NewString()[:8], Price: decimal.RequireFromString(price)}
	if err := s.scheduling.CreateClinicService(context.Background(), cs); err != nil {
		t.Fatalf("create clinic service: %v", err)
	}
	return cs
}

func (s *stack) newProduct(t *testing.T, qty int, price string) *inventory.Product {
	t.Helper()
	p := &inventory.Product{Name: "Vermífugo " + uuid.NewString()[:8], Quantity: qty, Price: decimal.RequireFromString(price)}
	if err := s.inventory.CreateProduct(context.Background(), p); err != nil {
		t.Fatalf("create product: %v", err)
	}
	return p
}
