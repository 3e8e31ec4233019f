//go:build integration

// Run with a disposable database:
//
//	QUICKRESERVE_TEST_MYSQL_DSN='user:pass@tcp(127.0.0.1:3306)/quickreserve_test?parseTime=true' \
//	  go test -tags integration ./internal/service/
package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/iliyamo/quickreserve/internal/model"
	"github.com/iliyamo/quickreserve/internal/repository"
)

func openIntegrationDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("QUICKRESERVE_TEST_MYSQL_DSN")
	if dsn == "" {
		t.Skip("QUICKRESERVE_TEST_MYSQL_DSN not set")
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	schema, err := os.ReadFile("../../migrations/schema.sql")
	if err != nil {
		t.Fatalf("read schema: %v", err)
	}
	for _, stmt := range strings.Split(string(schema), ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("apply schema: %v", err)
		}
	}
	for _, table := range []string{"bookings", "company_profiles", "slots", "venues", "users"} {
		if _, err := db.Exec("DELETE FROM " + table); err != nil {
			t.Fatalf("clean %s: %v", table, err)
		}
	}
	return db
}

// seedSlot creates an owner, a venue and one available slot an hour ahead,
// plus n client accounts.
func seedSlot(t *testing.T, db *sql.DB, n int) (slotID string, clients []string) {
	t.Helper()
	ctx := context.Background()
	users := repository.NewUserRepo(db)
	ownerID, err := users.Create(ctx, "+70000000000", "Owner", "secret1", model.RoleBusiness, 4)
	if err != nil {
		t.Fatalf("owner: %v", err)
	}
	for i := 0; i < n; i++ {
		id, err := users.Create(ctx, fmt.Sprintf("+7100000%04d", i), "Client", "secret1", model.RoleClient, 4)
		if err != nil {
			t.Fatalf("client %d: %v", i, err)
		}
		clients = append(clients, id)
	}
	v := model.Venue{ID: "00000000-0000-0000-0000-00000000000v", ExternalID: "it-venue", OwnerID: &ownerID,
		Name: "Integration Wash", City: "almaty", Category: model.CategoryCarwash, Lat: 43.2, Lng: 76.9,
		CreatedAt: time.Now().UTC()}
	if err := repository.NewVenueRepo(db).Create(ctx, &v); err != nil {
		t.Fatalf("venue: %v", err)
	}
	start := time.Now().UTC().Add(time.Hour).Truncate(time.Second)
	s := model.Slot{ID: "00000000-0000-0000-0000-00000000000s", VenueID: v.ID, StartTime: start, EndTime: start.Add(time.Hour)}
	if err := repository.NewSlotRepo(db).Create(ctx, &s); err != nil {
		t.Fatalf("slot: %v", err)
	}
	return s.ID, clients
}

func countRows(t *testing.T, db *sql.DB, q string, args ...any) int {
	t.Helper()
	var n int
	if err := db.QueryRow(q, args...).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func TestReserveConcurrentSingleWinner(t *testing.T) {
	const contenders = 16
	db := openIntegrationDB(t)
	slotID, clients := seedSlot(t, db, contenders)
	svc := NewReservationService(db, repository.NewSlotRepo(db), repository.NewBookingRepo(db), nil)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		wins    int
		unknown []error
		start   = make(chan struct{})
	)
	for _, clientID := range clients {
		wg.Add(1)
		go func(clientID string) {
			defer wg.Done()
			<-start
			_, err := svc.Reserve(context.Background(), slotID, clientID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, repository.ErrConflict):
			default:
				unknown = append(unknown, err)
			}
		}(clientID)
	}
	close(start)
	wg.Wait()

	if len(unknown) > 0 {
		t.Fatalf("unexpected errors: %v", unknown)
	}
	if wins != 1 {
		t.Fatalf("winners = %d, want 1", wins)
	}
	if n := countRows(t, db, "SELECT COUNT(*) FROM bookings WHERE slot_id = ?", slotID); n != 1 {
		t.Fatalf("bookings = %d, want 1", n)
	}
	if n := countRows(t, db, "SELECT COUNT(*) FROM slots WHERE id = ? AND status = 'pending'", slotID); n != 1 {
		t.Fatal("slot is not pending")
	}
}

func TestReleaseExpiredHonoursHold(t *testing.T) {
	db := openIntegrationDB(t)
	slotID, clients := seedSlot(t, db, 1)
	svc := NewReservationService(db, repository.NewSlotRepo(db), repository.NewBookingRepo(db), nil)
	reservedAt := time.Now().UTC().Truncate(time.Second)
	svc.now = func() time.Time { return reservedAt }

	b, err := svc.Reserve(context.Background(), slotID, clients[0])
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}

	svc.now = func() time.Time { return reservedAt.Add(HoldDuration - time.Second) }
	if n, err := svc.ReleaseExpired(context.Background()); err != nil || n != 0 {
		t.Fatalf("early sweep released %d, err %v", n, err)
	}
	if n := countRows(t, db, "SELECT COUNT(*) FROM slots WHERE id = ? AND status = 'pending'", slotID); n != 1 {
		t.Fatal("an early sweep must leave the slot pending")
	}

	svc.now = func() time.Time { return reservedAt.Add(HoldDuration + time.Second) }
	if n, err := svc.ReleaseExpired(context.Background()); err != nil || n != 1 {
		t.Fatalf("late sweep released %d, err %v", n, err)
	}
	if n := countRows(t, db, "SELECT COUNT(*) FROM slots WHERE id = ? AND status = 'available' AND pending_until IS NULL", slotID); n != 1 {
		t.Fatal("slot not released")
	}
	if n := countRows(t, db, "SELECT COUNT(*) FROM bookings WHERE id = ? AND status = 'expired'", b.ID); n != 1 {
		t.Fatal("booking not expired")
	}
}
