package availability_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mbartos/pension-reservations/internal/adapters/memory"
	"github.com/mbartos/pension-reservations/internal/availability"
	"github.com/mbartos/pension-reservations/internal/domain"
)

var fixedNow = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

func newEngine(store *memory.Store) *availability.Engine {
	return availability.NewEngine(store, availability.WithClock(func() time.Time { return fixedNow }))
}

func emptyStore() *memory.Store {
	return memory.NewStore(&domain.Settings{})
}

func booking(rooms []string, start, end string) domain.Booking {
	return domain.Booking{
		ID:         uuid.New(),
		Rooms:      rooms,
		StartDate:  domain.MustDate(start),
		EndDate:    domain.MustDate(end),
		GuestEmail: "guest@example.com",
	}
}

func hold(session string, rooms []string, start, end string) domain.Hold {
	return domain.Hold{
		ProposalID: uuid.New(),
		SessionID:  session,
		Rooms:      rooms,
		StartDate:  domain.MustDate(start),
		EndDate:    domain.MustDate(end),
		ExpiresAt:  fixedNow.Add(10 * time.Minute),
	}
}

func TestRoomDay_BookingEdges(t *testing.T) {
	ctx := context.Background()
	store := emptyStore()
	store.CreateBooking(ctx, booking([]string{"r1"}, "2025-01-05", "2025-01-08"))
	engine := newEngine(store)

	cases := []struct {
		date string
		want domain.Status
	}{
		{"2025-01-04", domain.StatusAvailable},
		{"2025-01-05", domain.StatusEdge}, // arrival day
		{"2025-01-06", domain.StatusOccupied},
		{"2025-01-07", domain.StatusOccupied},
		{"2025-01-08", domain.StatusEdge}, // departure day
		{"2025-01-09", domain.StatusAvailable},
	}
	for _, tc := range cases {
		info, err := engine.RoomDay(ctx, domain.MustDate(tc.date), "r1", availability.Query{})
		if err != nil {
			t.Fatal(err)
		}
		if info.Status != tc.want {
			t.Errorf("%s: expected %s, got %s", tc.date, tc.want, info.Status)
		}
	}
}

func TestRoomDay_NightDetail(t *testing.T) {
	ctx := context.Background()
	store := emptyStore()
	store.CreateBooking(ctx, booking([]string{"r1"}, "2025-01-05", "2025-01-08"))
	engine := newEngine(store)

	info, err := engine.RoomDay(ctx, domain.MustDate("2025-01-05"), "r1", availability.Query{})
	if err != nil {
		t.Fatal(err)
	}
	if info.NightBefore || !info.NightAfter {
		t.Errorf("arrival day: expected free night before, claimed night after, got %v/%v", info.NightBefore, info.NightAfter)
	}
	if info.NightAfterKind != domain.ClaimConfirmed {
		t.Errorf("expected confirmed claim, got %q", info.NightAfterKind)
	}
	if info.OwnerEmail != "guest@example.com" {
		t.Errorf("expected owner email on claimed day, got %q", info.OwnerEmail)
	}
}

func TestRoomDay_AdjacentBookingsOccupyTurnoverDay(t *testing.T) {
	ctx := context.Background()
	store := emptyStore()
	store.CreateBooking(ctx, booking([]string{"r1"}, "2025-01-05", "2025-01-08"))
	store.CreateBooking(ctx, booking([]string{"r1"}, "2025-01-08", "2025-01-10"))
	engine := newEngine(store)

	info, err := engine.RoomDay(ctx, domain.MustDate("2025-01-08"), "r1", availability.Query{})
	if err != nil {
		t.Fatal(err)
	}
	if info.Status != domain.StatusOccupied {
		t.Errorf("back-to-back stays should read occupied on the turnover day, got %s", info.Status)
	}
}

func TestRoomDay_HoldExclusion(t *testing.T) {
	ctx := context.Background()
	store := emptyStore()
	store.CreateHold(ctx, hold("sess-a", []string{"r1"}, "2025-02-01", "2025-02-03"))
	engine := newEngine(store)

	// Another session sees the nights as proposed.
	info, err := engine.RoomDay(ctx, domain.MustDate("2025-02-02"), "r1", availability.Query{ExcludeSessionID: "sess-b"})
	if err != nil {
		t.Fatal(err)
	}
	if info.Status != domain.StatusProposed {
		t.Errorf("foreign session: expected proposed, got %s", info.Status)
	}

	// The holding session sees its own nights as free.
	info, err = engine.RoomDay(ctx, domain.MustDate("2025-02-02"), "r1", availability.Query{ExcludeSessionID: "sess-a"})
	if err != nil {
		t.Fatal(err)
	}
	if info.Status != domain.StatusAvailable {
		t.Errorf("own session: expected available, got %s", info.Status)
	}
}

func TestRoomDay_ExpiredHoldIgnored(t *testing.T) {
	ctx := context.Background()
	store := emptyStore()
	h := hold("sess-a", []string{"r1"}, "2025-02-01", "2025-02-03")
	h.ExpiresAt = fixedNow.Add(-time.Minute)
	store.CreateHold(ctx, h)
	engine := newEngine(store)

	info, err := engine.RoomDay(ctx, domain.MustDate("2025-02-02"), "r1", availability.Query{})
	if err != nil {
		t.Fatal(err)
	}
	if info.Status != domain.StatusAvailable {
		t.Errorf("expired hold should not claim nights, got %s", info.Status)
	}
}

func TestRoomDay_BlockOutranksBooking(t *testing.T) {
	ctx := context.Background()
	store := emptyStore()
	store.CreateBooking(ctx, booking([]string{"r1"}, "2025-03-01", "2025-03-05"))
	store.CreateBlock(ctx, domain.BlockedDate{
		ID:        uuid.New(),
		StartDate: domain.MustDate("2025-03-02"),
		EndDate:   domain.MustDate("2025-03-04"),
		Reason:    "renovation",
	})
	engine := newEngine(store)

	info, err := engine.RoomDay(ctx, domain.MustDate("2025-03-03"), "r1", availability.Query{})
	if err != nil {
		t.Fatal(err)
	}
	if info.Status != domain.StatusBlocked {
		t.Errorf("block should outrank booking, got %s", info.Status)
	}

	// A block with no room list applies to every room.
	info, err = engine.RoomDay(ctx, domain.MustDate("2025-03-03"), "r9", availability.Query{})
	if err != nil {
		t.Fatal(err)
	}
	if info.Status != domain.StatusBlocked {
		t.Errorf("property-wide block should hit every room, got %s", info.Status)
	}
}

func TestRoomDay_ExcludeBooking(t *testing.T) {
	ctx := context.Background()
	store := emptyStore()
	b := booking([]string{"r1"}, "2025-01-05", "2025-01-08")
	store.CreateBooking(ctx, b)
	engine := newEngine(store)

	info, err := engine.RoomDay(ctx, domain.MustDate("2025-01-06"), "r1", availability.Query{ExcludeBookingID: b.ID.String()})
	if err != nil {
		t.Fatal(err)
	}
	if info.Status != domain.StatusAvailable {
		t.Errorf("edit flow should not see the booking under edit, got %s", info.Status)
	}
}

func TestRoomCalendar(t *testing.T) {
	ctx := context.Background()
	store := emptyStore()
	store.CreateBooking(ctx, booking([]string{"r1"}, "2025-01-05", "2025-01-08"))
	engine := newEngine(store)

	days, err := engine.RoomCalendar(ctx, domain.MustDate("2025-01-04"), domain.MustDate("2025-01-09"), "r1", availability.Query{})
	if err != nil {
		t.Fatal(err)
	}
	if len(days) != 6 {
		t.Fatalf("expected 6 days, got %d", len(days))
	}
	want := []domain.Status{
		domain.StatusAvailable, domain.StatusEdge, domain.StatusOccupied,
		domain.StatusOccupied, domain.StatusEdge, domain.StatusAvailable,
	}
	for i, day := range days {
		if day.Status != want[i] {
			t.Errorf("%s: expected %s, got %s", day.Date, want[i], day.Status)
		}
	}
}

func TestBulkDay_WorstAcrossRooms(t *testing.T) {
	ctx := context.Background()
	store := emptyStore()
	store.CreateBooking(ctx, booking([]string{"r2"}, "2025-01-05", "2025-01-08"))
	engine := newEngine(store)

	status, err := engine.BulkDay(ctx, domain.MustDate("2025-01-06"), []string{"r1", "r2", "r3"}, availability.Query{})
	if err != nil {
		t.Fatal(err)
	}
	if status != domain.StatusOccupied {
		t.Errorf("one occupied room should make the bulk day occupied, got %s", status)
	}

	status, err = engine.BulkDay(ctx, domain.MustDate("2025-01-05"), []string{"r1", "r2", "r3"}, availability.Query{})
	if err != nil {
		t.Fatal(err)
	}
	if status != domain.StatusEdge {
		t.Errorf("arrival day should aggregate to edge, got %s", status)
	}
	if !status.Selectable() {
		t.Error("edge days stay selectable for bulk")
	}
}

func TestBulkCalendar(t *testing.T) {
	ctx := context.Background()
	store := emptyStore()
	store.CreateBooking(ctx, booking([]string{"r1"}, "2025-01-05", "2025-01-07"))
	engine := newEngine(store)

	out, err := engine.BulkCalendar(ctx, domain.MustDate("2025-01-04"), domain.MustDate("2025-01-08"), []string{"r1", "r2"}, availability.Query{})
	if err != nil {
		t.Fatal(err)
	}
	if out["2025-01-06"] != domain.StatusOccupied {
		t.Errorf("expected occupied on 01-06, got %s", out["2025-01-06"])
	}
	if out["2025-01-04"] != domain.StatusAvailable {
		t.Errorf("expected available on 01-04, got %s", out["2025-01-04"])
	}
}

func TestCheckStay_PassesOnSharedBoundary(t *testing.T) {
	ctx := context.Background()
	store := emptyStore()
	store.CreateBooking(ctx, booking([]string{"r1"}, "2025-01-05", "2025-01-08"))
	engine := newEngine(store)

	// Checkin on the other guest's checkout day.
	r := domain.DateRange{Start: domain.MustDate("2025-01-08"), End: domain.MustDate("2025-01-10")}
	if err := engine.CheckStay(ctx, r, []string{"r1"}, availability.Query{}); err != nil {
		t.Errorf("boundary stay should pass: %v", err)
	}
}

func TestCheckStay_FailsOnInteriorNight(t *testing.T) {
	ctx := context.Background()
	store := emptyStore()
	// A single claimed night strictly inside the candidate range. Both its
	// surrounding dates individually read as edge, which is why the check
	// scans nights instead of day statuses.
	store.CreateBooking(ctx, booking([]string{"r1"}, "2025-01-06", "2025-01-07"))
	engine := newEngine(store)

	r := domain.DateRange{Start: domain.MustDate("2025-01-04"), End: domain.MustDate("2025-01-10")}
	err := engine.CheckStay(ctx, r, []string{"r1"}, availability.Query{})
	conflict := domain.IsConflictError(err)
	if conflict == nil {
		t.Fatalf("expected conflict, got %v", err)
	}
	if conflict.RoomID != "r1" || !conflict.Date.Equal(domain.MustDate("2025-01-06")) {
		t.Errorf("unexpected conflict detail: %+v", conflict)
	}
	if conflict.Status != domain.StatusOccupied {
		t.Errorf("expected occupied, got %s", conflict.Status)
	}
}

func TestCheckStay_ReportsEarliestConflict(t *testing.T) {
	ctx := context.Background()
	store := emptyStore()
	store.CreateBooking(ctx, booking([]string{"r1"}, "2025-01-08", "2025-01-09"))
	store.CreateHold(ctx, hold("other", []string{"r1"}, "2025-01-05", "2025-01-06"))
	engine := newEngine(store)

	r := domain.DateRange{Start: domain.MustDate("2025-01-04"), End: domain.MustDate("2025-01-10")}
	err := engine.CheckStay(ctx, r, []string{"r1"}, availability.Query{})
	conflict := domain.IsConflictError(err)
	if conflict == nil {
		t.Fatalf("expected conflict, got %v", err)
	}
	if !conflict.Date.Equal(domain.MustDate("2025-01-05")) {
		t.Errorf("expected the earliest conflicting date, got %s", conflict.Date)
	}
	if conflict.Status != domain.StatusProposed {
		t.Errorf("expected proposed, got %s", conflict.Status)
	}
}

func TestCheckStay_AllRoomsChecked(t *testing.T) {
	ctx := context.Background()
	store := emptyStore()
	store.CreateBooking(ctx, booking([]string{"r2"}, "2025-01-05", "2025-01-08"))
	engine := newEngine(store)

	r := domain.DateRange{Start: domain.MustDate("2025-01-06"), End: domain.MustDate("2025-01-07")}
	err := engine.CheckStay(ctx, r, []string{"r1", "r2"}, availability.Query{})
	conflict := domain.IsConflictError(err)
	if conflict == nil {
		t.Fatalf("expected conflict, got %v", err)
	}
	if conflict.RoomID != "r2" {
		t.Errorf("expected conflict in r2, got %s", conflict.RoomID)
	}
}

func TestCheckStay_ExcludesOwnSessionHolds(t *testing.T) {
	ctx := context.Background()
	store := emptyStore()
	store.CreateHold(ctx, hold("sess-a", []string{"r1"}, "2025-02-01", "2025-02-03"))
	engine := newEngine(store)

	r := domain.DateRange{Start: domain.MustDate("2025-02-01"), End: domain.MustDate("2025-02-03")}
	if err := engine.CheckStay(ctx, r, []string{"r1"}, availability.Query{ExcludeSessionID: "sess-a"}); err != nil {
		t.Errorf("own hold should not block the session: %v", err)
	}
	if err := engine.CheckStay(ctx, r, []string{"r1"}, availability.Query{ExcludeSessionID: "sess-b"}); err == nil {
		t.Error("foreign session should be blocked")
	}
}
