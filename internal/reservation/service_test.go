package reservation_test

import (
	"context"
	"testing"
	"time"

	"github.com/mbartos/pension-reservations/internal/adapters/memory"
	"github.com/mbartos/pension-reservations/internal/availability"
	"github.com/mbartos/pension-reservations/internal/domain"
	"github.com/mbartos/pension-reservations/internal/observability"
	"github.com/mbartos/pension-reservations/internal/pricing"
	"github.com/mbartos/pension-reservations/internal/reservation"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func testSettings() *domain.Settings {
	return &domain.Settings{
		Rooms: []domain.Room{
			{ID: "r1", Beds: 4, SizeClass: domain.SizeLarge},
			{ID: "r2", Beds: 3, SizeClass: domain.SizeSmall},
			{ID: "r3", Beds: 2, SizeClass: domain.SizeSmall},
		},
		Prices: domain.PriceTable{
			domain.CategoryResident: {
				domain.SizeSmall: {EmptyRoom: 300, PerAdult: 150, PerChild: 80},
				domain.SizeLarge: {EmptyRoom: 500, PerAdult: 150, PerChild: 80},
			},
			domain.CategoryExternal: {
				domain.SizeSmall: {EmptyRoom: 450, PerAdult: 220, PerChild: 120},
				domain.SizeLarge: {EmptyRoom: 700, PerAdult: 220, PerChild: 120},
			},
		},
		BulkPrices: domain.BulkRates{
			BasePerNight:  2000,
			ResidentAdult: 100,
			ResidentChild: 50,
			ExternalAdult: 180,
			ExternalChild: 90,
		},
		ChristmasPeriods: []domain.ChristmasPeriod{
			{Start: domain.MustDate("2025-12-20"), End: domain.MustDate("2026-01-06"), Year: 2025},
		},
		MaxRoomsBeforeCutoff: 2,
	}
}

type fixture struct {
	store *memory.Store
	holds *reservation.HoldManager
	svc   *reservation.Service
}

func newFixture(now time.Time) *fixture {
	store := memory.NewStore(testSettings())
	clock := func() time.Time { return now }
	engine := availability.NewEngine(store, availability.WithClock(clock))
	holds := reservation.NewHoldManager(store, engine, 10*time.Minute, clock)
	svc := reservation.NewService(store, store, engine, holds, observability.NewLogger(), reservation.WithClock(clock))
	return &fixture{store: store, holds: holds, svc: svc}
}

func stay(session string, rooms []string, start, end string) reservation.StayRequest {
	return reservation.StayRequest{
		SessionID: session,
		Start:     domain.MustDate(start),
		End:       domain.MustDate(end),
		Rooms:     rooms,
		Guests:    domain.GuestCounts{Adults: 2},
		Category:  domain.CategoryResident,
	}
}

func TestPrice_SingleRoom(t *testing.T) {
	f := newFixture(testNow)

	quote, err := f.svc.Price(context.Background(), stay("s1", []string{"r2"}, "2025-07-01", "2025-07-04"))
	if err != nil {
		t.Fatal(err)
	}
	// (300 + 2*150) * 3 nights
	if quote.TotalPrice != 1800 {
		t.Errorf("expected 1800, got %d", quote.TotalPrice)
	}
	if quote.Nights != 3 {
		t.Errorf("expected 3 nights, got %d", quote.Nights)
	}
}

func TestPrice_Bulk(t *testing.T) {
	f := newFixture(testNow)

	req := reservation.StayRequest{
		SessionID:  "s1",
		Start:      domain.MustDate("2025-07-01"),
		End:        domain.MustDate("2025-07-03"),
		Bulk:       true,
		BulkGuests: pricing.BulkGuests{ResidentAdults: 4, ExternalAdults: 2},
		Category:   domain.CategoryResident,
	}
	quote, err := f.svc.Price(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	// (2000 + 4*100 + 2*180) * 2 nights
	if quote.TotalPrice != 5520 {
		t.Errorf("expected 5520, got %d", quote.TotalPrice)
	}
	if len(quote.Rooms) != 3 {
		t.Errorf("bulk quote should span all rooms, got %v", quote.Rooms)
	}
}

func TestCreateHold_Validation(t *testing.T) {
	f := newFixture(testNow)
	ctx := context.Background()

	cases := []struct {
		name string
		req  reservation.StayRequest
	}{
		{"zero nights", stay("s1", []string{"r1"}, "2025-07-01", "2025-07-01")},
		{"past start", stay("s1", []string{"r1"}, "2025-05-01", "2025-05-03")},
		{"no rooms", stay("s1", nil, "2025-07-01", "2025-07-03")},
		{"unknown room", stay("s1", []string{"r9"}, "2025-07-01", "2025-07-03")},
		{"duplicate room", stay("s1", []string{"r1", "r1"}, "2025-07-01", "2025-07-03")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := f.svc.CreateHold(ctx, tc.req)
			if !domain.IsValidationError(err) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}

	req := stay("s1", []string{"r3"}, "2025-07-01", "2025-07-03")
	req.Guests = domain.GuestCounts{Adults: 3}
	if _, _, err := f.svc.CreateHold(ctx, req); !domain.IsCapacityError(err) {
		t.Errorf("expected capacity error for oversized party, got %v", err)
	}

	req = stay("s1", []string{"r1"}, "2025-07-01", "2025-07-03")
	req.Guests = domain.GuestCounts{Toddlers: 1}
	if _, _, err := f.svc.CreateHold(ctx, req); !domain.IsValidationError(err) {
		t.Errorf("toddler-only party should be rejected, got %v", err)
	}
}

func TestCreateHold_AllOrNothing(t *testing.T) {
	f := newFixture(testNow)
	ctx := context.Background()

	if _, _, err := f.svc.CreateHold(ctx, stay("other", []string{"r2"}, "2025-07-01", "2025-07-03")); err != nil {
		t.Fatal(err)
	}

	// r1 is free, r2 conflicts: neither may end up held.
	_, _, err := f.svc.CreateHold(ctx, stay("s1", []string{"r1", "r2"}, "2025-07-02", "2025-07-04"))
	if domain.IsConflictError(err) == nil {
		t.Fatalf("expected conflict, got %v", err)
	}

	own, err := f.holds.SessionHolds(ctx, "s1", domain.DateRange{Start: domain.MustDate("2025-07-01"), End: domain.MustDate("2025-07-10")})
	if err != nil {
		t.Fatal(err)
	}
	if len(own) != 0 {
		t.Errorf("failed hold must leave nothing behind, found %d holds", len(own))
	}
}

func TestCreateHold_OwnHoldsDoNotConflict(t *testing.T) {
	f := newFixture(testNow)
	ctx := context.Background()

	if _, _, err := f.svc.CreateHold(ctx, stay("s1", []string{"r1"}, "2025-07-01", "2025-07-03")); err != nil {
		t.Fatal(err)
	}
	// The same session holds a second room over the same nights.
	if _, _, err := f.svc.CreateHold(ctx, stay("s1", []string{"r2"}, "2025-07-01", "2025-07-03")); err != nil {
		t.Errorf("session should never conflict with itself: %v", err)
	}
}

func TestHoldDelete_Idempotent(t *testing.T) {
	f := newFixture(testNow)
	ctx := context.Background()

	hold, _, err := f.svc.CreateHold(ctx, stay("s1", []string{"r1"}, "2025-07-01", "2025-07-03"))
	if err != nil {
		t.Fatal(err)
	}
	if err := f.holds.Delete(ctx, hold.ProposalID.String()); err != nil {
		t.Fatal(err)
	}
	if err := f.holds.Delete(ctx, hold.ProposalID.String()); err != nil {
		t.Errorf("second delete should succeed silently: %v", err)
	}
}

func TestFinalize_ForeignSessionLooksExpired(t *testing.T) {
	f := newFixture(testNow)
	ctx := context.Background()

	hold, _, err := f.svc.CreateHold(ctx, stay("s1", []string{"r1"}, "2025-07-01", "2025-07-03"))
	if err != nil {
		t.Fatal(err)
	}
	_, err = f.svc.Finalize(ctx, "s2", hold.ProposalID.String())
	if !domain.IsExpiredHoldError(err) {
		t.Errorf("foreign session must not learn the hold exists, got %v", err)
	}
}

func TestConfirm_FullFlow(t *testing.T) {
	f := newFixture(testNow)
	ctx := context.Background()

	req := stay("s1", []string{"r1"}, "2025-07-01", "2025-07-04")
	req.Guests = domain.GuestCounts{Adults: 2, Children: 1}
	hold, quote, err := f.svc.CreateHold(ctx, req)
	if err != nil {
		t.Fatal(err)
	}

	booking, err := f.svc.Confirm(ctx, reservation.ConfirmRequest{
		SessionID:  "s1",
		ProposalID: hold.ProposalID.String(),
		GuestEmail: "guest@example.com",
	})
	if err != nil {
		t.Fatal(err)
	}
	if booking.TotalPrice != quote.TotalPrice {
		t.Errorf("confirmed price %d differs from quoted %d", booking.TotalPrice, quote.TotalPrice)
	}
	if booking.ID == hold.ProposalID {
		t.Error("booking must be a new entity, not the hold")
	}
	if booking.EditToken == "" {
		t.Error("booking needs an edit token")
	}
	if got := booking.PerRoomGuests["r1"]; got != (domain.GuestCounts{Adults: 2, Children: 1}) {
		t.Errorf("unexpected allocation: %+v", got)
	}

	// Confirming clears every hold of the session.
	window := domain.DateRange{Start: domain.MustDate("2025-07-01"), End: domain.MustDate("2025-07-10")}
	own, err := f.holds.SessionHolds(ctx, "s1", window)
	if err != nil {
		t.Fatal(err)
	}
	if len(own) != 0 {
		t.Errorf("confirm should clear session holds, found %d", len(own))
	}

	fetched, err := f.svc.GetBooking(ctx, booking.ID.String())
	if err != nil {
		t.Fatal(err)
	}
	if fetched.GuestEmail != "guest@example.com" {
		t.Errorf("unexpected stored email %q", fetched.GuestEmail)
	}
}

func TestConfirm_RequiresEmail(t *testing.T) {
	f := newFixture(testNow)
	ctx := context.Background()

	hold, _, err := f.svc.CreateHold(ctx, stay("s1", []string{"r1"}, "2025-07-01", "2025-07-03"))
	if err != nil {
		t.Fatal(err)
	}
	_, err = f.svc.Confirm(ctx, reservation.ConfirmRequest{SessionID: "s1", ProposalID: hold.ProposalID.String()})
	if !domain.IsValidationError(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestConfirm_ExpiredHold(t *testing.T) {
	clock := testNow
	store := memory.NewStore(testSettings())
	now := func() time.Time { return clock }
	engine := availability.NewEngine(store, availability.WithClock(now))
	holds := reservation.NewHoldManager(store, engine, 10*time.Minute, now)
	svc := reservation.NewService(store, store, engine, holds, observability.NewLogger(), reservation.WithClock(now))
	ctx := context.Background()

	hold, _, err := svc.CreateHold(ctx, stay("s1", []string{"r1"}, "2025-07-01", "2025-07-03"))
	if err != nil {
		t.Fatal(err)
	}

	clock = clock.Add(11 * time.Minute)
	_, err = svc.Confirm(ctx, reservation.ConfirmRequest{
		SessionID:  "s1",
		ProposalID: hold.ProposalID.String(),
		GuestEmail: "guest@example.com",
	})
	if !domain.IsExpiredHoldError(err) {
		t.Errorf("expected expired-hold error, got %v", err)
	}
}

func TestConfirm_LosesRaceToOtherBooking(t *testing.T) {
	f := newFixture(testNow)
	ctx := context.Background()

	hold, _, err := f.svc.CreateHold(ctx, stay("s1", []string{"r1"}, "2025-07-01", "2025-07-03"))
	if err != nil {
		t.Fatal(err)
	}

	// While s1 holds, s2 is blocked.
	_, _, err = f.svc.CreateHold(ctx, stay("s2", []string{"r1"}, "2025-07-01", "2025-07-03"))
	if domain.IsConflictError(err) == nil {
		t.Fatalf("expected s2 to conflict while s1 holds, got %v", err)
	}

	// Simulate the narrow window: s1's hold expires from the store's point of
	// view, s2 books, then s1 tries to confirm.
	if err := f.store.DeleteHold(ctx, hold.ProposalID.String()); err != nil {
		t.Fatal(err)
	}
	h2, _, err := f.svc.CreateHold(ctx, stay("s2", []string{"r1"}, "2025-07-01", "2025-07-03"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Confirm(ctx, reservation.ConfirmRequest{SessionID: "s2", ProposalID: h2.ProposalID.String(), GuestEmail: "b@example.com"}); err != nil {
		t.Fatal(err)
	}

	_, err = f.svc.Confirm(ctx, reservation.ConfirmRequest{SessionID: "s1", ProposalID: hold.ProposalID.String(), GuestEmail: "a@example.com"})
	if !domain.IsExpiredHoldError(err) {
		t.Errorf("s1's gone hold should read as expired, got %v", err)
	}
}

func TestCancel(t *testing.T) {
	f := newFixture(testNow)
	ctx := context.Background()

	hold, _, err := f.svc.CreateHold(ctx, stay("s1", []string{"r1"}, "2025-07-01", "2025-07-03"))
	if err != nil {
		t.Fatal(err)
	}
	booking, err := f.svc.Confirm(ctx, reservation.ConfirmRequest{SessionID: "s1", ProposalID: hold.ProposalID.String(), GuestEmail: "g@example.com"})
	if err != nil {
		t.Fatal(err)
	}

	if err := f.svc.Cancel(ctx, booking.ID.String(), "wrong-token"); !domain.IsValidationError(err) {
		t.Errorf("wrong token should be rejected, got %v", err)
	}
	if err := f.svc.Cancel(ctx, booking.ID.String(), booking.EditToken); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.GetBooking(ctx, booking.ID.String()); err == nil {
		t.Error("cancelled booking should be gone")
	}
}

func TestChristmas_BeforeCutoff(t *testing.T) {
	// June 1st is before the Oct 1 cutoff for the 2025 period.
	f := newFixture(testNow)
	ctx := context.Background()

	external := stay("s1", []string{"r1"}, "2025-12-22", "2025-12-27")
	external.Category = domain.CategoryExternal
	_, _, err := f.svc.CreateHold(ctx, external)
	if !domain.IsChristmasRestrictionError(err) {
		t.Errorf("external guests are out before the cutoff, got %v", err)
	}

	bulk := reservation.StayRequest{
		SessionID:  "s1",
		Start:      domain.MustDate("2025-12-22"),
		End:        domain.MustDate("2025-12-27"),
		Bulk:       true,
		BulkGuests: pricing.BulkGuests{ResidentAdults: 4},
		Category:   domain.CategoryResident,
	}
	_, _, err = f.svc.CreateHold(ctx, bulk)
	if !domain.IsChristmasRestrictionError(err) {
		t.Errorf("bulk bookings are out before the cutoff, got %v", err)
	}

	// Residents may book up to the room limit across the period.
	if _, _, err := f.svc.CreateHold(ctx, stay("s1", []string{"r1"}, "2025-12-22", "2025-12-24")); err != nil {
		t.Fatal(err)
	}
	if _, _, err := f.svc.CreateHold(ctx, stay("s1", []string{"r2"}, "2025-12-22", "2025-12-24")); err != nil {
		t.Fatal(err)
	}
	_, _, err = f.svc.CreateHold(ctx, stay("s1", []string{"r3"}, "2025-12-22", "2025-12-24"))
	if !domain.IsChristmasRestrictionError(err) {
		t.Errorf("third room should exceed the per-session limit, got %v", err)
	}
}

func TestChristmas_StayTouchingPeriodEdgeIsRestricted(t *testing.T) {
	f := newFixture(testNow)
	ctx := context.Background()

	// Checkout lands on the period's first day: still subject to the rules.
	touching := stay("s1", []string{"r1"}, "2025-12-18", "2025-12-20")
	touching.Category = domain.CategoryExternal
	_, _, err := f.svc.CreateHold(ctx, touching)
	if !domain.IsChristmasRestrictionError(err) {
		t.Errorf("stay touching the period should be restricted, got %v", err)
	}
}

func TestChristmas_AfterCutoff(t *testing.T) {
	// November 1st is past the Oct 1 cutoff; normal rules apply.
	f := newFixture(time.Date(2025, 11, 1, 12, 0, 0, 0, time.UTC))
	ctx := context.Background()

	external := stay("s1", []string{"r1"}, "2025-12-22", "2025-12-27")
	external.Category = domain.CategoryExternal
	if _, _, err := f.svc.CreateHold(ctx, external); err != nil {
		t.Errorf("external guests book freely after the cutoff: %v", err)
	}

	bulk := reservation.StayRequest{
		SessionID:  "s2",
		Start:      domain.MustDate("2026-01-02"),
		End:        domain.MustDate("2026-01-05"),
		Bulk:       true,
		BulkGuests: pricing.BulkGuests{ResidentAdults: 4},
		Category:   domain.CategoryResident,
	}
	if _, _, err := f.svc.CreateHold(ctx, bulk); err != nil {
		t.Errorf("bulk bookings open after the cutoff: %v", err)
	}
}

func TestExpireHolds_ReturnsReclaimed(t *testing.T) {
	clock := testNow
	store := memory.NewStore(testSettings())
	now := func() time.Time { return clock }
	engine := availability.NewEngine(store, availability.WithClock(now))
	holds := reservation.NewHoldManager(store, engine, 10*time.Minute, now)
	svc := reservation.NewService(store, store, engine, holds, observability.NewLogger(), reservation.WithClock(now))
	ctx := context.Background()

	if _, _, err := svc.CreateHold(ctx, stay("s1", []string{"r1"}, "2025-07-01", "2025-07-03")); err != nil {
		t.Fatal(err)
	}

	clock = clock.Add(11 * time.Minute)
	expired, err := holds.ExpireHolds(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(expired) != 1 {
		t.Fatalf("expected 1 reclaimed hold, got %d", len(expired))
	}

	// The nights are free again.
	if err := engine.CheckStay(ctx, domain.DateRange{Start: domain.MustDate("2025-07-01"), End: domain.MustDate("2025-07-03")}, []string{"r1"}, availability.Query{}); err != nil {
		t.Errorf("expired hold should free its nights: %v", err)
	}
}
