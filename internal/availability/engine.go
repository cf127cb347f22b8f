package availability

import (
	"context"
	"time"

	"github.com/mbartos/pension-reservations/internal/domain"
	"golang.org/x/sync/errgroup"
)

// Engine computes per-date, per-room occupancy from confirmed bookings, live
// holds and admin blocks. It holds no state of its own; every answer is
// derived from a fresh store read and is advisory the moment it is returned.
type Engine struct {
	store domain.Store
	now   func() time.Time
}

type Option func(*Engine)

// WithClock overrides the engine's clock; hold expiry is computed against it.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func NewEngine(store domain.Store, opts ...Option) *Engine {
	e := &Engine{store: store, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Query carries the exclusions threaded through every availability read: a
// session never sees its own holds, and edit flows skip the booking being
// edited.
type Query struct {
	ExcludeSessionID string
	ExcludeBookingID string
}

// DayInfo is the engine's verdict for one room on one calendar date, plus the
// night-level detail the calendar needs for half-day rendering.
type DayInfo struct {
	Date            domain.Date      `json:"date"`
	RoomID          string           `json:"room_id"`
	Status          domain.Status    `json:"status"`
	NightBefore     bool             `json:"night_before"`
	NightAfter      bool             `json:"night_after"`
	NightBeforeKind domain.ClaimKind `json:"night_before_kind,omitempty"`
	NightAfterKind  domain.ClaimKind `json:"night_after_kind,omitempty"`
	OwnerEmail      string           `json:"owner_email,omitempty"`
}

type nightClaim struct {
	kind  domain.ClaimKind
	email string
}

// RoomDay classifies a single date for a single room. The two adjacent nights
// [date-1, date) and [date, date+1) are tested independently; the date's
// status follows from which of them are claimed and by what.
func (e *Engine) RoomDay(ctx context.Context, date domain.Date, roomID string, q Query) (DayInfo, error) {
	window := domain.DateRange{Start: date.AddDays(-1), End: date.AddDays(1)}
	bookings, holds, blocks, err := e.fetch(ctx, roomID, window, q)
	if err != nil {
		return DayInfo{}, err
	}
	return e.classifyDay(date, roomID, bookings, holds, blocks), nil
}

// RoomCalendar computes every date in [from, to] for one room with a single
// store read.
func (e *Engine) RoomCalendar(ctx context.Context, from, to domain.Date, roomID string, q Query) ([]DayInfo, error) {
	window := domain.DateRange{Start: from.AddDays(-1), End: to.AddDays(1)}
	bookings, holds, blocks, err := e.fetch(ctx, roomID, window, q)
	if err != nil {
		return nil, err
	}
	var days []DayInfo
	for d := from; !d.After(to); d = d.AddDays(1) {
		days = append(days, e.classifyDay(d, roomID, bookings, holds, blocks))
	}
	return days, nil
}

// BulkDay reduces the per-room verdicts for date across all given rooms to
// the worst status. A date is bulk-selectable only when every room
// individually is available or edge.
func (e *Engine) BulkDay(ctx context.Context, date domain.Date, roomIDs []string, q Query) (domain.Status, error) {
	statuses := make([]domain.Status, len(roomIDs))
	g, gctx := errgroup.WithContext(ctx)
	for i, roomID := range roomIDs {
		i, roomID := i, roomID
		g.Go(func() error {
			info, err := e.RoomDay(gctx, date, roomID, q)
			if err != nil {
				return err
			}
			statuses[i] = info.Status
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return domain.StatusBlocked, err
	}
	return domain.WorstOf(statuses...), nil
}

// BulkCalendar computes the aggregated status for each date in [from, to].
func (e *Engine) BulkCalendar(ctx context.Context, from, to domain.Date, roomIDs []string, q Query) (map[string]domain.Status, error) {
	perRoom := make([][]DayInfo, len(roomIDs))
	g, gctx := errgroup.WithContext(ctx)
	for i, roomID := range roomIDs {
		i, roomID := i, roomID
		g.Go(func() error {
			days, err := e.RoomCalendar(gctx, from, to, roomID, q)
			if err != nil {
				return err
			}
			perRoom[i] = days
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string]domain.Status)
	for _, days := range perRoom {
		for _, day := range days {
			key := day.Date.String()
			if cur, ok := out[key]; !ok || day.Status > cur {
				out[key] = day.Status
			}
		}
	}
	return out, nil
}

// CheckStay verifies that the nights [r.Start, r.End) are free in every given
// room. It scans claims directly instead of re-deriving day statuses: boundary
// dates shared with an adjacent stay pass (half-open overlap), while any
// claimed night strictly inside the range fails even though both surrounding
// dates would individually read as edge.
func (e *Engine) CheckStay(ctx context.Context, r domain.DateRange, roomIDs []string, q Query) error {
	var firstConflict *domain.ConflictError
	worse := func(c *domain.ConflictError) {
		if firstConflict == nil ||
			c.Date.Before(firstConflict.Date) ||
			(c.Date.Equal(firstConflict.Date) && c.Status > firstConflict.Status) {
			firstConflict = c
		}
	}

	for _, roomID := range roomIDs {
		bookings, holds, blocks, err := e.fetch(ctx, roomID, r, q)
		if err != nil {
			return err
		}
		for _, blk := range blocks {
			if blk.Range().Overlaps(r) {
				worse(&domain.ConflictError{Date: laterOf(r.Start, blk.StartDate), RoomID: roomID, Status: domain.StatusBlocked})
			}
		}
		for _, b := range bookings {
			if b.Range().Overlaps(r) {
				worse(&domain.ConflictError{Date: laterOf(r.Start, b.StartDate), RoomID: roomID, Status: domain.StatusOccupied})
			}
		}
		for _, h := range holds {
			if h.Range().Overlaps(r) {
				worse(&domain.ConflictError{Date: laterOf(r.Start, h.StartDate), RoomID: roomID, Status: domain.StatusProposed})
			}
		}
	}
	if firstConflict != nil {
		return firstConflict
	}
	return nil
}

func (e *Engine) fetch(ctx context.Context, roomID string, window domain.DateRange, q Query) ([]domain.Booking, []domain.Hold, []domain.BlockedDate, error) {
	bookings, err := e.store.ListBookings(ctx, roomID, window)
	if err != nil {
		return nil, nil, nil, err
	}
	if q.ExcludeBookingID != "" {
		kept := bookings[:0]
		for _, b := range bookings {
			if b.ID.String() != q.ExcludeBookingID {
				kept = append(kept, b)
			}
		}
		bookings = kept
	}

	holds, err := e.store.ListHolds(ctx, roomID, window, q.ExcludeSessionID)
	if err != nil {
		return nil, nil, nil, err
	}
	now := e.now()
	live := holds[:0]
	for _, h := range holds {
		if !h.Expired(now) {
			live = append(live, h)
		}
	}
	holds = live

	blocks, err := e.store.ListBlocks(ctx, roomID, window)
	if err != nil {
		return nil, nil, nil, err
	}
	return bookings, holds, blocks, nil
}

func (e *Engine) classifyDay(date domain.Date, roomID string, bookings []domain.Booking, holds []domain.Hold, blocks []domain.BlockedDate) DayInfo {
	before := classifyNight(date.AddDays(-1), roomID, bookings, holds, blocks)
	after := classifyNight(date, roomID, bookings, holds, blocks)

	info := DayInfo{
		Date:            date,
		RoomID:          roomID,
		NightBefore:     before.kind != domain.ClaimNone,
		NightAfter:      after.kind != domain.ClaimNone,
		NightBeforeKind: before.kind,
		NightAfterKind:  after.kind,
	}
	if before.email != "" {
		info.OwnerEmail = before.email
	} else {
		info.OwnerEmail = after.email
	}

	switch {
	case before.kind == domain.ClaimBlocked || after.kind == domain.ClaimBlocked:
		info.Status = domain.StatusBlocked
	case before.kind == domain.ClaimConfirmed && after.kind == domain.ClaimConfirmed:
		info.Status = domain.StatusOccupied
	case info.NightBefore != info.NightAfter:
		info.Status = domain.StatusEdge
	case info.NightBefore && info.NightAfter:
		// Both nights claimed, at least one only provisionally.
		info.Status = domain.StatusProposed
	default:
		info.Status = domain.StatusAvailable
	}
	return info
}

// classifyNight resolves the claim on the night [night, night+1) for roomID.
// Blocks outrank bookings, bookings outrank holds.
func classifyNight(night domain.Date, roomID string, bookings []domain.Booking, holds []domain.Hold, blocks []domain.BlockedDate) nightClaim {
	for _, blk := range blocks {
		if blk.AppliesTo(roomID) && blk.Range().CoversNight(night) {
			return nightClaim{kind: domain.ClaimBlocked}
		}
	}
	for _, b := range bookings {
		if b.Range().CoversNight(night) {
			return nightClaim{kind: domain.ClaimConfirmed, email: b.GuestEmail}
		}
	}
	for _, h := range holds {
		if h.Range().CoversNight(night) {
			return nightClaim{kind: domain.ClaimProposed}
		}
	}
	return nightClaim{}
}

func laterOf(a, b domain.Date) domain.Date {
	if b.After(a) {
		return b
	}
	return a
}
