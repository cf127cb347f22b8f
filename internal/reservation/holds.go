package reservation

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/mbartos/pension-reservations/internal/availability"
	"github.com/mbartos/pension-reservations/internal/domain"
)

// HoldManager owns the proposed-booking lifecycle. A hold is all-or-nothing:
// if any requested room/date conflicts, nothing is held. Expiry is lazy; the
// engine already ignores dead holds, ExpireHolds merely reclaims their rows.
type HoldManager struct {
	store   domain.Store
	engine  *availability.Engine
	holdTTL time.Duration
	now     func() time.Time
}

func NewHoldManager(store domain.Store, engine *availability.Engine, holdTTL time.Duration, now func() time.Time) *HoldManager {
	if now == nil {
		now = time.Now
	}
	return &HoldManager{store: store, engine: engine, holdTTL: holdTTL, now: now}
}

// Create re-checks availability for every room over the requested nights,
// excluding the caller's own session, and persists the hold only when the
// whole set is free. The check immediately precedes the write; anything older
// is treated as advisory.
func (m *HoldManager) Create(ctx context.Context, r domain.DateRange, rooms []string, guests domain.GuestCounts, category domain.GuestCategory, price int, sessionID string, bulk bool) (domain.Hold, error) {
	q := availability.Query{ExcludeSessionID: sessionID}
	if err := m.engine.CheckStay(ctx, r, rooms, q); err != nil {
		return domain.Hold{}, err
	}

	hold := domain.NewHold(r, rooms, guests, category, price, sessionID, bulk, m.now(), m.holdTTL)
	if err := m.store.CreateHold(ctx, hold); err != nil {
		return domain.Hold{}, err
	}
	return hold, nil
}

// Get returns the live hold or an ExpiredHoldError when it is gone or past
// its TTL; the two cases are indistinguishable to the caller by design.
func (m *HoldManager) Get(ctx context.Context, proposalID string) (*domain.Hold, error) {
	hold, err := m.store.GetHold(ctx, proposalID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, &domain.ExpiredHoldError{}
	}
	if err != nil {
		return nil, err
	}
	if hold.Expired(m.now()) {
		return nil, &domain.ExpiredHoldError{ProposalID: hold.ProposalID}
	}
	return hold, nil
}

// Delete is idempotent: deleting an unknown or already-deleted hold succeeds.
func (m *HoldManager) Delete(ctx context.Context, proposalID string) error {
	err := m.store.DeleteHold(ctx, proposalID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	return err
}

// DeleteForSession clears every hold of a session; used on final submission
// and on explicit abandonment.
func (m *HoldManager) DeleteForSession(ctx context.Context, sessionID string) error {
	return m.store.DeleteHoldsForSession(ctx, sessionID)
}

// ExpireHolds sweeps holds whose TTL has run out and returns them so callers
// can release locks and publish events.
func (m *HoldManager) ExpireHolds(ctx context.Context) ([]domain.Hold, error) {
	return m.store.DeleteExpiredHolds(ctx, m.now())
}

// SessionHolds lists the live holds belonging to sessionID over the window.
func (m *HoldManager) SessionHolds(ctx context.Context, sessionID string, window domain.DateRange) ([]domain.Hold, error) {
	all, err := m.store.ListHolds(ctx, "", window, "")
	if err != nil {
		return nil, err
	}
	now := m.now()
	var own []domain.Hold
	for _, h := range all {
		if h.SessionID == sessionID && !h.Expired(now) {
			own = append(own, h)
		}
	}
	return own, nil
}
