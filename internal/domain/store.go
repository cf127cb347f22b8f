package domain

import (
	"context"
	"time"
)

// Store is the persistence surface the engine depends on. Listing calls take
// an optional room id ("" means all rooms) and a date range filter; holds are
// returned regardless of expiry, callers decide liveness against their clock.
type Store interface {
	ListBookings(ctx context.Context, roomID string, r DateRange) ([]Booking, error)
	ListHolds(ctx context.Context, roomID string, r DateRange, excludeSessionID string) ([]Hold, error)
	ListBlocks(ctx context.Context, roomID string, r DateRange) ([]BlockedDate, error)

	CreateBooking(ctx context.Context, b Booking) error
	GetBooking(ctx context.Context, id string) (*Booking, error)
	DeleteBooking(ctx context.Context, id string) error

	CreateHold(ctx context.Context, h Hold) error
	GetHold(ctx context.Context, proposalID string) (*Hold, error)
	DeleteHold(ctx context.Context, proposalID string) error
	DeleteHoldsForSession(ctx context.Context, sessionID string) error
	DeleteExpiredHolds(ctx context.Context, now time.Time) ([]Hold, error)
}

// SettingsSource serves the admin catalog: rooms, price tables and Christmas
// periods. Read-only from the engine's point of view.
type SettingsSource interface {
	GetSettings(ctx context.Context) (*Settings, error)
}
