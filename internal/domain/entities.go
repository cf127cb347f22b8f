package domain

import (
	"time"

	"github.com/google/uuid"
)

type SizeClass string

const (
	SizeSmall SizeClass = "small"
	SizeLarge SizeClass = "large"
)

type GuestCategory string

const (
	CategoryResident GuestCategory = "resident"
	CategoryExternal GuestCategory = "external"
)

// Room is static, admin-configured inventory. Beds counts adults and children;
// toddlers take no bed.
type Room struct {
	ID        string
	Beds      int
	SizeClass SizeClass
}

// GuestCounts is a party composition. Toddlers are free and excluded from
// capacity checks.
type GuestCounts struct {
	Adults   int `json:"adults"`
	Children int `json:"children"`
	Toddlers int `json:"toddlers"`
}

func (g GuestCounts) BedsNeeded() int { return g.Adults + g.Children }

// Booking is a confirmed reservation. Nights run over [StartDate, EndDate).
type Booking struct {
	ID            uuid.UUID
	Rooms         []string
	StartDate     Date
	EndDate       Date
	Guests        GuestCounts
	PerRoomGuests map[string]GuestCounts
	GuestCategory GuestCategory
	GuestEmail    string
	TotalPrice    int
	IsBulk        bool
	Paid          bool
	EditToken     string
	CreatedAt     time.Time
}

func (b Booking) Range() DateRange { return DateRange{Start: b.StartDate, End: b.EndDate} }

// Hold is a session-scoped proposed booking. It makes the covered nights
// provisionally unavailable to other sessions until it is deleted or its TTL
// runs out; the confirmed booking is always a new entity.
type Hold struct {
	ProposalID    uuid.UUID
	SessionID     string
	Rooms         []string
	StartDate     Date
	EndDate       Date
	Guests        GuestCounts
	GuestCategory GuestCategory
	TotalPrice    int
	IsBulk        bool
	CreatedAt     time.Time
	ExpiresAt     time.Time
}

func (h Hold) Range() DateRange { return DateRange{Start: h.StartDate, End: h.EndDate} }

func (h Hold) Expired(now time.Time) bool { return !h.ExpiresAt.After(now) }

func NewHold(r DateRange, rooms []string, guests GuestCounts, category GuestCategory, price int, sessionID string, bulk bool, now time.Time, ttl time.Duration) Hold {
	return Hold{
		ProposalID:    uuid.New(),
		SessionID:     sessionID,
		Rooms:         rooms,
		StartDate:     r.Start,
		EndDate:       r.End,
		Guests:        guests,
		GuestCategory: category,
		TotalPrice:    price,
		IsBulk:        bulk,
		CreatedAt:     now,
		ExpiresAt:     now.Add(ttl),
	}
}

// BlockedDate is an administrative block. Rooms is empty when the whole
// property is blocked. Blocks never expire on their own.
type BlockedDate struct {
	ID        uuid.UUID
	Rooms     []string
	StartDate Date
	EndDate   Date
	Reason    string
}

func (b BlockedDate) Range() DateRange { return DateRange{Start: b.StartDate, End: b.EndDate} }

func (b BlockedDate) AppliesTo(roomID string) bool {
	if len(b.Rooms) == 0 {
		return true
	}
	for _, id := range b.Rooms {
		if id == roomID {
			return true
		}
	}
	return false
}

// ChristmasPeriod is an admin-defined window with resident priority before the
// booking cutoff. Periods are non-overlapping by construction.
type ChristmasPeriod struct {
	PeriodID uuid.UUID
	Start    Date
	End      Date
	Year     int
}

func (p ChristmasPeriod) Range() DateRange { return DateRange{Start: p.Start, End: p.End} }

// RoomRate is the per-night price components for one (category, size class)
// cell of the price table.
type RoomRate struct {
	EmptyRoom int
	PerAdult  int
	PerChild  int
}

// PriceTable is keyed by guest category, then room size class.
type PriceTable map[GuestCategory]map[SizeClass]RoomRate

// BulkRates is the flat whole-property model: one base price per night plus a
// per-guest surcharge by category tag, independent of room count.
type BulkRates struct {
	BasePerNight  int
	ResidentAdult int
	ResidentChild int
	ExternalAdult int
	ExternalChild int
}

// Settings is the admin-maintained catalog the engine reads and never writes.
type Settings struct {
	Rooms                []Room
	Prices               PriceTable
	BulkPrices           BulkRates
	ChristmasPeriods     []ChristmasPeriod
	MaxRoomsBeforeCutoff int
}

func (s *Settings) Room(id string) (Room, bool) {
	for _, r := range s.Rooms {
		if r.ID == id {
			return r, true
		}
	}
	return Room{}, false
}

func (s *Settings) RoomIDs() []string {
	ids := make([]string, len(s.Rooms))
	for i, r := range s.Rooms {
		ids[i] = r.ID
	}
	return ids
}

// ChristmasPeriodFor returns the period whose days intersect the stay, if any.
// The comparison is on calendar days, boundaries included, so a checkout
// landing on the period's first day is still subject to the period's rules.
func (s *Settings) ChristmasPeriodFor(r DateRange) (ChristmasPeriod, bool) {
	for _, p := range s.ChristmasPeriods {
		if !r.End.Before(p.Start) && !r.Start.After(p.End) {
			return p, true
		}
	}
	return ChristmasPeriod{}, false
}
