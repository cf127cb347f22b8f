package pricing

import (
	"github.com/cockroachdb/errors"
	"github.com/mbartos/pension-reservations/internal/domain"
)

// Calculator prices stays from the admin rate tables. All amounts are integer
// currency units; the per-night unit price is assembled in full before the
// nights multiplication so rounding never distributes per guest.
type Calculator struct {
	prices domain.PriceTable
	bulk   domain.BulkRates
}

func NewCalculator(prices domain.PriceTable, bulk domain.BulkRates) *Calculator {
	return &Calculator{prices: prices, bulk: bulk}
}

// StayPrice prices a single-room stay: empty-room base plus per-adult and
// per-child surcharges looked up by (category, size class), times nights.
// Toddlers are free and never enter the formula.
func (c *Calculator) StayPrice(sizeClass domain.SizeClass, category domain.GuestCategory, adults, children, nights int) (int, error) {
	if nights <= 0 {
		return 0, domain.NewValidationError("nights", "must be positive")
	}
	if adults < 0 || children < 0 {
		return 0, domain.NewValidationError("guests", "must not be negative")
	}
	rate, err := c.rate(sizeClass, category)
	if err != nil {
		return 0, err
	}
	perNight := rate.EmptyRoom + adults*rate.PerAdult + children*rate.PerChild
	return perNight * nights, nil
}

// BulkGuests tags the whole party per guest category; the flat model sums
// surcharges per guest, so a single bulk booking can mix resident and
// external guests at their own rates.
type BulkGuests struct {
	ResidentAdults   int
	ResidentChildren int
	ExternalAdults   int
	ExternalChildren int
	Toddlers         int
}

func (g BulkGuests) Total() domain.GuestCounts {
	return domain.GuestCounts{
		Adults:   g.ResidentAdults + g.ExternalAdults,
		Children: g.ResidentChildren + g.ExternalChildren,
		Toddlers: g.Toddlers,
	}
}

// BulkPrice prices a whole-property booking: one base per night regardless of
// room count, plus the per-guest surcharges, times nights.
func (c *Calculator) BulkPrice(guests BulkGuests, nights int) (int, error) {
	if nights <= 0 {
		return 0, domain.NewValidationError("nights", "must be positive")
	}
	if guests.ResidentAdults < 0 || guests.ResidentChildren < 0 ||
		guests.ExternalAdults < 0 || guests.ExternalChildren < 0 {
		return 0, domain.NewValidationError("guests", "must not be negative")
	}
	perNight := c.bulk.BasePerNight +
		guests.ResidentAdults*c.bulk.ResidentAdult +
		guests.ResidentChildren*c.bulk.ResidentChild +
		guests.ExternalAdults*c.bulk.ExternalAdult +
		guests.ExternalChildren*c.bulk.ExternalChild
	return perNight * nights, nil
}

// MultiRoomPrice sums StayPrice over a per-room allocation, each room at its
// own size-class rate under one guest category.
func (c *Calculator) MultiRoomPrice(rooms []domain.Room, perRoom map[string]domain.GuestCounts, category domain.GuestCategory, nights int) (int, error) {
	total := 0
	for _, room := range rooms {
		guests := perRoom[room.ID]
		price, err := c.StayPrice(room.SizeClass, category, guests.Adults, guests.Children, nights)
		if err != nil {
			return 0, err
		}
		total += price
	}
	return total, nil
}

func (c *Calculator) rate(sizeClass domain.SizeClass, category domain.GuestCategory) (domain.RoomRate, error) {
	bySize, ok := c.prices[category]
	if !ok {
		return domain.RoomRate{}, errors.Newf("no rates for category %q", category)
	}
	rate, ok := bySize[sizeClass]
	if !ok {
		return domain.RoomRate{}, errors.Newf("no %q rate for category %q", sizeClass, category)
	}
	return rate, nil
}
