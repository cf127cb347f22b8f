package reservation

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/mbartos/pension-reservations/internal/allocation"
	"github.com/mbartos/pension-reservations/internal/availability"
	"github.com/mbartos/pension-reservations/internal/domain"
	"github.com/mbartos/pension-reservations/internal/observability"
	"github.com/mbartos/pension-reservations/internal/pricing"
)

// Service drives a reservation through Selecting -> HoldCreated -> Finalizing
// -> Confirmed. Availability is re-checked at every transition: the store is
// shared between racing sessions and any earlier read is stale by the time it
// is acted on. Losing that race is a normal outcome reported as a
// ConflictError, never a corruption.
type Service struct {
	store    domain.Store
	settings domain.SettingsSource
	engine   *availability.Engine
	holds    *HoldManager
	logger   observability.Logger
	now      func() time.Time
	cutoff   func(year int) domain.Date
}

type ServiceOption func(*Service)

func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// WithChristmasCutoff overrides the date on which Christmas-period booking
// opens to everyone.
func WithChristmasCutoff(cutoff func(year int) domain.Date) ServiceOption {
	return func(s *Service) { s.cutoff = cutoff }
}

func NewService(store domain.Store, settings domain.SettingsSource, engine *availability.Engine, holds *HoldManager, logger observability.Logger, opts ...ServiceOption) *Service {
	s := &Service{
		store:    store,
		settings: settings,
		engine:   engine,
		holds:    holds,
		logger:   logger,
		now:      time.Now,
		cutoff: func(year int) domain.Date {
			return domain.DateOf(time.Date(year, time.October, 1, 0, 0, 0, 0, time.UTC))
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StayRequest is a candidate booking: one room, several rooms, or the whole
// property. For bulk requests Rooms is ignored and BulkGuests carries the
// per-category party; otherwise Guests and Category describe the whole party.
type StayRequest struct {
	SessionID  string
	Start      domain.Date
	End        domain.Date
	Rooms      []string
	Bulk       bool
	Guests     domain.GuestCounts
	BulkGuests pricing.BulkGuests
	Category   domain.GuestCategory
}

func (r StayRequest) Range() domain.DateRange {
	return domain.DateRange{Start: r.Start, End: r.End}
}

func (r StayRequest) party() domain.GuestCounts {
	if r.Bulk {
		return r.BulkGuests.Total()
	}
	return r.Guests
}

// Quote is a priced allocation, also served standalone for live previews.
type Quote struct {
	Rooms      []string                      `json:"rooms"`
	Nights     int                           `json:"nights"`
	TotalPrice int                           `json:"total_price"`
	PerRoom    map[string]domain.GuestCounts `json:"per_room"`
}

// ConfirmRequest finishes the flow for a session holding a proposal.
type ConfirmRequest struct {
	SessionID  string
	ProposalID string
	GuestEmail string
	Paid       bool
}

// Price validates the request and computes its quote without touching
// bookings or holds.
func (s *Service) Price(ctx context.Context, req StayRequest) (Quote, error) {
	settings, err := s.settings.GetSettings(ctx)
	if err != nil {
		return Quote{}, err
	}
	rooms, err := s.validate(&req, settings)
	if err != nil {
		return Quote{}, err
	}
	return s.quote(req, rooms, settings)
}

// CreateHold is the Selecting -> HoldCreated transition. Input validation and
// the Christmas rules run before any availability read; the availability
// check itself happens inside HoldManager.Create, immediately before the
// write.
func (s *Service) CreateHold(ctx context.Context, req StayRequest) (domain.Hold, Quote, error) {
	settings, err := s.settings.GetSettings(ctx)
	if err != nil {
		return domain.Hold{}, Quote{}, err
	}
	rooms, err := s.validate(&req, settings)
	if err != nil {
		return domain.Hold{}, Quote{}, err
	}
	if err := s.checkChristmas(ctx, req, settings); err != nil {
		return domain.Hold{}, Quote{}, err
	}
	quote, err := s.quote(req, rooms, settings)
	if err != nil {
		return domain.Hold{}, Quote{}, err
	}

	hold, err := s.holds.Create(ctx, req.Range(), quote.Rooms, req.party(), req.Category, quote.TotalPrice, req.SessionID, req.Bulk)
	if err != nil {
		if conflict := domain.IsConflictError(err); conflict != nil {
			observability.ConflictsTotal.Inc()
			s.logger.WithField("session_id", req.SessionID).
				WithField("room_id", conflict.RoomID).
				Info("hold rejected: ", conflict)
		}
		return domain.Hold{}, Quote{}, err
	}
	observability.HoldsCreated.Inc()
	return hold, quote, nil
}

// Finalize is the HoldCreated -> Finalizing transition: the race-condition
// guard before the contact/payment form is shown. Another session may have
// confirmed the same nights since the hold was created, so the stay is
// checked again, excluding the caller's own session.
func (s *Service) Finalize(ctx context.Context, sessionID, proposalID string) (*domain.Hold, error) {
	hold, err := s.holds.Get(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	if hold.SessionID != sessionID {
		return nil, &domain.ExpiredHoldError{ProposalID: hold.ProposalID}
	}
	q := availability.Query{ExcludeSessionID: sessionID}
	if err := s.engine.CheckStay(ctx, hold.Range(), hold.Rooms, q); err != nil {
		return nil, err
	}
	return hold, nil
}

// Confirm is the Finalizing -> Confirmed transition. It re-validates one last
// time, persists the booking as a new entity, and deletes every hold of the
// session; the hold never converts into the booking.
func (s *Service) Confirm(ctx context.Context, req ConfirmRequest) (domain.Booking, error) {
	hold, err := s.Finalize(ctx, req.SessionID, req.ProposalID)
	if err != nil {
		return domain.Booking{}, err
	}
	if req.GuestEmail == "" {
		return domain.Booking{}, domain.NewValidationError("email", "must not be empty")
	}

	settings, err := s.settings.GetSettings(ctx)
	if err != nil {
		return domain.Booking{}, err
	}
	perRoom, err := s.allocateForRooms(hold.Guests, hold.Rooms, settings)
	if err != nil {
		return domain.Booking{}, err
	}

	booking := domain.Booking{
		ID:            uuid.New(),
		Rooms:         hold.Rooms,
		StartDate:     hold.StartDate,
		EndDate:       hold.EndDate,
		Guests:        hold.Guests,
		PerRoomGuests: perRoom,
		GuestCategory: hold.GuestCategory,
		GuestEmail:    req.GuestEmail,
		TotalPrice:    hold.TotalPrice,
		IsBulk:        hold.IsBulk,
		Paid:          req.Paid,
		EditToken:     uuid.NewString(),
		CreatedAt:     s.now(),
	}
	if err := s.store.CreateBooking(ctx, booking); err != nil {
		return domain.Booking{}, err
	}
	if err := s.holds.DeleteForSession(ctx, req.SessionID); err != nil {
		s.logger.WithField("session_id", req.SessionID).Warn("failed to clear session holds: ", err)
	}
	observability.BookingsConfirmed.Inc()
	return booking, nil
}

// GetBooking fetches a confirmed booking by id.
func (s *Service) GetBooking(ctx context.Context, bookingID string) (*domain.Booking, error) {
	return s.store.GetBooking(ctx, bookingID)
}

// Cancel deletes a confirmed booking when the caller presents its edit token.
func (s *Service) Cancel(ctx context.Context, bookingID, editToken string) error {
	booking, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return err
	}
	if booking.EditToken != editToken {
		return domain.NewValidationError("edit_token", "does not match")
	}
	return s.store.DeleteBooking(ctx, bookingID)
}

func (s *Service) validate(req *StayRequest, settings *domain.Settings) ([]domain.Room, error) {
	r := req.Range()
	if err := r.Validate(); err != nil {
		return nil, domain.NewValidationError("dates", err.Error())
	}
	today := domain.DateOf(s.now())
	if req.Start.Before(today) {
		return nil, domain.NewValidationError("dates", "stay starts in the past")
	}
	if req.Category != domain.CategoryResident && req.Category != domain.CategoryExternal {
		return nil, domain.NewValidationError("category", "must be resident or external")
	}
	if req.party().BedsNeeded() == 0 {
		return nil, domain.NewValidationError("guests", "party must include at least one adult or child")
	}

	if req.Bulk {
		req.Rooms = settings.RoomIDs()
	}
	if len(req.Rooms) == 0 {
		return nil, domain.NewValidationError("rooms", "select at least one room")
	}

	seen := make(map[string]bool, len(req.Rooms))
	rooms := make([]domain.Room, 0, len(req.Rooms))
	for _, id := range req.Rooms {
		if seen[id] {
			return nil, domain.NewValidationError("rooms", "duplicate room "+id)
		}
		seen[id] = true
		room, ok := settings.Room(id)
		if !ok {
			return nil, domain.NewValidationError("rooms", "unknown room "+id)
		}
		rooms = append(rooms, room)
	}

	if len(rooms) == 1 && req.party().BedsNeeded() > rooms[0].Beds {
		return nil, &domain.CapacityError{RoomID: rooms[0].ID, Beds: rooms[0].Beds, Guests: req.party().BedsNeeded()}
	}
	return rooms, nil
}

// checkChristmas enforces the pre-cutoff access rules for stays touching a
// Christmas period: residents only, no bulk bookings, and at most the
// configured number of rooms per session across the period. After the cutoff
// the period behaves like any other dates.
func (s *Service) checkChristmas(ctx context.Context, req StayRequest, settings *domain.Settings) error {
	period, ok := settings.ChristmasPeriodFor(req.Range())
	if !ok {
		return nil
	}
	today := domain.DateOf(s.now())
	if !today.Before(s.cutoff(period.Year)) {
		return nil
	}

	if req.Bulk {
		return &domain.ChristmasRestrictionError{Period: period, Reason: "whole-property bookings open after the cutoff"}
	}
	if req.Category != domain.CategoryResident {
		return &domain.ChristmasRestrictionError{Period: period, Reason: "reserved for residents before the cutoff"}
	}

	maxRooms := settings.MaxRoomsBeforeCutoff
	if maxRooms <= 0 {
		maxRooms = 2
	}
	held := make(map[string]bool)
	own, err := s.holds.SessionHolds(ctx, req.SessionID, period.Range())
	if err != nil {
		return err
	}
	for _, h := range own {
		if h.Range().Overlaps(period.Range()) {
			for _, id := range h.Rooms {
				held[id] = true
			}
		}
	}
	for _, id := range req.Rooms {
		held[id] = true
	}
	if len(held) > maxRooms {
		return &domain.ChristmasRestrictionError{Period: period, Reason: "room limit reached for this period"}
	}
	return nil
}

func (s *Service) quote(req StayRequest, rooms []domain.Room, settings *domain.Settings) (Quote, error) {
	calc := pricing.NewCalculator(settings.Prices, settings.BulkPrices)
	nights := req.Range().Nights()

	party := req.party()
	perRoom, err := allocation.Allocate(party.Adults, party.Children, rooms)
	if err != nil {
		return Quote{}, err
	}

	var total int
	if req.Bulk {
		total, err = calc.BulkPrice(req.BulkGuests, nights)
	} else {
		total, err = calc.MultiRoomPrice(rooms, perRoom, req.Category, nights)
	}
	if err != nil {
		return Quote{}, err
	}

	ids := make([]string, len(rooms))
	for i, room := range rooms {
		ids[i] = room.ID
	}
	return Quote{Rooms: ids, Nights: nights, TotalPrice: total, PerRoom: perRoom}, nil
}

func (s *Service) allocateForRooms(guests domain.GuestCounts, roomIDs []string, settings *domain.Settings) (map[string]domain.GuestCounts, error) {
	rooms := make([]domain.Room, 0, len(roomIDs))
	for _, id := range roomIDs {
		room, ok := settings.Room(id)
		if !ok {
			return nil, domain.NewValidationError("rooms", "unknown room "+id)
		}
		rooms = append(rooms, room)
	}
	return allocation.Allocate(guests.Adults, guests.Children, rooms)
}
