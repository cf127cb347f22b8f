package memory

import (
	"context"
	"sync"
	"time"

	"github.com/mbartos/pension-reservations/internal/domain"
)

// Store is an in-memory implementation of domain.Store and
// domain.SettingsSource. It backs unit tests and local runs without postgres;
// list calls return fresh slices so callers may filter in place.
type Store struct {
	mu       sync.RWMutex
	bookings map[string]domain.Booking
	holds    map[string]domain.Hold
	blocks   []domain.BlockedDate
	settings *domain.Settings
}

func NewStore(settings *domain.Settings) *Store {
	return &Store{
		bookings: make(map[string]domain.Booking),
		holds:    make(map[string]domain.Hold),
		settings: settings,
	}
}

func (s *Store) GetSettings(ctx context.Context) (*domain.Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings, nil
}

func (s *Store) ListBookings(ctx context.Context, roomID string, r domain.DateRange) ([]domain.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Booking
	for _, b := range s.bookings {
		if !b.Range().Overlaps(r) {
			continue
		}
		if roomID != "" && !containsRoom(b.Rooms, roomID) {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

func (s *Store) ListHolds(ctx context.Context, roomID string, r domain.DateRange, excludeSessionID string) ([]domain.Hold, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Hold
	for _, h := range s.holds {
		if !h.Range().Overlaps(r) {
			continue
		}
		if roomID != "" && !containsRoom(h.Rooms, roomID) {
			continue
		}
		if excludeSessionID != "" && h.SessionID == excludeSessionID {
			continue
		}
		out = append(out, h)
	}
	return out, nil
}

func (s *Store) ListBlocks(ctx context.Context, roomID string, r domain.DateRange) ([]domain.BlockedDate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.BlockedDate
	for _, b := range s.blocks {
		if !b.Range().Overlaps(r) {
			continue
		}
		if roomID != "" && !b.AppliesTo(roomID) {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

func (s *Store) CreateBooking(ctx context.Context, b domain.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bookings[b.ID.String()] = b
	return nil
}

func (s *Store) GetBooking(ctx context.Context, id string) (*domain.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bookings[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &b, nil
}

func (s *Store) DeleteBooking(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bookings[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.bookings, id)
	return nil
}

func (s *Store) CreateHold(ctx context.Context, h domain.Hold) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.holds[h.ProposalID.String()] = h
	return nil
}

func (s *Store) GetHold(ctx context.Context, proposalID string) (*domain.Hold, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.holds[proposalID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &h, nil
}

func (s *Store) DeleteHold(ctx context.Context, proposalID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.holds[proposalID]; !ok {
		return domain.ErrNotFound
	}
	delete(s.holds, proposalID)
	return nil
}

func (s *Store) DeleteHoldsForSession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, h := range s.holds {
		if h.SessionID == sessionID {
			delete(s.holds, id)
		}
	}
	return nil
}

func (s *Store) DeleteExpiredHolds(ctx context.Context, now time.Time) ([]domain.Hold, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var expired []domain.Hold
	for id, h := range s.holds {
		if h.Expired(now) {
			expired = append(expired, h)
			delete(s.holds, id)
		}
	}
	return expired, nil
}

// CreateBlock installs an admin block; tests use it to stage calendars.
func (s *Store) CreateBlock(ctx context.Context, b domain.BlockedDate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocks = append(s.blocks, b)
	return nil
}

func containsRoom(rooms []string, roomID string) bool {
	for _, id := range rooms {
		if id == roomID {
			return true
		}
	}
	return false
}
