package allocation

import (
	"sort"

	"github.com/mbartos/pension-reservations/internal/domain"
)

// Allocate distributes a party across rooms for multi-room and bulk bookings.
// Rooms are walked by capacity descending, room id ascending, and each room is
// filled adults-first; the same ordering runs at hold creation and at final
// submission so an assignment never shifts mid-flow. Every room gets an entry,
// zero-filled once guests run out, because pricing and display expect one
// entry per room.
func Allocate(totalAdults, totalChildren int, rooms []domain.Room) (map[string]domain.GuestCounts, error) {
	if totalAdults < 0 || totalChildren < 0 {
		return nil, domain.NewValidationError("guests", "must not be negative")
	}

	capacity := 0
	for _, r := range rooms {
		capacity += r.Beds
	}
	if totalAdults+totalChildren > capacity {
		return nil, &domain.CapacityError{Beds: capacity, Guests: totalAdults + totalChildren}
	}

	ordered := make([]domain.Room, len(rooms))
	copy(ordered, rooms)
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].Beds != ordered[j].Beds {
			return ordered[i].Beds > ordered[j].Beds
		}
		return ordered[i].ID < ordered[j].ID
	})

	remainingAdults, remainingChildren := totalAdults, totalChildren
	out := make(map[string]domain.GuestCounts, len(ordered))
	for _, room := range ordered {
		available := room.Beds
		if rest := remainingAdults + remainingChildren; rest < available {
			available = rest
		}
		adults := remainingAdults
		if adults > available {
			adults = available
		}
		children := available - adults
		remainingAdults -= adults
		remainingChildren -= children
		out[room.ID] = domain.GuestCounts{Adults: adults, Children: children}
	}
	return out, nil
}
