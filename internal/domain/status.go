package domain

// Status is the availability verdict for one room on one calendar date.
// Numeric order doubles as conflict priority: when several claims touch the
// same date the highest value wins.
type Status int

const (
	StatusAvailable Status = iota
	StatusEdge
	StatusProposed
	StatusOccupied
	StatusBlocked
)

func (s Status) String() string {
	switch s {
	case StatusAvailable:
		return "available"
	case StatusEdge:
		return "edge"
	case StatusProposed:
		return "proposed"
	case StatusOccupied:
		return "occupied"
	case StatusBlocked:
		return "blocked"
	}
	return "unknown"
}

func (s Status) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// Selectable reports whether the date can participate in a new stay. Edge days
// stay selectable because a checkout and a new checkin may share the date.
func (s Status) Selectable() bool {
	return s == StatusAvailable || s == StatusEdge
}

// WorstOf reduces per-room statuses for bulk queries.
func WorstOf(statuses ...Status) Status {
	worst := StatusAvailable
	for _, s := range statuses {
		if s > worst {
			worst = s
		}
	}
	return worst
}

// ClaimKind tells which sort of claim covers a night.
type ClaimKind string

const (
	ClaimNone      ClaimKind = ""
	ClaimConfirmed ClaimKind = "confirmed"
	ClaimProposed  ClaimKind = "proposed"
	ClaimBlocked   ClaimKind = "blocked"
)
