package pg

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mbartos/pension-reservations/internal/domain"
	"github.com/mbartos/pension-reservations/internal/observability"
)

const (
	serializationFailureCode = "40001"
	exclusionViolationCode   = "23P01"
)

// Repository is the transactional store for bookings, holds and blocks. The
// booking_rooms table carries an EXCLUDE constraint over (room_id, stay), so
// even if every application-level re-check is raced, two confirmed bookings
// can never claim the same room night.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	started := time.Now()
	defer func() {
		observability.DBTxDuration.Observe(time.Since(started).Seconds())
	}()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "SET TRANSACTION ISOLATION LEVEL SERIALIZABLE"); err != nil {
		return err
	}

	if err := fn(tx); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == serializationFailureCode {
			return domain.ErrSerializationFailure
		}
		return err
	}

	return tx.Commit(ctx)
}

func (r *Repository) ListBookings(ctx context.Context, roomID string, window domain.DateRange) ([]domain.Booking, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT b.id, b.start_date, b.end_date, b.adults, b.children, b.toddlers,
		       b.guest_category, b.guest_email, b.total_price, b.is_bulk, b.paid, b.edit_token, b.created_at
		FROM bookings b
		JOIN booking_rooms br ON br.booking_id = b.id
		WHERE ($1 = '' OR br.room_id = $1)
		  AND b.start_date < $3 AND b.end_date > $2
	`, roomID, window.Start.Time(), window.End.Time())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []domain.Booking
	var ids []uuid.UUID
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
		ids = append(ids, b.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := r.attachBookingRooms(ctx, bookings, ids); err != nil {
		return nil, err
	}
	return bookings, nil
}

func (r *Repository) attachBookingRooms(ctx context.Context, bookings []domain.Booking, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT booking_id, room_id, adults, children
		FROM booking_rooms WHERE booking_id = ANY($1)
	`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	byID := make(map[uuid.UUID]*domain.Booking, len(bookings))
	for i := range bookings {
		byID[bookings[i].ID] = &bookings[i]
	}
	for rows.Next() {
		var bookingID uuid.UUID
		var roomID string
		var adults, children int
		if err := rows.Scan(&bookingID, &roomID, &adults, &children); err != nil {
			return err
		}
		b := byID[bookingID]
		b.Rooms = append(b.Rooms, roomID)
		if b.PerRoomGuests == nil {
			b.PerRoomGuests = make(map[string]domain.GuestCounts)
		}
		b.PerRoomGuests[roomID] = domain.GuestCounts{Adults: adults, Children: children}
	}
	return rows.Err()
}

func (r *Repository) CreateBooking(ctx context.Context, b domain.Booking) error {
	return r.WithTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO bookings (id, start_date, end_date, adults, children, toddlers,
			                      guest_category, guest_email, total_price, is_bulk, paid, edit_token, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		`, b.ID, b.StartDate.Time(), b.EndDate.Time(), b.Guests.Adults, b.Guests.Children, b.Guests.Toddlers,
			string(b.GuestCategory), b.GuestEmail, b.TotalPrice, b.IsBulk, b.Paid, b.EditToken, b.CreatedAt)
		if err != nil {
			return err
		}
		for _, roomID := range b.Rooms {
			guests := b.PerRoomGuests[roomID]
			_, err := tx.Exec(ctx, `
				INSERT INTO booking_rooms (booking_id, room_id, adults, children, stay)
				VALUES ($1, $2, $3, $4, daterange($5::date, $6::date))
			`, b.ID, roomID, guests.Adults, guests.Children, b.StartDate.Time(), b.EndDate.Time())
			if err != nil {
				var pgErr *pgconn.PgError
				if errors.As(err, &pgErr) && pgErr.Code == exclusionViolationCode {
					return &domain.ConflictError{Date: b.StartDate, RoomID: roomID, Status: domain.StatusOccupied}
				}
				return err
			}
		}
		return nil
	})
}

func (r *Repository) GetBooking(ctx context.Context, id string) (*domain.Booking, error) {
	bookingID, err := uuid.Parse(id)
	if err != nil {
		return nil, domain.ErrNotFound
	}
	row := r.pool.QueryRow(ctx, `
		SELECT id, start_date, end_date, adults, children, toddlers,
		       guest_category, guest_email, total_price, is_bulk, paid, edit_token, created_at
		FROM bookings WHERE id = $1
	`, bookingID)
	b, err := scanBooking(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	bookings := []domain.Booking{b}
	if err := r.attachBookingRooms(ctx, bookings, []uuid.UUID{b.ID}); err != nil {
		return nil, err
	}
	return &bookings[0], nil
}

func (r *Repository) DeleteBooking(ctx context.Context, id string) error {
	bookingID, err := uuid.Parse(id)
	if err != nil {
		return domain.ErrNotFound
	}
	result, err := r.pool.Exec(ctx, `DELETE FROM bookings WHERE id = $1`, bookingID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *Repository) ListHolds(ctx context.Context, roomID string, window domain.DateRange, excludeSessionID string) ([]domain.Hold, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT h.proposal_id, h.session_id, h.start_date, h.end_date,
		       h.adults, h.children, h.toddlers, h.guest_category, h.total_price,
		       h.is_bulk, h.created_at, h.expires_at
		FROM holds h
		JOIN hold_rooms hr ON hr.proposal_id = h.proposal_id
		WHERE ($1 = '' OR hr.room_id = $1)
		  AND ($4 = '' OR h.session_id <> $4)
		  AND h.start_date < $3 AND h.end_date > $2
	`, roomID, window.Start.Time(), window.End.Time(), excludeSessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var holds []domain.Hold
	var ids []uuid.UUID
	for rows.Next() {
		h, err := scanHold(rows)
		if err != nil {
			return nil, err
		}
		holds = append(holds, h)
		ids = append(ids, h.ProposalID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := r.attachHoldRooms(ctx, holds, ids); err != nil {
		return nil, err
	}
	return holds, nil
}

func (r *Repository) attachHoldRooms(ctx context.Context, holds []domain.Hold, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT proposal_id, room_id FROM hold_rooms WHERE proposal_id = ANY($1)
	`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	byID := make(map[uuid.UUID]*domain.Hold, len(holds))
	for i := range holds {
		byID[holds[i].ProposalID] = &holds[i]
	}
	for rows.Next() {
		var proposalID uuid.UUID
		var roomID string
		if err := rows.Scan(&proposalID, &roomID); err != nil {
			return err
		}
		h := byID[proposalID]
		h.Rooms = append(h.Rooms, roomID)
	}
	return rows.Err()
}

func (r *Repository) CreateHold(ctx context.Context, h domain.Hold) error {
	return r.WithTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO holds (proposal_id, session_id, start_date, end_date, adults, children, toddlers,
			                   guest_category, total_price, is_bulk, created_at, expires_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		`, h.ProposalID, h.SessionID, h.StartDate.Time(), h.EndDate.Time(),
			h.Guests.Adults, h.Guests.Children, h.Guests.Toddlers,
			string(h.GuestCategory), h.TotalPrice, h.IsBulk, h.CreatedAt, h.ExpiresAt)
		if err != nil {
			return err
		}
		for _, roomID := range h.Rooms {
			if _, err := tx.Exec(ctx, `
				INSERT INTO hold_rooms (proposal_id, room_id)
				VALUES ($1, $2)
			`, h.ProposalID, roomID); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *Repository) GetHold(ctx context.Context, proposalID string) (*domain.Hold, error) {
	id, err := uuid.Parse(proposalID)
	if err != nil {
		return nil, domain.ErrNotFound
	}
	row := r.pool.QueryRow(ctx, `
		SELECT proposal_id, session_id, start_date, end_date, adults, children, toddlers,
		       guest_category, total_price, is_bulk, created_at, expires_at
		FROM holds WHERE proposal_id = $1
	`, id)
	h, err := scanHold(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	holds := []domain.Hold{h}
	if err := r.attachHoldRooms(ctx, holds, []uuid.UUID{h.ProposalID}); err != nil {
		return nil, err
	}
	return &holds[0], nil
}

func (r *Repository) DeleteHold(ctx context.Context, proposalID string) error {
	id, err := uuid.Parse(proposalID)
	if err != nil {
		return domain.ErrNotFound
	}
	result, err := r.pool.Exec(ctx, `DELETE FROM holds WHERE proposal_id = $1`, id)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *Repository) DeleteHoldsForSession(ctx context.Context, sessionID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM holds WHERE session_id = $1`, sessionID)
	return err
}

func (r *Repository) DeleteExpiredHolds(ctx context.Context, now time.Time) ([]domain.Hold, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT proposal_id, session_id, start_date, end_date, adults, children, toddlers,
		       guest_category, total_price, is_bulk, created_at, expires_at
		FROM holds WHERE expires_at <= $1
	`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var expired []domain.Hold
	var ids []uuid.UUID
	for rows.Next() {
		h, err := scanHold(rows)
		if err != nil {
			return nil, err
		}
		expired = append(expired, h)
		ids = append(ids, h.ProposalID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	if err := r.attachHoldRooms(ctx, expired, ids); err != nil {
		return nil, err
	}
	if _, err := r.pool.Exec(ctx, `DELETE FROM holds WHERE proposal_id = ANY($1)`, ids); err != nil {
		return nil, err
	}
	return expired, nil
}

func (r *Repository) ListBlocks(ctx context.Context, roomID string, window domain.DateRange) ([]domain.BlockedDate, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT b.id, b.start_date, b.end_date, b.reason,
		       COALESCE(array_agg(br.room_id) FILTER (WHERE br.room_id IS NOT NULL), '{}')
		FROM blocked_dates b
		LEFT JOIN blocked_rooms br ON br.block_id = b.id
		WHERE b.start_date < $2 AND b.end_date > $1
		GROUP BY b.id, b.start_date, b.end_date, b.reason
	`, window.Start.Time(), window.End.Time())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var blocks []domain.BlockedDate
	for rows.Next() {
		var b domain.BlockedDate
		var start, end time.Time
		var rooms []string
		if err := rows.Scan(&b.ID, &start, &end, &b.Reason, &rooms); err != nil {
			return nil, err
		}
		b.StartDate = domain.DateOf(start)
		b.EndDate = domain.DateOf(end)
		b.Rooms = rooms
		if roomID != "" && !b.AppliesTo(roomID) {
			continue
		}
		blocks = append(blocks, b)
	}
	return blocks, rows.Err()
}

func (r *Repository) CreateBlock(ctx context.Context, b domain.BlockedDate) error {
	return r.WithTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO blocked_dates (id, start_date, end_date, reason)
			VALUES ($1, $2, $3, $4)
		`, b.ID, b.StartDate.Time(), b.EndDate.Time(), b.Reason)
		if err != nil {
			return err
		}
		for _, roomID := range b.Rooms {
			if _, err := tx.Exec(ctx, `
				INSERT INTO blocked_rooms (block_id, room_id) VALUES ($1, $2)
			`, b.ID, roomID); err != nil {
				return err
			}
		}
		return nil
	})
}

type scannable interface {
	Scan(dest ...any) error
}

func scanBooking(row scannable) (domain.Booking, error) {
	var b domain.Booking
	var start, end time.Time
	var category string
	err := row.Scan(&b.ID, &start, &end, &b.Guests.Adults, &b.Guests.Children, &b.Guests.Toddlers,
		&category, &b.GuestEmail, &b.TotalPrice, &b.IsBulk, &b.Paid, &b.EditToken, &b.CreatedAt)
	if err != nil {
		return domain.Booking{}, err
	}
	b.StartDate = domain.DateOf(start)
	b.EndDate = domain.DateOf(end)
	b.GuestCategory = domain.GuestCategory(category)
	return b, nil
}

func scanHold(row scannable) (domain.Hold, error) {
	var h domain.Hold
	var start, end time.Time
	var category string
	err := row.Scan(&h.ProposalID, &h.SessionID, &start, &end,
		&h.Guests.Adults, &h.Guests.Children, &h.Guests.Toddlers,
		&category, &h.TotalPrice, &h.IsBulk, &h.CreatedAt, &h.ExpiresAt)
	if err != nil {
		return domain.Hold{}, err
	}
	h.StartDate = domain.DateOf(start)
	h.EndDate = domain.DateOf(end)
	h.GuestCategory = domain.GuestCategory(category)
	return h, nil
}
