package http

import (
	"encoding/json"
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mbartos/pension-reservations/internal/adapters/mongo"
	"github.com/mbartos/pension-reservations/internal/adapters/pg"
	"github.com/mbartos/pension-reservations/internal/adapters/rabbit"
	redisadapter "github.com/mbartos/pension-reservations/internal/adapters/redis"
	"github.com/mbartos/pension-reservations/internal/availability"
	"github.com/mbartos/pension-reservations/internal/config"
	"github.com/mbartos/pension-reservations/internal/domain"
	"github.com/mbartos/pension-reservations/internal/idempotency"
	"github.com/mbartos/pension-reservations/internal/pricing"
	"github.com/mbartos/pension-reservations/internal/reservation"
)

type Handlers struct {
	cfg      *config.Config
	svc      *reservation.Service
	holds    *reservation.HoldManager
	engine   *availability.Engine
	settings domain.SettingsSource
	repo     *pg.Repository
	redis    *redisadapter.Cache
	idemp    *idempotency.Idempotency
	audit    *mongo.AuditLogger
}

func NewHandlers(cfg *config.Config, svc *reservation.Service, holds *reservation.HoldManager, engine *availability.Engine, settings domain.SettingsSource, repo *pg.Repository, redis *redisadapter.Cache, idemp *idempotency.Idempotency, audit *mongo.AuditLogger) *Handlers {
	return &Handlers{
		cfg:      cfg,
		svc:      svc,
		holds:    holds,
		engine:   engine,
		settings: settings,
		repo:     repo,
		redis:    redis,
		idemp:    idemp,
		audit:    audit,
	}
}

type stayRequestBody struct {
	SessionID string             `json:"session_id"`
	Start     domain.Date        `json:"start"`
	End       domain.Date        `json:"end"`
	Rooms     []string           `json:"rooms"`
	Bulk      bool               `json:"bulk"`
	Guests    domain.GuestCounts `json:"guests"`
	BulkGuests struct {
		ResidentAdults   int `json:"resident_adults"`
		ResidentChildren int `json:"resident_children"`
		ExternalAdults   int `json:"external_adults"`
		ExternalChildren int `json:"external_children"`
		Toddlers         int `json:"toddlers"`
	} `json:"bulk_guests"`
	Category string `json:"category"`
}

func (b stayRequestBody) toRequest() reservation.StayRequest {
	return reservation.StayRequest{
		SessionID: b.SessionID,
		Start:     b.Start,
		End:       b.End,
		Rooms:     b.Rooms,
		Bulk:      b.Bulk,
		Guests:    b.Guests,
		BulkGuests: pricing.BulkGuests{
			ResidentAdults:   b.BulkGuests.ResidentAdults,
			ResidentChildren: b.BulkGuests.ResidentChildren,
			ExternalAdults:   b.BulkGuests.ExternalAdults,
			ExternalChildren: b.BulkGuests.ExternalChildren,
			Toddlers:         b.BulkGuests.Toddlers,
		},
		Category: domain.GuestCategory(b.Category),
	}
}

// GetAvailability renders the calendar data for one room over a date window.
func (h *Handlers) GetAvailability(w http.ResponseWriter, r *http.Request) {
	roomID := r.URL.Query().Get("room")
	if roomID == "" {
		http.Error(w, "missing room", http.StatusBadRequest)
		return
	}
	from, to, err := parseWindow(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	q := availability.Query{
		ExcludeSessionID: r.URL.Query().Get("session"),
		ExcludeBookingID: r.URL.Query().Get("exclude_booking"),
	}
	days, err := h.engine.RoomCalendar(r.Context(), from, to, roomID, q)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"room_id": roomID, "days": days})
}

// GetBulkAvailability aggregates availability across every room for
// whole-property selection.
func (h *Handlers) GetBulkAvailability(w http.ResponseWriter, r *http.Request) {
	from, to, err := parseWindow(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	settings, err := h.settings.GetSettings(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	q := availability.Query{ExcludeSessionID: r.URL.Query().Get("session")}
	statuses, err := h.engine.BulkCalendar(r.Context(), from, to, settings.RoomIDs(), q)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"days": statuses})
}

// Quote computes a live price preview without creating anything.
func (h *Handlers) Quote(w http.ResponseWriter, r *http.Request) {
	var body stayRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	quote, err := h.svc.Price(r.Context(), body.toRequest())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

func (h *Handlers) CreateHold(w http.ResponseWriter, r *http.Request) {
	key := r.Header.Get("Idempotency-Key")
	if replayed := h.replay(w, r, key); replayed {
		return
	}

	var body stayRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	req := body.toRequest()

	lockRooms := req.Rooms
	if req.Bulk {
		settings, err := h.settings.GetSettings(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		lockRooms = settings.RoomIDs()
	}

	// Night locks shrink the re-check/commit race to the SetNX round trip;
	// losing one means another session is holding the same night right now.
	stay := domain.DateRange{Start: req.Start, End: req.End}
	if !stay.Start.IsZero() && !stay.End.IsZero() && stay.Start.Before(stay.End) {
		for _, roomID := range lockRooms {
			for d := stay.Start; d.Before(stay.End); d = d.AddDays(1) {
				ok, err := h.redis.SetNightLock(r.Context(), roomID, d, req.SessionID, h.cfg.HoldTTL)
				if err != nil {
					writeError(w, err)
					return
				}
				if !ok {
					writeError(w, &domain.ConflictError{Date: d, RoomID: roomID, Status: domain.StatusProposed})
					return
				}
			}
		}
	}

	hold, quote, err := h.svc.CreateHold(r.Context(), req)
	if err != nil {
		h.redis.ReleaseNightLocks(r.Context(), lockRooms, stay)
		writeError(w, err)
		return
	}
	h.audit.LogHold(r.Context(), hold)
	h.stageHoldEvent(r, rabbit.KeyHoldCreated, hold)

	data := h.respond(w, http.StatusCreated, map[string]interface{}{
		"proposal_id": hold.ProposalID,
		"expires_at":  hold.ExpiresAt,
		"rooms":       hold.Rooms,
		"total_price": hold.TotalPrice,
		"per_room":    quote.PerRoom,
	})
	h.idemp.Set(r.Context(), key, idempotency.Response{Status: http.StatusCreated, Result: data})
}

func (h *Handlers) DeleteHold(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	hold, err := h.holds.Get(r.Context(), id)
	if err != nil && !domain.IsExpiredHoldError(err) {
		writeError(w, err)
		return
	}
	if err := h.holds.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	if hold != nil {
		h.redis.ReleaseNightLocks(r.Context(), hold.Rooms, hold.Range())
	}
	w.WriteHeader(http.StatusNoContent)
}

// FinalizeHold is the race-condition guard between the hold and the contact
// form: the stay is re-validated before the caller may proceed.
func (h *Handlers) FinalizeHold(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sessionID := r.URL.Query().Get("session")
	hold, err := h.svc.Finalize(r.Context(), sessionID, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"proposal_id": hold.ProposalID,
		"rooms":       hold.Rooms,
		"start":       hold.StartDate,
		"end":         hold.EndDate,
		"total_price": hold.TotalPrice,
		"expires_at":  hold.ExpiresAt,
	})
}

func (h *Handlers) ConfirmBooking(w http.ResponseWriter, r *http.Request) {
	key := r.Header.Get("Idempotency-Key")
	if replayed := h.replay(w, r, key); replayed {
		return
	}

	var body struct {
		SessionID  string `json:"session_id"`
		ProposalID string `json:"proposal_id"`
		Email      string `json:"email"`
		Paid       bool   `json:"paid"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	booking, err := h.svc.Confirm(r.Context(), reservation.ConfirmRequest{
		SessionID:  body.SessionID,
		ProposalID: body.ProposalID,
		GuestEmail: body.Email,
		Paid:       body.Paid,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	h.releaseBookingLocks(r, booking)
	h.stageEvent(r, rabbit.KeyBookingConfirmed, booking)
	h.audit.LogBooking(r.Context(), booking, body.SessionID)

	data := h.respond(w, http.StatusCreated, map[string]interface{}{
		"booking_id":  booking.ID,
		"edit_token":  booking.EditToken,
		"rooms":       booking.Rooms,
		"start":       booking.StartDate,
		"end":         booking.EndDate,
		"total_price": booking.TotalPrice,
	})
	h.idemp.Set(r.Context(), key, idempotency.Response{Status: http.StatusCreated, Result: data})
}

func (h *Handlers) GetBooking(w http.ResponseWriter, r *http.Request) {
	booking, err := h.svc.GetBooking(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"booking_id":  booking.ID,
		"rooms":       booking.Rooms,
		"start":       booking.StartDate,
		"end":         booking.EndDate,
		"guests":      booking.Guests,
		"per_room":    booking.PerRoomGuests,
		"total_price": booking.TotalPrice,
		"bulk":        booking.IsBulk,
		"paid":        booking.Paid,
	})
}

func (h *Handlers) CancelBooking(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	token := r.URL.Query().Get("token")
	booking, err := h.svc.GetBooking(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.svc.Cancel(r.Context(), id, token); err != nil {
		writeError(w, err)
		return
	}
	h.stageEvent(r, rabbit.KeyBookingCancelled, *booking)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (h *Handlers) Readyz(w http.ResponseWriter, r *http.Request) {
	if _, err := h.settings.GetSettings(r.Context()); err != nil {
		http.Error(w, "settings unavailable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Ready"))
}

func (h *Handlers) replay(w http.ResponseWriter, r *http.Request, key string) bool {
	existing, err := h.idemp.Get(r.Context(), key)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return true
	}
	if existing != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(existing.Status)
		w.Write(existing.Result)
		return true
	}
	return false
}

func (h *Handlers) releaseBookingLocks(r *http.Request, booking domain.Booking) {
	h.redis.ReleaseNightLocks(r.Context(), booking.Rooms, booking.Range())
}

// stageEvent writes the event to the outbox; the background publisher gets it
// to the broker.
func (h *Handlers) stageEvent(r *http.Request, eventType string, booking domain.Booking) {
	payload, _ := json.Marshal(map[string]interface{}{
		"booking_id": booking.ID,
		"rooms":      booking.Rooms,
		"start":      booking.StartDate,
		"end":        booking.EndDate,
		"email":      booking.GuestEmail,
	})
	rec := pg.OutboxRecord{
		ID:            uuid.New(),
		AggregateType: "booking",
		AggregateID:   booking.ID,
		EventType:     eventType,
		Payload:       payload,
		DedupeKey:     uuid.New().String(),
	}
	h.repo.WithTx(r.Context(), func(tx pgx.Tx) error {
		return h.repo.InsertOutbox(r.Context(), tx, rec)
	})
}

func (h *Handlers) stageHoldEvent(r *http.Request, eventType string, hold domain.Hold) {
	payload, _ := json.Marshal(map[string]interface{}{
		"proposal_id": hold.ProposalID,
		"session_id":  hold.SessionID,
		"rooms":       hold.Rooms,
		"start":       hold.StartDate,
		"end":         hold.EndDate,
		"expires_at":  hold.ExpiresAt,
	})
	rec := pg.OutboxRecord{
		ID:            uuid.New(),
		AggregateType: "hold",
		AggregateID:   hold.ProposalID,
		EventType:     eventType,
		Payload:       payload,
		DedupeKey:     uuid.New().String(),
	}
	h.repo.WithTx(r.Context(), func(tx pgx.Tx) error {
		return h.repo.InsertOutbox(r.Context(), tx, rec)
	})
}

func parseWindow(r *http.Request) (domain.Date, domain.Date, error) {
	from, err := domain.ParseDate(r.URL.Query().Get("from"))
	if err != nil {
		return domain.Date{}, domain.Date{}, err
	}
	to, err := domain.ParseDate(r.URL.Query().Get("to"))
	if err != nil {
		return domain.Date{}, domain.Date{}, err
	}
	if to.Before(from) {
		return domain.Date{}, domain.Date{}, errors.New("to precedes from")
	}
	return from, to, nil
}

func (h *Handlers) respond(w http.ResponseWriter, status int, payload interface{}) []byte {
	data, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
	return data
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// writeError maps the domain taxonomy to HTTP statuses. Everything typed is
// an expected outcome the UI explains to the user.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case domain.IsValidationError(err):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case domain.IsConflictError(err) != nil:
		conflict := domain.IsConflictError(err)
		writeJSON(w, http.StatusConflict, map[string]interface{}{
			"error":  err.Error(),
			"date":   conflict.Date,
			"room":   conflict.RoomID,
			"status": conflict.Status,
		})
	case domain.IsCapacityError(err):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
	case domain.IsChristmasRestrictionError(err):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": err.Error()})
	case domain.IsExpiredHoldError(err):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, domain.ErrSerializationFailure):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "conflict, try again"})
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}
