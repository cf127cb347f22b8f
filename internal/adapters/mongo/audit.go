package mongo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/mbartos/pension-reservations/internal/domain"
	"github.com/mbartos/pension-reservations/internal/observability"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type AuditLogger struct {
	coll   *mongo.Collection
	logger observability.Logger
}

func NewAuditLogger(db *mongo.Database, logger observability.Logger) *AuditLogger {
	return &AuditLogger{
		coll:   db.Collection("audit_logs"),
		logger: logger,
	}
}

type AuditLog struct {
	ID        uuid.UUID `bson:"_id"`
	Action    string    `bson:"action"`
	SessionID string    `bson:"session_id"`
	Timestamp time.Time `bson:"timestamp"`
	Data      bson.M    `bson:"data"`
}

func (a *AuditLogger) LogEvent(ctx context.Context, action, sessionID string, data map[string]interface{}) error {
	log := AuditLog{
		ID:        uuid.New(),
		Action:    action,
		SessionID: sessionID,
		Timestamp: time.Now(),
		Data:      bson.M(data),
	}
	_, err := a.coll.InsertOne(ctx, log)
	if err != nil {
		a.logger.Error("failed to insert audit log", err)
		return err
	}
	return nil
}

func (a *AuditLogger) LogHold(ctx context.Context, hold domain.Hold) error {
	data := map[string]interface{}{
		"proposal_id": hold.ProposalID,
		"rooms":       hold.Rooms,
		"start":       hold.StartDate.String(),
		"end":         hold.EndDate.String(),
		"expires_at":  hold.ExpiresAt.Format(time.RFC3339),
	}
	return a.LogEvent(ctx, "hold.created", hold.SessionID, data)
}

func (a *AuditLogger) LogBooking(ctx context.Context, booking domain.Booking, sessionID string) error {
	data := map[string]interface{}{
		"booking_id": booking.ID,
		"rooms":      booking.Rooms,
		"start":      booking.StartDate.String(),
		"end":        booking.EndDate.String(),
		"total":      booking.TotalPrice,
		"bulk":       booking.IsBulk,
	}
	return a.LogEvent(ctx, "booking.confirmed", sessionID, data)
}
