package mongo

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/mbartos/pension-reservations/internal/domain"
	"github.com/mbartos/pension-reservations/internal/observability"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// SettingsRepository serves the admin catalog: rooms, price tables and
// Christmas periods. The admin UI writes it; this service only reads.
type SettingsRepository struct {
	coll   *mongo.Collection
	logger observability.Logger
}

func NewSettingsRepository(db *mongo.Database, logger observability.Logger) *SettingsRepository {
	return &SettingsRepository{
		coll:   db.Collection("settings"),
		logger: logger,
	}
}

type settingsDoc struct {
	ID                   string               `bson:"_id"`
	Rooms                []roomDoc            `bson:"rooms"`
	Prices               map[string]sizeRates `bson:"prices"`
	BulkPrices           bulkDoc              `bson:"bulk_prices"`
	ChristmasPeriods     []christmasDoc       `bson:"christmas_periods"`
	MaxRoomsBeforeCutoff int                  `bson:"max_rooms_before_cutoff"`
}

type roomDoc struct {
	ID        string `bson:"_id"`
	Beds      int    `bson:"beds"`
	SizeClass string `bson:"size_class"`
}

type sizeRates map[string]rateDoc

type rateDoc struct {
	EmptyRoom int `bson:"empty_room"`
	PerAdult  int `bson:"per_adult"`
	PerChild  int `bson:"per_child"`
}

type bulkDoc struct {
	BasePerNight  int `bson:"base_per_night"`
	ResidentAdult int `bson:"resident_adult"`
	ResidentChild int `bson:"resident_child"`
	ExternalAdult int `bson:"external_adult"`
	ExternalChild int `bson:"external_child"`
}

type christmasDoc struct {
	PeriodID string `bson:"_id"`
	Start    string `bson:"start"`
	End      string `bson:"end"`
	Year     int    `bson:"year"`
}

const settingsDocID = "current"

func (r *SettingsRepository) GetSettings(ctx context.Context) (*domain.Settings, error) {
	var doc settingsDoc
	err := r.coll.FindOne(ctx, bson.M{"_id": settingsDocID}).Decode(&doc)
	if err != nil {
		r.logger.Error("failed to load settings", err)
		return nil, err
	}
	return doc.toDomain()
}

func (d settingsDoc) toDomain() (*domain.Settings, error) {
	s := &domain.Settings{MaxRoomsBeforeCutoff: d.MaxRoomsBeforeCutoff}
	for _, r := range d.Rooms {
		s.Rooms = append(s.Rooms, domain.Room{ID: r.ID, Beds: r.Beds, SizeClass: domain.SizeClass(r.SizeClass)})
	}
	s.Prices = make(domain.PriceTable, len(d.Prices))
	for category, bySize := range d.Prices {
		rates := make(map[domain.SizeClass]domain.RoomRate, len(bySize))
		for size, rate := range bySize {
			rates[domain.SizeClass(size)] = domain.RoomRate{EmptyRoom: rate.EmptyRoom, PerAdult: rate.PerAdult, PerChild: rate.PerChild}
		}
		s.Prices[domain.GuestCategory(category)] = rates
	}
	s.BulkPrices = domain.BulkRates{
		BasePerNight:  d.BulkPrices.BasePerNight,
		ResidentAdult: d.BulkPrices.ResidentAdult,
		ResidentChild: d.BulkPrices.ResidentChild,
		ExternalAdult: d.BulkPrices.ExternalAdult,
		ExternalChild: d.BulkPrices.ExternalChild,
	}
	for _, p := range d.ChristmasPeriods {
		start, err := domain.ParseDate(p.Start)
		if err != nil {
			return nil, errors.Wrapf(err, "christmas period %s", p.PeriodID)
		}
		end, err := domain.ParseDate(p.End)
		if err != nil {
			return nil, errors.Wrapf(err, "christmas period %s", p.PeriodID)
		}
		id, err := uuid.Parse(p.PeriodID)
		if err != nil {
			id = uuid.Nil
		}
		s.ChristmasPeriods = append(s.ChristmasPeriods, domain.ChristmasPeriod{
			PeriodID: id,
			Start:    start,
			End:      end,
			Year:     p.Year,
		})
	}
	return s, nil
}
