package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainbooking "wheelshare/internal/domain/booking"
	domainrange "wheelshare/internal/domain/shared/daterange"
	"wheelshare/internal/domain/shared/fault"
	"wheelshare/internal/domain/shared/money"
)

var ErrConcurrentUpdate = fault.New(fault.KindConflict, "mongo: concurrent update detected")

type BookingRepository struct {
	col *mongo.Collection
}

func NewBookingRepository(db *mongo.Database) *BookingRepository {
	col := db.Collection("agg_booking")
	// Blocking-status lookups per vehicle are the conflict detector's hot path.
	idx := mongo.IndexModel{Keys: bson.D{{Key: "vehicle_id", Value: 1}, {Key: "status", Value: 1}}}
	_, _ = col.Indexes().CreateOne(context.Background(), idx)
	return &BookingRepository{col: col}
}

func (r *BookingRepository) ByID(ctx context.Context, id domainbooking.BookingID) (*domainbooking.Booking, error) {
	var doc bookingDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainbooking.ErrBookingNotFound
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

// Save upserts the aggregate guarded by its version; a stale write surfaces
// ErrConcurrentUpdate instead of clobbering a concurrent transition.
func (r *BookingRepository) Save(ctx context.Context, b *domainbooking.Booking) error {
	doc := newBookingDocument(b)
	filter := bson.M{"_id": doc.ID, "version": b.Version}
	doc.Version = b.Version + 1
	update := bson.M{"$set": doc}
	opts := options.Update().SetUpsert(true)
	res, err := r.col.UpdateOne(ctx, filter, update, opts)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrConcurrentUpdate
		}
		return err
	}
	if res.MatchedCount == 0 && res.UpsertedCount == 0 {
		return ErrConcurrentUpdate
	}
	b.Version = doc.Version
	return nil
}

func (r *BookingRepository) BlockingForVehicle(ctx context.Context, vehicleID string) ([]*domainbooking.Booking, error) {
	statuses := make([]string, 0, len(domainbooking.BlockingStatuses))
	for _, s := range domainbooking.BlockingStatuses {
		statuses = append(statuses, string(s))
	}
	filter := bson.M{"vehicle_id": vehicleID, "status": bson.M{"$in": statuses}}
	return r.find(ctx, filter, nil)
}

func (r *BookingRepository) ListByRenter(ctx context.Context, renterID string) ([]*domainbooking.Booking, error) {
	return r.find(ctx, bson.M{"renter_id": renterID}, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
}

func (r *BookingRepository) ListByHost(ctx context.Context, hostID string, status domainbooking.Status) ([]*domainbooking.Booking, error) {
	filter := bson.M{"host_id": hostID}
	if status != "" {
		filter["status"] = string(status)
	}
	return r.find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
}

func (r *BookingRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*domainbooking.Booking, error) {
	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []*domainbooking.Booking
	for cur.Next(ctx) {
		var doc bookingDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.toAggregate())
	}
	return out, cur.Err()
}

type bookingDocument struct {
	ID                 string        `bson:"_id"`
	VehicleID          string        `bson:"vehicle_id"`
	RenterID           string        `bson:"renter_id"`
	HostID             string        `bson:"host_id"`
	Range              rangeDocument `bson:"range"`
	Status             string        `bson:"status"`
	TotalAmount        int64         `bson:"total_amount"`
	TotalCurrency      string        `bson:"total_currency"`
	HostNotes          string        `bson:"host_notes"`
	CancellationReason string        `bson:"cancellation_reason"`
	PickupTime         int64         `bson:"pickup_time"`
	PickupLocation     string        `bson:"pickup_location"`
	ReturnTime         int64         `bson:"return_time"`
	ReturnLocation     string        `bson:"return_location"`
	CreatedAt          int64         `bson:"created_at"`
	UpdatedAt          int64         `bson:"updated_at"`
	Version            int64         `bson:"version"`
}

type rangeDocument struct {
	Start int64 `bson:"start"`
	End   int64 `bson:"end"`
}

func newBookingDocument(b *domainbooking.Booking) bookingDocument {
	return bookingDocument{
		ID:                 string(b.ID),
		VehicleID:          b.VehicleID,
		RenterID:           b.RenterID,
		HostID:             b.HostID,
		Range:              rangeDocument{Start: b.Range.Start.UnixMilli(), End: b.Range.End.UnixMilli()},
		Status:             string(b.Status),
		TotalAmount:        b.Total.Amount,
		TotalCurrency:      b.Total.Currency,
		HostNotes:          b.HostNotes,
		CancellationReason: b.CancellationReason,
		PickupTime:         timeToTimestamp(b.Pickup.Time),
		PickupLocation:     b.Pickup.Location,
		ReturnTime:         timeToTimestamp(b.Return.Time),
		ReturnLocation:     b.Return.Location,
		CreatedAt:          b.CreatedAt.UnixMilli(),
		UpdatedAt:          b.UpdatedAt.UnixMilli(),
		Version:            b.Version,
	}
}

func (d bookingDocument) toAggregate() *domainbooking.Booking {
	return &domainbooking.Booking{
		ID:                 domainbooking.BookingID(d.ID),
		VehicleID:          d.VehicleID,
		RenterID:           d.RenterID,
		HostID:             d.HostID,
		Range:              domainrange.DateRange{Start: timestampToTime(d.Range.Start), End: timestampToTime(d.Range.End)},
		Status:             domainbooking.Status(d.Status),
		Total:              money.Money{Amount: d.TotalAmount, Currency: d.TotalCurrency},
		HostNotes:          d.HostNotes,
		CancellationReason: d.CancellationReason,
		Pickup:             domainbooking.Handover{Time: optionalTime(d.PickupTime), Location: d.PickupLocation},
		Return:             domainbooking.Handover{Time: optionalTime(d.ReturnTime), Location: d.ReturnLocation},
		CreatedAt:          timestampToTime(d.CreatedAt),
		UpdatedAt:          timestampToTime(d.UpdatedAt),
		Version:            d.Version,
	}
}

func timestampToTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func timeToTimestamp(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func optionalTime(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return timestampToTime(ms)
}
