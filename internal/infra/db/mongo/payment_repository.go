package mongo

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainbooking "wheelshare/internal/domain/booking"
	domainpayment "wheelshare/internal/domain/payment"
	"wheelshare/internal/domain/shared/fault"
	"wheelshare/internal/domain/shared/money"
)

// ErrDuplicateReference is returned when a second payment claims an
// already-used provider reference. The unique index is the idempotency
// anchor for provider callbacks.
var ErrDuplicateReference = fault.New(fault.KindConflict, "mongo: provider reference already in use")

type PaymentRepository struct {
	col *mongo.Collection
}

func NewPaymentRepository(db *mongo.Database) *PaymentRepository {
	col := db.Collection("agg_payment")
	refIdx := mongo.IndexModel{
		Keys: bson.D{{Key: "provider_reference", Value: 1}},
		Options: options.Index().SetUnique(true).SetPartialFilterExpression(
			bson.M{"provider_reference": bson.M{"$gt": ""}},
		),
	}
	_, _ = col.Indexes().CreateOne(context.Background(), refIdx)
	_, _ = col.Indexes().CreateOne(context.Background(), mongo.IndexModel{Keys: bson.D{{Key: "booking_id", Value: 1}}})
	return &PaymentRepository{col: col}
}

func (r *PaymentRepository) ByID(ctx context.Context, id domainpayment.PaymentID) (*domainpayment.Payment, error) {
	var doc paymentDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainpayment.ErrPaymentNotFound
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

func (r *PaymentRepository) ByProviderReference(ctx context.Context, ref string) (*domainpayment.Payment, error) {
	var doc paymentDocument
	if err := r.col.FindOne(ctx, bson.M{"provider_reference": ref}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainpayment.ErrPaymentNotFound
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

// Save upserts the payment guarded by its version. A duplicate callback that
// raced another worker loses the version check and surfaces
// ErrConcurrentUpdate; the caller re-reads and sees the settled status.
func (r *PaymentRepository) Save(ctx context.Context, p *domainpayment.Payment) error {
	doc := newPaymentDocument(p)
	filter := bson.M{"_id": doc.ID, "version": p.Version}
	doc.Version = p.Version + 1
	update := bson.M{"$set": doc}
	opts := options.Update().SetUpsert(true)
	res, err := r.col.UpdateOne(ctx, filter, update, opts)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return classifyDuplicateKey(err)
		}
		return err
	}
	if res.MatchedCount == 0 && res.UpsertedCount == 0 {
		return ErrConcurrentUpdate
	}
	p.Version = doc.Version
	return nil
}

// classifyDuplicateKey separates the two unique indexes a payment upsert
// can violate. A stale version on an existing row misses the filter and
// retries as an insert, colliding on _id; that is a lost version race, not
// a reused provider reference.
func classifyDuplicateKey(err error) error {
	if duplicateKeyOnIndex(err, "_id_") {
		return ErrConcurrentUpdate
	}
	return ErrDuplicateReference
}

func duplicateKeyOnIndex(err error, index string) bool {
	needle := "index: " + index
	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if strings.Contains(e.Message, needle) {
				return true
			}
		}
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) {
		return strings.Contains(ce.Message, needle)
	}
	return false
}

type paymentDocument struct {
	ID                string `bson:"_id"`
	BookingID         string `bson:"booking_id"`
	RenterID          string `bson:"renter_id"`
	HostID            string `bson:"host_id"`
	Amount            int64  `bson:"amount"`
	Currency          string `bson:"currency"`
	Status            string `bson:"status"`
	Provider          string `bson:"provider"`
	ProviderReference string `bson:"provider_reference"`
	RefundAmount      int64  `bson:"refund_amount"`
	RefundCurrency    string `bson:"refund_currency"`
	RefundReason      string `bson:"refund_reason"`
	RefundRequestedAt int64  `bson:"refund_requested_at"`
	CreatedAt         int64  `bson:"created_at"`
	ProcessedAt       int64  `bson:"processed_at"`
	Version           int64  `bson:"version"`
}

func newPaymentDocument(p *domainpayment.Payment) paymentDocument {
	return paymentDocument{
		ID:                string(p.ID),
		BookingID:         string(p.BookingID),
		RenterID:          p.RenterID,
		HostID:            p.HostID,
		Amount:            p.Amount.Amount,
		Currency:          p.Amount.Currency,
		Status:            string(p.Status),
		Provider:          string(p.Provider),
		ProviderReference: p.ProviderReference,
		RefundAmount:      p.RefundAmount.Amount,
		RefundCurrency:    p.RefundAmount.Currency,
		RefundReason:      p.RefundReason,
		RefundRequestedAt: timeToTimestamp(p.RefundRequestedAt),
		CreatedAt:         p.CreatedAt.UnixMilli(),
		ProcessedAt:       timeToTimestamp(p.ProcessedAt),
		Version:           p.Version,
	}
}

func (d paymentDocument) toAggregate() *domainpayment.Payment {
	p := &domainpayment.Payment{
		ID:                domainpayment.PaymentID(d.ID),
		BookingID:         domainbooking.BookingID(d.BookingID),
		RenterID:          d.RenterID,
		HostID:            d.HostID,
		Amount:            money.Money{Amount: d.Amount, Currency: d.Currency},
		Status:            domainpayment.Status(d.Status),
		Provider:          domainpayment.Provider(d.Provider),
		ProviderReference: d.ProviderReference,
		RefundReason:      d.RefundReason,
		CreatedAt:         timestampToTime(d.CreatedAt),
		Version:           d.Version,
	}
	if d.RefundCurrency != "" {
		p.RefundAmount = money.Money{Amount: d.RefundAmount, Currency: d.RefundCurrency}
	}
	if d.RefundRequestedAt != 0 {
		p.RefundRequestedAt = timestampToTime(d.RefundRequestedAt)
	}
	if d.ProcessedAt != 0 {
		p.ProcessedAt = timestampToTime(d.ProcessedAt)
	}
	return p
}
