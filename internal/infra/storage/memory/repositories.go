package memory

import (
	"context"
	"sort"
	"sync"

	domainbooking "wheelshare/internal/domain/booking"
	domainpayment "wheelshare/internal/domain/payment"
	"wheelshare/internal/domain/shared/fault"
)

var (
	// ErrConcurrentUpdate is returned when a stale aggregate version is saved.
	ErrConcurrentUpdate = fault.New(fault.KindConflict, "memory: concurrent update detected")
	// ErrDuplicateReference is returned when a second payment claims an
	// already-used provider reference.
	ErrDuplicateReference = fault.New(fault.KindConflict, "memory: provider reference already in use")
)

// BookingRepository is an in-memory implementation backing tests and the
// demo wiring. Aggregates are stored and returned as copies so callers must
// go through Save, which enforces the optimistic version check.
type BookingRepository struct {
	mu    sync.RWMutex
	items map[domainbooking.BookingID]domainbooking.Booking
}

func NewBookingRepository() *BookingRepository {
	return &BookingRepository{items: make(map[domainbooking.BookingID]domainbooking.Booking)}
}

func (r *BookingRepository) ByID(ctx context.Context, id domainbooking.BookingID) (*domainbooking.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.items[id]
	if !ok {
		return nil, domainbooking.ErrBookingNotFound
	}
	out := b
	out.ClearEvents()
	return &out, nil
}

func (r *BookingRepository) Save(ctx context.Context, b *domainbooking.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.items[b.ID]; ok && existing.Version != b.Version {
		return ErrConcurrentUpdate
	}
	b.Version++
	stored := *b
	stored.ClearEvents()
	r.items[b.ID] = stored
	return nil
}

func (r *BookingRepository) BlockingForVehicle(ctx context.Context, vehicleID string) ([]*domainbooking.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domainbooking.Booking
	for _, b := range r.items {
		if b.VehicleID != vehicleID || !b.Status.Blocks() {
			continue
		}
		cp := b
		out = append(out, &cp)
	}
	return out, nil
}

func (r *BookingRepository) ListByRenter(ctx context.Context, renterID string) ([]*domainbooking.Booking, error) {
	return r.list(func(b domainbooking.Booking) bool { return b.RenterID == renterID })
}

func (r *BookingRepository) ListByHost(ctx context.Context, hostID string, status domainbooking.Status) ([]*domainbooking.Booking, error) {
	return r.list(func(b domainbooking.Booking) bool {
		if b.HostID != hostID {
			return false
		}
		return status == "" || b.Status == status
	})
}

func (r *BookingRepository) list(match func(domainbooking.Booking) bool) ([]*domainbooking.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domainbooking.Booking
	for _, b := range r.items {
		if match(b) {
			cp := b
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// PaymentRepository keeps payment attempts in memory with the same
// optimistic versioning and the unique provider-reference constraint the
// mongo implementation enforces through an index.
type PaymentRepository struct {
	mu    sync.RWMutex
	items map[domainpayment.PaymentID]domainpayment.Payment
	byRef map[string]domainpayment.PaymentID
}

func NewPaymentRepository() *PaymentRepository {
	return &PaymentRepository{
		items: make(map[domainpayment.PaymentID]domainpayment.Payment),
		byRef: make(map[string]domainpayment.PaymentID),
	}
}

func (r *PaymentRepository) ByID(ctx context.Context, id domainpayment.PaymentID) (*domainpayment.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.items[id]
	if !ok {
		return nil, domainpayment.ErrPaymentNotFound
	}
	out := p
	out.ClearEvents()
	return &out, nil
}

func (r *PaymentRepository) ByProviderReference(ctx context.Context, ref string) (*domainpayment.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byRef[ref]
	if !ok {
		return nil, domainpayment.ErrPaymentNotFound
	}
	p := r.items[id]
	p.ClearEvents()
	return &p, nil
}

func (r *PaymentRepository) Save(ctx context.Context, p *domainpayment.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.items[p.ID]; ok && existing.Version != p.Version {
		return ErrConcurrentUpdate
	}
	if p.ProviderReference != "" {
		if owner, ok := r.byRef[p.ProviderReference]; ok && owner != p.ID {
			return ErrDuplicateReference
		}
	}
	p.Version++
	stored := *p
	stored.ClearEvents()
	r.items[p.ID] = stored
	if p.ProviderReference != "" {
		r.byRef[p.ProviderReference] = p.ID
	}
	return nil
}
