package uow

import (
	"context"

	domainbooking "wheelshare/internal/domain/booking"
	domainpayment "wheelshare/internal/domain/payment"
)

// UnitOfWork coordinates repositories inside a transaction boundary. The
// reconciliation service relies on it: either the full payment + booking +
// outbox mutation commits or none of it does.
type UnitOfWork interface {
	Bookings() domainbooking.Repository
	Payments() domainpayment.Repository

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// UoWFactory starts unit of work instances.
type UoWFactory interface {
	Begin(ctx context.Context, opts TxOptions) (UnitOfWork, error)
}

// TxOptions configure transaction boundaries.
type TxOptions struct {
	ReadOnly bool
}

// SessionContext returns the context every operation inside the unit must
// run under. Transactional backends expose an InjectContext method that
// binds the driver session into the context; without it, repository calls
// and outbox writes execute outside the transaction and Commit seals an
// empty one.
func SessionContext(ctx context.Context, unit UnitOfWork) context.Context {
	if injector, ok := unit.(interface {
		InjectContext(context.Context) context.Context
	}); ok {
		return injector.InjectContext(ctx)
	}
	return ctx
}
