package status

import (
	"context"
	"fmt"
	"time"

	"payway/internal/domain"
	"payway/internal/intent"
	"payway/pkg/payment"
)

// Provider is the part of the payment provider the resolver needs.
type Provider interface {
	CheckPayment(ctx context.Context, md5 string) (bool, error)
	GetPayment(ctx context.Context, md5 string) (*payment.Transaction, error)
}

// Result is the status object returned by the polling endpoint and pushed over
// the WebSocket stream. Absent values encode as null.
type Result struct {
	MD5         string               `json:"md5"`
	Status      domain.PaymentStatus `json:"status"`
	ExpiresAt   *string              `json:"expires_at"`
	IsExpired   *bool                `json:"is_expired"`
	PaymentData *payment.Transaction `json:"payment_data"`
	Warning     *string              `json:"warning"`
}

// Resolver derives the authoritative status of an intent from the registry,
// the provider and the clock.
type Resolver struct {
	registry *intent.Registry
	provider Provider
}

func NewResolver(registry *intent.Registry, provider Provider) *Resolver {
	return &Resolver{registry: registry, provider: provider}
}

// Resolve computes the status of id at now. Provider check failures become
// UNKNOWN with a warning; the only returned error is a failed settlement fetch
// after the provider reported the payment as paid.
func (r *Resolver) Resolve(ctx context.Context, id string, now time.Time) (Result, error) {
	res := Result{MD5: id}
	in, registered := r.registry.Get(id)
	if registered {
		exp := domain.FormatTime(in.ExpiresAt)
		expired := now.After(in.ExpiresAt)
		res.ExpiresAt = &exp
		res.IsExpired = &expired
	}

	if tx, ok := r.registry.Settlement(id); ok {
		res.Status = domain.StatusPaid
		res.PaymentData = tx
		return res, nil
	}

	paid, err := r.provider.CheckPayment(ctx, id)
	if err != nil {
		warning := fmt.Sprintf("Status check failed: %v", err)
		res.Status = domain.StatusUnknown
		res.Warning = &warning
		return res, nil
	}

	if paid {
		tx, err := r.provider.GetPayment(ctx, id)
		if err != nil {
			return Result{}, fmt.Errorf("fetch settlement for %s: %w", id, err)
		}
		r.registry.Settle(id, tx)
		res.Status = domain.StatusPaid
		res.PaymentData = tx
		return res, nil
	}

	if registered && now.After(in.ExpiresAt) {
		res.Status = domain.StatusExpired
		return res, nil
	}
	res.Status = domain.StatusUnpaid
	return res, nil
}
