package redis

import (
	"context"
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"

	"github.com/standard-charity/indexer/common/errs"
	"github.com/standard-charity/indexer/modules/charity/entity"
)

// Pending queues share the newest-first list layout, so the oldest item
// (the one consumed next) sits at the list tail.

func peekOldest[T any](ctx context.Context, r *Repository, key string) (T, error) {
	var item T
	raw, err := r.client.LIndex(ctx, key, -1).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return item, errors.Wrapf(errs.NotFound, "queue %q is empty", key)
		}
		return item, errors.Wrapf(err, "can't peek queue %q", key)
	}
	if err := json.Unmarshal([]byte(raw), &item); err != nil {
		return item, errors.Wrapf(err, "queue %q holds malformed JSON", key)
	}
	return item, nil
}

func (r *Repository) EnqueuePendingExpendedDonation(ctx context.Context, item entity.PendingExpendedDonation) error {
	return pushRecord(ctx, r, keyPendingExpendedDonations, item)
}

func (r *Repository) PeekPendingExpendedDonation(ctx context.Context) (entity.PendingExpendedDonation, error) {
	return peekOldest[entity.PendingExpendedDonation](ctx, r, keyPendingExpendedDonations)
}

// DeletePendingExpendedDonation removes every queued item targeting the
// given donation identity by rewriting the queue without them.
func (r *Repository) DeletePendingExpendedDonation(ctx context.Context, donator common.Address, donationNumber uint64) error {
	items, err := getAllRecords[entity.PendingExpendedDonation](ctx, r, keyPendingExpendedDonations)
	if err != nil {
		return errors.Wrap(err, "can't read pending expended donations")
	}

	kept := make([]entity.PendingExpendedDonation, 0, len(items))
	for _, item := range items {
		if !item.Is(donator, donationNumber) {
			kept = append(kept, item)
		}
	}
	return rewriteRecords(ctx, r, keyPendingExpendedDonations, kept)
}

func (r *Repository) GetAllPendingExpendedDonations(ctx context.Context) ([]entity.PendingExpendedDonation, error) {
	return getAllRecords[entity.PendingExpendedDonation](ctx, r, keyPendingExpendedDonations)
}

func (r *Repository) ReplacePendingExpendedDonations(ctx context.Context, items []entity.PendingExpendedDonation) error {
	return rewriteRecords(ctx, r, keyPendingExpendedDonations, items)
}

func (r *Repository) PeekPendingRefund(ctx context.Context) (entity.PendingRefund, error) {
	return peekOldest[entity.PendingRefund](ctx, r, keyPendingRefunds)
}

// DeletePendingRefund removes every queued refund targeting the given
// donation identity by rewriting the queue without them.
func (r *Repository) DeletePendingRefund(ctx context.Context, address common.Address, donationNumber uint64) error {
	refunds, err := getAllRecords[entity.PendingRefund](ctx, r, keyPendingRefunds)
	if err != nil {
		return errors.Wrap(err, "can't read pending refunds")
	}

	kept := make([]entity.PendingRefund, 0, len(refunds))
	for _, refund := range refunds {
		if !refund.Is(address, donationNumber) {
			kept = append(kept, refund)
		}
	}
	return rewriteRecords(ctx, r, keyPendingRefunds, kept)
}

func (r *Repository) GetAllPendingRefunds(ctx context.Context) ([]entity.PendingRefund, error) {
	return getAllRecords[entity.PendingRefund](ctx, r, keyPendingRefunds)
}

func (r *Repository) ReplacePendingRefunds(ctx context.Context, refunds []entity.PendingRefund) error {
	return rewriteRecords(ctx, r, keyPendingRefunds, refunds)
}
