package redis

import (
	"context"
	"encoding/json"

	"github.com/cockroachdb/errors"

	"github.com/standard-charity/indexer/modules/charity/entity"
)

// Record lists are JSON-serialized entries in a Redis list, pushed
// newest-first: index 0 is the most recent record.

func pushRecord(ctx context.Context, r *Repository, key string, record any) error {
	raw, err := json.Marshal(record)
	if err != nil {
		return errors.Wrapf(err, "can't marshal record for list %q", key)
	}
	if err := r.client.LPush(ctx, key, raw).Err(); err != nil {
		return errors.Wrapf(err, "can't push to list %q", key)
	}
	return nil
}

func getAllRecords[T any](ctx context.Context, r *Repository, key string) ([]T, error) {
	raws, err := r.client.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "can't read list %q", key)
	}

	records := make([]T, 0, len(raws))
	for _, raw := range raws {
		var record T
		if err := json.Unmarshal([]byte(raw), &record); err != nil {
			return nil, errors.Wrapf(err, "list %q holds malformed JSON", key)
		}
		records = append(records, record)
	}
	return records, nil
}

// rewriteRecords swaps a list's full contents atomically. records must be in
// list order (newest first); they are repushed back-to-front so index 0
// stays the newest record.
func rewriteRecords[T any](ctx context.Context, r *Repository, key string, records []T) error {
	raws := make([]any, 0, len(records))
	for i := len(records) - 1; i >= 0; i-- {
		raw, err := json.Marshal(records[i])
		if err != nil {
			return errors.Wrapf(err, "can't marshal record for list %q", key)
		}
		raws = append(raws, raw)
	}

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, key)
	if len(raws) > 0 {
		pipe.LPush(ctx, key, raws...)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrapf(err, "can't rewrite list %q", key)
	}
	return nil
}

func (r *Repository) PushDonation(ctx context.Context, donation entity.Donation) error {
	return pushRecord(ctx, r, keyAllDonations, donation)
}

// ReplaceDonation drops every cached copy of the donation's identity before
// pushing the fresh copy, so the list never holds two versions of the same
// donation.
func (r *Repository) ReplaceDonation(ctx context.Context, donation entity.Donation) error {
	donations, err := getAllRecords[entity.Donation](ctx, r, keyAllDonations)
	if err != nil {
		return errors.Wrap(err, "can't read donations")
	}

	kept := make([]entity.Donation, 0, len(donations)+1)
	kept = append(kept, donation)
	for _, existing := range donations {
		if !existing.Is(donation.Donator, donation.DonationNumber) {
			kept = append(kept, existing)
		}
	}
	return rewriteRecords(ctx, r, keyAllDonations, kept)
}

func (r *Repository) GetAllDonations(ctx context.Context) ([]entity.Donation, error) {
	return getAllRecords[entity.Donation](ctx, r, keyAllDonations)
}

func (r *Repository) PushDonationTrackerItem(ctx context.Context, item entity.DonationTrackerItem) error {
	return pushRecord(ctx, r, keyDonationTrackerItems, item)
}

func (r *Repository) GetAllDonationTrackerItems(ctx context.Context) ([]entity.DonationTrackerItem, error) {
	return getAllRecords[entity.DonationTrackerItem](ctx, r, keyDonationTrackerItems)
}

func (r *Repository) PushExpenditure(ctx context.Context, expenditure entity.Expenditure) error {
	return pushRecord(ctx, r, keyAllExpenditures, expenditure)
}

func (r *Repository) GetAllExpenditures(ctx context.Context) ([]entity.Expenditure, error) {
	return getAllRecords[entity.Expenditure](ctx, r, keyAllExpenditures)
}

func (r *Repository) PushExpendedDonation(ctx context.Context, expendedDonation entity.ExpendedDonation) error {
	return pushRecord(ctx, r, keyAllExpendedDonations, expendedDonation)
}

func (r *Repository) GetAllExpendedDonations(ctx context.Context) ([]entity.ExpendedDonation, error) {
	return getAllRecords[entity.ExpendedDonation](ctx, r, keyAllExpendedDonations)
}
