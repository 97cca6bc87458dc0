package redis

import (
	"context"
	"encoding/json"
	"math/big"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"

	"github.com/standard-charity/indexer/common/errs"
	"github.com/standard-charity/indexer/modules/charity/datagateway"
	"github.com/standard-charity/indexer/modules/charity/entity"
)

// Cache key schema. Scalar aggregates are plain string values, record lists
// and pending queues are Redis lists pushed newest-first.
const (
	keyTotalNumDonations           = "totalNumDonations"
	keyTotalNumExpenditures        = "totalNumExpenditures"
	keyTotalNumExpendedDonations   = "totalNumExpendedDonations"
	keyTotalPlatesDeployed         = "totalPlatesDeployed"
	keyContractBalance             = "standardCharityContractBalance"
	keyTotalDonationsETH           = "totalDonationsEth"
	keyTotalExpendedETH            = "totalExpendedEth"
	keyTotalExpendedUSD            = "totalExpendedUsd"
	keyMaxDonation                 = "maxDonation"
	keyLatestDonation              = "latestDonation"
	keyNextDonationToExpend        = "nextDonationToExpend"
	keyPendingNextDonationToExpend = "pendingNextDonationToExpend"
	keyWorkflowState               = "workflowState"
	keyAllDonations                = "allDonations"
	keyDonationTrackerItems        = "donationTrackerItems"
	keyAllExpenditures             = "allExpenditures"
	keyAllExpendedDonations        = "allExpendedDonations"
	keyPendingExpendedDonations    = "pendingExpendedDonations"
	keyPendingRefunds              = "pendingRefunds"
)

// Make sure to implement the CacheStorage interface
var _ datagateway.CacheStorage = (*Repository)(nil)

// Repository implements the contract-state cache on Redis.
type Repository struct {
	client redis.UniversalClient
}

func NewRepository(client redis.UniversalClient) *Repository {
	return &Repository{client: client}
}

// Flush drops the whole database the cache lives in.
func (r *Repository) Flush(ctx context.Context) error {
	if err := r.client.FlushDB(ctx).Err(); err != nil {
		return errors.Wrap(err, "can't flush cache")
	}
	return nil
}

func (r *Repository) getString(ctx context.Context, key string) (string, error) {
	value, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", errors.Wrapf(errs.NotFound, "key %q is not set", key)
		}
		return "", errors.Wrapf(err, "can't get key %q", key)
	}
	return value, nil
}

func (r *Repository) getUint64(ctx context.Context, key string) (uint64, error) {
	raw, err := r.getString(ctx, key)
	if err != nil {
		return 0, err
	}
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "key %q holds malformed integer %q", key, raw)
	}
	return value, nil
}

func (r *Repository) setUint64(ctx context.Context, key string, value uint64) error {
	if err := r.client.Set(ctx, key, strconv.FormatUint(value, 10), 0).Err(); err != nil {
		return errors.Wrapf(err, "can't set key %q", key)
	}
	return nil
}

func (r *Repository) getInt64(ctx context.Context, key string) (int64, error) {
	raw, err := r.getString(ctx, key)
	if err != nil {
		return 0, err
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "key %q holds malformed integer %q", key, raw)
	}
	return value, nil
}

func (r *Repository) setInt64(ctx context.Context, key string, value int64) error {
	if err := r.client.Set(ctx, key, strconv.FormatInt(value, 10), 0).Err(); err != nil {
		return errors.Wrapf(err, "can't set key %q", key)
	}
	return nil
}

// Wei amounts are stored as decimal strings since they overflow int64.
func (r *Repository) getBigInt(ctx context.Context, key string) (*big.Int, error) {
	raw, err := r.getString(ctx, key)
	if err != nil {
		return nil, err
	}
	value, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, errors.Wrapf(errs.InternalError, "key %q holds malformed big integer %q", key, raw)
	}
	return value, nil
}

func (r *Repository) setBigInt(ctx context.Context, key string, value *big.Int) error {
	if value == nil {
		return errors.Wrapf(errs.ArgumentRequired, "nil value for key %q", key)
	}
	if err := r.client.Set(ctx, key, value.String(), 0).Err(); err != nil {
		return errors.Wrapf(err, "can't set key %q", key)
	}
	return nil
}

func getJSON[T any](ctx context.Context, r *Repository, key string) (T, error) {
	var out T
	raw, err := r.getString(ctx, key)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return out, errors.Wrapf(err, "key %q holds malformed JSON", key)
	}
	return out, nil
}

func setJSON(ctx context.Context, r *Repository, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return errors.Wrapf(err, "can't marshal value for key %q", key)
	}
	if err := r.client.Set(ctx, key, raw, 0).Err(); err != nil {
		return errors.Wrapf(err, "can't set key %q", key)
	}
	return nil
}

func (r *Repository) GetTotalNumDonations(ctx context.Context) (uint64, error) {
	return r.getUint64(ctx, keyTotalNumDonations)
}

func (r *Repository) SetTotalNumDonations(ctx context.Context, value uint64) error {
	return r.setUint64(ctx, keyTotalNumDonations, value)
}

func (r *Repository) GetTotalNumExpenditures(ctx context.Context) (uint64, error) {
	return r.getUint64(ctx, keyTotalNumExpenditures)
}

func (r *Repository) SetTotalNumExpenditures(ctx context.Context, value uint64) error {
	return r.setUint64(ctx, keyTotalNumExpenditures, value)
}

func (r *Repository) GetTotalNumExpendedDonations(ctx context.Context) (uint64, error) {
	return r.getUint64(ctx, keyTotalNumExpendedDonations)
}

func (r *Repository) SetTotalNumExpendedDonations(ctx context.Context, value uint64) error {
	return r.setUint64(ctx, keyTotalNumExpendedDonations, value)
}

func (r *Repository) GetTotalPlatesDeployed(ctx context.Context) (uint64, error) {
	return r.getUint64(ctx, keyTotalPlatesDeployed)
}

func (r *Repository) SetTotalPlatesDeployed(ctx context.Context, value uint64) error {
	return r.setUint64(ctx, keyTotalPlatesDeployed, value)
}

func (r *Repository) GetContractBalance(ctx context.Context) (*big.Int, error) {
	return r.getBigInt(ctx, keyContractBalance)
}

func (r *Repository) SetContractBalance(ctx context.Context, value *big.Int) error {
	return r.setBigInt(ctx, keyContractBalance, value)
}

func (r *Repository) GetTotalDonationsETH(ctx context.Context) (*big.Int, error) {
	return r.getBigInt(ctx, keyTotalDonationsETH)
}

func (r *Repository) SetTotalDonationsETH(ctx context.Context, value *big.Int) error {
	return r.setBigInt(ctx, keyTotalDonationsETH, value)
}

func (r *Repository) GetTotalExpendedETH(ctx context.Context) (*big.Int, error) {
	return r.getBigInt(ctx, keyTotalExpendedETH)
}

func (r *Repository) SetTotalExpendedETH(ctx context.Context, value *big.Int) error {
	return r.setBigInt(ctx, keyTotalExpendedETH, value)
}

func (r *Repository) GetTotalExpendedUSD(ctx context.Context) (int64, error) {
	return r.getInt64(ctx, keyTotalExpendedUSD)
}

func (r *Repository) SetTotalExpendedUSD(ctx context.Context, value int64) error {
	return r.setInt64(ctx, keyTotalExpendedUSD, value)
}

func (r *Repository) GetMaxDonation(ctx context.Context) (entity.SpotlightDonation, error) {
	return getJSON[entity.SpotlightDonation](ctx, r, keyMaxDonation)
}

func (r *Repository) SetMaxDonation(ctx context.Context, donation entity.SpotlightDonation) error {
	return setJSON(ctx, r, keyMaxDonation, donation)
}

func (r *Repository) GetLatestDonation(ctx context.Context) (entity.SpotlightDonation, error) {
	return getJSON[entity.SpotlightDonation](ctx, r, keyLatestDonation)
}

func (r *Repository) SetLatestDonation(ctx context.Context, donation entity.SpotlightDonation) error {
	return setJSON(ctx, r, keyLatestDonation, donation)
}

func (r *Repository) GetNextDonationToExpend(ctx context.Context) (uint64, error) {
	return r.getUint64(ctx, keyNextDonationToExpend)
}

func (r *Repository) SetNextDonationToExpend(ctx context.Context, overallDonationNum uint64) error {
	return r.setUint64(ctx, keyNextDonationToExpend, overallDonationNum)
}

func (r *Repository) GetPendingNextDonationToExpend(ctx context.Context) (uint64, error) {
	return r.getUint64(ctx, keyPendingNextDonationToExpend)
}

func (r *Repository) SetPendingNextDonationToExpend(ctx context.Context, overallDonationNum uint64) error {
	return r.setUint64(ctx, keyPendingNextDonationToExpend, overallDonationNum)
}

func (r *Repository) ClearPendingNextDonationToExpend(ctx context.Context) error {
	if err := r.client.Del(ctx, keyPendingNextDonationToExpend).Err(); err != nil {
		return errors.Wrapf(err, "can't delete key %q", keyPendingNextDonationToExpend)
	}
	return nil
}
