package redis

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"

	"github.com/standard-charity/indexer/common/errs"
	"github.com/standard-charity/indexer/modules/charity/entity"
)

// The workflow lock is a single state value guarded by compare-and-set
// scripts, so two processes (or the engine and the HTTP API) can never both
// win the idle -> running transition.

var acquireWorkflowScript = redis.NewScript(`
local current = redis.call('GET', KEYS[1])
if current == false or current == ARGV[1] then
	redis.call('SET', KEYS[1], ARGV[2])
	return 1
end
return 0
`)

var releaseWorkflowScript = redis.NewScript(`
local current = redis.call('GET', KEYS[1])
if current == ARGV[1] then
	redis.call('SET', KEYS[1], ARGV[2])
	return 1
end
return 0
`)

func (r *Repository) GetWorkflowState(ctx context.Context) (entity.WorkflowState, error) {
	raw, err := r.getString(ctx, keyWorkflowState)
	if err != nil {
		if errors.Is(err, errs.NotFound) {
			return entity.WorkflowIdle, nil
		}
		return "", errors.Wrap(err, "can't get workflow state")
	}

	state := entity.WorkflowState(raw)
	if !state.IsValid() {
		return "", errors.Wrapf(errs.InternalError, "malformed workflow state %q", raw)
	}
	return state, nil
}

func (r *Repository) AcquireWorkflow(ctx context.Context, target entity.WorkflowState) (bool, error) {
	if target == entity.WorkflowIdle || !target.IsValid() {
		return false, errors.Wrapf(errs.InvalidArgument, "can't acquire workflow state %q", target)
	}

	won, err := acquireWorkflowScript.Run(ctx, r.client,
		[]string{keyWorkflowState},
		entity.WorkflowIdle.String(), target.String(),
	).Int64()
	if err != nil {
		return false, errors.Wrap(err, "can't run workflow acquire script")
	}
	return won == 1, nil
}

func (r *Repository) ReleaseWorkflow(ctx context.Context, current entity.WorkflowState) error {
	if current == entity.WorkflowIdle || !current.IsValid() {
		return errors.Wrapf(errs.InvalidArgument, "can't release workflow state %q", current)
	}

	if err := releaseWorkflowScript.Run(ctx, r.client,
		[]string{keyWorkflowState},
		current.String(), entity.WorkflowIdle.String(),
	).Err(); err != nil {
		return errors.Wrap(err, "can't run workflow release script")
	}
	return nil
}
