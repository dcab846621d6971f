package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/rueidis"
)

const workerStatusPrefix = "worker:last_run:"

// Names of the background workers that record their runs.
const (
	WorkerPremium  = "premium"
	WorkerPosRoles = "posroles"
)

// MarkWorkerRun records that a worker finished a run at the given time.
func MarkWorkerRun(ctx context.Context, client rueidis.Client, worker string, at time.Time) error {
	cmd := client.B().Set().Key(workerStatusPrefix + worker).Value(strconv.FormatInt(at.Unix(), 10)).Build()
	if err := client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("failed to mark worker run: %w", err)
	}

	return nil
}

// LastWorkerRun returns when a worker last finished a run. Returns the zero time if it never ran.
func LastWorkerRun(ctx context.Context, client rueidis.Client, worker string) (time.Time, error) {
	unix, err := client.Do(ctx, client.B().Get().Key(workerStatusPrefix+worker).Build()).AsInt64()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return time.Time{}, nil
		}
		return time.Time{}, fmt.Errorf("failed to get worker status: %w", err)
	}

	return time.Unix(unix, 0), nil
}
