package db

import (
	"context"
	"fmt"
	"strconv"

	liberrors "github.com/lueurxax/telegram-library-keeper/internal/core/errors"
)

// AcquireChannelLock takes the session advisory lock of a home channel on a
// dedicated connection. The returned func unlocks and returns the connection
// to the pool. ErrLocked is returned when another session holds the lock.
func (db *DB) AcquireChannelLock(ctx context.Context, channelID int64) (func(), error) {
	conn, err := db.Pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}

	key := strconv.FormatInt(channelID, 10)

	var acquired bool
	if err := conn.QueryRow(ctx, "SELECT pg_try_advisory_lock($1::int, hashtext($2::text))", channelLockNamespace, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, fmt.Errorf("try acquire channel lock: %w", err)
	}

	if !acquired {
		conn.Release()
		return nil, fmt.Errorf("channel %d: %w", channelID, liberrors.ErrLocked)
	}

	return func() {
		//nolint:errcheck,contextcheck // unlock is best-effort, the lock dies with the session anyway
		_, _ = conn.Exec(context.Background(), "SELECT pg_advisory_unlock($1::int, hashtext($2::text))", channelLockNamespace, key)

		conn.Release()
	}, nil
}
