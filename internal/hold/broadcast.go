package hold

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// Broadcaster fans occupancy changes out over Redis pub/sub so every API
// instance can push fresh snapshots to its connected shoppers.  It carries
// no seat data; subscribers re-read the ledger.
type Broadcaster struct {
	rdb    *redis.Client
	prefix string
}

// NewBroadcaster returns a Broadcaster on rdb.
func NewBroadcaster(rdb *redis.Client, prefix string) *Broadcaster {
	return &Broadcaster{rdb: rdb, prefix: prefix}
}

func (b *Broadcaster) channel(showtimeID uint64) string {
	return fmt.Sprintf("%shold-events:%d", b.prefix, showtimeID)
}

// Notify publishes a change for the showtime.
func (b *Broadcaster) Notify(ctx context.Context, showtimeID uint64) error {
	return b.rdb.Publish(ctx, b.channel(showtimeID), strconv.FormatUint(showtimeID, 10)).Err()
}

// Subscribe returns a channel that receives a value whenever the showtime
// changes.  Bursts are coalesced.  The channel closes when ctx is done.
func (b *Broadcaster) Subscribe(ctx context.Context, showtimeID uint64) (<-chan struct{}, error) {
	ps := b.rdb.Subscribe(ctx, b.channel(showtimeID))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}
	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		defer ps.Close()
		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- struct{}{}:
				default:
				}
			}
		}
	}()
	return out, nil
}
