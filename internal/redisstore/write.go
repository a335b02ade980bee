package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/roach88/tead/internal/ir"
	"github.com/roach88/tead/internal/query"
)

// persistScript stores an entry only if its ID is new, and indexes it.
// KEYS[1] = entries hash, KEYS[2] = targets set, KEYS[3] = target zset
// ARGV[1] = id, ARGV[2] = entry JSON, ARGV[3] = score, ARGV[4] = target
var persistScript = redis.NewScript(`
if redis.call("HSETNX", KEYS[1], ARGV[1], ARGV[2]) == 0 then
    return 0
end
redis.call("ZADD", KEYS[3], ARGV[3], ARGV[1])
redis.call("SADD", KEYS[2], ARGV[4])
return 1
`)

// score orders entries within a target. Microseconds stay exact in a
// float64 for any realistic date.
func score(t time.Time) float64 {
	return float64(t.UnixMicro())
}

// Persist implements capture.Sink. Persisting a known ID is a no-op.
func (s *Store) Persist(ctx context.Context, e ir.Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("persist entry %s: %w", e.ID, err)
	}
	keys := []string{s.entriesKey(), s.targetsKey(), s.targetKey(e.Target)}
	if err := persistScript.Run(ctx, s.client, keys, e.ID, data, score(e.Timestamp), e.Target).Err(); err != nil {
		return fmt.Errorf("persist entry %s: %w", e.ID, err)
	}
	return nil
}

// Delete implements query.Source. Limit is ignored.
func (s *Store) Delete(ctx context.Context, c query.Criteria) (int, error) {
	c.Limit = 0
	var doomed []ir.Entry
	for e, err := range s.Iterate(ctx, c) {
		if err != nil {
			return 0, err
		}
		doomed = append(doomed, e)
	}
	if len(doomed) == 0 {
		return 0, nil
	}

	touched := make(map[string]bool)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, e := range doomed {
			pipe.HDel(ctx, s.entriesKey(), e.ID)
			pipe.ZRem(ctx, s.targetKey(e.Target), e.ID)
			touched[e.Target] = true
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("delete entries: %w", err)
	}

	for target := range touched {
		if err := s.dropIfEmpty(ctx, target); err != nil {
			s.logger.Warn("target index cleanup failed", "target", target, "err", err)
		}
	}
	return len(doomed), nil
}

// dropIfEmpty removes a target from the targets set once its index is gone.
// A concurrent Persist may re-add it; that is harmless.
func (s *Store) dropIfEmpty(ctx context.Context, target string) error {
	n, err := s.client.Exists(ctx, s.targetKey(target)).Result()
	if err != nil || n > 0 {
		return err
	}
	return s.client.SRem(ctx, s.targetsKey(), target).Err()
}
