package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"slices"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/roach88/tead/internal/ir"
	"github.com/roach88/tead/internal/query"
)

// fetchBatchSize bounds the IDs requested per HMGET.
const fetchBatchSize = 500

// Iterate implements query.Source.
//
// Target patterns and the time window are resolved against the indexes;
// the candidates are then loaded and filtered, ordered and limited in
// memory. Unreadable entries are logged and skipped.
func (s *Store) Iterate(ctx context.Context, c query.Criteria) iter.Seq2[ir.Entry, error] {
	return func(yield func(ir.Entry, error) bool) {
		if _, err := query.NewMatcher(c); err != nil {
			yield(ir.Entry{}, err)
			return
		}
		entries, err := s.candidates(ctx, c)
		if err != nil {
			yield(ir.Entry{}, err)
			return
		}
		for e, err := range query.Select(ctx, entries, c) {
			if !yield(e, err) || err != nil {
				return
			}
		}
	}
}

// Collect gathers every matching entry.
func (s *Store) Collect(ctx context.Context, c query.Criteria) ([]ir.Entry, error) {
	entries := []ir.Entry{}
	for e, err := range s.Iterate(ctx, c) {
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (s *Store) candidates(ctx context.Context, c query.Criteria) ([]ir.Entry, error) {
	targets, err := s.client.SMembers(ctx, s.targetsKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("list targets: %w", err)
	}
	slices.Sort(targets)

	rng := scoreRange(c.After, c.Before)
	var ids []string
	for _, target := range targets {
		ok, err := targetSelected(c.Targets, target)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		got, err := s.client.ZRangeByScore(ctx, s.targetKey(target), rng).Result()
		if err != nil {
			return nil, fmt.Errorf("scan target %s: %w", target, err)
		}
		ids = append(ids, got...)
	}
	return s.load(ctx, ids)
}

// targetSelected reports whether a target passes the Targets part of a
// criteria.
func targetSelected(patterns []string, target string) (bool, error) {
	if len(patterns) == 0 {
		return true, nil
	}
	for _, p := range patterns {
		if !query.IsGlob(p) {
			if p == target {
				return true, nil
			}
			continue
		}
		ok, err := query.MatchGlob(p, target)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// scoreRange converts the time window to scores. Scores are whole
// microseconds, so the range is inclusive at microsecond precision; exact
// bounds are applied again when the entries are matched.
func scoreRange(after, before time.Time) *redis.ZRangeBy {
	rng := &redis.ZRangeBy{Min: "-inf", Max: "+inf"}
	if !after.IsZero() {
		rng.Min = strconv.FormatInt(after.UnixMicro(), 10)
	}
	if !before.IsZero() {
		rng.Max = strconv.FormatInt(before.UnixMicro(), 10)
	}
	return rng
}

func (s *Store) load(ctx context.Context, ids []string) ([]ir.Entry, error) {
	entries := make([]ir.Entry, 0, len(ids))
	for batch := range slices.Chunk(ids, fetchBatchSize) {
		values, err := s.client.HMGet(ctx, s.entriesKey(), batch...).Result()
		if err != nil {
			return nil, fmt.Errorf("load entries: %w", err)
		}
		for i, v := range values {
			data, ok := v.(string)
			if !ok {
				// Indexed but gone: deleted concurrently
				continue
			}
			e, err := unmarshalEntry(batch[i], data)
			if err != nil {
				s.logger.Warn("skipping unreadable entry", "id", batch[i], "err", err)
				continue
			}
			entries = append(entries, e)
		}
	}
	return entries, nil
}

func unmarshalEntry(id, data string) (ir.Entry, error) {
	var e ir.Entry
	if err := json.Unmarshal([]byte(data), &e); err != nil {
		return ir.Entry{}, fmt.Errorf("decode entry: %w", err)
	}
	if err := ir.CheckCompatible(e.Schema, e.SchemaVersion); err != nil {
		return ir.Entry{}, err
	}
	if e.ID != id {
		return ir.Entry{}, fmt.Errorf("entry id %q stored under %q", e.ID, id)
	}
	return e, nil
}
