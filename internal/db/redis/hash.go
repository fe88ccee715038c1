package redis

import (
	"context"
	"fmt"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/routedex/internal/db"
)

// scanBatch is the COUNT hint per SCAN round-trip.
const scanBatch = 100

// HGetAll returns the whole document hash at key. A missing key yields an
// empty map.
func (s *Store) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	m, err := s.do(ctx, s.b().Hgetall().Key(key).Build()).AsStrMap()
	if err != nil {
		return nil, &db.Error{Op: db.OpHGetAll, Err: err}
	}
	return m, nil
}

// HGetAllMulti reads many document hashes in one pipelined round-trip.
// Missing keys yield empty maps at their position.
func (s *Store) HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	out := make([]map[string]string, len(keys))
	err := s.pipeline(ctx, keys, func(key string) rueidis.Completed {
		return s.b().Hgetall().Key(key).Build()
	}, func(i int, res rueidis.RedisResult) error {
		m, err := res.AsStrMap()
		out[i] = m
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// HGetFieldMulti reads one field of many hashes. Missing keys or fields
// yield "" at their position.
func (s *Store) HGetFieldMulti(ctx context.Context, field string, keys []string) ([]string, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	out := make([]string, len(keys))
	err := s.pipeline(ctx, keys, func(key string) rueidis.Completed {
		return s.b().Hget().Key(key).Field(field).Build()
	}, func(i int, res rueidis.RedisResult) error {
		v, err := res.ToString()
		if rueidis.IsRedisNil(err) {
			return nil
		}
		out[i] = v
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Scan returns every key matching pattern, following the cursor to the end.
func (s *Store) Scan(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	cursor := uint64(0)
	for {
		entry, err := s.do(ctx, s.b().Scan().Cursor(cursor).Match(pattern).Count(scanBatch).Build()).AsScanEntry()
		if err != nil {
			return nil, &db.Error{Op: db.OpScan, Err: err}
		}
		keys = append(keys, entry.Elements...)
		if cursor = entry.Cursor; cursor == 0 {
			return keys, nil
		}
	}
}

// pipeline sends one read per key with DoMulti and hands each reply to
// decode in key order. The first failing reply aborts with a db.Error.
func (s *Store) pipeline(
	ctx context.Context,
	keys []string,
	build func(key string) rueidis.Completed,
	decode func(i int, res rueidis.RedisResult) error,
) error {
	cmds := make(rueidis.Commands, len(keys))
	for i, key := range keys {
		cmds[i] = build(key)
	}
	for i, res := range s.client.DoMulti(ctx, cmds...) {
		if err := decode(i, res); err != nil {
			return &db.Error{Op: db.OpHGetAll, Err: fmt.Errorf("key %s: %w", keys[i], err)}
		}
	}
	return nil
}
