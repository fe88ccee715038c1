package redis

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/routedex/internal/db"
)

// SearchList performs a paginated FT.SEARCH. On Redis the engine sorts via
// SORTBY. valkey-search has no SORTBY and no bare "*" query, so matching keys
// are collected (FT.SEARCH NOCONTENT, or SCAN for "*"), ordered by the numeric
// id suffix of the key and paged client-side.
func (s *Store) SearchList(ctx context.Context, q *db.ListQuery) (*db.SearchResult, error) {
	if q.Index == "" {
		return nil, fmt.Errorf("index name is required")
	}
	if q.Limit < 0 || q.Offset < 0 {
		return nil, fmt.Errorf("offset and limit must not be negative")
	}
	query := q.Query
	if query == "" {
		query = db.MatchAll
	}

	if s.flavor == FlavorValkey {
		return s.valkeyList(ctx, q, query)
	}

	args := []string{q.Index, query}

	if len(q.Fields) > 0 {
		args = append(args, "RETURN", strconv.Itoa(len(q.Fields)))
		args = append(args, q.Fields...)
	}
	if q.SortBy != "" {
		dir := "ASC"
		if q.SortDesc {
			dir = "DESC"
		}
		args = append(args, "SORTBY", q.SortBy, dir)
	}
	args = append(args,
		"LIMIT", strconv.Itoa(q.Offset), strconv.Itoa(q.Limit),
		"DIALECT", "2",
	)

	cmd := s.b().Arbitrary("FT.SEARCH").Args(args...).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}

	return parseListResult(raw)
}

// SearchCount returns the number of matching documents.
func (s *Store) SearchCount(ctx context.Context, index, query string) (int, error) {
	if query == "" {
		query = db.MatchAll
	}
	if s.flavor == FlavorValkey && query == db.MatchAll {
		keys, err := s.Scan(ctx, indexToKeyPrefix(index)+"*")
		if err != nil {
			return 0, fmt.Errorf("scan for count: %w", err)
		}
		return len(keys), nil
	}

	cmd := s.b().Arbitrary("FT.SEARCH").Args(index, query, "LIMIT", "0", "0", "DIALECT", "2").Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return 0, &db.Error{Op: db.OpSearch, Err: err}
	}
	if len(raw) == 0 {
		return 0, nil
	}
	total, err := raw[0].AsInt64()
	if err != nil {
		return 0, fmt.Errorf("parse count: %w", err)
	}
	return int(total), nil
}

func (s *Store) valkeyList(ctx context.Context, q *db.ListQuery, query string) (*db.SearchResult, error) {
	var keys []string
	total := 0

	if query == db.MatchAll {
		scanned, err := s.Scan(ctx, indexToKeyPrefix(q.Index)+"*")
		if err != nil {
			return nil, fmt.Errorf("scan for list: %w", err)
		}
		keys = scanned
		total = len(keys)
	} else {
		args := []string{q.Index, query, "NOCONTENT", "LIMIT", "0", strconv.Itoa(s.maxResults), "DIALECT", "2"}
		cmd := s.b().Arbitrary("FT.SEARCH").Args(args...).Build()
		raw, err := s.do(ctx, cmd).ToArray()
		if err != nil {
			return nil, &db.Error{Op: db.OpSearch, Err: err}
		}
		keys, total, err = parseKeysResult(raw)
		if err != nil {
			return nil, err
		}
	}

	sortKeysByID(keys, q.SortDesc)

	if q.Offset >= len(keys) {
		return &db.SearchResult{Total: total}, nil
	}
	end := min(q.Offset+q.Limit, len(keys))
	pageKeys := keys[q.Offset:end]

	hashes, err := s.HGetAllMulti(ctx, pageKeys)
	if err != nil {
		return nil, err
	}

	entries := make([]db.SearchEntry, 0, len(pageKeys))
	for i, key := range pageKeys {
		if len(hashes[i]) == 0 {
			continue // deleted between search and fetch
		}
		entries = append(entries, db.SearchEntry{Key: key, Fields: project(hashes[i], q.Fields)})
	}

	return &db.SearchResult{Total: total, Entries: entries}, nil
}

func project(fields map[string]string, only []string) map[string]string {
	if len(only) == 0 {
		return fields
	}
	out := make(map[string]string, len(only))
	for _, name := range only {
		if v, ok := fields[name]; ok {
			out[name] = v
		}
	}
	return out
}

// sortKeysByID orders keys by their trailing numeric segment; keys without
// one sort after numbered keys, lexically.
func sortKeysByID(keys []string, desc bool) {
	sort.SliceStable(keys, func(i, j int) bool {
		a, aok := keyID(keys[i])
		b, bok := keyID(keys[j])
		switch {
		case aok && bok:
			if desc {
				return a > b
			}
			return a < b
		case aok != bok:
			return aok
		default:
			return keys[i] < keys[j]
		}
	})
}

func keyID(key string) (int64, bool) {
	i := strings.LastIndexByte(key, ':')
	id, err := strconv.ParseInt(key[i+1:], 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// indexToKeyPrefix converts index name to a SCAN prefix.
// "routedex:route:idx" -> "routedex:route:"
func indexToKeyPrefix(index string) string {
	if strings.HasSuffix(index, ":idx") {
		return index[:len(index)-3]
	}
	return index + ":"
}

// --- Result parsing ---

func parseListResult(raw []rueidis.RedisMessage) (*db.SearchResult, error) {
	if len(raw) == 0 {
		return &db.SearchResult{}, nil
	}

	total, err := raw[0].AsInt64()
	if err != nil {
		return nil, fmt.Errorf("parse total: %w", err)
	}
	if total == 0 {
		return &db.SearchResult{}, nil
	}

	entries := make([]db.SearchEntry, 0, (len(raw)-1)/2)
	// 2-stride: [total, key1, fields1, key2, fields2, ...]
	for i := 1; i+1 < len(raw); i += 2 {
		key, err := raw[i].ToString()
		if err != nil {
			continue
		}

		fields, err := raw[i+1].ToArray()
		if err != nil {
			continue
		}

		entries = append(entries, db.SearchEntry{
			Key:    key,
			Fields: parseFieldPairs(fields),
		})
	}

	return &db.SearchResult{Total: int(total), Entries: entries}, nil
}

// parseKeysResult reads a NOCONTENT reply: [total, key1, key2, ...].
func parseKeysResult(raw []rueidis.RedisMessage) ([]string, int, error) {
	if len(raw) == 0 {
		return nil, 0, nil
	}
	total, err := raw[0].AsInt64()
	if err != nil {
		return nil, 0, fmt.Errorf("parse total: %w", err)
	}
	keys := make([]string, 0, len(raw)-1)
	for _, m := range raw[1:] {
		key, err := m.ToString()
		if err != nil {
			continue
		}
		keys = append(keys, key)
	}
	return keys, int(total), nil
}

func parseFieldPairs(fields []rueidis.RedisMessage) map[string]string {
	m := make(map[string]string, len(fields)/2)
	for j := 0; j+1 < len(fields); j += 2 {
		name, err := fields[j].ToString()
		if err != nil {
			continue
		}
		value, err := fields[j+1].ToString()
		if err != nil {
			continue
		}
		m[name] = value
	}
	return m
}
