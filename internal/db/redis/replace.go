package redis

import (
	"context"
	"sort"
	"strconv"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/routedex/internal/db"
)

// replaceScript swaps the whole hash unless the stored version is newer.
// KEYS[1] = key, ARGV[1] = version, ARGV[2..] = field/value pairs.
var replaceScript = rueidis.NewLuaScript(`
local cur = redis.call('HGET', KEYS[1], '` + db.VersionField + `')
if cur and tonumber(cur) > tonumber(ARGV[1]) then return 0 end
redis.call('DEL', KEYS[1])
redis.call('HSET', KEYS[1], unpack(ARGV, 2))
return 1
`)

// deleteScript removes the hash unless the stored version is at or above
// the tombstone version. KEYS[1] = key, ARGV[1] = version.
var deleteScript = rueidis.NewLuaScript(`
local cur = redis.call('HGET', KEYS[1], '` + db.VersionField + `')
if not cur then
  if redis.call('EXISTS', KEYS[1]) == 0 then return 0 end
elseif tonumber(cur) >= tonumber(ARGV[1]) then
  return -1
end
redis.call('DEL', KEYS[1])
return 1
`)

// ReplaceHash atomically replaces the hash at key with fields plus the
// version field. Returns db.Stale when a newer version is already stored.
func (s *Store) ReplaceHash(
	ctx context.Context, key string, version int64, fields map[string]string,
) (db.WriteResult, error) {
	v := strconv.FormatInt(version, 10)

	names := make([]string, 0, len(fields))
	for name := range fields {
		if name != db.VersionField {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	args := make([]string, 0, 3+2*len(names))
	args = append(args, v, db.VersionField, v)
	for _, name := range names {
		args = append(args, name, fields[name])
	}

	n, err := replaceScript.Exec(ctx, s.client, []string{key}, args).AsInt64()
	if err != nil {
		return 0, &db.Error{Op: db.OpReplace, Err: err}
	}
	if n == 0 {
		return db.Stale, nil
	}
	return db.Applied, nil
}

// DeleteHash removes the hash at key on behalf of a tombstone with the given version.
func (s *Store) DeleteHash(ctx context.Context, key string, version int64) (db.WriteResult, error) {
	n, err := deleteScript.Exec(ctx, s.client, []string{key}, []string{strconv.FormatInt(version, 10)}).AsInt64()
	if err != nil {
		return 0, &db.Error{Op: db.OpDel, Err: err}
	}
	switch n {
	case 1:
		return db.Applied, nil
	case -1:
		return db.Stale, nil
	default:
		return db.Missing, nil
	}
}
