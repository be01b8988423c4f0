package token

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Key layout:
//
//	refresh:{jti}            hash  sub fam rev exp crt
//	refresh_family:{fam}     set of jti
//	refresh_subject:{sub}    set of jti
//
// Every key expires with the longest-lived record it refers to. The scripts
// touch keys derived at runtime, so the ledger needs a single-node or
// sentinel deployment rather than Redis Cluster.
const (
	recordPrefix  = "refresh:"
	familyPrefix  = "refresh_family:"
	subjectPrefix = "refresh_subject:"
)

// KEYS: record, family set, subject set.
// ARGV: id, sub, fam, exp, crt, ttl seconds.
var createScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then return 0 end
redis.call('HSET', KEYS[1], 'sub', ARGV[2], 'fam', ARGV[3], 'rev', '0', 'exp', ARGV[4], 'crt', ARGV[5])
redis.call('EXPIRE', KEYS[1], ARGV[6])
for i = 2, 3 do
  redis.call('SADD', KEYS[i], ARGV[1])
  if redis.call('TTL', KEYS[i]) < tonumber(ARGV[6]) then
    redis.call('EXPIRE', KEYS[i], ARGV[6])
  end
end
return 1
`)

// KEYS: old record, new record, family set, subject set.
// ARGV: new id, sub, fam, exp, crt, ttl seconds.
// Returns 1 on success, 0 when the old record is not live, -1 when it was
// already revoked, -2 when the new id exists.
var rotateScript = redis.NewScript(`
local old = redis.call('HMGET', KEYS[1], 'sub', 'rev', 'exp')
if not old[1] or old[1] ~= ARGV[2] then return 0 end
if tonumber(old[3]) <= tonumber(ARGV[5]) then return 0 end
if old[2] == '1' then return -1 end
if redis.call('EXISTS', KEYS[2]) == 1 then return -2 end
redis.call('HSET', KEYS[1], 'rev', '1')
redis.call('HSET', KEYS[2], 'sub', ARGV[2], 'fam', ARGV[3], 'rev', '0', 'exp', ARGV[4], 'crt', ARGV[5])
redis.call('EXPIRE', KEYS[2], ARGV[6])
for i = 3, 4 do
  redis.call('SADD', KEYS[i], ARGV[1])
  if redis.call('TTL', KEYS[i]) < tonumber(ARGV[6]) then
    redis.call('EXPIRE', KEYS[i], ARGV[6])
  end
end
return 1
`)

// KEYS: record.
var revokeScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then return 0 end
redis.call('HSET', KEYS[1], 'rev', '1')
return 1
`)

// KEYS: index set. ARGV: record prefix.
var revokeSetScript = redis.NewScript(`
local n = 0
for _, id in ipairs(redis.call('SMEMBERS', KEYS[1])) do
  local key = ARGV[1] .. id
  if redis.call('HGET', key, 'rev') == '0' then
    redis.call('HSET', key, 'rev', '1')
    n = n + 1
  elseif redis.call('EXISTS', key) == 0 then
    redis.call('SREM', KEYS[1], id)
  end
end
return n
`)

// RedisLedger stores refresh records in Redis. Rotation is a single Lua
// script, so it is atomic across processes sharing the server.
type RedisLedger struct {
	client redis.UniversalClient
}

// NewRedisLedger creates a ledger on client.
func NewRedisLedger(client redis.UniversalClient) *RedisLedger {
	return &RedisLedger{client: client}
}

func (l *RedisLedger) Create(ctx context.Context, rec Record) error {
	ttl, ok := ttlSeconds(rec)
	if !ok {
		return nil
	}
	res, err := createScript.Run(ctx, l.client,
		[]string{recordPrefix + rec.ID, familyPrefix + rec.Family, subjectPrefix + rec.Subject},
		rec.ID, rec.Subject, rec.Family, rec.ExpiresAt.Unix(), rec.CreatedAt.Unix(), ttl,
	).Int()
	if err != nil {
		return err
	}
	if res == 0 {
		return ErrRecordExists
	}
	return nil
}

func (l *RedisLedger) Get(ctx context.Context, id string) (Record, error) {
	h, err := l.client.HGetAll(ctx, recordPrefix+id).Result()
	if err != nil {
		return Record{}, err
	}
	if len(h) == 0 {
		return Record{}, ErrRecordNotFound
	}
	exp, _ := strconv.ParseInt(h["exp"], 10, 64)
	crt, _ := strconv.ParseInt(h["crt"], 10, 64)
	return Record{
		ID:        id,
		Subject:   h["sub"],
		Family:    h["fam"],
		Revoked:   h["rev"] == "1",
		ExpiresAt: time.Unix(exp, 0),
		CreatedAt: time.Unix(crt, 0),
	}, nil
}

func (l *RedisLedger) Rotate(ctx context.Context, oldID string, next Record) error {
	ttl, ok := ttlSeconds(next)
	if !ok {
		return ErrRecordNotFound
	}
	res, err := rotateScript.Run(ctx, l.client,
		[]string{
			recordPrefix + oldID,
			recordPrefix + next.ID,
			familyPrefix + next.Family,
			subjectPrefix + next.Subject,
		},
		next.ID, next.Subject, next.Family, next.ExpiresAt.Unix(), next.CreatedAt.Unix(), ttl,
	).Int()
	if err != nil {
		return err
	}

	switch res {
	case 1:
		return nil
	case -1:
		return ErrRecordRevoked
	case -2:
		return ErrRecordExists
	}
	return ErrRecordNotFound
}

func (l *RedisLedger) Revoke(ctx context.Context, id string) (bool, error) {
	n, err := revokeScript.Run(ctx, l.client, []string{recordPrefix + id}).Int()
	return n == 1, err
}

func (l *RedisLedger) RevokeFamily(ctx context.Context, family string) (int, error) {
	return revokeSetScript.Run(ctx, l.client, []string{familyPrefix + family}, recordPrefix).Int()
}

func (l *RedisLedger) RevokeSubject(ctx context.Context, subject string) (int, error) {
	return revokeSetScript.Run(ctx, l.client, []string{subjectPrefix + subject}, recordPrefix).Int()
}

// Sweep is a no-op: Redis expires records itself.
func (l *RedisLedger) Sweep(context.Context, time.Time) (int, error) {
	return 0, nil
}

// ttlSeconds returns the record TTL, false when it has already expired.
func ttlSeconds(rec Record) (int64, bool) {
	ttl := int64(rec.ExpiresAt.Sub(rec.CreatedAt) / time.Second)
	return ttl, ttl > 0
}

var _ Ledger = (*RedisLedger)(nil)
