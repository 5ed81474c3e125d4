package presence

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRepo stores presence in Redis hashes. One hash per user plus a
// per-tenant index set so List does not need SCAN.
//
// Keys:
//
//	presence:<tenant>:<user>  hash {extension_id, status, status_message, last_activity, version}
//	presence:index:<tenant>   set of user IDs
type RedisRepo struct {
	rdb *redis.Client
}

func NewRedisRepo(rdb *redis.Client) *RedisRepo {
	return &RedisRepo{rdb: rdb}
}

func presenceKey(tenantID, userID string) string {
	return "presence:" + tenantID + ":" + userID
}

func indexKey(tenantID string) string {
	return "presence:index:" + tenantID
}

// putIfVersionScript writes the hash only when the stored version matches
// ARGV[1] (a missing hash matches "0").
var putIfVersionScript = redis.NewScript(`
local v = redis.call("HGET", KEYS[1], "version")
if v == false then v = "0" end
if v ~= ARGV[1] then return 0 end
redis.call("HSET", KEYS[1],
    "extension_id", ARGV[2],
    "status", ARGV[3],
    "status_message", ARGV[4],
    "last_activity", ARGV[5],
    "version", ARGV[6])
redis.call("SADD", KEYS[2], ARGV[7])
return 1
`)

func (r *RedisRepo) Get(ctx context.Context, tenantID, userID string) (Presence, bool, error) {
	vals, err := r.rdb.HGetAll(ctx, presenceKey(tenantID, userID)).Result()
	if err != nil {
		return Presence{}, false, err
	}
	if len(vals) == 0 {
		return Presence{}, false, nil
	}
	return hashToPresence(tenantID, userID, vals)
}

func (r *RedisRepo) Put(ctx context.Context, p Presence) error {
	pipe := r.rdb.TxPipeline()
	pipe.HSet(ctx, presenceKey(p.TenantID, p.UserID), presenceToHash(p))
	pipe.SAdd(ctx, indexKey(p.TenantID), p.UserID)
	_, err := pipe.Exec(ctx)
	return err
}

func (r *RedisRepo) PutIfVersion(ctx context.Context, p Presence, expectVersion int64) (bool, error) {
	res, err := putIfVersionScript.Run(ctx, r.rdb,
		[]string{presenceKey(p.TenantID, p.UserID), indexKey(p.TenantID)},
		strconv.FormatInt(expectVersion, 10),
		p.ExtensionID,
		string(p.Status),
		p.StatusMessage,
		strconv.FormatInt(p.LastActivity.UnixMilli(), 10),
		strconv.FormatInt(p.Version, 10),
		p.UserID,
	).Int64()
	if err != nil {
		return false, err
	}
	return res == 1, nil
}

func (r *RedisRepo) Touch(ctx context.Context, tenantID, userID string, at time.Time) error {
	key := presenceKey(tenantID, userID)
	exists, err := r.rdb.Exists(ctx, key).Result()
	if err != nil || exists == 0 {
		return err
	}
	return r.rdb.HSet(ctx, key, "last_activity", strconv.FormatInt(at.UnixMilli(), 10)).Err()
}

func (r *RedisRepo) List(ctx context.Context, tenantID string) ([]Presence, error) {
	users, err := r.rdb.SMembers(ctx, indexKey(tenantID)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Presence, 0, len(users))
	for _, userID := range users {
		p, ok, err := r.Get(ctx, tenantID, userID)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func presenceToHash(p Presence) map[string]any {
	return map[string]any{
		"extension_id":   p.ExtensionID,
		"status":         string(p.Status),
		"status_message": p.StatusMessage,
		"last_activity":  strconv.FormatInt(p.LastActivity.UnixMilli(), 10),
		"version":        strconv.FormatInt(p.Version, 10),
	}
}

func hashToPresence(tenantID, userID string, vals map[string]string) (Presence, bool, error) {
	version, err := strconv.ParseInt(vals["version"], 10, 64)
	if err != nil {
		return Presence{}, false, errors.New("presence: corrupt version field")
	}
	ms, err := strconv.ParseInt(vals["last_activity"], 10, 64)
	if err != nil {
		return Presence{}, false, errors.New("presence: corrupt last_activity field")
	}
	return Presence{
		TenantID:      tenantID,
		UserID:        userID,
		ExtensionID:   vals["extension_id"],
		Status:        Status(vals["status"]),
		StatusMessage: vals["status_message"],
		LastActivity:  time.UnixMilli(ms).UTC(),
		Version:       version,
	}, true, nil
}
