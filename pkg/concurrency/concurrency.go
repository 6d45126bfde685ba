package concurrency

import (
	"context"
	"sync"
	"time"

	"github.com/devsapp/serverless-automl-hub/pkg/config"
	"github.com/devsapp/serverless-automl-hub/pkg/utils"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const lockPrefix = "automl:lock:"

// Locker keyed mutual exclusion across training workers.
// ok is false when another holder owns the key; unlock is nil in that case.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (unlock func(), ok bool, err error)
}

// NewLocker local or redis, from config
func NewLocker() Locker {
	if config.ConfigGlobal.LockBackend == config.REDIS {
		return NewRedisLocker(redis.NewClient(&redis.Options{
			Addr:     config.ConfigGlobal.RedisAddr,
			Password: config.ConfigGlobal.RedisPassword,
			DB:       config.ConfigGlobal.RedisDB,
		}))
	}
	return NewLocalLocker()
}

type lease struct {
	token   string
	expires time.Time
}

// LocalLocker in process locks, enough when a single hub owns all workers
type LocalLocker struct {
	held *sync.Map
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: new(sync.Map)}
}

func (l *LocalLocker) TryLock(_ context.Context, key string, ttl time.Duration) (func(), bool, error) {
	mine := &lease{token: utils.NewId(), expires: time.Now().Add(ttl)}
	cur, loaded := l.held.LoadOrStore(key, mine)
	if loaded {
		old := cur.(*lease)
		if time.Now().Before(old.expires) || !l.held.CompareAndSwap(key, old, mine) {
			return nil, false, nil
		}
	}
	return func() {
		l.held.CompareAndDelete(key, mine)
	}, true, nil
}

// release only when the stored token is still ours
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker SET NX locks shared by every hub instance
type RedisLocker struct {
	client *redis.Client
}

func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{client: client}
}

func (r *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	token := utils.NewId()
	ok, err := r.client.SetNX(ctx, lockPrefix+key, token, ttl).Result()
	if err != nil || !ok {
		return nil, false, err
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := unlockScript.Run(ctx, r.client, []string{lockPrefix + key}, token).Err(); err != nil {
			logrus.WithField("key", key).Warnf("release redis lock fail: %s", err.Error())
		}
	}, true, nil
}
