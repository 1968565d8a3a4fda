package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dalemusser/whiskers/pantry/auth/oauth2"
	"github.com/dalemusser/whiskers/pantry/cache"
	"github.com/dalemusser/whiskers/pantry/email"
	"github.com/dalemusser/whiskers/pantry/session"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DBDeps holds the backends the app runs on. With no Redis configured
// everything lives in process memory.
type DBDeps struct {
	// Redis is nil when redis_addr is empty.
	Redis redis.UniversalClient

	Cache      cache.Cache
	VisitStore session.Store
	AuthStore  oauth2.SessionStore
	StateStore oauth2.StateStore
	Notices    email.Mailer // nil when SMTP is not configured

	stopAuthCleanup  func()
	stopStateCleanup func()
	// closers run first on Close; BuildHandler adds its own here.
	closers []func()
}

func connectDeps(ctx context.Context, appCfg AppConfig, logger *zap.Logger) (*DBDeps, error) {
	deps := &DBDeps{}

	if appCfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     appCfg.RedisAddr,
			Password: appCfg.RedisPassword,
			DB:       appCfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("redis ping %s: %w", appCfg.RedisAddr, err)
		}
		logger.Info("connected to Redis", zap.String("addr", appCfg.RedisAddr), zap.Int("db", appCfg.RedisDB))

		deps.Redis = client
		deps.Cache = cache.NewRedis(client, "whiskers:cache:")
		deps.VisitStore = session.NewRedisStore(client, "whiskers:visit:")
		deps.AuthStore = oauth2.NewRedisSessionStore(client, "whiskers:auth:")
		deps.StateStore = oauth2.NewRedisStateStore(client, "whiskers:state:")
	} else {
		logger.Info("no redis_addr; using in-memory stores")
		auth := oauth2.NewMemorySessionStore()
		state := oauth2.NewMemoryStateStore()
		deps.Cache = cache.NewMemory(time.Minute)
		deps.VisitStore = session.NewMemoryStore(10 * time.Minute)
		deps.AuthStore = auth
		deps.StateStore = state
		deps.stopAuthCleanup = auth.StartCleanupTask(10 * time.Minute)
		deps.stopStateCleanup = state.StartCleanupTask(5 * time.Minute)
	}

	if appCfg.SMTPEnabled() {
		deps.Notices = email.NewBackground(email.NewSender(appCfg.SMTP), 4, 30*time.Second, logger)
		logger.Info("sign-in notices enabled", zap.String("smtp_host", appCfg.SMTP.Host))
	}
	return deps, nil
}

func (d *DBDeps) onClose(fn func()) {
	d.closers = append(d.closers, fn)
}

// Close releases every backend.
func (d *DBDeps) Close() error {
	for _, fn := range d.closers {
		fn()
	}
	if d.stopAuthCleanup != nil {
		d.stopAuthCleanup()
	}
	if d.stopStateCleanup != nil {
		d.stopStateCleanup()
	}
	var errs []error
	if d.Cache != nil {
		errs = append(errs, d.Cache.Close())
	}
	if d.VisitStore != nil {
		errs = append(errs, d.VisitStore.Close())
	}
	if d.Redis != nil {
		errs = append(errs, d.Redis.Close())
	}
	return errors.Join(errs...)
}
