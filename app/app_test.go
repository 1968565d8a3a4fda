package app

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/dalemusser/whiskers/config"
	"go.uber.org/zap"
)

type deps struct{ closed bool }

func testCore() *config.CoreConfig {
	cfg := &config.CoreConfig{Env: "dev", LogLevel: "error", DBConnectTimeout: time.Second}
	cfg.HTTP.ShutdownTimeout = time.Second
	return cfg
}

func TestRun_StopsAtFirstFailingHook(t *testing.T) {
	boom := errors.New("boom")

	t.Run("config", func(t *testing.T) {
		err := Run(context.Background(), Hooks[struct{}, *deps]{
			LoadConfig: func(*zap.Logger) (*config.CoreConfig, struct{}, error) {
				return nil, struct{}{}, boom
			},
		})
		if !errors.Is(err, boom) {
			t.Fatalf("Run = %v, want wrapped boom", err)
		}
	})

	t.Run("connect", func(t *testing.T) {
		err := Run(context.Background(), Hooks[struct{}, *deps]{
			LoadConfig: func(*zap.Logger) (*config.CoreConfig, struct{}, error) { return testCore(), struct{}{}, nil },
			ConnectDB: func(context.Context, *config.CoreConfig, struct{}, *zap.Logger) (*deps, error) {
				return nil, boom
			},
		})
		if !errors.Is(err, boom) {
			t.Fatalf("Run = %v, want wrapped boom", err)
		}
	})

	t.Run("handler build releases backends", func(t *testing.T) {
		d := &deps{}
		schemaRan := false
		err := Run(context.Background(), Hooks[struct{}, *deps]{
			LoadConfig: func(*zap.Logger) (*config.CoreConfig, struct{}, error) { return testCore(), struct{}{}, nil },
			ConnectDB: func(ctx context.Context, _ *config.CoreConfig, _ struct{}, _ *zap.Logger) (*deps, error) {
				if _, ok := ctx.Deadline(); !ok {
					t.Error("connect ctx has no deadline")
				}
				return d, nil
			},
			EnsureSchema: func(context.Context, *config.CoreConfig, struct{}, *deps, *zap.Logger) error {
				schemaRan = true
				return nil
			},
			BuildHandler: func(*config.CoreConfig, struct{}, *deps, *zap.Logger) (http.Handler, error) {
				return nil, boom
			},
			Shutdown: func(_ context.Context, d *deps, _ *zap.Logger) error {
				d.closed = true
				return nil
			},
		})
		if !errors.Is(err, boom) {
			t.Fatalf("Run = %v, want wrapped boom", err)
		}
		if !schemaRan {
			t.Error("EnsureSchema not called")
		}
		if !d.closed {
			t.Error("Shutdown not called")
		}
	})
}
