// Package bootstrap wires whiskers into the app lifecycle.
package bootstrap

import (
	"context"
	"fmt"
	"net/http"

	"github.com/dalemusser/whiskers/app"
	"github.com/dalemusser/whiskers/config"
	"go.uber.org/zap"
)

// LoadConfig loads core config and whiskers' app keys.
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, vals, err := config.LoadWithAppConfig(logger, EnvPrefix, appKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}
	appCfg, err := appConfigFrom(vals)
	if err != nil {
		return nil, AppConfig{}, fmt.Errorf("app config: %w", err)
	}
	if coreCfg.HTTP.UseHTTPS && !appCfg.SessionSecure {
		logger.Info("use_https is set; marking session cookies Secure")
		appCfg.SessionSecure = true
	}
	return coreCfg, appCfg, nil
}

// ConnectDB connects Redis (when configured) and builds the stores.
func ConnectDB(ctx context.Context, _ *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) (*DBDeps, error) {
	return connectDeps(ctx, appCfg, logger)
}

// BuildHandler constructs the HTTP handler for the service.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps *DBDeps, logger *zap.Logger) (http.Handler, error) {
	return buildRoutes(coreCfg, appCfg, deps, logger)
}

// Shutdown releases what ConnectDB and BuildHandler opened.
func Shutdown(_ context.Context, deps *DBDeps, logger *zap.Logger) error {
	logger.Info("closing backends")
	return deps.Close()
}

// Hooks wires whiskers into app.Run.
var Hooks = app.Hooks[AppConfig, *DBDeps]{
	Name:         "whiskers",
	LoadConfig:   LoadConfig,
	ConnectDB:    ConnectDB,
	BuildHandler: BuildHandler,
	Shutdown:     Shutdown,
}
