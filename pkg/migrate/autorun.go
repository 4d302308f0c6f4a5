package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/farmlink-backend/pkg/config"
	"github.com/angelmondragon/farmlink-backend/pkg/db"
	"github.com/angelmondragon/farmlink-backend/pkg/logger"
)

// autoApply is true only for dev processes with FARMLINK_AUTO_MIGRATE set.
func autoApply(cfg *config.Config) bool {
	return cfg.App.IsDev() && cfg.FeatureFlags.AutoMigrate
}

// MaybeRunDev brings the schema current at process start. Postgres runs the
// embedded goose set; sqlite gets the flat schema file.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !autoApply(cfg) {
		return nil
	}
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "driver": cfg.DB.Driver})

	if cfg.DB.IsSQLite() {
		logg.Info(ctx, "migrate.autorun_sqlite_schema")
		return client.ApplySQLiteSchema(ctx)
	}

	pool, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("autorun: sql handle: %w", err)
	}
	runner, err := NewRunner(pool, Embedded(), logg)
	if err != nil {
		return err
	}
	logg.Info(ctx, "migrate.autorun_goose_up")
	return runner.Up(ctx)
}
