// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"

	termstore "github.com/dalemusser/curriculum/internal/app/store/terms"
	"github.com/dalemusser/curriculum/internal/app/system/apperr"
	"github.com/dalemusser/curriculum/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/config"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Startup runs one-time application initialization after DB connections and
// schema setup are complete, but before the HTTP handler is built.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	timeouts.Configure(timeouts.Config{
		Ping:   appCfg.TimeoutPing,
		Short:  appCfg.TimeoutShort,
		Medium: appCfg.TimeoutMedium,
		Long:   appCfg.TimeoutLong,
	})
	return reportActiveTerm(ctx, deps.MongoDatabase, logger)
}

// reportActiveTerm logs which term is active. A database with no active
// term is valid (fresh install) and only warrants a warning.
func reportActiveTerm(ctx context.Context, db *mongo.Database, logger *zap.Logger) error {
	t, err := termstore.New(db, logger, nil).Active(ctx)
	switch {
	case apperr.Is(err, apperr.KindNotFound):
		logger.Warn("no active term; activate one before assigning groups")
		return nil
	case err != nil:
		return err
	}
	logger.Info("active term", zap.String("term", t.Code))
	return nil
}
