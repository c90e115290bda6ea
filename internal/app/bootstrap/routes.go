// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"

	auditlogfeature "github.com/dalemusser/curriculum/internal/app/features/auditlog"
	batchfeature "github.com/dalemusser/curriculum/internal/app/features/batch"
	classesfeature "github.com/dalemusser/curriculum/internal/app/features/classes"
	errorsfeature "github.com/dalemusser/curriculum/internal/app/features/errors"
	expertisefeature "github.com/dalemusser/curriculum/internal/app/features/expertise"
	groupsfeature "github.com/dalemusser/curriculum/internal/app/features/groups"
	healthfeature "github.com/dalemusser/curriculum/internal/app/features/health"
	modulesfeature "github.com/dalemusser/curriculum/internal/app/features/modules"
	roomsfeature "github.com/dalemusser/curriculum/internal/app/features/rooms"
	termsfeature "github.com/dalemusser/curriculum/internal/app/features/terms"
	"github.com/dalemusser/curriculum/internal/app/store/audit"
	"github.com/dalemusser/curriculum/internal/app/system/actor"
	"github.com/dalemusser/curriculum/internal/app/system/auditlog"
	"github.com/dalemusser/curriculum/internal/app/system/metrics"
	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup and
// Startup have completed. Every feature registers absolute paths on the
// shared /api router because several of them nest under /terms/{term}.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	db := deps.MongoDatabase

	// Audit events go to MongoDB and/or zap per category.
	auditLogger := auditlog.New(audit.New(db), logger, auditlog.Config{
		Mapping: appCfg.AuditLogMapping,
		Term:    appCfg.AuditLogTerm,
	})

	// Create error logger for handlers.
	errLog := errorsfeature.NewErrorLogger(logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.NotFound(errLog.NotFound)
	r.MethodNotAllowed(errLog.MethodNotAllowed)

	// Health check endpoint for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(deps.MongoClient, appCfg.MongoDatabase, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	r.Handle("/metrics", metrics.Handler())

	r.Route("/api", func(api chi.Router) {
		// The caller's identity is forwarded by the fronting service.
		api.Use(actor.Middleware)
		api.NotFound(errLog.NotFound)
		api.MethodNotAllowed(errLog.MethodNotAllowed)

		termsfeature.Register(api, termsfeature.NewHandler(db, auditLogger, errLog, logger))
		groupsfeature.Register(api, groupsfeature.NewHandler(db, auditLogger, errLog, logger))
		classesfeature.Register(api, classesfeature.NewHandler(db, auditLogger, errLog, logger))
		modulesfeature.Register(api, modulesfeature.NewHandler(db, auditLogger, errLog, logger))
		expertisefeature.Register(api, expertisefeature.NewHandler(db, auditLogger, errLog, logger))
		batchfeature.Register(api, batchfeature.NewHandler(db, errLog, logger))
		roomsfeature.Register(api, roomsfeature.NewHandler(db, errLog, logger))
		auditlogfeature.Register(api, auditlogfeature.NewHandler(db, errLog, logger))
	})

	return r, nil
}
