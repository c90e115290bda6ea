// internal/app/bootstrap/config.go
package bootstrap

import (
	"fmt"

	"github.com/dalemusser/curriculum/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// appConfigKeys defines the configuration keys for the curriculum engine.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, audit_log_mapping, etc.
//   - Environment variables: CURRICULUM_MONGO_URI, CURRICULUM_AUDIT_LOG_MAPPING, etc.
//   - Command-line flags: --mongo_uri, --audit_log_mapping, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "curriculum", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size (default: 100)"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size (default: 10)"},

	// Audit logging settings
	{Name: "audit_log_mapping", Default: "all", Desc: "Group/binding/mapping/expertise event logging: 'all' (db+log), 'db', 'log', or 'off'"},
	{Name: "audit_log_term", Default: "all", Desc: "Term event logging: 'all' (db+log), 'db', 'log', or 'off'"},

	// Request deadlines
	{Name: "timeout_ping", Default: "2s", Desc: "Health check deadline"},
	{Name: "timeout_short", Default: "5s", Desc: "Single-document read deadline"},
	{Name: "timeout_medium", Default: "10s", Desc: "List, batch and single-row write deadline"},
	{Name: "timeout_long", Default: "30s", Desc: "Transactional replace deadline"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig merges .env files, config files,
// CURRICULUM_* environment variables and flags with precedence
// flags > env > files > defaults.
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "CURRICULUM", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),

		AuditLogMapping: appValues.String("audit_log_mapping"),
		AuditLogTerm:    appValues.String("audit_log_term"),

		TimeoutPing:   appValues.Duration("timeout_ping", timeouts.DefaultPing),
		TimeoutShort:  appValues.Duration("timeout_short", timeouts.DefaultShort),
		TimeoutMedium: appValues.Duration("timeout_medium", timeouts.DefaultMedium),
		TimeoutLong:   appValues.Duration("timeout_long", timeouts.DefaultLong),
	}

	return coreCfg, appCfg, nil
}

var auditModes = map[string]bool{"all": true, "db": true, "log": true, "off": true}

// ValidateConfig performs app-specific config validation.
//
// The MongoDB URI is checked before any connection attempt; audit modes,
// pool sizes and deadlines must be usable as given.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}
	return validateAppConfig(appCfg)
}

func validateAppConfig(appCfg AppConfig) error {
	if appCfg.MongoDatabase == "" {
		return fmt.Errorf("mongo_database must be set")
	}
	if appCfg.MongoMinPoolSize > appCfg.MongoMaxPoolSize {
		return fmt.Errorf("mongo_min_pool_size (%d) exceeds mongo_max_pool_size (%d)",
			appCfg.MongoMinPoolSize, appCfg.MongoMaxPoolSize)
	}
	for key, v := range map[string]string{
		"audit_log_mapping": appCfg.AuditLogMapping,
		"audit_log_term":    appCfg.AuditLogTerm,
	} {
		if !auditModes[v] {
			return fmt.Errorf("%s must be one of all, db, log, off (got %q)", key, v)
		}
	}
	if appCfg.TimeoutPing <= 0 || appCfg.TimeoutShort <= 0 || appCfg.TimeoutMedium <= 0 || appCfg.TimeoutLong <= 0 {
		return fmt.Errorf("timeouts must be positive")
	}
	return nil
}
