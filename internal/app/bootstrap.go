package app

import (
	"context"

	"invoice-audit/internal/ai"
	"invoice-audit/internal/config"
	"invoice-audit/internal/core"
	"invoice-audit/internal/db"

	"go.uber.org/zap"
)

// Bootstrap wires an ApplicationService from cfg. Postgres and OpenAI are optional:
// without DATABASE_URL runs are not stored, without OPENAI_API_KEY insights are off.
// The returned cleanup closes the database pool.
func Bootstrap(ctx context.Context, cfg *config.Config, logger *zap.Logger) (ApplicationService, func(), error) {
	cleanup := func() {}

	var runs core.AuditRunService
	if cfg.PersistenceEnabled() {
		pool, err := db.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, cleanup, err
		}
		cleanup = pool.Close
		runs = core.NewAuditRunService(pool)
	} else {
		logger.Warn("DATABASE_URL is not set; audit runs will not be stored")
	}

	var insights ai.InsightGenerator
	if cfg.InsightsEnabled() {
		insights = ai.NewAgent(cfg.OpenAIKey, cfg.OpenAIModel, logger.Named("ai"))
	} else {
		logger.Info("OPENAI_API_KEY is not set; insights are disabled")
	}

	engine := core.NewRuleEngine(cfg.Rules, logger.Named("rules"))
	return NewAppService(engine, runs, insights, logger), cleanup, nil
}
