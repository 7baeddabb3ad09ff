package main

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"log"
	"time"

	"invoice-audit/internal/ai"
	"invoice-audit/internal/config"
	"invoice-audit/internal/core"
	"invoice-audit/internal/ingest"

	"go.uber.org/zap"
)

//go:embed sample_batch.json
var sampleBatch []byte

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if !cfg.InsightsEnabled() {
		log.Fatal("OPENAI_API_KEY not set")
	}

	logger, _ := zap.NewDevelopment()
	defer func() { _ = logger.Sync() }()

	invoices, err := ingest.ReadJSON(bytes.NewReader(sampleBatch))
	if err != nil {
		log.Fatalf("sample batch: %v", err)
	}
	report, err := core.NewRuleEngine(cfg.Rules, logger).Audit(invoices)
	if err != nil {
		log.Fatalf("audit: %v", err)
	}

	agent := ai.NewAgent(cfg.OpenAIKey, cfg.OpenAIModel, logger)
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	fmt.Printf("AUDITED %d INVOICES: %d issues, %d missing fields, %d future dates\n",
		report.Summary.TotalInvoices, len(report.Issues),
		len(report.ComplianceFlags.MissingFields), len(report.ComplianceFlags.FutureDates))

	insights, err := agent.GenerateInsights(ctx, report)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}

	fmt.Printf("\n--- INSIGHTS (%s) ---\n", cfg.OpenAIModel)
	if len(insights) == 0 {
		fmt.Println("(none)")
	}
	for _, in := range insights {
		fmt.Printf("- [%s] %s\n", in.Type, in.Description)
	}
}
