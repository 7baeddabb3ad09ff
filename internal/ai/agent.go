package ai

import (
	"context"
	"encoding/json"
	"fmt"

	"invoice-audit/internal/core"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/responses"
	"github.com/openai/openai-go/shared"
	"github.com/openai/openai-go/shared/constant"
	"go.uber.org/zap"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gpt-4o"

// InsightGenerator produces heuristic observations for a finished audit report.
type InsightGenerator interface {
	GenerateInsights(ctx context.Context, report *core.AuditReport) ([]core.Insight, error)
}

// insightResponse is the structured output the model must return.
type insightResponse struct {
	FuzzyInsights []core.Insight `json:"fuzzy_insights" jsonschema_description:"Analytical insights about the audited batch. Empty when nothing stands out."`
}

type Agent struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

func NewAgent(apiKey, model string, logger *zap.Logger) *Agent {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	if model == "" {
		model = DefaultModel
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Agent{client: &client, model: model, logger: logger}
}

func (a *Agent) GenerateInsights(ctx context.Context, report *core.AuditReport) ([]core.Insight, error) {
	prompt, err := buildPrompt(report)
	if err != nil {
		return nil, err
	}

	schemaMap, err := schemaFor(insightResponse{})
	if err != nil {
		return nil, err
	}

	params := responses.ResponseNewParams{
		Model: shared.ResponsesModel(a.model),
		Input: responses.ResponseNewParamsInputUnion{
			OfString: param.NewOpt(prompt),
		},
		Text: responses.ResponseTextConfigParam{
			Format: responses.ResponseFormatTextConfigUnionParam{
				OfJSONSchema: &responses.ResponseFormatTextJSONSchemaConfigParam{
					Type:        constant.JSONSchema("json_schema"),
					Name:        "audit_fuzzy_insights",
					Strict:      param.NewOpt(true),
					Schema:      schemaMap,
					Description: param.NewOpt("Heuristic insights about an invoice audit report"),
				},
			},
		},
	}

	resp, err := a.client.Responses.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai responses error: %w", err)
	}

	content := resp.OutputText()
	if content == "" {
		return nil, fmt.Errorf("empty response content")
	}

	insights, err := parseInsights(content)
	if err != nil {
		a.logger.Warn("unparseable insight response", zap.String("model", a.model), zap.Error(err))
		return nil, err
	}
	a.logger.Info("insights generated", zap.String("model", a.model), zap.Int("count", len(insights)))
	return insights, nil
}

// schemaFor reflects v into the map form the Responses API expects.
func schemaFor(v any) (map[string]any, error) {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	schemaJSON, err := json.Marshal(reflector.Reflect(v))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	var schemaMap map[string]any
	if err := json.Unmarshal(schemaJSON, &schemaMap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal schema to map: %w", err)
	}
	return schemaMap, nil
}
