package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"invoice-audit/internal/core"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
	hjson "github.com/hjson/hjson-go/v4"
)

const promptTemplate = `You are a specialized financial data analyst. Your only function is to produce analytical insights about an invoice audit.

The JSON below is the output of a deterministic audit rule engine: arithmetic mismatches, missing fields,
future dated invoices, per-vendor totals, duplicate amounts and repeated items. Do not restate those findings.
Look for what the rules cannot see:
1. Unusual item mix: strange combinations of items on a single invoice.
2. Suspicious quantities: quantities unusually high or low for the item type.
3. Single-invoice vendors: vendors appearing only once in the batch.
4. Zero value items: line items with a zero quantity or billed amount.
5. Pattern recognition: repeated non-round amounts or items suggesting automated billing or duplication.

Return a JSON object with exactly one key, "fuzzy_insights": an array of {"type", "description"} objects.
Each description must name the invoice ids, vendors or items involved. Return an empty array if nothing stands out.

Audit JSON:
%s`

func buildPrompt(report *core.AuditReport) (string, error) {
	if report == nil {
		return "", errors.New("no audit report to analyse")
	}
	auditJSON, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode audit report: %w", err)
	}
	return fmt.Sprintf(promptTemplate, auditJSON), nil
}

// parseInsights extracts the insight list from a model response. It tries strict JSON
// first, then json-repair, then Hjson, since models sometimes wrap the object in prose
// or code fences or emit trailing commas.
func parseInsights(content string) ([]core.Insight, error) {
	start := strings.Index(content, "{")
	if start < 0 {
		return nil, errors.New("no JSON object found in model response")
	}
	candidate := content[start:]
	if end := strings.LastIndex(candidate, "}"); end > 0 {
		candidate = candidate[:end+1]
	}

	var out insightResponse
	if err := json.Unmarshal([]byte(candidate), &out); err == nil {
		return nonNil(out.FuzzyInsights), nil
	}

	if repaired, err := jsonrepair.RepairJSON(candidate); err == nil {
		out = insightResponse{}
		if err := json.Unmarshal([]byte(repaired), &out); err == nil {
			return nonNil(out.FuzzyInsights), nil
		}
	}

	var loose any
	if err := hjson.Unmarshal([]byte(candidate), &loose); err == nil {
		if normalized, err := json.Marshal(loose); err == nil {
			out = insightResponse{}
			if err := json.Unmarshal(normalized, &out); err == nil {
				return nonNil(out.FuzzyInsights), nil
			}
		}
	}

	return nil, fmt.Errorf("no valid insight object found in model response")
}

func nonNil(in []core.Insight) []core.Insight {
	if in == nil {
		return []core.Insight{}
	}
	return in
}
