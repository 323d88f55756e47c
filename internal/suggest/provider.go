package suggest

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Rezme-Inc/fairchance-api/internal/domain"
)

// Provider turns free source text (an offer letter, background report, case
// notes) into per-field suggestions for one form kind. The caller merges the
// result into empty fields only; the provider itself never touches storage.
type Provider struct {
	client  Client
	model   string
	timeout time.Duration
}

func NewProvider(client Client, model string, timeout time.Duration) *Provider {
	return &Provider{client: client, model: model, timeout: timeout}
}

func (p *Provider) Suggest(ctx context.Context, kind domain.FormKind, sourceText string) (map[string]string, error) {
	fields, err := ScalarFields(kind)
	if err != nil {
		return nil, err
	}

	raw, err := p.client.CompleteJSON(ctx, CompletionRequest{
		Model:        p.model,
		SystemPrompt: AUTOFILL_SYSTEM,
		UserPrompt:   BuildAutofillPrompt(string(kind), fields, sourceText),
		Timeout:      p.timeout,
	})
	if err != nil {
		return nil, err
	}

	return ParseSuggestions(raw, fields)
}

// ScalarFields lists the string fields of a form kind, the only fields a
// suggestion may target. Ordered lists and flags are excluded.
func ScalarFields(kind domain.FormKind) ([]string, error) {
	form, err := domain.NewForm(kind)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(form)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	fields := make([]string, 0, len(m))
	for name, v := range m {
		if _, ok := v.(string); ok {
			fields = append(fields, name)
		}
	}
	sort.Strings(fields)
	return fields, nil
}

// ParseSuggestions decodes model output into a field→value map, rejecting keys
// outside the allowed set and dropping empty or non-string values.
func ParseSuggestions(raw string, allowed []string) (map[string]string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("empty model output")
	}

	allowedSet := make(map[string]struct{}, len(allowed))
	for _, f := range allowed {
		allowedSet[f] = struct{}{}
	}

	var m map[string]json.RawMessage
	if err := json.Unmarshal([]byte(trimmed), &m); err != nil {
		return nil, fmt.Errorf("unable to parse suggestions: %w", err)
	}

	out := make(map[string]string, len(m))
	for k, v := range m {
		if _, ok := allowedSet[k]; !ok {
			return nil, fmt.Errorf("unknown field %q in suggestions, allowed: %v", k, allowed)
		}
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			continue
		}
		if strings.TrimSpace(s) == "" {
			continue
		}
		out[k] = s
	}
	return out, nil
}
