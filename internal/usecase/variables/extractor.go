// Package variables resolves named variables out of an opaque analysis
// response through an ordered chain of lookup locations.
package variables

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/paperstack/previewd/internal/domain"
)

// Lookup source names, reported in domain.Variable.Source.
const (
	SourceSessionAPI            = "session-api"
	SourceConversationVariables = "conversationVariables"
	SourceOutputs               = "outputs"
	SourceMetadata              = "metadata"
)

// source is one lookup location. The chain is a priority list, not a
// merge: the first source that contains the key wins and later sources
// are never consulted. New locations are added by appending here.
type source struct {
	name   string
	lookup func(ctx context.Context, resp domain.AnalysisResponse, name string) (any, bool)
}

// Extractor resolves variables from analysis responses. The session API
// (location one) is authoritative when available; the remaining
// locations probe fields embedded in the response payload.
type Extractor struct {
	api     SessionAPI
	logger  *zap.Logger
	sources []source
}

// New creates an Extractor. api may be nil, in which case resolution
// starts at the payload-embedded locations.
func New(api SessionAPI, logger *zap.Logger) *Extractor {
	e := &Extractor{api: api, logger: logger}
	e.sources = []source{
		{name: SourceSessionAPI, lookup: e.fromSessionAPI},
		{name: SourceConversationVariables, lookup: payloadField("conversationVariables")},
		{name: SourceOutputs, lookup: payloadField("outputs")},
		{name: SourceMetadata, lookup: payloadField("metadata")},
	}
	return e
}

// Extract resolves a single variable. An absent name yields
// Found=false; a name resolved to null yields Found=true with a nil
// Value — the two are distinct outcomes.
func (e *Extractor) Extract(ctx context.Context, resp domain.AnalysisResponse, name string) domain.Variable {
	for _, src := range e.sources {
		v, ok := src.lookup(ctx, resp, name)
		if !ok {
			continue
		}
		return domain.Variable{
			Name:   name,
			Value:  e.normalize(name, v),
			Found:  true,
			Source: src.name,
		}
	}
	return domain.Variable{Name: name}
}

// ExtractAll resolves a batch of names. Absent names appear in the map
// with Found=false; absence is never an error for the batch form.
func (e *Extractor) ExtractAll(ctx context.Context, resp domain.AnalysisResponse, names []string) map[string]domain.Variable {
	out := make(map[string]domain.Variable, len(names))
	for _, name := range names {
		out[name] = e.Extract(ctx, resp, name)
	}
	return out
}

func (e *Extractor) fromSessionAPI(ctx context.Context, resp domain.AnalysisResponse, name string) (any, bool) {
	if e.api == nil || resp.ConversationID == "" {
		return nil, false
	}
	v, ok, err := e.api.ConversationVariable(ctx, resp.ConversationID, name)
	if err != nil {
		// Fall through to the payload-embedded locations.
		e.logger.Warn("Conversation variables lookup failed",
			zap.String("conversation_id", resp.ConversationID),
			zap.String("variable", name),
			zap.Error(err))
		return nil, false
	}
	return v, ok
}

// payloadField looks a name up inside a top-level object field of the
// raw response payload.
func payloadField(field string) func(context.Context, domain.AnalysisResponse, string) (any, bool) {
	return func(_ context.Context, resp domain.AnalysisResponse, name string) (any, bool) {
		obj := gjson.GetBytes(resp.Payload, field)
		if !obj.Exists() || !obj.IsObject() {
			return nil, false
		}
		v, ok := obj.Map()[name]
		if !ok {
			return nil, false
		}
		return v.Value(), true
	}
}

// normalize parses JSON-shaped string values into their structured form.
// A parse failure degrades to the raw text with a warning rather than
// failing the extraction.
func (e *Extractor) normalize(name string, v any) any {
	s, isString := v.(string)
	if !isString || !looksLikeJSON(s) {
		return v
	}

	var parsed any
	if err := json.Unmarshal([]byte(s), &parsed); err != nil {
		e.logger.Warn("Variable value looks like JSON but does not parse; returning raw text",
			zap.String("variable", name), zap.Error(err))
		return s
	}
	return parsed
}

func looksLikeJSON(s string) bool {
	t := strings.TrimSpace(s)
	return strings.HasPrefix(t, "{") || strings.HasPrefix(t, "[")
}
