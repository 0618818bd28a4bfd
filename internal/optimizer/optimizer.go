// Package optimizer reduces parsed character lists to fit a prompt token
// budget and serializes the result in a token-minimized form.
package optimizer

import (
	"encoding/json"
	"strings"

	"github.com/mirren/bunnymo-bridge-go/internal/domain"
	"github.com/mirren/bunnymo-bridge-go/internal/util"
	"go.uber.org/zap"
)

type Optimizer struct {
	logger *zap.Logger
}

func New(logger *zap.Logger) *Optimizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Optimizer{logger: logger}
}

// Optimize returns a reduced copy of chars under the given policy. The input
// is never mutated; survivors are fresh characters. Characters are kept in
// caller order, truncated at MaxCharacters. Priority categories keep up to
// MaxTagsPerCategory values; every other category keeps at most
// NonPriorityTagCap values. Characters whose trait map ends up empty are
// dropped.
func (o *Optimizer) Optimize(chars []domain.Character, policy domain.OptimizationPolicy) []domain.Character {
	if len(chars) == 0 || policy.MaxCharacters <= 0 {
		return nil
	}

	kept := chars[:util.Min(len(chars), policy.MaxCharacters)]
	result := make([]domain.Character, 0, len(kept))

	for _, char := range kept {
		reduced := reduceTags(char.Tags, policy)
		if reduced.Empty() {
			continue
		}
		result = append(result, domain.Character{
			Name:   char.Name,
			Tags:   reduced,
			Source: char.Source,
			UID:    char.UID,
		})
	}

	valuesOut := 0
	for _, char := range result {
		valuesOut += char.Tags.TotalValues()
	}
	o.logger.Debug("Optimized character list",
		zap.Int("in", len(chars)),
		zap.Int("out", len(result)),
		zap.Int("values_out", valuesOut),
		zap.Int("max_characters", policy.MaxCharacters),
	)
	return result
}

func reduceTags(tags *domain.TagMap, policy domain.OptimizationPolicy) *domain.TagMap {
	reduced := domain.NewTagMap()
	if tags.Empty() {
		return reduced
	}

	// Source category keys by lower-cased form so priority matching is
	// case-insensitive across the label (lower) and tag-block (upper) paths.
	byFold := make(map[string]string, tags.Len())
	for _, category := range tags.Categories() {
		fold := strings.ToLower(category)
		if _, seen := byFold[fold]; !seen {
			byFold[fold] = category
		}
	}

	taken := make(map[string]bool, tags.Len())
	for _, priority := range policy.PriorityCategories {
		category, ok := byFold[strings.ToLower(priority)]
		if !ok || taken[category] {
			continue
		}
		taken[category] = true
		copyValues(reduced, category, tags.Get(category), policy.MaxTagsPerCategory)
	}

	for _, category := range tags.Categories() {
		if taken[category] {
			continue
		}
		taken[category] = true
		copyValues(reduced, category, tags.Get(category), domain.NonPriorityTagCap)
	}

	return reduced
}

func copyValues(dst *domain.TagMap, category string, values []string, limit int) {
	if limit <= 0 {
		return
	}
	kept := make([]string, 0, util.Min(len(values), limit))
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			kept = append(kept, trimmed)
			if len(kept) == limit {
				break
			}
		}
	}
	// Append keeps the category key verbatim so tag-block casing survives,
	// and keeps duplicate values: dedup belongs to the tag-block parse path,
	// not here.
	dst.Append(category, kept...)
}

// Serialize renders an optimized list for injection. Compact mode is one
// line per character, "Name: cat1(v1,v2) cat2(v3)"; otherwise an unindented
// JSON document {"characters":[...]}. An empty list serializes to "" in
// compact mode and to "{}" otherwise, never to a null-ish value.
func Serialize(chars []domain.Character, compact bool) string {
	if len(chars) == 0 {
		if compact {
			return ""
		}
		return "{}"
	}

	if compact {
		lines := make([]string, 0, len(chars))
		for _, char := range chars {
			lines = append(lines, compactLine(char))
		}
		return strings.Join(lines, "\n")
	}

	doc := struct {
		Characters []domain.Character `json:"characters"`
	}{Characters: chars}
	data, err := json.Marshal(doc)
	if err != nil {
		return "{}"
	}
	return string(data)
}

func compactLine(char domain.Character) string {
	var b strings.Builder
	b.WriteString(char.Name)
	b.WriteString(":")
	for _, category := range char.Tags.Categories() {
		values := char.Tags.Get(category)
		if len(values) == 0 {
			continue
		}
		b.WriteString(" ")
		b.WriteString(category)
		b.WriteString("(")
		b.WriteString(strings.Join(values, ","))
		b.WriteString(")")
	}
	return b.String()
}

// EstimateTokens approximates the model-token cost of s as ceil(len/4). A
// fixed heuristic used only for before/after reporting, never for truncation
// decisions.
func EstimateTokens(s string) int {
	return (len(s) + 3) / 4
}

// Report captures the savings of one optimization pass for logging.
type Report struct {
	CharactersIn  int
	CharactersOut int
	TokensBefore  int
	TokensAfter   int
}

// Measure serializes both lists with the same format and reports the token
// delta.
func Measure(before, after []domain.Character, compact bool) Report {
	return Report{
		CharactersIn:  len(before),
		CharactersOut: len(after),
		TokensBefore:  EstimateTokens(Serialize(before, compact)),
		TokensAfter:   EstimateTokens(Serialize(after, compact)),
	}
}
