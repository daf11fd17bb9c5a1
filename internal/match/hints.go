package match

import (
	"strings"

	"ingest/internal/dataset"
	"ingest/internal/schema"
)

// Value hints nudge candidate scores using what the column's values look
// like, not just its name. The accumulated hint is bounded to
// [hintFloor, hintCeil] before it reaches the combined score.

const (
	hintFloor = -0.25
	hintCeil  = 0.5

	// uniqueness thresholds for identifier-shaped targets
	highUniqueRatio = 0.9
	lowUniqueRatio  = 0.5
)

// valueHintScore rates how well a column's value profile fits a target
// field, in [hintFloor, hintCeil].
//
// The switch over the inferred type is exhaustive: every ColumnType tag must
// state its hint behavior, even if that behavior is "no hint".
func valueHintScore(col *dataset.ColumnProfile, field schema.Field) float64 {
	tokens := tokenSet(dataset.NormalizeName(field.Field))
	hint := 0.0

	switch col.InferredType {
	case dataset.TypeEmail:
		if hasToken(tokens, "email", "mail") {
			hint += 0.5
		}
	case dataset.TypePhone:
		if hasToken(tokens, "phone", "mobile", "cell", "tel", "telephone") {
			hint += 0.5
		}
	case dataset.TypeNumber, dataset.TypeCurrency:
		if hasToken(tokens, "amount", "total", "hours", "count", "value", "capacity") {
			hint += 0.35
		}
	case dataset.TypeDate, dataset.TypeDateTime:
		if hasToken(tokens, "date", "time", "at") || strings.HasSuffix(field.Field, "_at") {
			hint += 0.35
		}
	case dataset.TypeUUID:
		if idShaped(field.Field) && col.UniqueRatio >= highUniqueRatio {
			hint += 0.25
		}
	case dataset.TypeString:
		hint += nameTokenAlignment(col, tokens)
	case dataset.TypeBoolean, dataset.TypeUnknown:
		// no value-based signal
	}

	// Low-uniqueness columns make poor identifiers regardless of their
	// inferred type.
	if idShaped(field.Field) && col.UniqueRatio < lowUniqueRatio && col.NonEmptyCount > 0 {
		hint -= 0.15
	}

	return dataset.Clamp(hint, hintFloor, hintCeil)
}

// nameTokenAlignment rewards first/last token agreement between a string
// column and a name-shaped target field ("First Name" → first_name).
func nameTokenAlignment(col *dataset.ColumnProfile, fieldTokens map[string]struct{}) float64 {
	if !hasToken(fieldTokens, "name") {
		return 0
	}
	colTokens := tokenSet(col.NormalizedName)
	if hasToken(colTokens, "first") && hasToken(fieldTokens, "first") {
		return 0.3
	}
	if hasToken(colTokens, "last") && hasToken(fieldTokens, "last") {
		return 0.3
	}
	return 0
}

// idShaped reports whether a target field is an identifier: "id" itself or
// any *_id-shaped name.
func idShaped(field string) bool {
	n := dataset.NormalizeName(field)
	return n == "id" || strings.HasSuffix(n, "_id")
}
