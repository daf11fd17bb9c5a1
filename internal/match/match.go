// Package match scores ingested datasets against the target-schema registry
// and produces ranked, explainable mapping suggestions.
//
// The matcher is responsible for:
//   - Scoring every (source column, target field) pair per candidate table
//   - Keeping a short ranked candidate list per source column
//   - Turning rankings into a conflict-free 1:1 mapping via greedy
//     assignment, strongest columns first
//   - Scoring and ranking candidate tables with human-readable reasons
//
// Design constraints:
//   - All scores are bounded to [0,1]; ratio math goes through SafeRatio.
//   - Output ordering is deterministic for identical inputs.
//   - The registry is read-only; datasets are not mutated.
package match

import (
	"fmt"
	"sort"
	"strings"

	"ingest/internal/dataset"
	"ingest/internal/schema"
)

// Default thresholds for candidate retention and mapping acceptance.
const (
	DefaultMinCandidateScore       = 0.22
	DefaultPerColumnCandidates     = 6
	DefaultMinAcceptedMappingScore = 0.55
)

// Combined candidate score weights.
const (
	nameWeight        = 0.62
	typeWeight        = 0.28
	hintWeight        = 0.10
	hintPenaltyWeight = 0.08
)

// Table score weights.
const (
	tableMeanWeight     = 0.62
	tableCoverageWeight = 0.22
	tableRequiredWeight = 0.14
	tableNameBonus      = 0.02
	tableNameSimFloor   = 0.3
)

// Options tune the matcher. The zero value selects all defaults.
type Options struct {
	// MinCandidateScore discards candidates scoring below it.
	MinCandidateScore float64
	// PerColumnCandidates caps the ranked candidate list per column.
	PerColumnCandidates int
	// MinAcceptedMappingScore is the floor for greedy 1:1 acceptance.
	MinAcceptedMappingScore float64
}

func (o Options) withDefaults() Options {
	if o.MinCandidateScore <= 0 {
		o.MinCandidateScore = DefaultMinCandidateScore
	}
	if o.PerColumnCandidates <= 0 {
		o.PerColumnCandidates = DefaultPerColumnCandidates
	}
	if o.MinAcceptedMappingScore <= 0 {
		o.MinAcceptedMappingScore = DefaultMinAcceptedMappingScore
	}
	return o
}

// FieldMatchCandidate is one scored hypothesis that a source column maps to
// a target field.
type FieldMatchCandidate struct {
	Table   string   `json:"table"`
	Field   string   `json:"field"`
	Score   float64  `json:"score"`
	Reasons []string `json:"reasons"`
}

// TableMatchSuggestion is the per-table result: an overall score, the
// conflict-free suggested mapping, and ranked per-column candidates.
type TableMatchSuggestion struct {
	Table             string                           `json:"table"`
	Label             string                           `json:"label,omitempty"`
	Score             float64                          `json:"score"`
	Coverage          float64                          `json:"coverage"`
	SuggestedMapping  map[string]string                `json:"suggestedMapping"`
	ColumnSuggestions map[string][]FieldMatchCandidate `json:"columnSuggestions"`
	Reasons           []string                         `json:"reasons"`
}

// SchemaMatchSuggestion is the dataset-level result across all candidate
// tables, sorted best first.
type SchemaMatchSuggestion struct {
	DatasetName string                 `json:"datasetName"`
	BestTable   *TableMatchSuggestion  `json:"bestTable,omitempty"`
	Tables      []TableMatchSuggestion `json:"tables"`
}

// SuggestSchemaMatches scores ds against every registry table.
//
// Behavior:
//   - Candidates below MinCandidateScore are dropped; survivors are ranked
//     and truncated to PerColumnCandidates per column.
//   - The suggested mapping is built greedily, strongest columns first; no
//     target field is claimed twice.
//   - Tables are sorted descending by score; BestTable is the top table
//     only when its score is strictly positive.
func SuggestSchemaMatches(ds *dataset.Dataset, tables []schema.Table, opt Options) SchemaMatchSuggestion {
	opt = opt.withDefaults()

	out := SchemaMatchSuggestion{
		DatasetName: ds.Name,
		Tables:      make([]TableMatchSuggestion, 0, len(tables)),
	}

	for _, t := range tables {
		out.Tables = append(out.Tables, matchTable(ds, t, opt))
	}

	sort.SliceStable(out.Tables, func(i, j int) bool {
		if out.Tables[i].Score == out.Tables[j].Score {
			return out.Tables[i].Table < out.Tables[j].Table
		}
		return out.Tables[i].Score > out.Tables[j].Score
	})

	if len(out.Tables) > 0 && out.Tables[0].Score > 0 {
		best := out.Tables[0]
		out.BestTable = &best
	}
	return out
}

func matchTable(ds *dataset.Dataset, t schema.Table, opt Options) TableMatchSuggestion {
	sug := TableMatchSuggestion{
		Table:             t.Table,
		Label:             t.Label,
		SuggestedMapping:  map[string]string{},
		ColumnSuggestions: map[string][]FieldMatchCandidate{},
	}

	// Rank candidates per column.
	for _, col := range ds.Columns {
		cands := columnCandidates(col, t, opt)
		if len(cands) > 0 {
			sug.ColumnSuggestions[col.NormalizedName] = cands
		}
	}

	// Greedy 1:1 assignment: strongest columns claim targets first.
	accepted := greedyAssign(ds.Columns, sug.ColumnSuggestions, opt)

	acceptedSum := 0.0
	requiredHit := map[string]struct{}{}
	for _, a := range accepted {
		sug.SuggestedMapping[a.column] = a.target
		acceptedSum += a.score
		requiredHit[a.field] = struct{}{}
	}

	requiredTotal := 0
	requiredCovered := 0
	for _, f := range t.Fields {
		if !f.Required {
			continue
		}
		requiredTotal++
		if _, ok := requiredHit[f.Field]; ok {
			requiredCovered++
		}
	}

	columnCount := len(ds.Columns)
	sug.Coverage = dataset.Clamp(dataset.SafeRatio(len(accepted), columnCount), 0, 1)
	meanAccepted := 0.0
	if len(accepted) > 0 {
		meanAccepted = acceptedSum / float64(len(accepted))
	}
	// A table with no required fields has nothing to miss; treat it as fully
	// covered instead of forfeiting the required-coverage term.
	requiredCoverage := 1.0
	if requiredTotal > 0 {
		requiredCoverage = dataset.SafeRatio(requiredCovered, requiredTotal)
	}

	tableNameSim := tableNameSimilarity(ds.Name, t)
	nameBonus := 0.0
	if tableNameSim >= tableNameSimFloor {
		nameBonus = tableNameBonus
	}

	sug.Score = dataset.Clamp(
		tableMeanWeight*meanAccepted+
			tableCoverageWeight*sug.Coverage+
			tableRequiredWeight*requiredCoverage+
			nameBonus,
		0, 1)

	sug.Reasons = append(sug.Reasons,
		fmt.Sprintf("mapped %d of %d source columns", len(accepted), columnCount))
	if missing := requiredTotal - requiredCovered; missing > 0 {
		sug.Reasons = append(sug.Reasons,
			fmt.Sprintf("%d required field(s) not covered", missing))
	}
	if tableNameSim >= tableNameSimFloor {
		sug.Reasons = append(sug.Reasons,
			fmt.Sprintf("dataset name resembles table %q", t.Table))
	}

	return sug
}

// columnCandidates scores col against every field (and alias) of t,
// returning the ranked, thresholded, truncated candidate list.
func columnCandidates(col *dataset.ColumnProfile, t schema.Table, opt Options) []FieldMatchCandidate {
	cands := make([]FieldMatchCandidate, 0, len(t.Fields))

	for _, f := range t.Fields {
		nameSim, bestAlias := bestAliasSimilarity(col.Name, f)
		typeScore := schema.TypeCompatibilityScore(col.InferredType, f.Type)
		hint := valueHintScore(col, f)

		score := nameWeight*nameSim +
			typeWeight*typeScore +
			hintWeight*dataset.Clamp(hint, 0, 1)
		if hint < 0 {
			score += hintPenaltyWeight * hint
		}
		score = dataset.Clamp(score, 0, 1)

		if score < opt.MinCandidateScore {
			continue
		}

		cands = append(cands, FieldMatchCandidate{
			Table:   t.Table,
			Field:   f.Field,
			Score:   score,
			Reasons: candidateReasons(col, f, nameSim, bestAlias, typeScore, hint),
		})
	}

	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].Score == cands[j].Score {
			return cands[i].Field < cands[j].Field
		}
		return cands[i].Score > cands[j].Score
	})

	if len(cands) > opt.PerColumnCandidates {
		cands = cands[:opt.PerColumnCandidates]
	}
	return cands
}

// bestAliasSimilarity takes the maximum name similarity over the field name
// and all of its aliases, reporting which alias won.
func bestAliasSimilarity(column string, f schema.Field) (float64, string) {
	best := nameSimilarity(column, f.Field)
	bestAlias := f.Field
	for _, a := range f.Aliases {
		if s := nameSimilarity(column, a); s > best {
			best = s
			bestAlias = a
		}
	}
	return best, bestAlias
}

func candidateReasons(col *dataset.ColumnProfile, f schema.Field, nameSim float64, alias string, typeScore, hint float64) []string {
	reasons := make([]string, 0, 3)
	if alias != f.Field {
		reasons = append(reasons, fmt.Sprintf("name similarity %.2f via alias %q", nameSim, alias))
	} else {
		reasons = append(reasons, fmt.Sprintf("name similarity %.2f", nameSim))
	}
	reasons = append(reasons, fmt.Sprintf("type %s vs %s compatibility %.2f", col.InferredType, f.Type, typeScore))
	switch {
	case hint > 0:
		reasons = append(reasons, fmt.Sprintf("value profile supports %q (+%.2f)", f.Field, hint))
	case hint < 0:
		reasons = append(reasons, fmt.Sprintf("value profile weakens %q (%.2f)", f.Field, hint))
	}
	return reasons
}

type acceptedMapping struct {
	column string
	field  string
	target string
	score  float64
}

// greedyAssign orders columns by strength (fill ratio blended with
// inference confidence, ties broken by best candidate score, then source
// order) and lets each claim its single top candidate if it clears the
// acceptance floor and the target is still free. Columns whose top
// candidate is taken stay unmapped; they do not fall through to weaker
// candidates.
func greedyAssign(cols []*dataset.ColumnProfile, suggestions map[string][]FieldMatchCandidate, opt Options) []acceptedMapping {
	type ordered struct {
		idx      int
		col      *dataset.ColumnProfile
		strength float64
		topScore float64
	}

	order := make([]ordered, 0, len(cols))
	for i, col := range cols {
		top := 0.0
		if cands := suggestions[col.NormalizedName]; len(cands) > 0 {
			top = cands[0].Score
		}
		order = append(order, ordered{
			idx:      i,
			col:      col,
			strength: col.NonEmptyRatio * (0.6 + 0.4*col.InferredTypeConfidence),
			topScore: top,
		})
	}

	sort.SliceStable(order, func(i, j int) bool {
		if order[i].strength != order[j].strength {
			return order[i].strength > order[j].strength
		}
		if order[i].topScore != order[j].topScore {
			return order[i].topScore > order[j].topScore
		}
		return order[i].idx < order[j].idx
	})

	claimed := map[string]struct{}{}
	var out []acceptedMapping

	for _, o := range order {
		cands := suggestions[o.col.NormalizedName]
		if len(cands) == 0 {
			continue
		}
		top := cands[0]
		if top.Score < opt.MinAcceptedMappingScore {
			continue
		}
		target := top.Table + "." + top.Field
		if _, taken := claimed[target]; taken {
			continue
		}
		claimed[target] = struct{}{}
		out = append(out, acceptedMapping{
			column: o.col.NormalizedName,
			field:  top.Field,
			target: target,
			score:  top.Score,
		})
	}
	return out
}

// tableNameSimilarity compares the dataset label against the table name and
// its aliases. Dataset labels often embed sheet or statement context
// ("donations (Sheet1)"), so each "_"-token of the normalized label is also
// tried on its own.
func tableNameSimilarity(datasetName string, t schema.Table) float64 {
	names := append([]string{t.Table, t.Label}, t.Aliases...)

	best := 0.0
	for _, n := range names {
		if n == "" {
			continue
		}
		if s := nameSimilarity(datasetName, n); s > best {
			best = s
		}
		for _, tok := range strings.Split(dataset.NormalizeName(datasetName), "_") {
			if tok == "" {
				continue
			}
			if s := nameSimilarity(tok, n); s > best {
				best = s
			}
		}
	}
	return best
}
