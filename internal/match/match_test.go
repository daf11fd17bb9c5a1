package match

import (
	"strings"
	"testing"

	"ingest/internal/dataset"
	"ingest/internal/schema"
)

// makeDataset builds a profiled dataset straight from rows, bypassing the
// parsers; matcher tests should not depend on tokenizer behavior.
func makeDataset(t *testing.T, name string, cols []string, rows [][]string) *dataset.Dataset {
	t.Helper()

	profiles, warns := dataset.BuildColumns(cols, rows)
	if len(warns) != 0 {
		t.Fatalf("unexpected profile warnings: %v", warns)
	}
	return &dataset.Dataset{
		SourceType:  dataset.SourceCSV,
		Name:        name,
		ColumnNames: cols,
		RowCount:    len(rows),
		SampleRows:  rows,
		Columns:     profiles,
	}
}

//
// SuggestSchemaMatches
//

// TestSuggestDonationsPreferred verifies the headline behavior: a dataset
// shaped like donations must rank the donations table first against the
// built-in registry and map its three required fields.
func TestSuggestDonationsPreferred(t *testing.T) {
	t.Parallel()

	ds := makeDataset(t, "donations",
		[]string{"donor_email", "amount", "donation_date"},
		[][]string{
			{"a@x.org", "$10.00", "2024-01-05"},
			{"b@y.org", "$25.50", "2024-02-11"},
			{"c@z.org", "$5.00", "2024-03-20"},
		})

	got := SuggestSchemaMatches(ds, schema.Default(), Options{})

	if got.DatasetName != "donations" {
		t.Fatalf("datasetName = %q", got.DatasetName)
	}
	if got.BestTable == nil {
		t.Fatal("want a best table")
	}
	if got.BestTable.Table != "donations" {
		t.Fatalf("best table = %q, want donations", got.BestTable.Table)
	}

	wantMapping := map[string]string{
		"donor_email":   "donations.donor_email",
		"amount":        "donations.amount",
		"donation_date": "donations.donation_date",
	}
	for col, want := range wantMapping {
		if got.BestTable.SuggestedMapping[col] != want {
			t.Fatalf("mapping[%s] = %q, want %q",
				col, got.BestTable.SuggestedMapping[col], want)
		}
	}
	if got.BestTable.Coverage != 1 {
		t.Fatalf("coverage = %v, want 1", got.BestTable.Coverage)
	}
}

// TestSuggestScoresBounded sweeps the built-in registry and asserts every
// score the matcher emits stays in [0,1].
func TestSuggestScoresBounded(t *testing.T) {
	t.Parallel()

	ds := makeDataset(t, "upload",
		[]string{"Email", "First Name", "Total", "When", "Active"},
		[][]string{
			{"a@x.org", "Alice", "$10", "2024-01-01", "yes"},
			{"b@y.org", "Bob", "$20", "2024-02-01", "no"},
		})

	got := SuggestSchemaMatches(ds, schema.Default(), Options{})
	for _, tbl := range got.Tables {
		if tbl.Score < 0 || tbl.Score > 1 {
			t.Fatalf("table %q score %v out of [0,1]", tbl.Table, tbl.Score)
		}
		if tbl.Coverage < 0 || tbl.Coverage > 1 {
			t.Fatalf("table %q coverage %v out of [0,1]", tbl.Table, tbl.Coverage)
		}
		for col, cands := range tbl.ColumnSuggestions {
			for i, c := range cands {
				if c.Score < 0 || c.Score > 1 {
					t.Fatalf("candidate %s.%s score %v out of [0,1]", col, c.Field, c.Score)
				}
				if i > 0 && cands[i-1].Score < c.Score {
					t.Fatalf("candidates for %s not sorted descending", col)
				}
			}
		}
	}
}

// TestSuggestTableOrdering verifies descending score order with
// deterministic name tie-breaks.
func TestSuggestTableOrdering(t *testing.T) {
	t.Parallel()

	ds := makeDataset(t, "donations",
		[]string{"donor_email", "amount"},
		[][]string{{"a@x.org", "$1"}})

	got := SuggestSchemaMatches(ds, schema.Default(), Options{})
	for i := 1; i < len(got.Tables); i++ {
		prev, cur := got.Tables[i-1], got.Tables[i]
		if prev.Score < cur.Score {
			t.Fatalf("tables not sorted: %q(%v) before %q(%v)",
				prev.Table, prev.Score, cur.Table, cur.Score)
		}
		if prev.Score == cur.Score && prev.Table > cur.Table {
			t.Fatalf("tie not broken by name: %q before %q", prev.Table, cur.Table)
		}
	}
}

// TestSuggestNoBestTableForGarbage verifies that an unmatchable dataset
// yields no best table rather than a zero-confidence pick.
func TestSuggestNoBestTableForGarbage(t *testing.T) {
	t.Parallel()

	ds := makeDataset(t, "zzz9887",
		[]string{"qqq1", "wwww2"},
		[][]string{{"foo", "bar"}})

	got := SuggestSchemaMatches(ds, schema.Default(), Options{})
	if got.BestTable != nil {
		t.Fatalf("want no best table, got %q score %v",
			got.BestTable.Table, got.BestTable.Score)
	}
	for _, tbl := range got.Tables {
		if len(tbl.SuggestedMapping) != 0 {
			t.Fatalf("table %q has mappings for garbage columns", tbl.Table)
		}
	}
}

// TestOptionalOnlyTableNotPenalized verifies required-coverage scoring for
// tables that declare no required fields: with every field mapped they must
// score the same as an identical table whose field is required and covered,
// not forfeit the required-coverage term. Optional-only tables are routine
// for introspected registries where every column is nullable.
func TestOptionalOnlyTableNotPenalized(t *testing.T) {
	t.Parallel()

	ds := makeDataset(t, "upload",
		[]string{"email"},
		[][]string{
			{"a@x.org"},
			{"b@y.org"},
			{"c@z.org"},
		})

	scoreFor := func(required bool) float64 {
		tables := []schema.Table{{
			Table:  "people",
			Fields: []schema.Field{{Field: "email", Type: "email", Required: required}},
		}}
		got := SuggestSchemaMatches(ds, tables, Options{})
		if got.BestTable == nil {
			t.Fatalf("required=%v: want a best table", required)
		}
		if got.BestTable.SuggestedMapping["email"] != "people.email" {
			t.Fatalf("required=%v: mapping = %v", required, got.BestTable.SuggestedMapping)
		}
		return got.BestTable.Score
	}

	optional, required := scoreFor(false), scoreFor(true)
	if optional != required {
		t.Fatalf("fully-mapped optional-only table scored %v, required variant %v",
			optional, required)
	}
}

//
// greedy assignment
//

// TestGreedyAssignmentIsOneToOne verifies the conflict rule: two columns
// whose top candidate is the same target field produce exactly one mapping,
// won by the stronger (better-filled) column, and the loser does not fall
// through to a weaker candidate.
func TestGreedyAssignmentIsOneToOne(t *testing.T) {
	t.Parallel()

	tables := []schema.Table{{
		Table:  "people",
		Fields: []schema.Field{{Field: "email", Type: "email", Required: true}},
	}}

	ds := makeDataset(t, "upload",
		[]string{"email", "contact_email"},
		[][]string{
			{"a@x.org", "z@q.org"},
			{"b@y.org", ""},
			{"c@z.org", ""},
		})

	got := SuggestSchemaMatches(ds, tables, Options{})
	if got.BestTable == nil {
		t.Fatal("want a best table")
	}

	mapping := got.BestTable.SuggestedMapping
	if len(mapping) != 1 {
		t.Fatalf("mapping = %v, want exactly one entry", mapping)
	}
	if mapping["email"] != "people.email" {
		t.Fatalf("the fully-filled column must win: %v", mapping)
	}
}

// TestUniquenessBoostsIdentifier verifies the value-profile hint: a
// uuid-typed column scores higher against an id-shaped field when its
// values are unique than when they repeat.
func TestUniquenessBoostsIdentifier(t *testing.T) {
	t.Parallel()

	tables := []schema.Table{{
		Table:  "t",
		Fields: []schema.Field{{Field: "external_id", Type: "id"}},
	}}

	unique := makeDataset(t, "u", []string{"external_id"}, [][]string{
		{"550e8400-e29b-41d4-a716-446655440000"},
		{"650e8400-e29b-41d4-a716-446655440001"},
		{"750e8400-e29b-41d4-a716-446655440002"},
		{"850e8400-e29b-41d4-a716-446655440003"},
	})
	repeated := makeDataset(t, "r", []string{"external_id"}, [][]string{
		{"550e8400-e29b-41d4-a716-446655440000"},
		{"550e8400-e29b-41d4-a716-446655440000"},
		{"550e8400-e29b-41d4-a716-446655440000"},
		{"550e8400-e29b-41d4-a716-446655440000"},
	})

	scoreOf := func(ds *dataset.Dataset) float64 {
		got := SuggestSchemaMatches(ds, tables, Options{})
		cands := got.Tables[0].ColumnSuggestions["external_id"]
		if len(cands) == 0 {
			t.Fatal("want a candidate for external_id")
		}
		return cands[0].Score
	}

	if u, r := scoreOf(unique), scoreOf(repeated); u <= r {
		t.Fatalf("unique ids must outscore repeated ids: %v <= %v", u, r)
	}
}

//
// candidate shaping
//

// TestCandidateCapAndThreshold verifies MinCandidateScore filtering and the
// per-column candidate cap.
func TestCandidateCapAndThreshold(t *testing.T) {
	t.Parallel()

	fields := make([]schema.Field, 0, 10)
	for _, n := range []string{"a1", "a2", "a3", "a4", "a5", "a6", "a7", "a8"} {
		fields = append(fields, schema.Field{Field: n, Type: "string"})
	}
	tables := []schema.Table{{Table: "wide", Fields: fields}}

	ds := makeDataset(t, "d", []string{"a0"}, [][]string{{"text"}})

	got := SuggestSchemaMatches(ds, tables, Options{PerColumnCandidates: 3})
	cands := got.Tables[0].ColumnSuggestions["a0"]
	if len(cands) > 3 {
		t.Fatalf("got %d candidates, want <= 3", len(cands))
	}
	for _, c := range cands {
		if c.Score < DefaultMinCandidateScore {
			t.Fatalf("candidate %s below threshold: %v", c.Field, c.Score)
		}
	}
}

// TestCandidateAliasReason verifies that an alias-driven match names the
// alias in its reasons.
func TestCandidateAliasReason(t *testing.T) {
	t.Parallel()

	tables := []schema.Table{{
		Table: "donations",
		Fields: []schema.Field{
			{Field: "amount", Type: "currency", Aliases: []string{"gift_amount"}},
		},
	}}

	ds := makeDataset(t, "d", []string{"gift_amount"}, [][]string{{"$5"}})

	got := SuggestSchemaMatches(ds, tables, Options{})
	cands := got.Tables[0].ColumnSuggestions["gift_amount"]
	if len(cands) == 0 {
		t.Fatal("want a candidate")
	}
	found := false
	for _, r := range cands[0].Reasons {
		if strings.Contains(r, "gift_amount") && strings.Contains(r, "alias") {
			found = true
		}
	}
	if !found {
		t.Fatalf("reasons should name the winning alias: %v", cands[0].Reasons)
	}
}
