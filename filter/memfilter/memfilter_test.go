package memfilter

import (
	"fmt"
	"sync"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theplant/filtergroup/filter"
	"github.com/theplant/filtergroup/value"
)

var f = filter.NewFilter

func TestEvaluateScenarios(t *testing.T) {
	severityHighOrCritical := filter.Or(filter.Filters(
		f("severity", filter.OpEq, "high"),
		f("severity", filter.OpEq, "critical"),
	))

	tests := []struct {
		name    string
		group   *filter.FilterGroup
		matches []string
		rejects []string
	}{
		{
			name:    "single leaf",
			group:   filter.And(filter.Filters(f("status", filter.OpEq, "open"))),
			matches: []string{`{"status":"open"}`, `{"status":"OPEN"}`},
			rejects: []string{`{"status":"closed"}`, `{}`},
		},
		{
			name:    "or of leaves",
			group:   severityHighOrCritical,
			matches: []string{`{"severity":"critical"}`, `{"severity":"high"}`},
			rejects: []string{`{"severity":"low"}`},
		},
		{
			name:    "nested",
			group:   filter.And(filter.Filters(f("status", filter.OpEq, "open")), severityHighOrCritical),
			matches: []string{`{"status":"open","severity":"high"}`},
			rejects: []string{`{"status":"open","severity":"low"}`, `{"status":"closed","severity":"high"}`},
		},
		{
			name:    "dot path",
			group:   filter.And(filter.Filters(f("user.profile.email", filter.OpContains, "@example.com"))),
			matches: []string{`{"user":{"profile":{"email":"a@example.com"}}}`},
			rejects: []string{`{"user":{"profile":null}}`, `{"user":"a@example.com"}`, `{"user":{"profile":{"email":"a@example.org"}}}`},
		},
		{
			name:    "not",
			group:   filter.Not(filter.Filters(f("status", filter.OpEq, "closed"))),
			matches: []string{`{"status":"open"}`, `{}`},
			rejects: []string{`{"status":"closed"}`},
		},
		{
			name:    "array index",
			group:   filter.And(filter.Filters(f("aliases.-1", filter.OpStartsWith, "sof"))),
			matches: []string{`{"aliases":["Fancy Bear","Sofacy"]}`},
			rejects: []string{`{"aliases":[]}`, `{"aliases":"Sofacy"}`},
		},
		{
			name:    "numbers compare numerically",
			group:   filter.And(filter.Filters(f("score", filter.OpGt, "9"))),
			matches: []string{`{"score":10}`, `{"score":"9.5"}`, `{"score":1e1}`},
			rejects: []string{`{"score":9}`, `{"score":"high"}`, `{"score":true}`, `{"score":null}`},
		},
		{
			name:    "numbers compare as text for eq",
			group:   filter.And(filter.Filters(f("score", filter.OpEq, "1.50"))),
			matches: []string{`{"score":1.50}`, `{"score":"1.50"}`},
			rejects: []string{`{"score":1.5}`},
		},
		{
			name:    "booleans",
			group:   filter.And(filter.Filters(f("active", filter.OpEq, "TRUE"))),
			matches: []string{`{"active":true}`, `{"active":"true"}`},
			rejects: []string{`{"active":false}`, `{"active":1}`},
		},
		{
			name:    "structured values have no text",
			group:   filter.Or(filter.Filters(f("country", filter.OpNotEq, "xx"), f("country", filter.OpNotContains, "x"))),
			rejects: []string{`{"country":{"code":"XX"}}`, `{"country":["XX"]}`},
			matches: []string{`{"country":"RU"}`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, r := range tt.matches {
				assert.True(t, Evaluate(tt.group, value.MustParse(r)), r)
			}
			for _, r := range tt.rejects {
				assert.False(t, Evaluate(tt.group, value.MustParse(r)), r)
			}
		})
	}
}

var records = []string{
	`{}`,
	`{"status":"open","severity":"high","score":8}`,
	`{"status":"closed","severity":"low","score":"2.5","owner":null}`,
	`{"status":"Open","severity":"critical","owner":{"name":"kim"},"tags":["apt","phishing"]}`,
	`{"status":null,"severity":"HIGH","score":10,"tags":[]}`,
	`{"status":"new","severity":["high"],"score":"n/a","owner":"lee"}`,
}

var leaves = []*filter.Filter{
	f("status", filter.OpEq, "open"),
	f("severity", filter.OpIn, "high"),
	f("score", filter.OpGte, "8"),
	f("owner", filter.OpNil),
	f("tags.0", filter.OpContains, "ap"),
	f("owner.name", filter.OpNotNil),
}

func forEachRecord(t *testing.T, fn func(t *testing.T, record value.Value)) {
	for i, r := range records {
		t.Run(fmt.Sprintf("record %d", i), func(t *testing.T) {
			fn(t, value.MustParse(r))
		})
	}
}

func TestIdentity(t *testing.T) {
	forEachRecord(t, func(t *testing.T, record value.Value) {
		for _, mode := range filter.Modes {
			require.True(t, Evaluate(&filter.FilterGroup{Mode: mode}, record), mode)
		}
		require.True(t, Evaluate(nil, record))
		require.True(t, Evaluate(filter.Or(nil, filter.And(nil)), record))
	})
}

func TestGroupModes(t *testing.T) {
	forEachRecord(t, func(t *testing.T, record value.Value) {
		results := lo.Map(leaves, func(leaf *filter.Filter, _ int) bool {
			return EvaluateFilter(leaf, record)
		})
		all := lo.EveryBy(results, func(b bool) bool { return b })
		some := lo.SomeBy(results, func(b bool) bool { return b })

		require.Equal(t, all, Evaluate(filter.And(leaves), record))
		require.Equal(t, some, Evaluate(filter.Or(leaves), record))
		require.Equal(t, !all, Evaluate(filter.Not(leaves), record))

		// nested groups combine exactly like leaves
		wrapped := lo.Map(leaves, func(leaf *filter.Filter, _ int) *filter.FilterGroup {
			return filter.And(filter.Filters(leaf))
		})
		require.Equal(t, all, Evaluate(filter.And(nil, wrapped...), record))
		require.Equal(t, some, Evaluate(filter.Or(nil, wrapped...), record))
		require.Equal(t, !all, Evaluate(filter.Not(nil, wrapped...), record))
	})
}

func TestNotNegatesConjunction(t *testing.T) {
	a := f("status", filter.OpEq, "open")
	b := f("severity", filter.OpEq, "high")
	g := filter.Not(filter.Filters(a, b))

	// only a holds: not(a and b) matches, while negating each child would not
	record := value.MustParse(`{"status":"open","severity":"low"}`)
	require.True(t, Evaluate(g, record))
	require.False(t, Evaluate(filter.And(nil, filter.Not(filter.Filters(a)), filter.Not(filter.Filters(b))), record))

	require.False(t, Evaluate(g, value.MustParse(`{"status":"open","severity":"high"}`)))
	require.True(t, Evaluate(g, value.MustParse(`{"status":"closed","severity":"low"}`)))

	// a single child is a plain negation
	require.True(t, Evaluate(filter.Not(filter.Filters(a)), record) == !EvaluateFilter(a, record))
}

func TestNilComplement(t *testing.T) {
	keys := []string{"status", "owner", "owner.name", "tags", "tags.0", "tags.5", "score.x", "missing"}
	forEachRecord(t, func(t *testing.T, record value.Value) {
		for _, key := range keys {
			isNil := EvaluateFilter(f(key, filter.OpNil), record)
			notNil := EvaluateFilter(f(key, filter.OpNotNil), record)
			require.NotEqual(t, isNil, notNil, key)
		}
	})
}

func TestEqNotEqComplement(t *testing.T) {
	forEachRecord(t, func(t *testing.T, record value.Value) {
		for _, key := range []string{"status", "severity", "score"} {
			field, found := record.Get(key)
			if _, ok := field.Text(); !found || !ok {
				// neither holds on a field without text
				require.False(t, EvaluateFilter(f(key, filter.OpEq, "open"), record), key)
				require.False(t, EvaluateFilter(f(key, filter.OpNotEq, "open"), record), key)
				continue
			}
			for _, candidate := range []string{"open", "HIGH", "8", "2.5"} {
				eq := EvaluateFilter(f(key, filter.OpEq, candidate), record)
				notEq := EvaluateFilter(f(key, filter.OpNotEq, candidate), record)
				require.NotEqual(t, eq, notEq, "%s %s", key, candidate)
			}
		}
	})
}

func TestLeafValueMode(t *testing.T) {
	record := value.MustParse(`{"name":"Fancy Bear","score":7}`)

	tests := []struct {
		name string
		leaf *filter.Filter
		want bool
	}{
		{"or any", f("name", filter.OpContains, "wolf", "bear"), true},
		{"or none", f("name", filter.OpContains, "wolf", "fox"), false},
		{"and all", &filter.Filter{Key: "name", Operator: filter.OpContains, Values: []string{"fancy", "bear"}, Mode: filter.ValueModeAnd}, true},
		{"and some", &filter.Filter{Key: "name", Operator: filter.OpContains, Values: []string{"fancy", "wolf"}, Mode: filter.ValueModeAnd}, false},
		{"between", &filter.Filter{Key: "score", Operator: filter.OpGt, Values: []string{"5", "9"}, Mode: filter.ValueModeAnd}, false},
		{"range", &filter.Filter{Key: "score", Operator: filter.OpGt, Values: []string{"5", "6.99"}, Mode: filter.ValueModeAnd}, true},
		{"not_in or", f("name", filter.OpNotIn, "fancy bear", "cozy bear"), true},
		{"not_in and", &filter.Filter{Key: "name", Operator: filter.OpNotIn, Values: []string{"fancy bear", "cozy bear"}, Mode: filter.ValueModeAnd}, false},
		{"nil ignores values", f("missing", filter.OpNil, "x"), true},
		{"empty values", f("name", filter.OpEq), false},
		{"unknown value mode", &filter.Filter{Key: "name", Operator: filter.OpEq, Values: []string{"fancy bear"}, Mode: "xor"}, false},
		{"unknown operator", f("name", "like", "fancy bear"), false},
		{"empty key", f("", filter.OpNil), false},
		{"nil leaf", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, EvaluateFilter(tt.leaf, record))
		})
	}

	require.False(t, Evaluate(&filter.FilterGroup{Mode: "xor", Filters: filter.Filters(f("score", filter.OpNotNil))}, record))
}

func TestEvaluateDeepTree(t *testing.T) {
	record := value.MustParse(`{"a":1}`)
	leaf := filter.Filters(f("a", filter.OpEq, "1"))

	g := filter.And(leaf)
	for range maxDepth {
		g = filter.And(leaf, g)
	}
	require.True(t, Evaluate(g, record))

	g = filter.And(leaf, g)
	require.False(t, Evaluate(g, record))
}

func TestEvaluateCycle(t *testing.T) {
	record := value.MustParse(`{"a":1}`)

	self := filter.Or(filter.Filters(f("a", filter.OpEq, "2")))
	self.FilterGroups = []*filter.FilterGroup{self, self}
	require.False(t, Evaluate(self, record))

	negated := filter.Not(nil)
	negated.FilterGroups = []*filter.FilterGroup{negated}
	require.True(t, Evaluate(negated, record))

	// a group shared by siblings is not a cycle
	shared := filter.And(filter.Filters(f("a", filter.OpEq, "1")))
	require.True(t, Evaluate(filter.And(nil, shared, shared), record))

	// breadth doubles at every level; revisits are cut off on the path
	wide := filter.And(filter.Filters(f("a", filter.OpEq, "1")))
	wide.FilterGroups = []*filter.FilterGroup{filter.Or(nil, wide, wide), filter.Or(nil, wide, wide)}
	require.False(t, Evaluate(wide, record))
}

func TestEvaluateConcurrently(t *testing.T) {
	g := filter.Or(nil,
		filter.And(leaves[:3]),
		filter.Not(leaves[3:]),
	)
	parsed := lo.Map(records, func(r string, _ int) value.Value { return value.MustParse(r) })
	want := lo.Map(parsed, func(r value.Value, _ int) bool { return Evaluate(g, r) })

	var wg sync.WaitGroup
	got := make([][]bool, 16)
	for w := range got {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				got[w] = lo.Map(parsed, func(r value.Value, _ int) bool { return Evaluate(g, r) })
			}
		}()
	}
	wg.Wait()

	for _, results := range got {
		require.Equal(t, want, results)
	}
}
