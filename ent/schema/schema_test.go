package schema

import (
	"context"
	"path/filepath"
	"sort"
	"testing"

	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Deepakp-t/ai-competitor-watchdog-v1/internal/store"
)

func table(t *testing.T, annotations []schema.Annotation) string {
	t.Helper()
	for _, a := range annotations {
		if sa, ok := a.(entsql.Annotation); ok {
			return sa.Table
		}
	}
	t.Fatal("no table annotation")
	return ""
}

func fields(mixins []ent.Mixin, own []ent.Field) map[string]bool {
	optional := make(map[string]bool)
	for _, m := range mixins {
		for _, f := range m.Fields() {
			optional[f.Descriptor().Name] = f.Descriptor().Optional
		}
	}
	for _, f := range own {
		optional[f.Descriptor().Name] = f.Descriptor().Optional
	}
	return optional
}

type column struct {
	notNull bool
	pk      bool
}

func columns(t *testing.T, st *store.Store, table string) map[string]column {
	t.Helper()
	rows, err := st.DB().QueryContext(context.Background(), "SELECT name, \"notnull\", pk FROM pragma_table_info(?)", table)
	require.NoError(t, err)
	defer rows.Close()

	out := make(map[string]column)
	for rows.Next() {
		var name string
		var notNull, pk int
		require.NoError(t, rows.Scan(&name, &notNull, &pk))
		out[name] = column{notNull: notNull == 1, pk: pk > 0}
	}
	require.NoError(t, rows.Err())
	return out
}

func keys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func TestSchemasMatchStoreTables(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "schema.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	entities := []struct {
		name        string
		mixins      []ent.Mixin
		fields      []ent.Field
		annotations []schema.Annotation
	}{
		{"Competitor", Competitor{}.Mixin(), Competitor{}.Fields(), Competitor{}.Annotations()},
		{"Asset", Asset{}.Mixin(), Asset{}.Fields(), Asset{}.Annotations()},
		{"Snapshot", Snapshot{}.Mixin(), Snapshot{}.Fields(), Snapshot{}.Annotations()},
		{"Change", Change{}.Mixin(), Change{}.Fields(), Change{}.Annotations()},
		{"Alert", Alert{}.Mixin(), Alert{}.Fields(), Alert{}.Annotations()},
		{"LLMRequestEvent", LLMRequestEvent{}.Mixin(), LLMRequestEvent{}.Fields(), LLMRequestEvent{}.Annotations()},
	}

	for _, e := range entities {
		t.Run(e.name, func(t *testing.T) {
			tbl := table(t, e.annotations)
			optional := fields(e.mixins, e.fields)
			cols := columns(t, st, tbl)
			require.NotEmpty(t, cols, "table %s", tbl)

			assert.Equal(t, keys(cols), keys(optional))
			for col, c := range cols {
				if c.pk {
					continue
				}
				assert.Equal(t, !c.notNull, optional[col], "nullability of %s.%s", tbl, col)
			}
		})
	}
}

func TestAssetTypeEnumMatchesStore(t *testing.T) {
	var values []string
	for _, f := range (Asset{}).Fields() {
		if d := f.Descriptor(); d.Name == "asset_type" {
			for _, e := range d.Enums {
				values = append(values, e.V)
			}
		}
	}

	want := make([]string, 0, len(store.AssetTypes))
	for _, at := range store.AssetTypes {
		want = append(want, string(at))
	}
	assert.Equal(t, want, values)
}
