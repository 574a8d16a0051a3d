package index

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/DeusData/ctu-fnmap/internal/fnmap"
)

func id(sym string) fnmap.Identity { return fnmap.Identity{Symbol: sym, Arch: "x86_64"} }

func loc(path string) fnmap.Locator { return fnmap.Locator{Arch: "x86_64", SourcePath: path} }

func TestParseDefined(t *testing.T) {
	in := "!_Z1fi@x86_64 ast/x86_64/src/a.c\n\n_Z1hv@x86_64 ast/x86_64/src/b.c\n"
	recs, err := ParseDefined(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, recs, 2)
	require.True(t, recs[0].InMainFile)
	require.Equal(t, loc("/src/a.c"), recs[0].Locator)
	require.False(t, recs[1].InMainFile)
}

func TestParseReportsLineNumber(t *testing.T) {
	_, err := ParseDefined(strings.NewReader("!_Z1fi@x86_64 ast/x86_64/a.c\ngarbage\n"))
	require.ErrorContains(t, err, "line 2")

	_, err = ParseExternal(strings.NewReader("_Z1fi@x86_64\n_Z1gi@x86_64 trailing\n"))
	require.ErrorContains(t, err, "line 2")
}

func TestBuild(t *testing.T) {
	tests := []struct {
		name      string
		defined   []fnmap.DefinedRecord
		want      fnmap.Locator
		conflicts int
	}{
		{
			name: "main file wins over earlier header copy",
			defined: []fnmap.DefinedRecord{
				{Identity: id("_Z1fv"), Locator: loc("/src/b.c")},
				{Identity: id("_Z1fv"), Locator: loc("/src/a.c"), InMainFile: true},
			},
			want: loc("/src/a.c"),
		},
		{
			name: "main file kept over later header copy",
			defined: []fnmap.DefinedRecord{
				{Identity: id("_Z1fv"), Locator: loc("/src/z.c"), InMainFile: true},
				{Identity: id("_Z1fv"), Locator: loc("/src/a.c")},
			},
			want: loc("/src/z.c"),
		},
		{
			name: "header only picks smallest locator",
			defined: []fnmap.DefinedRecord{
				{Identity: id("_Z1fv"), Locator: loc("/src/c.c")},
				{Identity: id("_Z1fv"), Locator: loc("/src/a.c")},
				{Identity: id("_Z1fv"), Locator: loc("/src/b.c")},
			},
			want: loc("/src/a.c"),
		},
		{
			name: "two main files conflict",
			defined: []fnmap.DefinedRecord{
				{Identity: id("_Z1fv"), Locator: loc("/src/a.c"), InMainFile: true},
				{Identity: id("_Z1fv"), Locator: loc("/src/b.c"), InMainFile: true},
			},
			want:      loc("/src/a.c"),
			conflicts: 1,
		},
		{
			name: "same TU mapped twice is not a conflict",
			defined: []fnmap.DefinedRecord{
				{Identity: id("_Z1fv"), Locator: loc("/src/a.c"), InMainFile: true},
				{Identity: id("_Z1fv"), Locator: loc("/src/a.c"), InMainFile: true},
			},
			want: loc("/src/a.c"),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ix := Build(tt.defined)
			e, ok := ix.Lookup(id("_Z1fv"))
			require.True(t, ok)
			require.Equal(t, tt.want, e.Locator)
			require.Len(t, ix.Conflicts(), tt.conflicts)
			if tt.conflicts == 0 {
				require.NoError(t, ix.Err())
			}
		})
	}
}

func TestConflictError(t *testing.T) {
	ix := Build([]fnmap.DefinedRecord{
		{Identity: id("_Z1fv"), Locator: loc("/src/a.c"), InMainFile: true},
		{Identity: id("_Z1fv"), Locator: loc("/src/b.c"), InMainFile: true},
	})
	err := ix.Err()
	require.ErrorIs(t, err, ErrConflict)
	var ce *ConflictError
	require.ErrorAs(t, err, &ce)
	require.Equal(t, []fnmap.Locator{loc("/src/a.c"), loc("/src/b.c")}, ce.Conflicts[0].Locators)
	require.Contains(t, err.Error(), "_Z1fv@x86_64")
}

func TestExternalMap(t *testing.T) {
	ix := Build([]fnmap.DefinedRecord{
		{Identity: id("_Z1fv"), Locator: loc("/src/a.c"), InMainFile: true},
		{Identity: id("_Z1gv"), Locator: loc("/src/b.c"), InMainFile: true},
	})
	entries := ix.ExternalMap([]fnmap.Identity{id("_Z1gv"), id("_Z1xv"), id("_Z1fv"), id("_Z1gv")})

	var buf bytes.Buffer
	require.NoError(t, WriteExternalMap(&buf, entries))
	require.Equal(t, "_Z1gv@x86_64 ast/x86_64/src/b.c.ast\n_Z1fv@x86_64 ast/x86_64/src/a.c.ast\n", buf.String())

	parsed, err := ParseExternalMap(&buf)
	require.NoError(t, err)
	require.Len(t, parsed, 2)
	require.Equal(t, id("_Z1gv"), parsed[0].Identity)
	require.Equal(t, loc("/src/b.c"), parsed[0].Locator)
}

func TestEntriesSorted(t *testing.T) {
	ix := Build([]fnmap.DefinedRecord{
		{Identity: id("_Z1gv"), Locator: loc("/src/b.c")},
		{Identity: id("_Z1fv"), Locator: loc("/src/a.c")},
	})
	entries := ix.Entries()
	require.Equal(t, 2, ix.Len())
	require.Equal(t, id("_Z1fv"), entries[0].Identity)
}

func TestCheckArch(t *testing.T) {
	require.NoError(t, CheckArch(id("_Z1fv"), "x86_64"))
	require.ErrorIs(t, CheckArch(id("_Z1fv"), "arm"), ErrArch)
}

func TestSuggest(t *testing.T) {
	candidates := []string{"_Z3foov", "_Z3fooi", "_Z3barv", "main", "_Z3fooi", "_Z3fooj"}
	got := Suggest("_Z3fooj", candidates, 5)
	require.Len(t, got, 2)
	require.Equal(t, "_Z3fooi", got[0].Symbol)
	require.Equal(t, "_Z3foov", got[1].Symbol)
	require.GreaterOrEqual(t, got[0].Score, MinSimilarity)

	require.Len(t, Suggest("_Z3fooj", candidates, 1), 1)
	require.Empty(t, Suggest("zzz", candidates, 5))
}

func TestSymbols(t *testing.T) {
	ix := Build([]fnmap.DefinedRecord{
		{Identity: id("_Z1gv"), Locator: loc("/b.c"), InMainFile: true},
		{Identity: id("_Z1fv"), Locator: loc("/a.c"), InMainFile: true},
		{Identity: fnmap.Identity{Symbol: "_Z1fv", Arch: "aarch64"}, Locator: fnmap.Locator{Arch: "aarch64", SourcePath: "/a.c"}, InMainFile: true},
	})
	require.Equal(t, []string{"_Z1fv", "_Z1gv"}, ix.Symbols())
}
