package model

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKey(t *testing.T) {
	k, err := ParseKey("BB:001")
	require.NoError(t, err)
	assert.Equal(t, Key{Manufacturer: "BB", Code: "001"}, k)
	assert.Equal(t, "BB:001", k.String())

	k, err = ParseKey("EF:591-204:A")
	require.NoError(t, err)
	assert.Equal(t, "591-204:A", k.Code)

	_, err = ParseKey("nocolon")
	assert.True(t, errors.Is(err, ErrInvalidKey))
}

func TestParseList(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want List
	}{
		{"empty", "", nil},
		{"blank", "   ", nil},
		{"quoted", `"blue", "unknown"`, List{"blue", "unknown"}},
		{"single_quotes", `'red', 'green'`, List{"red", "green"}},
		{"bare", "clear,transparent", List{"clear", "transparent"}},
		{"empty_entries", `"a", "", ,"b"`, List{"a", "b"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ParseList(tc.in))
		})
	}
}

func TestFormatListRoundTrip(t *testing.T) {
	l := List{"blue", "opaque"}
	s := FormatList(l)
	assert.Equal(t, `"blue", "opaque"`, s)
	assert.Equal(t, l, ParseList(s))
	assert.Equal(t, "", FormatList(nil))
}

func TestListWithout(t *testing.T) {
	got := List{"blue", "unknown", "", "green"}.Without("unknown")
	assert.Equal(t, List{"blue", "green"}, got)
}

func TestListJSONAcceptsLegacyString(t *testing.T) {
	var p struct {
		Tags List `json:"tags"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"tags":"\"blue\", \"green\""}`), &p))
	assert.Equal(t, List{"blue", "green"}, p.Tags)

	require.NoError(t, json.Unmarshal([]byte(`{"tags":["a"]}`), &p))
	assert.Equal(t, List{"a"}, p.Tags)

	b, err := json.Marshal(struct {
		Tags List `json:"tags"`
	}{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"tags":[]}`, string(b))
}

func TestProductLifecycleJSON(t *testing.T) {
	p := Product{Manufacturer: "BB", Code: "001", Name: "Blue Rod"}
	b, err := json.Marshal(p)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	assert.Equal(t, "available", m["status"])
	assert.Contains(t, m, "discontinued_date")
	assert.Nil(t, m["discontinued_date"])
	assert.NotContains(t, m, "stable_id")

	require.True(t, p.Discontinue("2025-03-01"))
	b, err = json.Marshal(p)
	require.NoError(t, err)

	var back Product
	require.NoError(t, json.Unmarshal(b, &back))
	day, ok := back.Lifecycle.DiscontinuedDate()
	assert.True(t, ok)
	assert.Equal(t, "2025-03-01", day)
	assert.Equal(t, "Blue Rod", back.Name)
}

func TestProductLifecycleJSONRejectsDrift(t *testing.T) {
	cases := []string{
		`{"manufacturer":"BB","code":"1","status":"available","discontinued_date":"2025-01-01"}`,
		`{"manufacturer":"BB","code":"1","status":"discontinued","discontinued_date":null}`,
		`{"manufacturer":"BB","code":"1","status":"retired"}`,
	}
	for _, in := range cases {
		var p Product
		err := json.Unmarshal([]byte(in), &p)
		assert.True(t, errors.Is(err, ErrInvalidLifecycle), in)
	}
}

func TestDiscontinueReactivate(t *testing.T) {
	p := &Product{}
	assert.False(t, p.Reactivate())
	assert.True(t, p.Discontinue("2025-01-01"))
	assert.False(t, p.Discontinue("2025-02-01"))
	day, _ := p.Lifecycle.DiscontinuedDate()
	assert.Equal(t, "2025-01-01", day)
	assert.True(t, p.Reactivate())
	assert.Equal(t, StatusAvailable, p.Lifecycle.Status())
	_, ok := p.Lifecycle.DiscontinuedDate()
	assert.False(t, ok)
}

func TestProductMerge(t *testing.T) {
	stored := NewProduct(Row{Manufacturer: "BB", Code: "001", Name: "Blue", Tags: `"blue"`, URL: "u1"})
	incoming := NewProduct(Row{Manufacturer: "BB", Code: "001", Name: "Blue Rod", Tags: `"blue", "rod"`, URL: "u1"})

	changed := stored.Merge(incoming, nil)
	assert.Equal(t, []string{"name", "tags"}, changed)
	assert.Equal(t, "Blue Rod", stored.Name)
	assert.Equal(t, List{"blue", "rod"}, stored.Tags)

	assert.Empty(t, stored.Merge(incoming, nil))
}

func TestProductMergeSkipsAbsentColumns(t *testing.T) {
	stored := NewProduct(Row{Manufacturer: "BB", Code: "001", Name: "Blue", COE: "33", ImagePath: "images/bb-001.jpg"})
	incoming := NewProduct(Row{Manufacturer: "BB", Code: "001", Name: "Blue Rod"})

	changed := stored.Merge(incoming, []string{"name"})
	assert.Equal(t, []string{"name"}, changed)
	assert.Equal(t, "33", stored.COE)
	assert.Equal(t, "images/bb-001.jpg", stored.ImagePath)
}

func TestPresentColumns(t *testing.T) {
	assert.Nil(t, PresentColumns(append([]string{"manufacturer", "code"}, CatalogColumns...)))
	assert.Equal(t, []string{"name", "tags"}, PresentColumns([]string{"tags", "code", "name"}))
	assert.Equal(t, []string{}, PresentColumns([]string{"manufacturer", "code"}))

	r := Row{Columns: []string{"name"}}
	assert.False(t, r.Has("coe"))
	r.MarkPresent("coe")
	assert.True(t, r.Has("coe"))
	assert.True(t, Row{}.Has("coe"))
}

func TestProductRowRoundTrip(t *testing.T) {
	r := Row{Manufacturer: "DH", Code: "X1", Name: "Aurae", Tags: `"purple", "striking"`, StockType: "rod"}
	assert.Equal(t, r, NewProduct(r).Row())
}
