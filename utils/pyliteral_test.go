package utils

import (
	"encoding/json"
	"testing"
)

func TestReprFloat(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{4.5, "4.5"},
		{4, "4.0"},
		{0, "0.0"},
		{48.42, "48.42"},
		{-123.31, "-123.31"},
		{1e16, "1e+16"},
		{0.00001, "1e-05"},
	}
	for _, tt := range tests {
		if got := ReprFloat(tt.in); got != tt.want {
			t.Errorf("ReprFloat(%v) = %q; want %q", tt.in, got, tt.want)
		}
	}
}

func TestReprEncoderQuoting(t *testing.T) {
	u := ReprEncoder{Unicode: true}
	plain := ReprEncoder{}

	tests := []struct {
		enc  ReprEncoder
		in   string
		want string
	}{
		{u, "Cafe X", "u'Cafe X'"},
		{u, "Joe's Diner", `u"Joe's Diner"`},
		{u, `He said "it's"`, `u'He said "it\'s"'`},
		{u, "Café", `u'Caf\xe9'`},
		{u, "line\nbreak", `u'line\nbreak'`},
		{plain, "Café", "'Café'"},
	}
	for _, tt := range tests {
		if got := tt.enc.Encode(tt.in); got != tt.want {
			t.Errorf("Encode(%q) = %s; want %s", tt.in, got, tt.want)
		}
	}
}

func TestReprEncoderDict(t *testing.T) {
	d := Dict{
		{"is_claimed", true},
		{"rating", 4.5},
		{"categories", [][]string{{"Coffee & Tea", "coffee"}}},
		{"missing", nil},
		{"coordinate", Dict{{"latitude", json.Number("48.42")}}},
	}
	want := "{u'is_claimed': True, u'rating': 4.5, u'categories': [[u'Coffee & Tea', u'coffee']], " +
		"u'missing': None, u'coordinate': {u'latitude': 48.42}}"
	if got := (ReprEncoder{Unicode: true}).Encode(d); got != want {
		t.Errorf("got  %s\nwant %s", got, want)
	}
}

func TestParseLiteralPythonRepr(t *testing.T) {
	src := `{u'is_claimed': False, u'rating': 0.0, u'name': u"Joe's", ` +
		`u'categories': [[u'Caf\xe9s', u'cafes']], u'count': 12L, u'pair': (1, 2), u'gone': None}`

	v, err := ParseLiteral(src)
	if err != nil {
		t.Fatalf("ParseLiteral: %v", err)
	}
	m, ok := v.(map[string]any)
	if !ok {
		t.Fatalf("got %T, want map", v)
	}
	if m["is_claimed"] != false {
		t.Errorf("is_claimed: got %v", m["is_claimed"])
	}
	if m["rating"] != Number("0.0") {
		t.Errorf("rating: got %#v, want Number(0.0)", m["rating"])
	}
	if m["name"] != "Joe's" {
		t.Errorf("name: got %q", m["name"])
	}
	cats := m["categories"].([]any)[0].([]any)
	if cats[0] != "Cafés" {
		t.Errorf("category: got %q", cats[0])
	}
	if m["count"] != Number("12") {
		t.Errorf("count: got %#v", m["count"])
	}
	if len(m["pair"].([]any)) != 2 {
		t.Errorf("pair: got %v", m["pair"])
	}
	if v, present := m["gone"]; !present || v != nil {
		t.Errorf("gone: got %v (present=%v)", v, present)
	}
}

func TestParseLiteralJSON(t *testing.T) {
	v, err := ParseLiteral(`[{"rating": 4.5, "open": true, "tags": [], "note": null, "esc": "aé\"b"}]`)
	if err != nil {
		t.Fatalf("ParseLiteral: %v", err)
	}
	m := v.([]any)[0].(map[string]any)
	if m["rating"] != Number("4.5") || m["open"] != true || m["note"] != nil {
		t.Errorf("unexpected values: %#v", m)
	}
	if m["esc"] != "aé\"b" {
		t.Errorf("esc: got %q", m["esc"])
	}
}

func TestParseLiteralErrors(t *testing.T) {
	for _, src := range []string{
		`{u'a': 1`,
		`{u'a' 1}`,
		`[1, 2`,
		`u'unterminated`,
		`{u'a': 1} trailing`,
		`Nope`,
		`-`,
	} {
		if _, err := ParseLiteral(src); err == nil {
			t.Errorf("ParseLiteral(%q): expected error", src)
		}
	}
}

func TestReprRoundTripsThroughParser(t *testing.T) {
	d := Dict{{"name", "O'Brien \"Pub\""}, {"rating", 3.5}}
	v, err := ParseLiteral(ReprEncoder{Unicode: true}.Encode(d))
	if err != nil {
		t.Fatalf("ParseLiteral: %v", err)
	}
	m := v.(map[string]any)
	if m["name"] != "O'Brien \"Pub\"" {
		t.Errorf("name: got %q", m["name"])
	}
	if m["rating"] != Number("3.5") {
		t.Errorf("rating: got %#v", m["rating"])
	}
}
