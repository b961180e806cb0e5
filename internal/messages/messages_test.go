package messages

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFormatDefaults(t *testing.T) {
	tbl := NewTable()
	cases := []struct {
		id   StringID
		args Args
		want string
	}{
		{OwnedTrack, Args{Company: "Rail Co"}, "Track owned by Rail Co"},
		{OwnedStation, Args{Company: "Rail Co", Name: "Harbour Halt"}, "Harbour Halt is owned by Rail Co"},
		{ErrNotEnoughCash, Args{Amount: 1234567}, "Not enough cash - requires £1,234,567"},
		{Null, Args{}, "null"},
	}
	for _, c := range cases {
		if got := tbl.Format(c.id, c.args); got != c.want {
			t.Fatalf("Format(%s) = %q, want %q", c.id, got, c.want)
		}
	}
}

func TestPopup(t *testing.T) {
	tbl := NewTable()
	if got := tbl.Popup(2500); got != "-£2,500" {
		t.Fatalf("cost popup = %q", got)
	}
	if got := tbl.Popup(-80); got != "+£80" {
		t.Fatalf("income popup = %q", got)
	}
}

func TestLoadTableOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "strings.yaml")
	body := "language: de\ncurrency: \"€\"\nstrings:\n  owned_road: \"Straße gehört {company}\"\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	tbl, err := LoadTable(path)
	if err != nil {
		t.Fatalf("LoadTable: %v", err)
	}
	if got := tbl.Format(OwnedRoad, Args{Company: "Bus AG"}); got != "Straße gehört Bus AG" {
		t.Fatalf("override = %q", got)
	}
	if got := tbl.Money(1234); got != "€1.234" {
		t.Fatalf("german grouping = %q", got)
	}
	if got := tbl.Format(OwnedTrack, Args{Company: "X"}); got != "Track owned by X" {
		t.Fatalf("default kept = %q", got)
	}
}

func TestLoadTableUnknownString(t *testing.T) {
	path := filepath.Join(t.TempDir(), "strings.yaml")
	if err := os.WriteFile(path, []byte("strings:\n  nope: x\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadTable(path); err == nil {
		t.Fatalf("expected unknown string error")
	}
}
