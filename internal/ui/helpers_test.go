package ui

import (
	"testing"
	"time"

	"github.com/five82/cubespace/internal/cube"
)

func TestHumanizeAge(t *testing.T) {
	now := time.Date(2025, 1, 2, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		name string
		ago  time.Duration
		want string
	}{
		{"now", 2 * time.Second, "now"},
		{"seconds", 12 * time.Second, "12s ago"},
		{"minutes", 61 * time.Second, "1m ago"},
		{"hours", 2*time.Hour + 10*time.Minute, "2h ago"},
		{"days", 49 * time.Hour, "2d ago"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := humanizeAge(now, now.Add(-tc.ago)); got != tc.want {
				t.Fatalf("humanizeAge(-%s) = %q, want %q", tc.ago, got, tc.want)
			}
		})
	}
	if got := humanizeAge(now, time.Time{}); got != "never" {
		t.Fatalf("humanizeAge(zero) = %q, want never", got)
	}
}

func TestTruncateMiddle(t *testing.T) {
	if got := truncateMiddle("  ", 10); got != "" {
		t.Fatalf("truncateMiddle blank = %q, want empty", got)
	}
	if got := truncateMiddle("abcd", 2); got != "ab" {
		t.Fatalf("truncateMiddle limit<=3 = %q, want ab", got)
	}
	got := truncateMiddle("/home/me/.local/state/cubespace/cubespace.log", 20)
	if len([]rune(got)) != 20 {
		t.Fatalf("got %q (%d runes), want 20", got, len([]rune(got)))
	}
}

func TestShortID(t *testing.T) {
	if got := shortID("0190a1b2-c3d4-7e5f-8a9b-0c1d2e3f4a5b"); got != "0190a1b2" {
		t.Fatalf("shortID = %q", got)
	}
	if got := shortID("fallback"); got != "fallback" {
		t.Fatalf("shortID(no dash) = %q", got)
	}
}

func TestListWindowKeepsSelectionVisible(t *testing.T) {
	cases := []struct {
		n, selected, rows int
		start, end        int
	}{
		{3, 0, 5, 0, 3},
		{10, 0, 4, 0, 4},
		{10, 5, 4, 3, 7},
		{10, 9, 4, 6, 10},
	}
	for _, tc := range cases {
		start, end := listWindow(tc.n, tc.selected, tc.rows)
		if start != tc.start || end != tc.end {
			t.Errorf("listWindow(%d,%d,%d) = [%d,%d), want [%d,%d)", tc.n, tc.selected, tc.rows, start, end, tc.start, tc.end)
		}
		if tc.selected < start || tc.selected >= end {
			t.Errorf("selection %d outside [%d,%d)", tc.selected, start, end)
		}
	}
}

func TestColumnStacksOrdersByHeight(t *testing.T) {
	at := func(x, y, z float64) *cube.Vec3 { return &cube.Vec3{X: x, Y: y, Z: z} }
	cubes := []cube.LocalCube{
		{LocalID: "upper", FinalPosition: at(1, 1.5, 2)},
		{LocalID: "lower", FinalPosition: at(0.9, 0.5, 2.2)},
		{LocalID: "falling", DropPosition: cube.Vec3{X: -3, Y: 8, Z: 0}},
	}
	stacks := columnStacks(cubes)

	s := stacks[cell{x: 1, z: 2}]
	if len(s) != 2 || s[0].LocalID != "lower" || s.top().LocalID != "upper" {
		t.Fatalf("stack at 1,2 = %+v", s)
	}
	if got := stacks[cell{x: -3, z: 0}]; len(got) != 1 || got[0].LocalID != "falling" {
		t.Fatalf("unsettled cube not placed by drop position: %+v", got)
	}
}

func TestRestingCentersSkipsDraftAndUnsettled(t *testing.T) {
	cubes := []cube.LocalCube{
		{LocalID: "a", FinalPosition: &cube.Vec3{Y: 0.5}},
		{LocalID: "draft", FinalPosition: &cube.Vec3{Y: 1.5}},
		{LocalID: "b"},
	}
	got := restingCenters(cubes, "draft")
	if len(got) != 1 || got[0].Y != 0.5 {
		t.Fatalf("restingCenters = %+v", got)
	}
}
