package tle

import "testing"

func TestSplitCatalog_ThreeLineFormat(t *testing.T) {
	text := "0 ISS (ZARYA)\r\n" + issLine1 + "\r\n" + issLine2 + "\r\n"

	sets := SplitCatalog(text)
	if len(sets) != 1 {
		t.Fatalf("SplitCatalog() returned %d sets, want 1", len(sets))
	}
	if sets[0].Name != "ISS (ZARYA)" {
		t.Errorf("Name = %q, want the name line without the 0 prefix", sets[0].Name)
	}
	if sets[0].Line1 != issLine1 || sets[0].Line2 != issLine2 {
		t.Error("lines not preserved verbatim")
	}
}

func TestSplitCatalog_TwoLineFormat(t *testing.T) {
	// Plain TLE pairs with no name lines, separated by blank lines.
	text := issLine1 + "\n" + issLine2 + "\n\n" + issLine1 + "\n" + issLine2 + "\n"

	sets := SplitCatalog(text)
	if len(sets) != 2 {
		t.Fatalf("SplitCatalog() returned %d sets, want 2", len(sets))
	}
	for i, set := range sets {
		if set.Name != "" {
			t.Errorf("set %d Name = %q, want empty", i, set.Name)
		}
		if _, err := Parse(set); err != nil {
			t.Errorf("set %d does not parse: %v", i, err)
		}
	}
}

func TestSplitCatalog_DanglingLinesBecomeRejectableSets(t *testing.T) {
	// A line 1 with no partner, then a complete pair, then a line 2 with
	// no partner. The dangling lines must come back as sets that fail
	// Parse, not vanish.
	text := issLine1 + "\n" +
		issLine1 + "\n" + issLine2 + "\n" +
		issLine2 + "\n"

	sets := SplitCatalog(text)
	if len(sets) != 3 {
		t.Fatalf("SplitCatalog() returned %d sets, want 3", len(sets))
	}

	if _, err := Parse(sets[0]); err == nil {
		t.Error("orphan line 1 parsed cleanly, want a reject")
	}
	if _, err := Parse(sets[1]); err != nil {
		t.Errorf("complete pair rejected: %v", err)
	}
	if _, err := Parse(sets[2]); err == nil {
		t.Error("orphan line 2 parsed cleanly, want a reject")
	}
}

func TestSplitCatalog_EmptyInput(t *testing.T) {
	if sets := SplitCatalog(""); len(sets) != 0 {
		t.Errorf("SplitCatalog(empty) returned %d sets, want 0", len(sets))
	}
	if sets := SplitCatalog("\n\r\n  \n"); len(sets) != 0 {
		t.Errorf("SplitCatalog(whitespace) returned %d sets, want 0", len(sets))
	}
}
