package domain

import "testing"

func TestFormatNodeNum(t *testing.T) {
	if got := FormatNodeNum(0x11223344); got != "!11223344" {
		t.Fatalf("format mismatch: %q", got)
	}
	if got := FormatNodeNum(0xAB); got != "!000000ab" {
		t.Fatalf("expected zero padding, got %q", got)
	}
	if got := FormatNodeNum(0); got != "unknown" {
		t.Fatalf("expected unknown for zero, got %q", got)
	}
}

func TestParseNodeNumAcceptedForms(t *testing.T) {
	cases := []struct {
		raw  string
		want uint32
	}{
		{"!11223344", 0x11223344},
		{"0x11223344", 0x11223344},
		{"11223344", 11223344},
		{"aabbccdd", 0xAABBCCDD},
		{" !000000ab ", 0xAB},
	}
	for _, tc := range cases {
		got, err := ParseNodeNum(tc.raw)
		if err != nil {
			t.Fatalf("parse %q: %v", tc.raw, err)
		}
		if got != tc.want {
			t.Fatalf("parse %q: got %d want %d", tc.raw, got, tc.want)
		}
	}
}

func TestParseNodeNumRejectsGarbage(t *testing.T) {
	for _, raw := range []string{"", "!xyz", "not-a-node", "0x"} {
		if _, err := ParseNodeNum(raw); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
}

func TestDisplayNamePrecedence(t *testing.T) {
	node := Node{Num: 0xAB, ShortName: "SHRT", LongName: "A very long node name"}
	if got := DisplayName(node); got != "SHRT" {
		t.Fatalf("expected short name, got %q", got)
	}

	node.ShortName = ""
	if got := DisplayName(node); got != "A very long node" {
		t.Fatalf("expected truncated long name, got %q", got)
	}

	node.LongName = ""
	if got := DisplayName(node); got != "!000000ab" {
		t.Fatalf("expected formatted id, got %q", got)
	}
}
