package audit

import "testing"

func TestLog_VerifyDetectsTamper(t *testing.T) {
	l := New()
	l.Append(ActionCreate, 0)
	l.Append(ActionAdd, 1)
	l.Append(ActionEdit, 1)

	if err := l.Verify(); err != nil {
		t.Fatalf("expected clean chain, got %v", err)
	}

	entries := l.Entries()
	entries[1].EntryID = 2
	l2 := &Log{entries: entries}
	if err := l2.Verify(); err == nil {
		t.Fatal("expected tampered chain to fail verification")
	}
}

func TestLog_EntriesIsDefensiveCopy(t *testing.T) {
	l := New()
	l.Append(ActionCreate, 0)
	got := l.Entries()
	got[0].Action = "forged"
	if l.entries[0].Action == "forged" {
		t.Fatal("Entries() leaked internal slice")
	}
}
