package recentcache

import "testing"

func TestMarkAndSeen(t *testing.T) {
	c := New()
	if c.Seen("pages", "/a") {
		t.Fatal("expected unmarked key to be unseen")
	}
	c.Mark("pages", "/a")
	if !c.Seen("pages", "/a") {
		t.Fatal("expected marked key to be seen")
	}
	if c.Seen("other", "/a") {
		t.Fatal("expected a different namespace to be unaffected")
	}
}
