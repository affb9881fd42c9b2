package server

import "testing"

func TestMultiLimiter_AllowsBurstThenBlocks(t *testing.T) {
	lim := newMultiLimiter(1, 2, 0)
	if !lim.allow("a") {
		t.Fatal("first request should be allowed")
	}
	if !lim.allow("a") {
		t.Fatal("second request within burst should be allowed")
	}
	if lim.allow("a") {
		t.Fatal("third immediate request should be rate limited")
	}
}

func TestMultiLimiter_TracksKeysIndependently(t *testing.T) {
	lim := newMultiLimiter(1, 1, 0)
	if !lim.allow("a") {
		t.Fatal("first request for a should be allowed")
	}
	if !lim.allow("b") {
		t.Fatal("first request for b should be allowed independently of a")
	}
}
