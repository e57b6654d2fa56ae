package server

import (
	"errors"
	"testing"

	"github.com/ZygoteCode/SSCP/crypto/sscp"
)

func fakeUser(id, ip string) *User {
	return &User{info: sscp.SessionInfo{ID: id, IP: ip}}
}

func TestRegistryAdmission(t *testing.T) {
	r := newRegistry(2, []string{"10.0.0.9"})
	if err := r.admit("10.0.0.9"); !errors.Is(err, ErrBanned) {
		t.Fatalf("expected ErrBanned, got %v", err)
	}
	a, b := fakeUser("a", "10.0.0.1"), fakeUser("b", "10.0.0.2")
	if err := r.insert(a); err != nil {
		t.Fatal(err)
	}
	if err := r.insert(b); err != nil {
		t.Fatal(err)
	}
	if err := r.admit("10.0.0.3"); !errors.Is(err, ErrServerFull) {
		t.Fatalf("expected ErrServerFull, got %v", err)
	}
	if err := r.insert(fakeUser("c", "10.0.0.3")); !errors.Is(err, ErrServerFull) {
		t.Fatalf("insert must re-check the limit, got %v", err)
	}

	r.setMaxUsers(0)
	if err := r.admit("10.0.0.3"); !errors.Is(err, ErrServerFull) {
		t.Fatalf("zero limit must refuse everyone, got %v", err)
	}
	r.setMaxUsers(Unlimited)
	if err := r.admit("10.0.0.3"); err != nil {
		t.Fatalf("unlimited registry refused: %v", err)
	}

	if !r.remove(a) || r.remove(a) {
		t.Fatalf("remove must succeed exactly once")
	}
	if _, ok := r.get("a"); ok {
		t.Fatalf("removed user still present")
	}
	if r.count() != 1 {
		t.Fatalf("count = %d", r.count())
	}
}

func TestRegistryRemoveChecksIdentity(t *testing.T) {
	r := newRegistry(Unlimited, nil)
	first := fakeUser("dup", "10.0.0.1")
	if err := r.insert(first); err != nil {
		t.Fatal(err)
	}
	if r.remove(fakeUser("dup", "10.0.0.1")) {
		t.Fatalf("a different user with the same id must not be removed")
	}
	if got, _ := r.get("dup"); got != first {
		t.Fatalf("registry entry replaced")
	}
}

func TestRegistryBan(t *testing.T) {
	r := newRegistry(Unlimited, nil)
	for _, u := range []*User{fakeUser("a", "10.0.0.1"), fakeUser("b", "10.0.0.1"), fakeUser("c", "10.0.0.2")} {
		if err := r.insert(u); err != nil {
			t.Fatal(err)
		}
	}
	hit := r.ban("10.0.0.1")
	if len(hit) != 2 {
		t.Fatalf("ban matched %d users, want 2", len(hit))
	}
	r.ban("10.0.0.0")
	if got := r.bannedList(); len(got) != 2 || got[0] != "10.0.0.0" || got[1] != "10.0.0.1" {
		t.Fatalf("bannedList = %v", got)
	}
	if !r.unban("10.0.0.0") || r.unban("10.0.0.0") {
		t.Fatalf("unban must succeed exactly once")
	}
}

func TestRegistryStop(t *testing.T) {
	r := newRegistry(Unlimited, nil)
	_ = r.insert(fakeUser("a", "10.0.0.1"))
	if got := r.stop(); len(got) != 1 {
		t.Fatalf("stop returned %d users", len(got))
	}
	if !r.isStopped() {
		t.Fatalf("registry not stopped")
	}
	if err := r.admit("10.0.0.1"); !errors.Is(err, ErrServerStopped) {
		t.Fatalf("expected ErrServerStopped, got %v", err)
	}
	if err := r.insert(fakeUser("b", "10.0.0.1")); !errors.Is(err, ErrServerStopped) {
		t.Fatalf("expected ErrServerStopped on insert, got %v", err)
	}
}
