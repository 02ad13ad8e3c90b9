package credential

import (
	"testing"

	"github.com/99designs/keyring"
)

func TestSetGetDelete(t *testing.T) {
	s := NewStore(keyring.NewArrayKeyring(nil))

	if err := s.Set(KeyRedisPassword, "hunter2"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := s.Get(KeyRedisPassword)
	if err != nil || got != "hunter2" {
		t.Fatalf("Get = %q, %v", got, err)
	}

	if err := s.Delete(KeyRedisPassword); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, err := s.Lookup(KeyRedisPassword); ok || err != nil {
		t.Fatalf("Lookup after delete: ok=%v err=%v", ok, err)
	}
}

func TestGetMissingIsError(t *testing.T) {
	s := NewStore(keyring.NewArrayKeyring(nil))
	if _, err := s.Get(KeyFirestoreCredentials); err == nil {
		t.Fatal("expected an error for a missing key")
	}
}

func TestKnown(t *testing.T) {
	if !Known("redis-password") || Known("jira-token") {
		t.Fatal("unexpected Known result")
	}
}
