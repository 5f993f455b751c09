package auth

import (
	"fmt"
	"sync"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestStoreAuthenticate(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}

	s, err := NewStore([]User{
		{Name: "user", Password: "pass"},
		{Name: "hashed", Password: string(hash)},
		{Name: "nopass", Password: ""},
	})
	if err != nil {
		t.Fatal(err)
	}
	if s.Len() != 3 {
		t.Fatalf("expected 3 users, got %d", s.Len())
	}

	tests := []struct {
		user, pass string
		want       bool
	}{
		{"user", "pass", true},
		{"user", "Pass", false},
		{"user", "pass ", false},
		{"user", "", false},
		{"User", "pass", false},
		{"missing", "pass", false},
		{"", "", false},
		{"hashed", "s3cret", true},
		{"hashed", string(hash), false},
		{"hashed", "wrong", false},
		{"nopass", "", true},
		{"nopass", "x", false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s/%s", tt.user, tt.pass), func(t *testing.T) {
			if got := s.Authenticate(tt.user, tt.pass); got != tt.want {
				t.Fatalf("Authenticate(%q, %q) = %v", tt.user, tt.pass, got)
			}
		})
	}
}

func TestNewStoreRejects(t *testing.T) {
	tests := []struct {
		name  string
		users []User
	}{
		{name: "empty name", users: []User{{Name: "", Password: "x"}}},
		{name: "duplicate", users: []User{{Name: "a", Password: "x"}, {Name: "a", Password: "y"}}},
		{name: "bad hash", users: []User{{Name: "a", Password: "$2a$99$" + string(make([]byte, 53))}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewStore(tt.users); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestHashPassword(t *testing.T) {
	h, err := HashPassword("hunter2")
	if err != nil {
		t.Fatal(err)
	}
	if !IsHash(h) {
		t.Fatalf("%q not recognized as hash", h)
	}

	s, err := NewStore([]User{{Name: "u", Password: h}})
	if err != nil {
		t.Fatal(err)
	}
	if !s.Authenticate("u", "hunter2") {
		t.Fatal("hashed password rejected")
	}

	if _, err := HashPassword(string(make([]byte, 73))); err == nil {
		t.Fatal("expected error for long password")
	}
}

func TestStoreConcurrentReads(t *testing.T) {
	s, err := NewStore([]User{{Name: "user", Password: "pass"}})
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if !s.Authenticate("user", "pass") || s.Authenticate("user", "nope") {
					t.Error("unexpected result")
					return
				}
			}
		}()
	}
	wg.Wait()
}

func TestAuthenticatorFunc(t *testing.T) {
	var a Authenticator = AuthenticatorFunc(func(u, p string) bool { return u == p })
	if !a.Authenticate("x", "x") || a.Authenticate("x", "y") {
		t.Fatal("AuthenticatorFunc did not delegate")
	}
}
