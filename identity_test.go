package profilecache

import (
	"errors"
	"testing"
)

func TestResolveKeyPriority(t *testing.T) {
	cases := []struct {
		name string
		ids  IdentifierSet
		want string
	}{
		{"pid only", IdentifierSet{PatientID: "AB12C"}, "pid:AB12C"},
		{"uid only", IdentifierSet{UserID: "42"}, "uid:42"},
		{"email only", IdentifierSet{Email: "x@y.com"}, "email:x@y.com"},
		{"email lowercased", IdentifierSet{Email: "Ada@Example.ORG"}, "email:ada@example.org"},
		{"pid beats uid", IdentifierSet{PatientID: "AB12C", UserID: "42"}, "pid:AB12C"},
		{"pid beats email", IdentifierSet{PatientID: "AB12C", Email: "x@y.com"}, "pid:AB12C"},
		{"uid beats email", IdentifierSet{UserID: "42", Email: "x@y.com"}, "uid:42"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ResolveKey(tc.ids)
			if err != nil {
				t.Fatalf("ResolveKey: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
			// Deterministic: a second derivation is identical.
			again, _ := ResolveKey(tc.ids)
			if again != got {
				t.Fatalf("second derivation differs: %q vs %q", again, got)
			}
		})
	}
}

func TestResolveKeyEmpty(t *testing.T) {
	if _, err := ResolveKey(IdentifierSet{}); !errors.Is(err, ErrNoIdentifiers) {
		t.Fatalf("expected ErrNoIdentifiers, got %v", err)
	}
}

func TestValidPatientID(t *testing.T) {
	valid := []string{"AB12C", "1", "abcdef1234", "X"}
	for _, v := range valid {
		if !ValidPatientID(v) {
			t.Errorf("%q should be valid", v)
		}
	}
	invalid := []string{"", "abcdef12345", "AB-12", "AB 12", "AB12C\n", "pid:AB12C"}
	for _, v := range invalid {
		if ValidPatientID(v) {
			t.Errorf("%q should be invalid", v)
		}
	}
}

func TestReduceDropsByPriority(t *testing.T) {
	s := IdentifierSet{PatientID: "AB12C", UserID: "42", Email: "x@y.com"}

	s, ok := s.reduce()
	if !ok || s.PatientID != "" || s.UserID != "42" || s.Email != "x@y.com" {
		t.Fatalf("first reduce: ok=%v %+v", ok, s)
	}
	s, ok = s.reduce()
	if !ok || s.UserID != "" || s.Email != "x@y.com" {
		t.Fatalf("second reduce: ok=%v %+v", ok, s)
	}
	if _, ok = s.reduce(); ok {
		t.Fatalf("single identifier must not reduce further")
	}
}
