package auth

import (
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/dmitrijs2005/saasgate/internal/common"
)

func useMinCost(t *testing.T) {
	t.Helper()
	orig := bcryptCost
	bcryptCost = bcrypt.MinCost
	t.Cleanup(func() { bcryptCost = orig })
}

func TestHashAndCheckPassword(t *testing.T) {
	useMinCost(t)

	h, err := HashPassword("correct horse")
	if err != nil {
		t.Fatalf("HashPassword error: %v", err)
	}
	if !CheckPassword(h, "correct horse") {
		t.Fatal("expected password to match")
	}
	if CheckPassword(h, "wrong horse") {
		t.Fatal("expected mismatch")
	}
	if CheckPassword("not-a-hash", "correct horse") {
		t.Fatal("garbage hash must not match")
	}
}

func TestHashPassword_Policy(t *testing.T) {
	useMinCost(t)

	for _, pw := range []string{"", "short", strings.Repeat("x", MaxPasswordBytes+1)} {
		if _, err := HashPassword(pw); err != common.ErrWeakPassword {
			t.Fatalf("HashPassword(%d bytes): expected ErrWeakPassword, got %v", len(pw), err)
		}
	}
}

func TestBurnCompare_DoesNotPanic(t *testing.T) {
	useMinCost(t)
	BurnCompare("anything")
	BurnCompare("anything")
}
