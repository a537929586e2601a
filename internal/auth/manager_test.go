package auth

import (
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/JonMunkholm/claimdesk/internal/config"
)

func TestDummyHash_UsesManagerCost(t *testing.T) {
	m := NewManager(nil, config.SecurityConfig{SessionSecret: "0123456789abcdef0123456789abcdef"})
	m.SetCost(bcrypt.MinCost)

	h := m.dummyHash()
	cost, err := bcrypt.Cost(h)
	if err != nil {
		t.Fatalf("bcrypt.Cost() error = %v", err)
	}
	if cost != bcrypt.MinCost {
		t.Errorf("dummy hash cost = %d, want %d", cost, bcrypt.MinCost)
	}
	if string(m.dummyHash()) != string(h) {
		t.Error("dummy hash must be computed once")
	}
}
