package policy

import (
	"testing"

	cerr "github.com/nmorales/custos/internal/errors"
)

func TestCheckCommandAllowed(t *testing.T) {
	tests := []struct {
		name      string
		allowlist []string
		path      string
		allowed   bool
	}{
		{"empty allowlist permits everything", nil, "execute swap", true},
		{"exact match", []string{"portfolio"}, "portfolio", true},
		{"prefix admits subcommands", []string{"execute"}, "execute swap", true},
		{"prefix is word-bounded", []string{"execute"}, "executed", false},
		{"case and spacing normalized", []string{"  Execute   Swap "}, "execute swap", true},
		{"miss is blocked", []string{"portfolio", "resolve"}, "execute swap", false},
		{"blank entries ignored", []string{"", "  "}, "portfolio", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckCommandAllowed(tt.allowlist, tt.path)
			if tt.allowed {
				if err != nil {
					t.Fatalf("expected allowed, got %v", err)
				}
				return
			}
			typed, ok := cerr.As(err)
			if !ok || typed.Code != cerr.CodeBlocked {
				t.Fatalf("expected blocked error, got %v", err)
			}
		})
	}
}
