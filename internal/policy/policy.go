package policy

import (
	"fmt"
	"strings"

	clierr "github.com/nmorales/custos/internal/errors"
)

// CheckCommandAllowed enforces the --enable-commands allowlist. An empty
// allowlist permits everything. An entry matches its own command path and
// every subcommand under it, so "execute" also admits "execute swap".
func CheckCommandAllowed(allowlist []string, commandPath string) error {
	if len(allowlist) == 0 {
		return nil
	}
	path := normalize(commandPath)
	for _, entry := range allowlist {
		allowed := normalize(entry)
		if allowed == "" {
			continue
		}
		if path == allowed || strings.HasPrefix(path, allowed+" ") {
			return nil
		}
	}
	return clierr.New(clierr.CodeBlocked, fmt.Sprintf("command %q blocked by --enable-commands policy", path))
}

func normalize(v string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(v))), " ")
}
