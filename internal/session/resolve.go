package session

import (
	"fmt"
	"regexp"

	"github.com/gfranca/papo/internal/config"
)

const DefaultSessionName = "main"

// Resolve determines the active session name using precedence:
// 1. flagOverride (--session flag)
// 2. config.toml default_session (after env overlay)
// 3. "main"
func Resolve(flagOverride string) string {
	if flagOverride != "" {
		return flagOverride
	}
	cfg, err := config.Load(ConfigPath())
	if err != nil {
		cfg = &config.Config{}
	}
	config.ApplyEnv(cfg)
	if cfg.DefaultSession != "" {
		return cfg.DefaultSession
	}
	return DefaultSessionName
}

var nameRegexp = regexp.MustCompile(`^[a-z0-9_-]{1,64}$`)

// ValidateName checks that name conforms to session naming rules.
func ValidateName(name string) error {
	if !nameRegexp.MatchString(name) {
		return fmt.Errorf("invalid session name %q: must match ^[a-z0-9_-]{1,64}$", name)
	}
	return nil
}
