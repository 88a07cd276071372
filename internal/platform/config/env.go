package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// ParseEnv fills target from STUDY_COMMONS_* environment variables declared
// through `env` struct tags.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
