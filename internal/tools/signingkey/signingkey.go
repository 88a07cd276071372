// Package signingkey generates token signing keys for local development.
package signingkey

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"flag"
	"fmt"
	"io"
)

// Config holds configuration for signing key generation.
type Config struct {
	Raw bool
}

// ParseConfig parses flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	fs.BoolVar(&cfg.Raw, "raw", false, "print the key without the env assignment")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run generates an Ed25519 seed and writes it to out as the base64 value
// expected by STUDY_COMMONS_TOKEN_PRIVATE_KEY.
func Run(cfg Config, out io.Writer, reader io.Reader) error {
	if out == nil {
		return errors.New("output is required")
	}

	_, priv, err := ed25519.GenerateKey(reader)
	if err != nil {
		return fmt.Errorf("generate key: %w", err)
	}
	encoded := base64.StdEncoding.EncodeToString(priv.Seed())

	if cfg.Raw {
		_, err = fmt.Fprintln(out, encoded)
		return err
	}
	_, err = fmt.Fprintf(out, "STUDY_COMMONS_TOKEN_PRIVATE_KEY=%s\n", encoded)
	return err
}
