package signingkey

import (
	"bytes"
	"crypto/ed25519"
	"encoding/base64"
	"flag"
	"strings"
	"testing"
)

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("signing-key", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Raw {
		t.Fatal("expected raw to default to false")
	}
}

func TestParseConfigOverride(t *testing.T) {
	fs := flag.NewFlagSet("signing-key", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-raw"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if !cfg.Raw {
		t.Fatal("expected raw to be set")
	}
}

func TestRunWritesEnvAssignment(t *testing.T) {
	buf := &bytes.Buffer{}
	seed := bytes.Repeat([]byte{0x42}, ed25519.SeedSize)
	if err := Run(Config{}, buf, bytes.NewReader(seed)); err != nil {
		t.Fatalf("run: %v", err)
	}

	got := strings.TrimSpace(buf.String())
	const prefix = "STUDY_COMMONS_TOKEN_PRIVATE_KEY="
	if !strings.HasPrefix(got, prefix) {
		t.Fatalf("expected env prefix, got %q", got)
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(got, prefix))
	if err != nil {
		t.Fatalf("decode key: %v", err)
	}
	if len(decoded) != ed25519.SeedSize {
		t.Fatalf("seed length = %d, want %d", len(decoded), ed25519.SeedSize)
	}
}

func TestRunRawPrintsBareKey(t *testing.T) {
	buf := &bytes.Buffer{}
	if err := Run(Config{Raw: true}, buf, nil); err != nil {
		t.Fatalf("run: %v", err)
	}
	got := strings.TrimSpace(buf.String())
	if strings.HasPrefix(got, "STUDY_COMMONS_TOKEN_PRIVATE_KEY=") {
		t.Fatalf("expected bare base64 key, got %q", got)
	}
	if _, err := base64.StdEncoding.DecodeString(got); err != nil {
		t.Fatalf("decode key: %v", err)
	}
}

func TestRunNilOutput(t *testing.T) {
	if err := Run(Config{}, nil, nil); err == nil {
		t.Fatal("expected error for nil output")
	}
}
