// Package rules resolves credit award amounts through a Lua rule script.
package rules

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	lua "github.com/Shopify/go-lua"
	"github.com/studycommons/studycommons/internal/platform/config"
	apperrors "github.com/studycommons/studycommons/internal/platform/errors"
)

//go:embed rules.lua
var defaultScript string

type rulesEnv struct {
	ScriptPath string `env:"STUDY_COMMONS_CREDITS_RULES_PATH"`
}

// Engine maps award reasons to credit deltas.
type Engine struct {
	deltas map[string]int
}

// NewEngine loads the embedded default rule script.
func NewEngine() (*Engine, error) {
	return NewEngineFromScript(defaultScript)
}

// NewEngineFromEnv loads the script named by STUDY_COMMONS_CREDITS_RULES_PATH,
// falling back to the embedded default when unset.
func NewEngineFromEnv() (*Engine, error) {
	cfg := rulesEnv{}
	if err := config.ParseEnv(&cfg); err != nil {
		return nil, err
	}
	path := strings.TrimSpace(cfg.ScriptPath)
	if path == "" {
		return NewEngine()
	}
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules script: %w", err)
	}
	return NewEngineFromScript(string(source))
}

// NewEngineFromScript runs a rule script. The script must return a table
// mapping reason names to integer deltas.
func NewEngineFromScript(source string) (*Engine, error) {
	state := lua.NewState()
	lua.OpenLibraries(state)

	if err := lua.LoadString(state, source); err != nil {
		return nil, fmt.Errorf("load rules script: %w", err)
	}
	if err := state.ProtectedCall(0, 1, 0); err != nil {
		return nil, fmt.Errorf("run rules script: %w", err)
	}
	if state.TypeOf(-1) != lua.TypeTable {
		state.Pop(1)
		return nil, fmt.Errorf("rules script must return a table")
	}

	deltas := map[string]int{}
	index := state.AbsIndex(-1)
	state.PushNil()
	for state.Next(index) {
		if state.TypeOf(-2) == lua.TypeString && state.TypeOf(-1) == lua.TypeNumber {
			reason, _ := state.ToString(-2)
			value, _ := state.ToNumber(-1)
			deltas[reason] = int(value)
		}
		state.Pop(1)
	}
	state.Pop(1)

	if len(deltas) == 0 {
		return nil, fmt.Errorf("rules script defined no awards")
	}
	return &Engine{deltas: deltas}, nil
}

// Delta returns the credit delta for a reason.
func (e *Engine) Delta(reason string) (int, error) {
	if e == nil {
		return 0, fmt.Errorf("rules engine is not configured")
	}
	delta, ok := e.deltas[reason]
	if !ok {
		return 0, apperrors.WithMetadata(apperrors.CodeCreditsUnknownReason,
			"no award rule for reason", map[string]string{"Reason": reason})
	}
	return delta, nil
}

// Reasons lists the reasons the loaded script awards, sorted lexically.
func (e *Engine) Reasons() []string {
	if e == nil {
		return nil
	}
	reasons := make([]string, 0, len(e.deltas))
	for reason := range e.deltas {
		reasons = append(reasons, reason)
	}
	sort.Strings(reasons)
	return reasons
}
