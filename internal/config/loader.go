package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML file at path into a generic tree, loads a .env file if
// present (silently ignored when missing), applies CANDLERUNNER_* env
// overrides onto the decoded tree, and returns the root Provider. The
// override key for a nested path `a.b.c` is `CANDLERUNNER_A_B_C`.
func Load(path string) (Provider, error) {
	tree := map[string]any{}
	if _, err := toml.DecodeFile(path, &tree); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}

	_ = godotenv.Load()

	applyEnvOverrides(tree, "")

	return NewProvider(normalize(tree)), nil
}

// normalize walks a decoded TOML tree and widens toml's native int64/
// map[string]interface{} representation into the plain map[string]any the
// Provider expects, recursing into nested tables.
func normalize(tree map[string]any) map[string]any {
	out := make(map[string]any, len(tree))
	for k, v := range tree {
		out[k] = normalizeValue(v)
	}
	return out
}

func normalizeValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return normalize(t)
	default:
		return v
	}
}

const envPrefix = "CANDLERUNNER_"

// applyEnvOverrides recurses into tree, and for every scalar leaf checks
// whether an env var named from its dotted path (prefixed, uppercased,
// dots replaced with underscores) is set; if so, the leaf is overwritten,
// parsed according to the existing value's type.
func applyEnvOverrides(tree map[string]any, prefix string) {
	for k, v := range tree {
		envKey := envPrefix + strings.ToUpper(strings.ReplaceAll(prefix+k, ".", "_"))
		switch t := v.(type) {
		case map[string]any:
			applyEnvOverrides(t, prefix+k+".")
		default:
			if raw, ok := os.LookupEnv(envKey); ok && raw != "" {
				tree[k] = parseOverride(raw, t)
			}
		}
	}
}

// parseOverride parses raw as the same Go type as existing, falling back to
// the raw string when existing's type is unknown or parsing fails.
func parseOverride(raw string, existing any) any {
	switch existing.(type) {
	case bool:
		if b, err := strconv.ParseBool(raw); err == nil {
			return b
		}
	case int64:
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return n
		}
	case float64:
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return f
		}
	}
	return raw
}
