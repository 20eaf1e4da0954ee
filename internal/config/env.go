package config

import (
	"os"
	"strconv"
	"strings"
)

// EnvLoader turns prefixed environment variables into a config layer.
type EnvLoader struct {
	prefix  string            // e.g. "DOCSYNC_"
	mapping map[string]string // env var -> config path
}

// NewEnvLoader creates a loader for prefix, which should include the
// trailing underscore.
func NewEnvLoader(prefix string) *EnvLoader {
	return &EnvLoader{
		prefix:  prefix,
		mapping: defaultEnvMapping(prefix),
	}
}

// defaultEnvMapping covers keys whose section names are camelCase and
// therefore cannot be derived from the variable name.
func defaultEnvMapping(prefix string) map[string]string {
	return map[string]string{
		prefix + "USER_DATA_DIR":          "userDataDir",
		prefix + "LOG_LEVEL":              "logging.level",
		prefix + "EOL":                    "newDocument.eol",
		prefix + "UNICODE_MODE":           "newDocument.unicodeMode",
		prefix + "CODEPAGE":               "newDocument.codepage",
		prefix + "OPEN_ANSI_AS_UTF8":      "newDocument.openAnsiAsUtf8",
		prefix + "LARGE_FILE_RESTRICTION": "largeFileRestriction.enabled",
	}
}

// Load reads the environment. Empty values count as set.
func (l *EnvLoader) Load() map[string]any {
	layer := make(map[string]any)

	for env, path := range l.mapping {
		if val, ok := os.LookupEnv(env); ok {
			setByPath(layer, path, parseValue(val))
		}
	}

	for _, kv := range os.Environ() {
		if !strings.HasPrefix(kv, l.prefix) {
			continue
		}
		name, value, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		if _, mapped := l.mapping[name]; mapped {
			continue
		}
		setByPath(layer, l.envToPath(name), parseValue(value))
	}

	return layer
}

// AddMapping adds a custom environment variable mapping.
func (l *EnvLoader) AddMapping(envVar, configPath string) {
	l.mapping[envVar] = configPath
}

// envToPath converts DOCSYNC_LOAD_DETECT_ENCODING to load.detectEncoding.
func (l *EnvLoader) envToPath(env string) string {
	parts := strings.Split(strings.TrimPrefix(env, l.prefix), "_")
	section := strings.ToLower(parts[0])
	if len(parts) == 1 {
		return section
	}

	setting := strings.ToLower(parts[1])
	for _, part := range parts[2:] {
		if part != "" {
			setting += strings.ToUpper(part[:1]) + strings.ToLower(part[1:])
		}
	}
	return section + "." + setting
}

// parseValue keeps durations as strings so Duration.UnmarshalText sees them.
func parseValue(s string) any {
	switch strings.ToLower(s) {
	case "true", "yes", "on":
		return true
	case "false", "no", "off":
		return false
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]") {
		var items []any
		for _, item := range strings.Split(strings.Trim(s, "[]"), ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, strings.Trim(item, `"'`))
			}
		}
		return items
	}
	return s
}

// setByPath sets a value in a nested map using a dot-separated path.
func setByPath(data map[string]any, path string, value any) {
	parts := strings.Split(path, ".")
	current := data
	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part].(map[string]any)
		if !ok {
			next = make(map[string]any)
			current[part] = next
		}
		current = next
	}
	current[parts[len(parts)-1]] = value
}

// DeepMerge recursively merges src into dst. Values in src win; maps are
// merged key by key.
func DeepMerge(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = make(map[string]any)
	}
	for key, srcVal := range src {
		srcMap, srcIsMap := srcVal.(map[string]any)
		dstMap, dstIsMap := dst[key].(map[string]any)
		if srcIsMap && dstIsMap {
			dst[key] = DeepMerge(dstMap, srcMap)
			continue
		}
		dst[key] = srcVal
	}
	return dst
}
