package pipeline

import (
	"fmt"
	"strings"
)

// Var is a single KEY=value environment assignment.
type Var struct {
	Key   string
	Value string
}

// String renders the assignment in KEY=value form.
func (v Var) String() string {
	return v.Key + "=" + v.Value
}

// ParseVars parses an env entry into its assignments. One entry may carry
// several space-separated assignments ("A=1 B=2"); values may be quoted to
// retain spaces.
func ParseVars(entry string) ([]Var, error) {
	tokens, err := splitAssignments(entry)
	if err != nil {
		return nil, err
	}
	vars := make([]Var, 0, len(tokens))
	for _, token := range tokens {
		v, err := parseVar(token)
		if err != nil {
			return nil, err
		}
		vars = append(vars, v)
	}
	return vars, nil
}

func parseVar(token string) (Var, error) {
	idx := strings.IndexByte(token, '=')
	if idx <= 0 {
		return Var{}, fmt.Errorf("env entry %q: expected KEY=value", token)
	}
	key := token[:idx]
	if !validEnvKey(key) {
		return Var{}, fmt.Errorf("env entry %q: invalid variable name %q", token, key)
	}
	return Var{Key: key, Value: unquote(token[idx+1:])}, nil
}

func validEnvKey(key string) bool {
	for i, r := range key {
		switch {
		case r == '_', r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return key != ""
}

// splitAssignments splits on unquoted whitespace so values like
// PATH="/opt/bin:$PATH" survive as single tokens.
func splitAssignments(entry string) ([]string, error) {
	var tokens []string
	var current strings.Builder
	var quote rune

	for _, r := range entry {
		switch {
		case quote != 0:
			current.WriteRune(r)
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"':
			quote = r
			current.WriteRune(r)
		case r == ' ' || r == '\t':
			if current.Len() > 0 {
				tokens = append(tokens, current.String())
				current.Reset()
			}
		default:
			current.WriteRune(r)
		}
	}
	if quote != 0 {
		return nil, fmt.Errorf("env entry %q: unterminated quote", entry)
	}
	if current.Len() > 0 {
		tokens = append(tokens, current.String())
	}
	return tokens, nil
}

func unquote(value string) string {
	if len(value) >= 2 {
		first := value[0]
		last := value[len(value)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') {
			return value[1 : len(value)-1]
		}
	}
	return value
}

// MergeVars layers assignments left to right; later sets win per key while
// first-set order is preserved for deterministic environments.
func MergeVars(layers ...[]Var) []Var {
	index := make(map[string]int)
	var merged []Var
	for _, layer := range layers {
		for _, v := range layer {
			if at, ok := index[v.Key]; ok {
				merged[at].Value = v.Value
				continue
			}
			index[v.Key] = len(merged)
			merged = append(merged, v)
		}
	}
	return merged
}

// Environ renders vars as KEY=value strings suitable for exec.Cmd.Env.
func Environ(vars []Var) []string {
	out := make([]string, 0, len(vars))
	for _, v := range vars {
		out = append(out, v.String())
	}
	return out
}
