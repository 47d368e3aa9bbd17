package expand

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"pharchive/config"
	"pharchive/models"
)

// Matches {name} and ${name} tokens in filepath/url templates.
var tokenPattern = regexp.MustCompile(`\$?\{([^}]+)\}`)

// Stubbed in tests.
var now = time.Now

// Substitute replaces {name} and ${name} tokens in template with values
// from variables. The implicit variable "today" always resolves to the
// current UTC date as YYYY-MM-DD. Unknown tokens are left verbatim and
// replaced text is never re-substituted.
func Substitute(template string, variables map[string]string) string {
	return tokenPattern.ReplaceAllStringFunc(template, func(token string) string {
		name := token[strings.Index(token, "{")+1 : len(token)-1]
		if name == "today" {
			return now().UTC().Format("2006-01-02")
		}
		if value, ok := variables[name]; ok {
			return value
		}
		return token
	})
}

// Combinations returns the cartesian product of the named axes as a
// sequence of name to value maps. Axes are iterated in lexicographic name
// order with the rightmost axis varying fastest, so the output order is a
// pure function of the input. An empty axis yields zero combinations; no
// axes at all yields exactly one empty combination.
func Combinations(axes map[string][]string) []map[string]string {
	names := make([]string, 0, len(axes))
	for name := range axes {
		names = append(names, name)
	}
	sort.Strings(names)

	combos := []map[string]string{{}}
	for _, name := range names {
		values := axes[name]
		next := make([]map[string]string, 0, len(combos)*len(values))
		for _, combo := range combos {
			for _, value := range values {
				merged := make(map[string]string, len(combo)+1)
				for k, v := range combo {
					merged[k] = v
				}
				merged[name] = value
				next = append(next, merged)
			}
		}
		combos = next
	}
	return combos
}

// singularName maps a defs list-axis name to the variable name exposed to
// templates by stripping a trailing "s", e.g. "langs" -> "lang". Names of
// a single character or without the suffix are exposed unchanged.
func singularName(name string) string {
	if len(name) > 1 && strings.HasSuffix(name, "s") {
		return name[:len(name)-1]
	}
	return name
}

// Targets expands the declarative defs and target templates into the full
// ordered worklist. Each defs-level combination is merged with the fixed
// defs, the "base" template is substituted against that scope, and every
// target then contributes its own fixed vars and combinations on top.
// Later scopes shadow earlier ones on key collision.
func Targets(defs map[string]any, targets []config.TomlTarget) []models.Target {
	fixedDefs, listDefs := splitVars(defs)

	defsCombos := Combinations(listDefs)
	for i, combo := range defsCombos {
		renamed := make(map[string]string, len(combo))
		for name, value := range combo {
			renamed[singularName(name)] = value
		}
		defsCombos[i] = renamed
	}

	// The lang grouping key only exists when defs carry a "langs" axis.
	langVar := "langs"
	if _, ok := listDefs["langs"]; ok {
		langVar = singularName("langs")
	}

	var expanded []models.Target
	for _, defsCombo := range defsCombos {
		baseVars := mergeVars(fixedDefs, defsCombo)
		scope := mergeVars(baseVars)
		scope["base"] = Substitute(fixedDefs["base"], baseVars)

		for _, target := range targets {
			fixedTarget, listTarget := splitVars(target.Vars)
			for _, targetCombo := range Combinations(listTarget) {
				vars := mergeVars(scope, fixedTarget, targetCombo)
				entry := models.Target{
					Filepath: Substitute(target.Filepath, vars),
					URL:      Substitute(target.URL, vars),
					Lang:     vars[langVar],
				}
				expanded = append(expanded, entry)
			}
		}
	}
	return expanded
}

// splitVars separates a scalar-or-list variable mapping into fixed values
// and expansion axes, stringifying scalars along the way.
func splitVars(vars map[string]any) (map[string]string, map[string][]string) {
	fixed := make(map[string]string)
	lists := make(map[string][]string)
	for name, value := range vars {
		switch v := value.(type) {
		case []any:
			values := make([]string, 0, len(v))
			for _, item := range v {
				values = append(values, stringify(item))
			}
			lists[name] = values
		case []string:
			lists[name] = v
		default:
			fixed[name] = stringify(v)
		}
	}
	return fixed, lists
}

func mergeVars(scopes ...map[string]string) map[string]string {
	merged := make(map[string]string)
	for _, scope := range scopes {
		for k, v := range scope {
			merged[k] = v
		}
	}
	return merged
}

func stringify(value any) string {
	if s, ok := value.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", value)
}
