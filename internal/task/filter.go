package task

import (
	"path"
	"strings"

	"bhds/internal/config"
)

// SymbolFilter is the inclusion/exclusion/pattern predicate applied once
// during planning. A symbol passes when it is in the include set (if any),
// not in the exclude set, and matches at least one pattern (if any).
type SymbolFilter struct {
	include  map[string]struct{}
	exclude  map[string]struct{}
	patterns []string
}

func NewSymbolFilter(cfg config.FilterConfig) *SymbolFilter {
	f := &SymbolFilter{
		include:  make(map[string]struct{}, len(cfg.Include)),
		exclude:  make(map[string]struct{}, len(cfg.Exclude)),
		patterns: cfg.Patterns,
	}
	for _, s := range cfg.Include {
		f.include[normalizeSymbol(s)] = struct{}{}
	}
	for _, s := range cfg.Exclude {
		f.exclude[normalizeSymbol(s)] = struct{}{}
	}
	return f
}

func (f *SymbolFilter) Allows(symbol string) bool {
	symbol = normalizeSymbol(symbol)
	if len(f.include) > 0 {
		if _, ok := f.include[symbol]; !ok {
			return false
		}
	}
	if _, ok := f.exclude[symbol]; ok {
		return false
	}
	if len(f.patterns) > 0 {
		matched := false
		for _, p := range f.patterns {
			if ok, err := path.Match(p, symbol); err == nil && ok {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}

// Apply filters a symbol list, preserving order.
func (f *SymbolFilter) Apply(symbols []string) []string {
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if f.Allows(s) {
			out = append(out, s)
		}
	}
	return out
}

func normalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
