package models

import (
	"strings"
)

// Method identifies a forecasting method.
type Method string

const (
	MethodLinear        Method = "linear"
	MethodGrowth        Method = "growth"
	MethodSmoothing     Method = "smoothing"
	MethodMovingAverage Method = "moving_average"
	MethodEnsemble      Method = "ensemble"
)

// methodAliases maps the legacy tool names onto canonical methods.
var methodAliases = map[string]Method{
	"trend":  MethodLinear,
	"smooth": MethodSmoothing,
	"cagr":   MethodGrowth,
	"ma":     MethodMovingAverage,
}

// Methods returns every supported method in canonical order.
func Methods() []Method {
	return []Method{MethodLinear, MethodGrowth, MethodSmoothing, MethodMovingAverage, MethodEnsemble}
}

// IsValidMethod returns true if m is a supported method.
func IsValidMethod(m Method) bool {
	switch m {
	case MethodLinear, MethodGrowth, MethodSmoothing, MethodMovingAverage, MethodEnsemble:
		return true
	default:
		return false
	}
}

// DefaultMethod returns the method used when none is given.
func DefaultMethod() Method { return MethodEnsemble }

// ParseMethod converts a raw name (or alias) into a Method. An empty name
// yields the default; anything unrecognised is a parameter error.
func ParseMethod(s string) (Method, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "" {
		return DefaultMethod(), nil
	}
	if m := Method(name); IsValidMethod(m) {
		return m, nil
	}
	if m, ok := methodAliases[name]; ok {
		return m, nil
	}
	return "", NewParameterError("unknown method %q", s)
}

// methodRank orders methods for stable output.
func methodRank(m Method) int {
	for i, x := range Methods() {
		if x == m {
			return i
		}
	}
	return len(Methods())
}
