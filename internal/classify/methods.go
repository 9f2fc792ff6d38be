package classify

import (
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/closure-tracker/internal/model"
)

var methodAliases = map[string]string{
	"in branch":      model.MethodInBranch,
	"branch":         model.MethodInBranch,
	"in-person":      model.MethodInBranch,
	"in person":      model.MethodInBranch,
	"secure message": model.MethodSecureMessage,
	"secure-msg":     model.MethodSecureMessage,
	"message":        model.MethodSecureMessage,
	"online":         model.MethodOnPlatform,
	"on platform":    model.MethodOnPlatform,
	"self-service":   model.MethodOnPlatform,
	"zero-balance":   model.MethodZeroBalance,
	"zero balance":   model.MethodZeroBalance,
	"0 balance":      model.MethodZeroBalance,
	"call":           model.MethodPhone,
	"telephone":      model.MethodPhone,
	"live chat":      model.MethodChat,
}

// IsRecommendedMethod reports whether m is one of the suggested channels.
func IsRecommendedMethod(m string) bool {
	return slices.Contains(model.RecommendedMethods(), m)
}

// NormalizeMethod lowercases and trims m and maps common spellings onto the
// recommended set. Empty becomes "unknown". Anything else is kept as given.
func NormalizeMethod(m string) string {
	m = strings.ToLower(strings.Join(strings.Fields(m), " "))
	if m == "" {
		return model.MethodUnknown
	}
	if IsRecommendedMethod(m) {
		return m
	}
	if alias, ok := methodAliases[m]; ok {
		return alias
	}
	zap.L().Warn("classify: method outside recommended set", zap.String("method", m))
	return m
}
