package reachability

import (
	"strings"

	"cortexstore/internal/model"
)

// FieldSensitivity classifies a field name into the category it belongs to,
// mirroring the original engine's credential/financial/health/PII pattern
// tables.
type FieldSensitivity string

const (
	SensitivityUnknown     FieldSensitivity = "unknown"
	SensitivityCredentials FieldSensitivity = "credentials"
	SensitivityFinancial   FieldSensitivity = "financial"
	SensitivityHealth      FieldSensitivity = "health"
	SensitivityPII         FieldSensitivity = "pii"
)

var (
	credentialPatterns = []string{"password", "secret", "token", "key", "api_key", "auth", "credential"}
	financialPatterns  = []string{"credit_card", "card_number", "cvv", "account_number", "salary", "income", "bank"}
	healthPatterns     = []string{"diagnosis", "medical", "health", "prescription", "condition"}
	piiPatterns        = []string{"ssn", "social_security", "email", "phone", "address", "dob", "name", "birth"}
)

// classifyField reports which sensitivity category a field name falls
// into, by substring match against the fixed pattern tables above.
func classifyField(field string) FieldSensitivity {
	lower := strings.ToLower(field)
	if matchesAny(lower, credentialPatterns) {
		return SensitivityCredentials
	}
	if matchesAny(lower, financialPatterns) {
		return SensitivityFinancial
	}
	if matchesAny(lower, healthPatterns) {
		return SensitivityHealth
	}
	if matchesAny(lower, piiPatterns) {
		return SensitivityPII
	}
	return SensitivityUnknown
}

func matchesAny(s string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

var (
	handlerPatterns    = []string{"handler", "controller", "route", "endpoint"}
	commandExecPatterns = []string{"exec", "spawn", "shell", "command"}
	writePatterns      = []string{"write", "save", "insert", "update", "delete", "send"}
	adminPatterns      = []string{"admin", "root", "superuser"}
)

// ClassifySensitivityTier applies §4.9's caller-path rule table: an HTTP
// handler reaching a command-exec sink is Critical, untrusted input
// reaching a file/network write is High, an admin-only path touching a file
// is Medium, a purely internal path is Low, and an empty reachable set is
// always Low.
func ClassifySensitivityTier(callerPath []CallPathNode, reachable []string) model.SensitivityTier {
	if len(reachable) == 0 {
		return model.SensitivityLow
	}

	isHandler := pathMatchesAny(callerPath, handlerPatterns)
	isAdminOnly := pathMatchesAny(callerPath, adminPatterns)
	reachesExec := namesMatchAny(reachable, commandExecPatterns)
	reachesWrite := namesMatchAny(reachable, writePatterns)

	switch {
	case isHandler && reachesExec:
		return model.SensitivityCritical
	case !isAdminOnly && reachesWrite:
		return model.SensitivityHigh
	case isAdminOnly && reachesWrite:
		return model.SensitivityMedium
	default:
		return model.SensitivityLow
	}
}

func pathMatchesAny(path []CallPathNode, patterns []string) bool {
	for _, node := range path {
		lower := strings.ToLower(node.Name)
		if matchesAny(lower, patterns) {
			return true
		}
	}
	return false
}

func namesMatchAny(names []string, patterns []string) bool {
	for _, n := range names {
		if matchesAny(strings.ToLower(n), patterns) {
			return true
		}
	}
	return false
}
