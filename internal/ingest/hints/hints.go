// Package hints attaches operator remediation advice to backend failures.
package hints

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/smallbiznis/meseboard/internal/config"
	"github.com/smallbiznis/meseboard/internal/oplog"
)

const (
	ScopeOverview    = "overview"
	ScopePersonNode  = "person_node"
	ScopeCycleStats  = "cycle_stats"
	ScopeLedger      = "ledger"
	ScopeMaintenance = "maintenance"
)

type Hint struct {
	Severity oplog.Severity
	Message  string
}

// Match returns the hints whose rule applies to scope and err, in rule order.
// A rule without scopes applies everywhere.
func Match(rules []config.HintRule, scope string, err error) []Hint {
	if err == nil {
		return nil
	}

	msg := err.Error()
	code := ""
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		code = pgErr.Code
	}

	var out []Hint
	for _, rule := range rules {
		if !inScope(rule.Scopes, scope) {
			continue
		}
		if !matches(rule, msg, code) {
			continue
		}
		out = append(out, Hint{Severity: oplog.ParseSeverity(rule.Severity), Message: rule.Message})
	}
	return out
}

// Emit appends the matching hints to the log.
func Emit(log *oplog.Log, rules []config.HintRule, scope string, err error) {
	for _, h := range Match(rules, scope, err) {
		log.Add(h.Severity, "%s", h.Message)
	}
}

func inScope(scopes []string, scope string) bool {
	if len(scopes) == 0 {
		return true
	}
	for _, s := range scopes {
		if strings.EqualFold(s, scope) {
			return true
		}
	}
	return false
}

func matches(rule config.HintRule, msg, code string) bool {
	if len(rule.Match) == 0 && len(rule.Codes) == 0 {
		return true
	}
	for _, c := range rule.Codes {
		if code != "" && c == code {
			return true
		}
	}
	for _, m := range rule.Match {
		if m != "" && strings.Contains(msg, m) {
			return true
		}
	}
	return false
}
