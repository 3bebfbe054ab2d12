package matcher

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/totegamma/caselaw-dupcheck/internal/domain"
)

const keySep = "\x00"

// Rule is one independent matching criterion. Two eligible units match under
// a rule when they share at least one of the keys the rule derives for them.
type Rule interface {
	Reason() domain.Reason
	Keys(u domain.UnitAttributes, filter FileNumberFilter) []string
}

type keyRule struct {
	reason domain.Reason
	keys   func(u domain.UnitAttributes, filter FileNumberFilter) []string
}

func (r keyRule) Reason() domain.Reason { return r.reason }

func (r keyRule) Keys(u domain.UnitAttributes, filter FileNumberFilter) []string {
	return r.keys(u, filter)
}

// Match reports whether a and b share a key under rule.
func Match(rule Rule, a, b domain.UnitAttributes, filter FileNumberFilter) bool {
	if a.ID == b.ID {
		return false
	}
	keys := make(map[string]struct{})
	for _, k := range rule.Keys(a, filter) {
		keys[k] = struct{}{}
	}
	for _, k := range rule.Keys(b, filter) {
		if _, ok := keys[k]; ok {
			return true
		}
	}
	return false
}

// fileNumberKeys crosses the unit's retained file numbers with the rule's
// second attribute. Every key carries the document type, so units with a
// different or missing type never share a key.
func fileNumberKeys(u domain.UnitAttributes, filter FileNumberFilter, second []string) []string {
	if !u.HasDocumentType() || len(second) == 0 {
		return nil
	}
	docType := u.DocumentTypeID.String()
	keys := make([]string, 0, len(u.FileNumbers)*len(second))
	for _, fn := range u.FileNumbers {
		if fn == "" || !filter.Allows(fn) {
			continue
		}
		for _, s := range second {
			keys = append(keys, strings.Join([]string{Fold(fn), s, docType}, keySep))
		}
	}
	return keys
}

var FileNumberDateRule Rule = keyRule{
	reason: domain.ReasonFileNumberDate,
	keys: func(u domain.UnitAttributes, filter FileNumberFilter) []string {
		dates := make([]string, 0, len(u.DecisionDates))
		for _, d := range u.DecisionDates {
			if d.IsZero() {
				continue
			}
			dates = append(dates, d.Format("2006-01-02"))
		}
		return fileNumberKeys(u, filter, dates)
	},
}

var FileNumberCourtRule Rule = keyRule{
	reason: domain.ReasonFileNumberCourt,
	keys: func(u domain.UnitAttributes, filter FileNumberFilter) []string {
		if u.CourtID == nil {
			return nil
		}
		return fileNumberKeys(u, filter, []string{u.CourtID.String()})
	},
}

var FileNumberDeviatingCourtRule Rule = keyRule{
	reason: domain.ReasonFileNumberDeviatingCourt,
	keys: func(u domain.UnitAttributes, filter FileNumberFilter) []string {
		courts := make([]string, 0, len(u.DeviatingCourts))
		for _, c := range u.DeviatingCourts {
			if c == "" {
				continue
			}
			courts = append(courts, Fold(c))
		}
		return fileNumberKeys(u, filter, courts)
	},
}

var ECLIRule Rule = keyRule{
	reason: domain.ReasonECLI,
	keys: func(u domain.UnitAttributes, _ FileNumberFilter) []string {
		keys := make([]string, 0, len(u.ECLIs))
		for _, e := range u.ECLIs {
			if e == "" {
				continue
			}
			keys = append(keys, Fold(e))
		}
		return keys
	},
}

func DefaultRules() []Rule {
	return []Rule{FileNumberDateRule, FileNumberCourtRule, FileNumberDeviatingCourtRule, ECLIRule}
}

// RulesFor resolves rule names into rules, in the given order.
func RulesFor(reasons []domain.Reason) ([]Rule, error) {
	byReason := make(map[domain.Reason]Rule)
	for _, r := range DefaultRules() {
		byReason[r.Reason()] = r
	}
	rules := make([]Rule, 0, len(reasons))
	for _, reason := range reasons {
		r, ok := byReason[reason]
		if !ok {
			return nil, errors.Errorf("unknown matching rule %q", reason)
		}
		rules = append(rules, r)
	}
	return rules, nil
}
