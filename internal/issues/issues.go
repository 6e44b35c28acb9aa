// Package issues applies a fixed rule set over the aggregated folder
// permissions and emits severity-tagged findings. Detection is pure and
// deterministic: the same folder view always yields the same issues in the
// same order, which the monitoring feed depends on.
package issues

import (
	"sort"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/aclscan/aclscan/internal/build"
	"github.com/aclscan/aclscan/pkg/identity"
)

var detectedIssuesCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: build.ProjectName,
	Name:      "issues_detected_total",
	Help:      "Number of permission issues detected, by rule.",
}, []string{"rule"})

// Severity ranks a finding. Errors are meant to flip the consuming monitor
// into a degraded state; warnings are informational.
type Severity int

const (
	SeverityWarning Severity = iota
	SeverityError
)

func (s Severity) String() string {
	if s == SeverityError {
		return "error"
	}
	return "warning"
}

// Issue is one finding on one (folder, account) pair.
type Issue struct {
	FolderPath string
	Account    string
	RuleID     string
	Severity   Severity
	Message    string
}

// Rule inspects a single account row within one folder. Rows arrive already
// deduplicated and folder-filtered, so a rule never correlates across rows.
type Rule interface {
	ID() string
	Apply(folder string, row identity.PermissionRow) []Issue
}

// Option configures a Detector.
type Option func(*Detector)

// WithGroupNamePattern enables the group naming rule. An empty pattern
// leaves the rule off.
func WithGroupNamePattern(pattern string) Option {
	return func(d *Detector) {
		d.groupNamePattern = pattern
	}
}

// WithRules appends extra rules after the built-in set.
func WithRules(rules ...Rule) Option {
	return func(d *Detector) {
		d.extra = append(d.extra, rules...)
	}
}

// Detector evaluates every rule against every account row of every folder.
type Detector struct {
	rules []Rule

	groupNamePattern string
	extra            []Rule
}

// NewDetector builds a detector carrying the built-in rules. The group
// naming rule is included only when a pattern is configured.
func NewDetector(opts ...Option) (*Detector, error) {
	d := &Detector{}
	for _, opt := range opts {
		opt(d)
	}

	if d.groupNamePattern != "" {
		rule, err := newGroupNamingRule(d.groupNamePattern)
		if err != nil {
			return nil, err
		}
		d.rules = append(d.rules, rule)
	}
	d.rules = append(d.rules,
		allowDenyConflictRule{},
		inheritanceConflictRule{},
		unresolvedSIDRule{},
		broadFullControlRule{},
	)
	d.rules = append(d.rules, d.extra...)

	return d, nil
}

// Detect runs the rule set over the folder view. Findings come back sorted
// by folder path, account name, then rule ID.
func (d *Detector) Detect(folders []identity.FolderPermission) []Issue {
	var found []Issue
	for _, folder := range folders {
		for _, row := range folder.Rows {
			for _, rule := range d.rules {
				issues := rule.Apply(folder.Path, row)
				if len(issues) > 0 {
					detectedIssuesCounter.WithLabelValues(rule.ID()).Add(float64(len(issues)))
				}
				found = append(found, issues...)
			}
		}
	}

	sort.Slice(found, func(i, j int) bool {
		a, b := found[i], found[j]
		if a.FolderPath != b.FolderPath {
			return a.FolderPath < b.FolderPath
		}
		if a.Account != b.Account {
			return a.Account < b.Account
		}
		return a.RuleID < b.RuleID
	})

	return found
}

// Count tallies findings by severity, in the shape the issue feed reports.
func Count(issues []Issue) (errors, warnings int) {
	for _, issue := range issues {
		if issue.Severity == SeverityError {
			errors++
		} else {
			warnings++
		}
	}
	return errors, warnings
}
