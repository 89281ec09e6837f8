package checker

import (
	"fmt"

	"normlex/internal/types"
)

const maxFixSuggestions = 10

// GenerateDebugReport buckets an analysis's issues by severity and renders
// a compiler-style summary. Pure data transformation: no store access, no
// side effects.
func GenerateDebugReport(a types.DocumentAnalysis) types.DebugReport {
	report := types.DebugReport{
		CriticalErrors: []types.Issue{},
		Warnings:       []types.Issue{},
		Suggestions:    []types.Issue{},
		FixSuggestions: []string{},
	}

	for _, issue := range a.Issues {
		switch issue.Severity {
		case types.SeverityHigh:
			report.CriticalErrors = append(report.CriticalErrors, issue)
		case types.SeverityMedium:
			report.Warnings = append(report.Warnings, issue)
		default:
			report.Suggestions = append(report.Suggestions, issue)
		}
	}

	report.Summary = fmt.Sprintf("%s: %d error(s), %d warning(s), %d suggestion(s); confidence %.2f",
		a.DocumentID, len(report.CriticalErrors), len(report.Warnings), len(report.Suggestions), a.ConfidenceScore)

	// Highest severity first, deduplicated, capped.
	seen := make(map[string]struct{})
	for _, bucket := range [][]types.Issue{report.CriticalErrors, report.Warnings, report.Suggestions} {
		for _, issue := range bucket {
			if issue.Suggestion == "" {
				continue
			}
			if _, ok := seen[issue.Suggestion]; ok {
				continue
			}
			seen[issue.Suggestion] = struct{}{}
			report.FixSuggestions = append(report.FixSuggestions, issue.Suggestion)
			if len(report.FixSuggestions) == maxFixSuggestions {
				return report
			}
		}
	}
	return report
}
