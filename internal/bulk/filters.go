package bulk

import (
	"fmt"
	"strings"
	"time"

	"normlex/internal/types"
)

// Filter is one predicate in the document filter chain.
type Filter interface {
	Name() string
	Keep(doc types.CorpusDocument) bool
}

// FilterConfig declares the chain. Zero values disable the corresponding
// filter.
type FilterConfig struct {
	MinTextLength        int        `yaml:"min_text_length"`
	DateFrom             *time.Time `yaml:"date_from"`
	DateTo               *time.Time `yaml:"date_to"`
	Jurisdictions        []string   `yaml:"jurisdictions"`
	LegalDomains         []string   `yaml:"legal_domains"`
	MinPrecedentStrength float64    `yaml:"min_precedent_strength"`
}

// BuildFilters assembles the chain in its fixed order: length, date range,
// jurisdiction allow-list, domain allow-list, precedent strength.
func BuildFilters(cfg FilterConfig) []Filter {
	var chain []Filter
	if cfg.MinTextLength > 0 {
		chain = append(chain, minLengthFilter{min: cfg.MinTextLength})
	}
	if cfg.DateFrom != nil || cfg.DateTo != nil {
		chain = append(chain, dateRangeFilter{from: cfg.DateFrom, to: cfg.DateTo})
	}
	if len(cfg.Jurisdictions) > 0 {
		chain = append(chain, jurisdictionFilter{allowed: lowerSet(cfg.Jurisdictions)})
	}
	if len(cfg.LegalDomains) > 0 {
		chain = append(chain, domainFilter{allowed: lowerSet(cfg.LegalDomains)})
	}
	if cfg.MinPrecedentStrength > 0 {
		chain = append(chain, strengthFilter{min: cfg.MinPrecedentStrength})
	}
	return chain
}

// applyFilters short-circuits on the first failing predicate and names it.
func applyFilters(chain []Filter, doc types.CorpusDocument) (bool, string) {
	for _, f := range chain {
		if !f.Keep(doc) {
			return false, f.Name()
		}
	}
	return true, ""
}

func lowerSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[strings.ToLower(strings.TrimSpace(v))] = struct{}{}
	}
	return set
}

type minLengthFilter struct{ min int }

func (f minLengthFilter) Name() string { return fmt.Sprintf("min_length(%d)", f.min) }
func (f minLengthFilter) Keep(doc types.CorpusDocument) bool {
	return len(strings.TrimSpace(doc.Text)) >= f.min
}

type dateRangeFilter struct{ from, to *time.Time }

func (f dateRangeFilter) Name() string { return "date_range" }
func (f dateRangeFilter) Keep(doc types.CorpusDocument) bool {
	if doc.Date.IsZero() {
		return false
	}
	if f.from != nil && doc.Date.Before(*f.from) {
		return false
	}
	if f.to != nil && doc.Date.After(*f.to) {
		return false
	}
	return true
}

type jurisdictionFilter struct{ allowed map[string]struct{} }

func (f jurisdictionFilter) Name() string { return "jurisdiction" }
func (f jurisdictionFilter) Keep(doc types.CorpusDocument) bool {
	_, ok := f.allowed[strings.ToLower(strings.TrimSpace(doc.Jurisdiction))]
	return ok
}

type domainFilter struct{ allowed map[string]struct{} }

func (f domainFilter) Name() string { return "legal_domain" }
func (f domainFilter) Keep(doc types.CorpusDocument) bool {
	for _, d := range doc.LegalDomains {
		if _, ok := f.allowed[strings.ToLower(strings.TrimSpace(d))]; ok {
			return true
		}
	}
	return false
}

type strengthFilter struct{ min float64 }

func (f strengthFilter) Name() string { return fmt.Sprintf("min_strength(%.2f)", f.min) }
func (f strengthFilter) Keep(doc types.CorpusDocument) bool {
	return doc.Strength() >= f.min
}
