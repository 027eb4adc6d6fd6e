package storage

import (
	"errors"
	"strings"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// JobPosting is one scraped listing. IDs are site-prefixed and immutable;
// the resolver never updates a posting in place, it either keeps or deletes.
//
// MinAmount, MaxAmount and IsRemote are pointers because "unknown" and
// "zero/false" carry different weight in duplicate ranking.
type JobPosting struct {
	ID          string
	Site        string
	Title       string
	Company     string
	Location    string
	Description string
	MinAmount   *float64
	MaxAmount   *float64
	IsRemote    *bool
	DatePosted  string // free text from the source, not reliably parseable
	DateScraped time.Time
	SearchQuery string

	// Optional source metadata. Carried for reporting only; none of these
	// participate in duplicate resolution.
	JobURL              string
	JobURLDirect        string
	JobType             string
	SalarySource        string
	Interval            string
	Currency            string
	JobLevel            string
	JobFunction         string
	ListingType         string
	Emails              string
	CompanyIndustry     string
	CompanyURL          string
	CompanyLogo         string
	CompanyURLDirect    string
	CompanyAddresses    string
	CompanyNumEmployees string
	CompanyRevenue      string
	CompanyDescription  string
	Skills              string
	ExperienceRange     string
	CompanyRating       string
	CompanyReviewsCount string
	VacancyCount        string
	WorkFromHomeType    string
}

// Validate checks the fixed-shape invariants at the store boundary.
func (p JobPosting) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return errors.New("posting has empty id")
	}
	if p.MinAmount != nil && p.MaxAmount != nil && *p.MinAmount > *p.MaxAmount {
		return errors.New("posting min salary exceeds max salary")
	}
	return nil
}

// SearchRecord is one row of the search-history log.
type SearchRecord struct {
	ID         string
	Query      string
	Parameters string // JSON-encoded search parameters
	Timestamp  time.Time
	JobsFound  int
}
