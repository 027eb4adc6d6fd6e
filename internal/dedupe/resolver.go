// Package dedupe identifies postings that describe the same underlying job
// across sites and selects a single survivor per group.
//
// Grouping is a heuristic: case-normalised title+company. It can over-merge
// (same title and company, genuinely different roles) and under-merge (same
// job with reworded titles). Both modes are accepted; the key is tunable
// only in the sense that it is isolated here, not configurable.
package dedupe

import (
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/jonesy/jobscraps/internal/storage"
)

// GroupKey is the normalised identity two postings must share to be
// considered candidate duplicates.
type GroupKey struct {
	Title   string
	Company string
}

func keyFor(p storage.JobPosting) GroupKey {
	return GroupKey{
		Title:   strings.ToLower(strings.TrimSpace(p.Title)),
		Company: strings.ToLower(strings.TrimSpace(p.Company)),
	}
}

// Group is one set of candidate duplicates, members ranked best-first.
type Group struct {
	Key        GroupKey
	Members    []storage.JobPosting
	SurvivorID string
	// Reason names the ranking criterion that separated the survivor from
	// the runner-up, for the audit report.
	Reason string
}

// Resolution is the outcome of one resolver run. It is never persisted;
// only the delete-list artifact derived from DeleteIDs is.
type Resolution struct {
	RunID     string
	Groups    []Group
	KeepIDs   []string
	DeleteIDs []string
}

// Options tune the resolver's ranking.
type Options struct {
	// RegionPatterns mark a location as "in the target region" when any
	// pattern is contained in it, case-insensitively.
	RegionPatterns []string
	// SitePreference is a total order over sites, most trusted first.
	// Sites not listed rank behind all listed ones.
	SitePreference []string
}

// Resolve groups the postings, ranks each group and picks survivors.
// Postings with a blank title or company never participate. The result is
// deterministic: identical input always yields identical output.
func Resolve(postings []storage.JobPosting, opts Options) Resolution {
	cmp := newComparator(opts)

	byKey := make(map[GroupKey][]storage.JobPosting)
	for _, p := range postings {
		k := keyFor(p)
		if k.Title == "" || k.Company == "" {
			continue
		}
		byKey[k] = append(byKey[k], p)
	}

	keys := make([]GroupKey, 0, len(byKey))
	for k, members := range byKey {
		if len(members) < 2 {
			continue // a single posting is not a duplicate
		}
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Title != keys[j].Title {
			return keys[i].Title < keys[j].Title
		}
		return keys[i].Company < keys[j].Company
	})

	res := Resolution{RunID: uuid.NewString()}
	for _, k := range keys {
		members := byKey[k]
		sort.SliceStable(members, func(i, j int) bool {
			c, _ := cmp.compare(members[i], members[j])
			return c < 0
		})

		_, reason := cmp.compare(members[0], members[1])
		g := Group{Key: k, Members: members, SurvivorID: members[0].ID, Reason: reason}
		res.Groups = append(res.Groups, g)
		res.KeepIDs = append(res.KeepIDs, members[0].ID)
		for _, m := range members[1:] {
			res.DeleteIDs = append(res.DeleteIDs, m.ID)
		}
	}
	return res
}

// Ranking criteria, in strict priority order. Each is a tie-break for the
// previous one; the id fallback makes the order total.
const (
	ByDescription = "description completeness"
	ByRegion      = "location specificity"
	BySalary      = "salary data"
	ByRemote      = "remote flag presence"
	BySite        = "site preference"
	ByRecency     = "scrape recency"
	ByID          = "id order"
)

type comparator struct {
	regions  []string // lowercased
	siteRank map[string]int
}

func newComparator(opts Options) comparator {
	c := comparator{siteRank: make(map[string]int, len(opts.SitePreference))}
	for _, r := range opts.RegionPatterns {
		c.regions = append(c.regions, strings.ToLower(r))
	}
	for i, s := range opts.SitePreference {
		c.siteRank[strings.ToLower(s)] = i
	}
	return c
}

// compare returns a negative value when a outranks b, a positive value when
// b outranks a, and names the criterion that decided. It never returns 0
// for postings with distinct ids.
func (c comparator) compare(a, b storage.JobPosting) (int, string) {
	if d := compareDescription(a, b); d != 0 {
		return d, ByDescription
	}
	if d := c.compareRegion(a, b); d != 0 {
		return d, ByRegion
	}
	if d := compareSalary(a, b); d != 0 {
		return d, BySalary
	}
	if d := compareRemote(a, b); d != 0 {
		return d, ByRemote
	}
	if d := c.compareSite(a, b); d != 0 {
		return d, BySite
	}
	if d := compareRecency(a, b); d != 0 {
		return d, ByRecency
	}
	return strings.Compare(a.ID, b.ID), ByID
}

// compareDescription prefers the longer non-empty description; an empty
// description always loses to a non-empty one.
func compareDescription(a, b storage.JobPosting) int {
	la := len(strings.TrimSpace(a.Description))
	lb := len(strings.TrimSpace(b.Description))
	switch {
	case la == lb:
		return 0
	case la > lb:
		return -1
	default:
		return 1
	}
}

func (c comparator) inRegion(p storage.JobPosting) bool {
	loc := strings.ToLower(p.Location)
	for _, r := range c.regions {
		if r != "" && strings.Contains(loc, r) {
			return true
		}
	}
	return false
}

func (c comparator) compareRegion(a, b storage.JobPosting) int {
	return compareBool(c.inRegion(a), c.inRegion(b))
}

// compareSalary prefers postings with salary data; among those it prefers
// the higher max amount, then the higher min amount.
func compareSalary(a, b storage.JobPosting) int {
	ha := a.MinAmount != nil || a.MaxAmount != nil
	hb := b.MinAmount != nil || b.MaxAmount != nil
	if d := compareBool(ha, hb); d != 0 {
		return d
	}
	if !ha {
		return 0
	}
	if d := compareAmountDesc(a.MaxAmount, b.MaxAmount); d != 0 {
		return d
	}
	return compareAmountDesc(a.MinAmount, b.MinAmount)
}

// compareRemote prefers a known remote flag over an unknown one. An
// explicit false is worth exactly as much as an explicit true.
func compareRemote(a, b storage.JobPosting) int {
	return compareBool(a.IsRemote != nil, b.IsRemote != nil)
}

func (c comparator) rank(p storage.JobPosting) int {
	if r, ok := c.siteRank[strings.ToLower(p.Site)]; ok {
		return r
	}
	return len(c.siteRank)
}

func (c comparator) compareSite(a, b storage.JobPosting) int {
	ra, rb := c.rank(a), c.rank(b)
	switch {
	case ra == rb:
		return 0
	case ra < rb:
		return -1
	default:
		return 1
	}
}

func compareRecency(a, b storage.JobPosting) int {
	switch {
	case a.DateScraped.Equal(b.DateScraped):
		return 0
	case a.DateScraped.After(b.DateScraped):
		return -1
	default:
		return 1
	}
}

func compareBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case a:
		return -1
	default:
		return 1
	}
}

// compareAmountDesc orders amounts descending, nil last.
func compareAmountDesc(a, b *float64) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	case *a == *b:
		return 0
	case *a > *b:
		return -1
	default:
		return 1
	}
}
