package dedupe

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/jonesy/jobscraps/internal/storage"
)

var testOpts = Options{
	RegionPatterns: []string{", CO", "Colorado"},
	SitePreference: []string{"linkedin", "indeed", "google"},
}

func f64(v float64) *float64 { return &v }
func boolp(v bool) *bool     { return &v }

func posting(id string, mut ...func(*storage.JobPosting)) storage.JobPosting {
	p := storage.JobPosting{
		ID:          id,
		Site:        "indeed",
		Title:       "Data Engineer",
		Company:     "Acme",
		Location:    "Denver, CO",
		DateScraped: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
	for _, m := range mut {
		m(&p)
	}
	return p
}

// --- grouping ---

func TestResolve_GroupsByNormalisedTitleCompany(t *testing.T) {
	postings := []storage.JobPosting{
		posting("a", func(p *storage.JobPosting) { p.Title = "Data Engineer "; p.Company = "ACME" }),
		posting("b", func(p *storage.JobPosting) { p.Title = "data engineer"; p.Company = "acme" }),
		posting("c", func(p *storage.JobPosting) { p.Title = "Platform Engineer" }),
	}

	res := Resolve(postings, testOpts)
	if len(res.Groups) != 1 {
		t.Fatalf("got %d groups, want 1", len(res.Groups))
	}
	if got := len(res.Groups[0].Members); got != 2 {
		t.Errorf("group size = %d, want 2", got)
	}
	if len(res.DeleteIDs) != 1 {
		t.Errorf("got %d delete ids, want 1", len(res.DeleteIDs))
	}
}

func TestResolve_SkipsBlankTitleOrCompany(t *testing.T) {
	postings := []storage.JobPosting{
		posting("a", func(p *storage.JobPosting) { p.Title = "" }),
		posting("b", func(p *storage.JobPosting) { p.Title = "" }),
		posting("c", func(p *storage.JobPosting) { p.Company = "  " }),
		posting("d", func(p *storage.JobPosting) { p.Company = "" }),
	}
	res := Resolve(postings, testOpts)
	if len(res.Groups) != 0 {
		t.Errorf("blank-keyed postings were grouped: %d groups", len(res.Groups))
	}
}

func TestResolve_SingletonIsNotADuplicate(t *testing.T) {
	res := Resolve([]storage.JobPosting{posting("only")}, testOpts)
	if len(res.Groups) != 0 || len(res.DeleteIDs) != 0 {
		t.Errorf("singleton produced groups=%d deletes=%d, want 0/0", len(res.Groups), len(res.DeleteIDs))
	}
}

// --- individual criteria ---

func TestCompare_DescriptionCompleteness(t *testing.T) {
	cmp := newComparator(testOpts)

	long := posting("a", func(p *storage.JobPosting) { p.Description = strings.Repeat("x", 2000) })
	short := posting("b", func(p *storage.JobPosting) { p.Description = strings.Repeat("x", 100) })
	empty := posting("c")

	if d, reason := cmp.compare(long, short); d >= 0 || reason != ByDescription {
		t.Errorf("longer description should win: d=%d reason=%s", d, reason)
	}
	if d, _ := cmp.compare(empty, short); d <= 0 {
		t.Error("empty description should lose to non-empty")
	}
}

func TestCompare_RegionBeatsSalary(t *testing.T) {
	cmp := newComparator(testOpts)

	inRegion := posting("a", func(p *storage.JobPosting) { p.Location = "Boulder, CO" })
	richer := posting("b", func(p *storage.JobPosting) {
		p.Location = "New York, NY"
		p.MinAmount, p.MaxAmount = f64(150000), f64(200000)
	})

	d, reason := cmp.compare(inRegion, richer)
	if d >= 0 || reason != ByRegion {
		t.Errorf("region match should decide before salary: d=%d reason=%s", d, reason)
	}
}

func TestCompare_SalaryPresenceAndValue(t *testing.T) {
	cmp := newComparator(testOpts)

	withSalary := posting("a", func(p *storage.JobPosting) { p.MinAmount, p.MaxAmount = f64(90000), f64(110000) })
	without := posting("b")
	if d, reason := cmp.compare(withSalary, without); d >= 0 || reason != BySalary {
		t.Errorf("salary presence should win: d=%d reason=%s", d, reason)
	}

	higherMax := posting("c", func(p *storage.JobPosting) { p.MinAmount, p.MaxAmount = f64(80000), f64(150000) })
	if d, _ := cmp.compare(higherMax, withSalary); d >= 0 {
		t.Error("higher max salary should win among salaried postings")
	}

	sameMaxHigherMin := posting("d", func(p *storage.JobPosting) { p.MinAmount, p.MaxAmount = f64(100000), f64(110000) })
	if d, _ := cmp.compare(sameMaxHigherMin, withSalary); d >= 0 {
		t.Error("equal max should fall through to min salary")
	}
}

func TestCompare_RemoteFlagPresence(t *testing.T) {
	cmp := newComparator(testOpts)

	explicitFalse := posting("a", func(p *storage.JobPosting) { p.IsRemote = boolp(false) })
	unknown := posting("b")
	if d, reason := cmp.compare(explicitFalse, unknown); d >= 0 || reason != ByRemote {
		t.Errorf("explicit false should beat unknown: d=%d reason=%s", d, reason)
	}

	// Explicit true and explicit false tie on this criterion.
	explicitTrue := posting("c", func(p *storage.JobPosting) { p.IsRemote = boolp(true) })
	if d, reason := cmp.compare(explicitTrue, explicitFalse); reason == ByRemote {
		t.Errorf("true vs false decided by remote criterion (d=%d); false must not be penalised", d)
	}
}

func TestCompare_SitePreference(t *testing.T) {
	cmp := newComparator(testOpts)

	linkedin := posting("a", func(p *storage.JobPosting) { p.Site = "LinkedIn" })
	indeed := posting("b", func(p *storage.JobPosting) { p.Site = "indeed" })
	unlisted := posting("c", func(p *storage.JobPosting) { p.Site = "craigslist" })

	if d, reason := cmp.compare(linkedin, indeed); d >= 0 || reason != BySite {
		t.Errorf("linkedin should outrank indeed: d=%d reason=%s", d, reason)
	}
	if d, _ := cmp.compare(indeed, unlisted); d >= 0 {
		t.Error("listed site should outrank unlisted site")
	}
}

func TestCompare_Recency(t *testing.T) {
	cmp := newComparator(testOpts)

	older := posting("a")
	newer := posting("b", func(p *storage.JobPosting) { p.DateScraped = p.DateScraped.Add(48 * time.Hour) })

	if d, reason := cmp.compare(newer, older); d >= 0 || reason != ByRecency {
		t.Errorf("more recent scrape should win: d=%d reason=%s", d, reason)
	}
}

func TestCompare_IDFallbackIsTotal(t *testing.T) {
	cmp := newComparator(testOpts)

	a := posting("indeed_aaa")
	b := posting("indeed_bbb")
	d, reason := cmp.compare(a, b)
	if d >= 0 || reason != ByID {
		t.Errorf("identical postings must fall back to id order: d=%d reason=%s", d, reason)
	}
	if d2, _ := cmp.compare(b, a); d2 <= 0 {
		t.Error("comparator is not antisymmetric on the id fallback")
	}
}

// --- precedence scenario ---

// A long description must beat salary data: criterion 1 decides before
// criterion 3 regardless of how much richer the loser's salary data is.
func TestResolve_DescriptionOutranksSalary(t *testing.T) {
	a := posting("a", func(p *storage.JobPosting) {
		p.Description = strings.Repeat("d", 2000)
		p.Location = "Denver, CO"
	})
	b := posting("b", func(p *storage.JobPosting) {
		p.Description = strings.Repeat("d", 100)
		p.Location = "Denver, CO"
		p.MinAmount, p.MaxAmount = f64(80000), f64(100000)
	})

	res := Resolve([]storage.JobPosting{a, b}, testOpts)
	if len(res.Groups) != 1 {
		t.Fatalf("got %d groups, want 1", len(res.Groups))
	}
	g := res.Groups[0]
	if g.SurvivorID != "a" {
		t.Errorf("survivor = %s, want a (description completeness outranks salary)", g.SurvivorID)
	}
	if g.Reason != ByDescription {
		t.Errorf("reason = %q, want %q", g.Reason, ByDescription)
	}
	if !reflect.DeepEqual(res.DeleteIDs, []string{"b"}) {
		t.Errorf("delete ids = %v, want [b]", res.DeleteIDs)
	}
}

// --- determinism ---

func TestResolve_Idempotent(t *testing.T) {
	postings := []storage.JobPosting{
		posting("x1", func(p *storage.JobPosting) { p.Description = "short" }),
		posting("x2", func(p *storage.JobPosting) { p.Description = "a bit longer one" }),
		posting("x3", func(p *storage.JobPosting) { p.Site = "google" }),
		posting("y1", func(p *storage.JobPosting) { p.Title = "SRE" }),
		posting("y2", func(p *storage.JobPosting) { p.Title = "SRE" }),
	}

	first := Resolve(postings, testOpts)
	second := Resolve(postings, testOpts)

	if !reflect.DeepEqual(first.DeleteIDs, second.DeleteIDs) {
		t.Errorf("delete lists differ across runs: %v vs %v", first.DeleteIDs, second.DeleteIDs)
	}
	if !reflect.DeepEqual(first.KeepIDs, second.KeepIDs) {
		t.Errorf("survivor sets differ across runs: %v vs %v", first.KeepIDs, second.KeepIDs)
	}
}

func TestResolve_InputOrderIndependent(t *testing.T) {
	forward := []storage.JobPosting{
		posting("m1"), posting("m2"), posting("m3"),
	}
	reversed := []storage.JobPosting{
		posting("m3"), posting("m2"), posting("m1"),
	}

	a := Resolve(forward, testOpts)
	b := Resolve(reversed, testOpts)
	if !reflect.DeepEqual(a.DeleteIDs, b.DeleteIDs) {
		t.Errorf("delete list depends on input order: %v vs %v", a.DeleteIDs, b.DeleteIDs)
	}
	if a.Groups[0].SurvivorID != "m1" || b.Groups[0].SurvivorID != "m1" {
		t.Errorf("survivors = %s/%s, want m1 (smallest id) in both",
			a.Groups[0].SurvivorID, b.Groups[0].SurvivorID)
	}
}

func TestResolve_ExactlyOneSurvivorPerGroup(t *testing.T) {
	var postings []storage.JobPosting
	for _, id := range []string{"g1", "g2", "g3", "g4"} {
		postings = append(postings, posting(id))
	}
	res := Resolve(postings, testOpts)
	if len(res.Groups) != 1 {
		t.Fatalf("got %d groups, want 1", len(res.Groups))
	}
	if got := len(res.KeepIDs); got != 1 {
		t.Errorf("got %d survivors, want 1", got)
	}
	if got := len(res.DeleteIDs); got != 3 {
		t.Errorf("got %d deletions, want 3", got)
	}
	for _, del := range res.DeleteIDs {
		if del == res.KeepIDs[0] {
			t.Errorf("survivor %s also marked for deletion", del)
		}
	}
}
