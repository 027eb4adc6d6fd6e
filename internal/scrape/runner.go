package scrape

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/jonesy/jobscraps/internal/storage"
)

// Store is the slice of the record store the runner needs.
type Store interface {
	InsertPostings(ctx context.Context, postings []storage.JobPosting, searchQuery string) (int, error)
	LogSearch(ctx context.Context, query, parameters string, jobsFound int) error
}

// Result summarises one scrape run across all searches.
type Result struct {
	Searches int
	Found    int
	Inserted int
}

// Runner executes configured searches against a source with bounded
// concurrency and lands the postings in the store.
type Runner struct {
	source      Source
	store       Store
	concurrency int
}

func NewRunner(source Source, store Store, concurrency int) *Runner {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Runner{source: source, store: store, concurrency: concurrency}
}

// Run executes every search and returns the aggregate result. A failing
// search cancels the run; completed inserts are not rolled back.
func (r *Runner) Run(ctx context.Context, searches []Search) (Result, error) {
	var (
		mu  sync.Mutex
		res Result
	)
	res.Searches = len(searches)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	for _, search := range searches {
		search := search
		g.Go(func() error {
			found, inserted, err := r.runOne(ctx, search)
			if err != nil {
				return fmt.Errorf("search %q: %w", search.Name, err)
			}
			mu.Lock()
			res.Found += found
			res.Inserted += inserted
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return res, err
	}

	slog.Info("scrape run complete", "searches", res.Searches, "found", res.Found, "inserted", res.Inserted)
	return res, nil
}

func (r *Runner) runOne(ctx context.Context, search Search) (found, inserted int, err error) {
	slog.Info("running search", "name", search.Name)

	postings, err := r.source.Search(ctx, search.Params)
	if err != nil {
		return 0, 0, err
	}
	for i := range postings {
		postings[i].Description = StripHTML(postings[i].Description)
	}

	inserted, err = r.store.InsertPostings(ctx, postings, search.Name)
	if err != nil {
		return 0, 0, fmt.Errorf("inserting postings: %w", err)
	}

	params, _ := json.Marshal(search.Params)
	if err := r.store.LogSearch(ctx, search.Name, string(params), len(postings)); err != nil {
		return 0, 0, fmt.Errorf("logging search: %w", err)
	}

	slog.Info("search finished", "name", search.Name, "found", len(postings), "inserted", inserted)
	return len(postings), inserted, nil
}
