// Package scrape pulls job postings from an external scraper service and
// lands them in the store. Searches are declared in a JSON file, run with
// bounded concurrency, and every run is recorded in the search history.
package scrape

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// Search is one named, runnable query against the scraper service.
type Search struct {
	Name   string
	Params map[string]any
}

// searchFile mirrors the on-disk search configuration. Global parameters
// apply to every search; a search's own parameters win on conflict.
type searchFile struct {
	Global   map[string]any         `json:"global_params"`
	Searches map[string]searchEntry `json:"searches"`
}

type searchEntry struct {
	Enabled *bool          `json:"enabled"`
	Params  map[string]any `json:"params"`
}

// LoadSearches reads the search configuration and returns the enabled
// searches with global parameters merged in, ordered by name. Searches
// default to enabled; set "enabled": false to park one without deleting it.
func LoadSearches(path string) ([]Search, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading search config %s: %w", path, err)
	}
	var file searchFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing search config %s: %w", path, err)
	}

	out := make([]Search, 0, len(file.Searches))
	for name, entry := range file.Searches {
		if entry.Enabled != nil && !*entry.Enabled {
			continue
		}
		params := make(map[string]any, len(file.Global)+len(entry.Params))
		for k, v := range file.Global {
			params[k] = v
		}
		for k, v := range entry.Params {
			params[k] = v
		}
		out = append(out, Search{Name: name, Params: params})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
