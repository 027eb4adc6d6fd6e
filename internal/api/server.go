// Package api serves a read-only HTTP view of the store and the backup
// archive. All mutation goes through the CLI; the server exists for
// dashboards and quick curl checks, so nothing here writes.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/jonesy/jobscraps/internal/backup"
	"github.com/jonesy/jobscraps/internal/dedupe"
	"github.com/jonesy/jobscraps/internal/storage"
)

// PostingStore is the read-only slice of the record store the API exposes.
type PostingStore interface {
	CountPostings(ctx context.Context) (int64, error)
	GetPosting(ctx context.Context, id string) (storage.JobPosting, error)
	ListAllPostings(ctx context.Context) ([]storage.JobPosting, error)
	SearchHistory(ctx context.Context, limit int) ([]storage.SearchRecord, error)
}

// BackupLister lists archived snapshots.
type BackupLister interface {
	List() ([]backup.Snapshot, error)
}

// NewHandler wires the read-only routes.
func NewHandler(store PostingStore, backups BackupLister, opts dedupe.Options) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)
	r.Get("/api/postings/count", handleCount(store))
	r.Get("/api/postings/{id}", handlePosting(store))
	r.Get("/api/backups", handleBackups(backups))
	r.Get("/api/duplicates/preview", handleDuplicatesPreview(store, opts))
	r.Get("/api/history", handleHistory(store))

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func handleCount(store PostingStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		count, err := store.CountPostings(r.Context())
		if err != nil {
			httpError(w, http.StatusInternalServerError, "counting postings: %v", err)
			return
		}
		writeJSON(w, map[string]int64{"count": count})
	}
}

func handlePosting(store PostingStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		p, err := store.GetPosting(r.Context(), id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "posting %s not found", id)
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "loading posting: %v", err)
			return
		}
		writeJSON(w, p)
	}
}

func handleBackups(backups BackupLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snaps, err := backups.List()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "listing backups: %v", err)
			return
		}
		if snaps == nil {
			snaps = []backup.Snapshot{}
		}
		writeJSON(w, map[string]any{"backups": snaps})
	}
}

type previewGroup struct {
	Survivor string   `json:"survivor"`
	Reason   string   `json:"reason"`
	Delete   []string `json:"delete"`
}

type duplicatesPreview struct {
	RunID      string         `json:"run_id"`
	Groups     int            `json:"groups"`
	KeepCount  int            `json:"keep_count"`
	DeleteIDs  int            `json:"delete_count"`
	TotalRows  int64          `json:"total_rows"`
	Resolution []previewGroup `json:"resolution"`
}

func handleDuplicatesPreview(store PostingStore, opts dedupe.Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		postings, err := store.ListAllPostings(r.Context())
		if err != nil {
			httpError(w, http.StatusInternalServerError, "loading postings: %v", err)
			return
		}
		total, err := store.CountPostings(r.Context())
		if err != nil {
			httpError(w, http.StatusInternalServerError, "counting postings: %v", err)
			return
		}

		res := dedupe.Resolve(postings, opts)

		preview := duplicatesPreview{
			RunID:     res.RunID,
			Groups:    len(res.Groups),
			KeepCount: len(res.KeepIDs),
			DeleteIDs: len(res.DeleteIDs),
			TotalRows: total,
		}
		for _, g := range res.Groups {
			entry := previewGroup{Survivor: g.SurvivorID, Reason: g.Reason}
			for _, m := range g.Members {
				if m.ID != g.SurvivorID {
					entry.Delete = append(entry.Delete, m.ID)
				}
			}
			preview.Resolution = append(preview.Resolution, entry)
		}
		writeJSON(w, preview)
	}
}

func handleHistory(store PostingStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 20
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 {
				httpError(w, http.StatusBadRequest, "invalid limit %q", v)
				return
			}
			limit = n
		}
		records, err := store.SearchHistory(r.Context(), limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "loading search history: %v", err)
			return
		}
		if records == nil {
			records = []storage.SearchRecord{}
		}
		writeJSON(w, map[string]any{"searches": records})
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding response", "error", err)
	}
}

func httpError(w http.ResponseWriter, status int, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	slog.Warn("request failed", "status", status, "error", msg)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
