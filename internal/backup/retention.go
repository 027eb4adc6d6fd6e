package backup

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jonesy/jobscraps/internal/config"
)

const gigabyte = 1 << 30

// RetentionPolicy bounds the archive by count and size. Cleanup fires when
// either Max threshold is exceeded and prunes oldest-first until both
// Target thresholds are met.
type RetentionPolicy struct {
	MaxCount    int
	TargetCount int
	MaxBytes    int64
	TargetBytes int64
}

// RetentionPolicyFromConfig converts the configured GB thresholds to bytes.
func RetentionPolicyFromConfig(cfg config.BackupConfig) RetentionPolicy {
	return RetentionPolicy{
		MaxCount:    cfg.MaxCount,
		TargetCount: cfg.TargetCount,
		MaxBytes:    int64(cfg.MaxSizeGB * gigabyte),
		TargetBytes: int64(cfg.TargetSizeGB * gigabyte),
	}
}

// RetentionSummary reports what one retention pass did.
type RetentionSummary struct {
	Triggered      bool
	Removed        []string
	RemainingCount int
	RemainingBytes int64
}

// EnforceRetention applies the policy to the archive. Removal of a snapshot
// file and its manifest entry is atomic from the caller's point of view:
// the manifest entry is dropped only after the file is gone, and a failed
// file delete aborts the pass with the manifest still naming the file.
func (e *Engine) EnforceRetention(policy RetentionPolicy) (RetentionSummary, error) {
	m, err := LoadManifest(e.dir)
	if err != nil {
		return RetentionSummary{}, err
	}

	summary := RetentionSummary{
		RemainingCount: m.Count(),
		RemainingBytes: m.TotalBytes(),
	}
	if m.Count() <= policy.MaxCount && m.TotalBytes() <= policy.MaxBytes {
		return summary, nil
	}
	summary.Triggered = true

	for _, snap := range m.OldestFirst() {
		if m.Count() <= policy.TargetCount && m.TotalBytes() <= policy.TargetBytes {
			break
		}
		path := filepath.Join(e.dir, snap.Filename)
		if err := e.removeFile(path); err != nil && !os.IsNotExist(err) {
			// Keep the manifest entry so the file is never orphaned.
			if saveErr := m.Save(e.dir); saveErr != nil {
				return summary, fmt.Errorf("removing %s: %v; saving manifest: %w", snap.Filename, err, saveErr)
			}
			summary.RemainingCount = m.Count()
			summary.RemainingBytes = m.TotalBytes()
			return summary, fmt.Errorf("removing snapshot %s: %w", snap.Filename, err)
		}
		m.Remove(snap.Filename)
		summary.Removed = append(summary.Removed, snap.Filename)
		slog.Info("retention removed snapshot", "file", snap.Filename, "size_bytes", snap.SizeBytes)
	}

	if err := m.Save(e.dir); err != nil {
		return summary, err
	}
	summary.RemainingCount = m.Count()
	summary.RemainingBytes = m.TotalBytes()

	slog.Info("retention pass complete",
		"removed", len(summary.Removed),
		"remaining", summary.RemainingCount,
		"remaining_gb", fmt.Sprintf("%.2f", float64(summary.RemainingBytes)/gigabyte))
	return summary, nil
}
