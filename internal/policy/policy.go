// Package policy decides whether a data operation must be guarded by a
// snapshot, and on which side of the operation the snapshot runs.
//
// The rules live in one explicit table rather than scattered call-site
// conditionals, so the backup behaviour of every operation can be read in
// one place and changed in one place.
package policy

import (
	"errors"
	"fmt"

	"github.com/jonesy/jobscraps/internal/config"
)

// Operation names a data-changing action subject to backup rules.
type Operation string

const (
	OpScrape          Operation = "scrape"
	OpDeleteRows      Operation = "delete_rows"
	OpApplyDuplicates Operation = "apply_duplicates"
	OpClearAll        Operation = "clear_all"
	OpRestore         Operation = "restore"
)

// Decision says what the backup engine must do around an operation.
type Decision int

const (
	// SkipBackup runs the operation with no snapshot.
	SkipBackup Decision = iota
	// BackupAfter snapshots once the operation has added data.
	BackupAfter
	// BackupBefore snapshots before any row is changed; if the snapshot
	// fails the operation is blocked unless explicitly overridden.
	BackupBefore
)

func (d Decision) String() string {
	switch d {
	case SkipBackup:
		return "skip"
	case BackupAfter:
		return "backup-after"
	case BackupBefore:
		return "backup-before"
	default:
		return fmt.Sprintf("decision(%d)", int(d))
	}
}

// ConfirmDeleteToken must accompany destructive operations on the primary
// database.
const ConfirmDeleteToken = "DELETE"

// ErrConfirmationRequired blocks a destructive primary-database operation
// attempted without its token.
var ErrConfirmationRequired = errors.New("confirmation required")

// rules maps (target, operation) to a decision. Working-copy rows are
// disposable clones, so nothing there warrants a snapshot.
var rules = map[config.Target]map[Operation]Decision{
	config.TargetPrimary: {
		OpScrape:          BackupAfter,
		OpDeleteRows:      BackupBefore,
		OpApplyDuplicates: BackupBefore,
		OpClearAll:        BackupBefore,
		OpRestore:         SkipBackup,
	},
	config.TargetWorking: {
		OpScrape:          SkipBackup,
		OpDeleteRows:      SkipBackup,
		OpApplyDuplicates: SkipBackup,
		OpClearAll:        SkipBackup,
		OpRestore:         SkipBackup,
	},
}

// Decide returns the backup decision for an operation on a target. Unknown
// combinations fall back to BackupBefore: when in doubt, snapshot first.
func Decide(target config.Target, op Operation) Decision {
	if byOp, ok := rules[target]; ok {
		if d, ok := byOp[op]; ok {
			return d
		}
	}
	return BackupBefore
}

// destructive lists the operations that remove or overwrite rows.
var destructive = map[Operation]bool{
	OpDeleteRows:      true,
	OpApplyDuplicates: true,
	OpClearAll:        true,
	OpRestore:         true,
}

// Destructive reports whether op removes or overwrites data.
func Destructive(op Operation) bool {
	return destructive[op]
}

// CheckConfirmation enforces the token rule: destructive operations on the
// primary database require the exact confirmation token. The working copy
// is exempt.
func CheckConfirmation(target config.Target, op Operation, confirm string) error {
	if target != config.TargetPrimary || !Destructive(op) {
		return nil
	}
	if confirm != ConfirmDeleteToken {
		return fmt.Errorf("%w: %s on the primary database needs --confirm %s", ErrConfirmationRequired, op, ConfirmDeleteToken)
	}
	return nil
}
