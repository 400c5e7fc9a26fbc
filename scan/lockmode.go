package scan

import "github.com/coreward/relkv/kv"

// UpdaterKind names which Updater variant a LockMode selects.
type UpdaterKind int

const (
	UpdaterBasic UpdaterKind = iota
	UpdaterUpgradable
	UpdaterNonRepeatable
)

// Policy is the row selected from the lock-mode policy table: for a
// given kv.LockMode, which scanner wrapping, updater variant, and whether
// a predicate lock should be taken at all.
type Policy struct {
	AutoCommitPerRow bool
	Updater          UpdaterKind
	TakePredicate    bool
}

// PolicyFor returns the fixed policy row for mode, an
// isolation-to-locking-strategy table:
//
//	NONE              -> per-row auto-commit, UPGRADABLE updater, no predicate lock
//	READ_UNCOMMITTED  -> basic updater, non-repeatable reads, no predicate lock
//	READ_COMMITTED    -> basic updater, non-repeatable reads, predicate lock held
//	REPEATABLE_READ   -> upgradable updater, predicate lock held (serializable)
//	UPGRADABLE_READ   -> basic updater, predicate lock held
//	UNSAFE            -> basic updater, no predicate lock
func PolicyFor(mode kv.LockMode) Policy {
	switch mode {
	case kv.LockModeNone:
		return Policy{AutoCommitPerRow: true, Updater: UpdaterUpgradable, TakePredicate: false}
	case kv.LockModeReadUncommitted:
		return Policy{Updater: UpdaterNonRepeatable, TakePredicate: false}
	case kv.LockModeReadCommitted:
		return Policy{Updater: UpdaterNonRepeatable, TakePredicate: true}
	case kv.LockModeRepeatableRead:
		return Policy{Updater: UpdaterUpgradable, TakePredicate: true}
	case kv.LockModeUpgradableRead:
		return Policy{Updater: UpdaterBasic, TakePredicate: true}
	case kv.LockModeUnsafe:
		return Policy{Updater: UpdaterBasic, TakePredicate: false}
	default:
		return Policy{Updater: UpdaterBasic, TakePredicate: false}
	}
}
