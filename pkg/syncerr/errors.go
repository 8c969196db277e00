// Package syncerr defines the error taxonomy shared by the sync engine.
//
// Every constructor wraps its cause, attaches an operator hint and marks the
// result with one of the sentinel errors below, so callers classify failures
// with errors.Is regardless of how many layers wrapped them on the way up.
package syncerr

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

var (
	// ErrConnection covers authentication and network failures. Fatal to the
	// whole invocation.
	ErrConnection = errors.New("connection error")
	// ErrRemoteFetch is a failed read of one category from one environment.
	ErrRemoteFetch = errors.New("remote fetch error")
	// ErrRemoteWrite is a failed write of one category to one environment.
	ErrRemoteWrite = errors.New("remote write error")
	// ErrMalformedSnapshot is a duplicate identity key within one side of a diff.
	ErrMalformedSnapshot = errors.New("malformed snapshot")
	// ErrBackupIncomplete means a checkpoint could not be captured in full.
	ErrBackupIncomplete = errors.New("backup incomplete")
	// ErrUnknownCategory is an entity category name that is not recognised.
	ErrUnknownCategory = errors.New("unknown category")
)

func wrap(cause error, msg string) error {
	if cause == nil {
		return errors.NewWithDepth(2, msg)
	}
	return errors.WrapWithDepth(2, cause, msg)
}

// Connection marks err as a connection failure.
func Connection(cause error, format string, args ...any) error {
	err := wrap(cause, fmt.Sprintf(format, args...))
	err = errors.WithHint(err, "check AA_ORG_ID, AA_CLIENT_ID, AA_CLIENT_SECRET and AA_SCOPES")
	return errors.Mark(err, ErrConnection)
}

// RemoteFetch marks err as a failed read of category from rsid.
func RemoteFetch(cause error, rsid, category string) error {
	err := wrap(cause, fmt.Sprintf("fetch %s from %s", category, rsid))
	return errors.Mark(err, ErrRemoteFetch)
}

// RemoteWrite marks err as a failed write of category to rsid.
func RemoteWrite(cause error, rsid, category string) error {
	err := wrap(cause, fmt.Sprintf("write %s to %s", category, rsid))
	err = errors.WithHint(err, "the target was checkpointed before the write; use 'suitesync restore' to roll back")
	return errors.Mark(err, ErrRemoteWrite)
}

// MalformedSnapshot reports a key that appears twice on one side of a diff.
func MalformedSnapshot(category, side, key string) error {
	err := errors.Newf("%s snapshot has duplicate key %q in category %s", side, key, category)
	return errors.Mark(err, ErrMalformedSnapshot)
}

// BackupIncomplete marks err as a failed checkpoint of rsid.
func BackupIncomplete(cause error, rsid string) error {
	err := wrap(cause, fmt.Sprintf("backup of %s incomplete", rsid))
	err = errors.WithHint(err, "no write is made to a target without a complete backup")
	return errors.Mark(err, ErrBackupIncomplete)
}

// UnknownCategory reports an unrecognised category name.
func UnknownCategory(name string) error {
	err := errors.Newf("unknown category %q", name)
	err = errors.WithHint(err, "run 'suitesync categories' to list valid names")
	return errors.Mark(err, ErrUnknownCategory)
}

// Kind classifies err into a short label used in reports.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrConnection):
		return "connection"
	case errors.Is(err, ErrMalformedSnapshot):
		return "malformed_snapshot"
	case errors.Is(err, ErrBackupIncomplete):
		return "backup_incomplete"
	case errors.Is(err, ErrRemoteWrite):
		return "remote_write"
	case errors.Is(err, ErrRemoteFetch):
		return "remote_fetch"
	case errors.Is(err, ErrUnknownCategory):
		return "unknown_category"
	default:
		return "internal"
	}
}

// Hints returns the operator hints attached anywhere in err's chain.
func Hints(err error) string {
	return errors.FlattenHints(err)
}
