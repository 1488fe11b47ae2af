package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// Sentinel errors for storage operations. NotFound covers rows that exist
// but belong to another user: ownership is part of every lookup predicate,
// so foreign data is indistinguishable from absent data.
var (
	// ErrMessageNotFound indicates that a message was not found for the caller's user.
	ErrMessageNotFound = errors.New("message not found")

	// ErrFolderNotFound indicates that a folder was not found for the caller's user.
	ErrFolderNotFound = errors.New("folder not found")

	// ErrLabelNotFound indicates that a label was not found for the caller's user.
	ErrLabelNotFound = errors.New("label not found")

	// ErrThreadNotFound indicates that a thread has no messages for the caller's user.
	ErrThreadNotFound = errors.New("thread not found")

	// ErrDuplicateLabel indicates that a label with the given name already exists.
	ErrDuplicateLabel = errors.New("label already exists")

	// ErrDuplicateFolder indicates that a folder with the given name already exists.
	ErrDuplicateFolder = errors.New("folder already exists")

	// ErrDuplicateMessage indicates that a message with the same Message-ID
	// header was already stored for this user.
	ErrDuplicateMessage = errors.New("message already exists")

	// ErrSystemFolder indicates an attempt to delete one of the fixed system folders.
	ErrSystemFolder = errors.New("system folders cannot be deleted")

	// ErrUnavailable indicates that storage could not be reached or the
	// caller's deadline expired before the operation completed.
	ErrUnavailable = errors.New("storage unavailable")
)

const pgUniqueViolation = "23505"

// isUniqueViolation reports whether err is a Postgres unique-constraint error.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// mapStorageErr tags timeouts and connection failures as ErrUnavailable so
// callers can tell "could not load" apart from "no results". Other errors
// pass through unchanged.
func mapStorageErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || pgconn.Timeout(err) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return err
}
