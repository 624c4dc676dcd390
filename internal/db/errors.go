package db

import "errors"

// ErrSnapshotNotFound is returned when no snapshot has been published under a name.
var ErrSnapshotNotFound = errors.New("dataset snapshot not found")
