package storage

import "errors"

var (
	ErrNotFound         = errors.New("record not found")
	ErrBalanceConflict  = errors.New("balance would go negative")
	ErrImportNotPending = errors.New("import is not pending review")
)
