package domain

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrHistoryDisabled = errors.New("history disabled")
)
