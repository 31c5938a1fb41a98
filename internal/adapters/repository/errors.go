package repository

import "github.com/okian/liveboard/internal/domain/model"

// Sentinel kinds for store errors. They alias the domain kinds so callers can
// use errors.Is without importing this package.
var (
	ErrNotFound       = model.ErrNotFound
	ErrEventNotFound  = model.ErrEventNotFound
	ErrEventClosed    = model.ErrEventClosed
	ErrRewardNotFound = model.ErrRewardNotFound
)
