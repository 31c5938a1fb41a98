package model

import "errors"

// Sentinel kinds shared by the store and the domain packages.
var (
	ErrNotFound       = errors.New("not found")
	ErrEventNotFound  = errors.New("event not found")
	ErrEventClosed    = errors.New("event closed")
	ErrRewardNotFound = errors.New("reward not found")
)
