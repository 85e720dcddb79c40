package repository

import "errors"

// Sentinel results of the guarded state transitions. Lookups of missing rows return
// sql.ErrNoRows unwrapped, matching the rest of the package.
var (
	ErrSubmissionProcessed = errors.New("submission already processed")
	ErrRedemptionProcessed = errors.New("redemption already processed")
	ErrRewardUnavailable   = errors.New("reward unavailable")
	ErrInsufficientPoints  = errors.New("insufficient points")
)
