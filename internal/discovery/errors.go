package discovery

import "errors"

var (
	// ErrInsufficientCandidates means backoff expansion ran out before the
	// merged pool cleared the configured minimum.
	ErrInsufficientCandidates = errors.New("discovery: insufficient candidates after backoff")

	// ErrDiscoveryTimeout means the request deadline expired mid fan-out.
	ErrDiscoveryTimeout = errors.New("discovery: timed out")

	// ErrSourceUnavailable means every registered source failed for the
	// whole request.
	ErrSourceUnavailable = errors.New("discovery: no source available")
)
