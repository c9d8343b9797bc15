package brainmappy

import "github.com/schlegelp/brainmappy/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrTransport          = domain.ErrTransport
	ErrMalformedStream    = domain.ErrMalformedStream
	ErrNoFragments        = domain.ErrNoFragments
	ErrUnexpectedResponse = domain.ErrUnexpectedResponse
	ErrVolumeRequired     = domain.ErrVolumeRequired
)
