package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Clients and transports return
// these (optionally wrapped) so the sync core can classify failures.
//
//   - ErrNotFound: the catalog has no such category or asset
//   - ErrUnavailable: the catalog or push endpoint is temporarily unreachable
//   - ErrBadData: a response or event payload could not be decoded
//   - ErrInvalidState: an operation was invoked on a closed session or channel
var (
	ErrNotFound     = errors.New("not found")
	ErrUnavailable  = errors.New("unavailable")
	ErrBadData      = errors.New("bad data")
	ErrInvalidState = errors.New("invalid state")
)
