package mail

import "errors"

var (
	// ErrInvalidArgument indicates a caller mistake: page out of bounds,
	// a folder name outside the known view set, or a malformed request.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrDelivery indicates the outbound transport rejected a message.
	// The local copy in Sent is kept regardless.
	ErrDelivery = errors.New("delivery failed")
)
