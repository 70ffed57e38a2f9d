package stripe

import "errors"

var (
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrUnsupportedEvent = errors.New("unsupported webhook event")
	ErrInvalidEvent     = errors.New("malformed webhook event")
)
