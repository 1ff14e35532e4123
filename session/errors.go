package session

import "errors"

var (
	ErrInvalidQoS = errors.New("invalid QoS level")
)
