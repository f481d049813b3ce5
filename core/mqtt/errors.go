package mqtt

import "errors"

// ErrPublish is returned when a frame could not be delivered to the broker
// after all retries.
var ErrPublish = errors.New("publish failed")

// ErrNotConnected is returned when publishing before the client connected.
var ErrNotConnected = errors.New("mqtt client not connected")
