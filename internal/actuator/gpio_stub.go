//go:build !linux

package actuator

import "errors"

// Default BCM pins for a two-channel relay board.
const (
	DefaultPinHeating = 17
	DefaultPinCooling = 27
)

// GPIOChannel is not available on non-Linux platforms.
type GPIOChannel struct{}

// NewGPIOChannel returns an error on non-Linux platforms.
func NewGPIOChannel(pinHeating, pinCooling int) (*GPIOChannel, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}

// Submit is not implemented on non-Linux platforms.
func (g *GPIOChannel) Submit(cmd Command) error {
	return errors.New("gpio: not supported")
}

// Results is not implemented on non-Linux platforms.
func (g *GPIOChannel) Results() <-chan Result {
	return nil
}

// Close is not implemented on non-Linux platforms.
func (g *GPIOChannel) Close() error {
	return nil
}
