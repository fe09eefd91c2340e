//go:build linux

package actuator

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"

	"github.com/sweeney/ferment-control/internal/control"
)

// Default BCM pins for a two-channel relay board.
const (
	DefaultPinHeating = 17
	DefaultPinCooling = 27
)

// GPIOChannel drives a local relay board through the Linux GPIO character
// device. Writes are effectively instant, but results still flow through
// the asynchronous results channel so the dispatcher sees one transport
// contract regardless of backend.
type GPIOChannel struct {
	chip    *gpiocdev.Chip
	lines   map[control.RelayID]*gpiocdev.Line
	results chan Result
}

// NewGPIOChannel requests the given BCM pins as outputs, both initially low
// (relays off).
func NewGPIOChannel(pinHeating, pinCooling int) (*GPIOChannel, error) {
	chip, err := gpiocdev.NewChip("gpiochip0")
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	heat, err := chip.RequestLine(pinHeating, gpiocdev.AsOutput(0))
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request heating pin %d: %w", pinHeating, err)
	}

	cool, err := chip.RequestLine(pinCooling, gpiocdev.AsOutput(0))
	if err != nil {
		heat.Close()
		chip.Close()
		return nil, fmt.Errorf("request cooling pin %d: %w", pinCooling, err)
	}

	return &GPIOChannel{
		chip: chip,
		lines: map[control.RelayID]*gpiocdev.Line{
			control.RelayHeating: heat,
			control.RelayCooling: cool,
		},
		results: make(chan Result, 4),
	}, nil
}

// Submit sets the relay line and queues the synthesized result.
func (g *GPIOChannel) Submit(cmd Command) error {
	line, ok := g.lines[cmd.Relay]
	if !ok {
		return fmt.Errorf("no line for relay %q", cmd.Relay)
	}

	value := 0
	if cmd.Action == control.ActionOn {
		value = 1
	}

	res := Result{Relay: cmd.Relay, Action: cmd.Action, Token: cmd.Token}
	if err := line.SetValue(value); err != nil {
		res.Err = fmt.Sprintf("set line: %v", err)
	} else {
		res.Success = true
		res.Observed = value == 1
	}

	select {
	case g.results <- res:
	default:
		return fmt.Errorf("results channel full")
	}
	return nil
}

// Results returns the synthesized result stream.
func (g *GPIOChannel) Results() <-chan Result {
	return g.results
}

// Close forces both relays off before releasing the lines, so a daemon
// restart never leaves a heater running unattended.
func (g *GPIOChannel) Close() error {
	var errs []error
	for relay, line := range g.lines {
		if err := line.SetValue(0); err != nil {
			errs = append(errs, fmt.Errorf("clear %s: %w", relay, err))
		}
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", relay, err))
		}
	}
	if g.chip != nil {
		if err := g.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
