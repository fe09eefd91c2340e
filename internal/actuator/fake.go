package actuator

import "sync"

// Fake is a test double that records submitted commands and lets the test
// script the results.
type Fake struct {
	mu sync.Mutex

	// Commands contains every command submitted, in order.
	Commands []Command

	// SubmitError, if set, will be returned by Submit.
	SubmitError error

	// AutoSucceed, when true, makes every Submit immediately deliver a
	// successful Result whose Observed matches the requested action.
	AutoSucceed bool

	// Closed tracks if Close was called.
	Closed bool

	results chan Result
}

// NewFake creates a Fake with a buffered results channel.
func NewFake() *Fake {
	return &Fake{results: make(chan Result, 16)}
}

// Submit records the command and, with AutoSucceed set, delivers a result.
func (f *Fake) Submit(cmd Command) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.SubmitError != nil {
		return f.SubmitError
	}
	f.Commands = append(f.Commands, cmd)

	if f.AutoSucceed {
		f.results <- Result{
			Relay:    cmd.Relay,
			Action:   cmd.Action,
			Token:    cmd.Token,
			Success:  true,
			Observed: cmd.Action == "on",
		}
	}
	return nil
}

// Results returns the scripted result stream.
func (f *Fake) Results() <-chan Result {
	return f.results
}

// Deliver pushes a result as if the device had responded.
func (f *Fake) Deliver(res Result) {
	f.results <- res
}

// Submitted returns a copy of the recorded commands.
func (f *Fake) Submitted() []Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Command, len(f.Commands))
	copy(out, f.Commands)
	return out
}

// Reset clears recorded commands.
func (f *Fake) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Commands = nil
	f.SubmitError = nil
	f.Closed = false
}

// Close marks the fake as closed.
func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}
