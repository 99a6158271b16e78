package failuredomain

import (
	"encoding/json"

	"github.com/pkg/errors"
)

type State int

const (
	StateNotProvided State = iota
	StateInProgress
	StateFinished
)

func (s State) String() string {
	switch s {
	case StateNotProvided:
		return "not_provided"
	case StateInProgress:
		return "in_progress"
	case StateFinished:
		return "finished"
	}
	return "unknown"
}

func parseState(s string) (State, error) {
	switch s {
	case "", "not_provided":
		return StateNotProvided, nil
	case "in_progress":
		return StateInProgress, nil
	case "finished":
		return StateFinished, nil
	}
	return StateNotProvided, errors.Errorf("unknown failure domain state %q", s)
}

// FailureDomains tracks how far an instance has got in satisfying its
// failure domain constraint while being spread across the host tree.
// Finished and NotProvided are terminal.
type FailureDomains struct {
	state  State
	queue  []string
	domain string
}

// New returns NotProvided for an empty label list and InProgress otherwise.
func New(labels []string) FailureDomains {
	if len(labels) == 0 {
		return FailureDomains{state: StateNotProvided}
	}

	queue := make([]string, len(labels))
	copy(queue, labels)
	return FailureDomains{state: StateInProgress, queue: queue}
}

func Finished(domain string) FailureDomains {
	return FailureDomains{state: StateFinished, domain: domain}
}

func (f FailureDomains) State() State {
	return f.state
}

func (f FailureDomains) InProgress() bool {
	return f.state == StateInProgress
}

func (f FailureDomains) IsFinished() bool {
	return f.state == StateFinished
}

// Queue returns the labels still waiting to be resolved.
func (f *FailureDomains) Queue() ([]string, error) {
	if f.state != StateInProgress {
		return nil, errors.Wrapf(ErrSpreading,
			"failure domain queue accessed in state %s", f.state)
	}
	return f.queue, nil
}

// Contains reports whether label is still pending.
func (f FailureDomains) Contains(label string) bool {
	if f.state != StateInProgress {
		return false
	}
	for _, l := range f.queue {
		if l == label {
			return true
		}
	}
	return false
}

// Consume removes the first occurrence of label from the pending queue.
func (f *FailureDomains) Consume(label string) (bool, error) {
	queue, err := f.Queue()
	if err != nil {
		return false, err
	}

	for idx, l := range queue {
		if l == label {
			f.queue = append(queue[:idx:idx], queue[idx+1:]...)
			return true, nil
		}
	}
	return false, nil
}

// Finish records the host which satisfied the constraint.
func (f *FailureDomains) Finish(domain string) error {
	if f.state != StateInProgress {
		return errors.Wrapf(ErrSpreading,
			"cannot finish failure domain in state %s", f.state)
	}
	f.state = StateFinished
	f.queue = nil
	f.domain = domain
	return nil
}

// Domain returns the resolved domain for a Finished state.
func (f FailureDomains) Domain() (string, bool) {
	if f.state != StateFinished {
		return "", false
	}
	return f.domain, true
}

// Labels returns the labels this state constrains to: the pending queue, the
// resolved domain, or nothing.
func (f FailureDomains) Labels() []string {
	switch f.state {
	case StateInProgress:
		out := make([]string, len(f.queue))
		copy(out, f.queue)
		return out
	case StateFinished:
		return []string{f.domain}
	}
	return nil
}

// Reseed turns a Finished state back into a fresh constraint on the same
// domain so that the instance can be placed again under that host.
func (f FailureDomains) Reseed() FailureDomains {
	return New(f.Labels())
}

type jsonFailureDomains struct {
	State  string   `json:"state"`
	Queue  []string `json:"queue,omitempty"`
	Domain string   `json:"domain,omitempty"`
}

func (f FailureDomains) MarshalJSON() ([]byte, error) {
	return json.Marshal(jsonFailureDomains{
		State:  f.state.String(),
		Queue:  f.queue,
		Domain: f.domain,
	})
}

func (f *FailureDomains) UnmarshalJSON(data []byte) error {
	var parsed jsonFailureDomains
	if err := json.Unmarshal(data, &parsed); err != nil {
		return errors.Wrap(err, "failed to parse failure domains")
	}

	state, err := parseState(parsed.State)
	if err != nil {
		return err
	}

	switch state {
	case StateNotProvided:
		*f = FailureDomains{state: StateNotProvided}
	case StateInProgress:
		if len(parsed.Queue) == 0 {
			return errors.New("in-progress failure domains need a non-empty queue")
		}
		*f = New(parsed.Queue)
	case StateFinished:
		if parsed.Domain == "" {
			return errors.New("finished failure domains need a domain")
		}
		*f = Finished(parsed.Domain)
	}
	return nil
}
