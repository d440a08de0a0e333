// Package scenario describes and runs driver sequences against a watch.State:
// a set of observers waiting concurrently while a mutator applies versions.
package scenario

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

var ErrInvalid = errors.New("invalid scenario")

type Observer struct {
	Name  string `yaml:"name"`
	Start uint64 `yaml:"start"`

	// After is how many steps are applied before the observer starts waiting.
	After int `yaml:"after"`
}

type Scenario struct {
	// Initial is the version the State starts at.
	Initial uint64 `yaml:"initial"`

	// Interval is the pause before each step.
	Interval time.Duration `yaml:"interval"`

	// Settle holds each step until every running observer is waiting,
	// so each observer sees every step instead of a coalesced subset.
	Settle bool `yaml:"settle"`

	Observers []Observer `yaml:"observers"`

	// Steps are the versions set, in order. The last one must be 0.
	Steps []uint64 `yaml:"steps"`
}

// Default is one subscriber starting at the initial version 1, followed by
// an update to 2 and then closure.
func Default() Scenario {
	return Scenario{
		Initial:   1,
		Settle:    true,
		Observers: []Observer{{Name: "subscriber", Start: 1}},
		Steps:     []uint64{2, 0},
	}
}

func Load(path string) (Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, fmt.Errorf("read scenario: %w", err)
	}

	s, err := Parse(data)
	if err != nil {
		return Scenario{}, fmt.Errorf("%s: %w", path, err)
	}

	return s, nil
}

// Parse decodes and validates a YAML scenario. Omitted initial and settle
// default to 1 and true.
func Parse(data []byte) (Scenario, error) {
	s := Scenario{Initial: 1, Settle: true}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(&s); err != nil {
		if errors.Is(err, io.EOF) {
			return Scenario{}, fmt.Errorf("%w: empty document", ErrInvalid)
		}
		return Scenario{}, fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	if err := s.Validate(); err != nil {
		return Scenario{}, err
	}

	return s, nil
}

func (s Scenario) Validate() error {
	if s.Initial == 0 {
		return fmt.Errorf("%w: initial version must not be 0", ErrInvalid)
	}
	if s.Interval < 0 {
		return fmt.Errorf("%w: negative interval %s", ErrInvalid, s.Interval)
	}
	if len(s.Observers) == 0 {
		return fmt.Errorf("%w: no observers", ErrInvalid)
	}

	names := make(map[string]struct{}, len(s.Observers))
	for i, o := range s.Observers {
		if o.Name == "" {
			return fmt.Errorf("%w: observer %d has no name", ErrInvalid, i)
		}
		if _, ok := names[o.Name]; ok {
			return fmt.Errorf("%w: duplicate observer %q", ErrInvalid, o.Name)
		}
		names[o.Name] = struct{}{}
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("%w: no steps", ErrInvalid)
	}
	for _, o := range s.Observers {
		if o.After < 0 || o.After > len(s.Steps) {
			return fmt.Errorf("%w: observer %q starts after step %d of %d", ErrInvalid, o.Name, o.After, len(s.Steps))
		}
	}
	// observers only return once the state is closed
	if s.Steps[len(s.Steps)-1] != 0 {
		return fmt.Errorf("%w: last step must be 0", ErrInvalid)
	}

	return nil
}
