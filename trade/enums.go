package trade

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Status is the lifecycle state of a Position.
type Status string

const (
	StatusOpen   Status = "OPEN"
	StatusClosed Status = "CLOSED"
)

// ParseStatus accepts OPEN or CLOSED in any case.
func ParseStatus(s string) (Status, error) {
	switch Status(strings.ToUpper(strings.TrimSpace(s))) {
	case StatusOpen:
		return StatusOpen, nil
	case StatusClosed:
		return StatusClosed, nil
	}
	return "", fmt.Errorf("%w: unknown status %q", ErrValidation, s)
}

func (s *Status) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("%w: status: %v", ErrValidation, err)
	}
	v, err := ParseStatus(raw)
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Side is the direction of a Position.
type Side string

const (
	Long  Side = "LONG"
	Short Side = "SHORT"
)

func ParseSide(s string) (Side, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "LONG", "BUY":
		return Long, nil
	case "SHORT", "SELL":
		return Short, nil
	}
	return "", fmt.Errorf("%w: unknown side %q", ErrValidation, s)
}

func (s *Side) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("%w: side: %v", ErrValidation, err)
	}
	v, err := ParseSide(raw)
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Sign returns +1 for Long and -1 for Short.
func (s Side) Sign() float64 {
	if s == Short {
		return -1
	}
	return 1
}

// StopLogic is the methodology used to place a protective stop.
type StopLogic string

const (
	StopATR   StopLogic = "ATR"
	StopSwing StopLogic = "SWING"
)

// ParseStopLogic accepts ATR or SWING in any case. The empty string is
// returned unchanged so strategy documents can leave the field unset.
func ParseStopLogic(s string) (StopLogic, error) {
	switch StopLogic(strings.ToUpper(strings.TrimSpace(s))) {
	case "":
		return "", nil
	case StopATR:
		return StopATR, nil
	case StopSwing:
		return StopSwing, nil
	}
	return "", fmt.Errorf("%w: unknown stop logic %q", ErrValidation, s)
}

func (l *StopLogic) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("%w: stop_logic: %v", ErrValidation, err)
	}
	v, err := ParseStopLogic(raw)
	if err != nil {
		return err
	}
	*l = v
	return nil
}
