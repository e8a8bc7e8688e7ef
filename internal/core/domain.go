package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	Inflow  FlowType = "inflow"
	Outflow FlowType = "outflow"
)

// DateLayout is the wire and storage format for entry dates.
const DateLayout = "2006-01-02"

type (
	// FlowType classifies a monetary entry as money coming in or going out.
	FlowType string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	Entry struct {
		ID          string
		Date        Date
		Type        FlowType
		Description string
		Amount      Money
		UserID      string
		CreatedAt   time.Time
	}
)

var (
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidFlowType  = errors.New("invalid flow type")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyDescription = errors.New("empty description")
)

// Valid reports whether f is one of the known flow types.
func (f FlowType) Valid() bool {
	switch f {
	case Inflow, Outflow:
		return true
	default:
		return false
	}
}

// String implements fmt.Stringer
func (f FlowType) String() string {
	return string(f)
}

// Label returns the human readable name used in forms and exports.
func (f FlowType) Label() string {
	switch f {
	case Inflow:
		return "Inflow"
	case Outflow:
		return "Outflow"
	default:
		return string(f)
	}
}

// ParseFlowType accepts the canonical lower-case values and their labels.
func ParseFlowType(s string) (FlowType, error) {
	f := FlowType(strings.ToLower(strings.TrimSpace(s)))
	if !f.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidFlowType, s)
	}
	return f, nil
}

// FlowTypes returns the flow types in display order.
func FlowTypes() []FlowType {
	return []FlowType{Inflow, Outflow}
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

// Today returns the current local date.
func Today() Date {
	now := time.Now()
	return NewDate(now.Year(), int(now.Month()), now.Day())
}

func (d Date) Validate() error {
	if d.IsZero() {
		return fmt.Errorf("%w: date cannot be zero", ErrInvalidDate)
	}
	return nil
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Signed returns the amount with outflows negated.
func (e Entry) Signed() int64 {
	if e.Type == Outflow {
		return -e.Amount.Cents
	}
	return e.Amount.Cents
}

func (e Entry) Validate() error {
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if !e.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidFlowType, e.Type)
	}
	if len(strings.TrimSpace(e.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(e.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	return nil
}
