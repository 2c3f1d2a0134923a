package model

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Status is the externally visible lifecycle state.
type Status string

const (
	StatusAvailable    Status = "available"
	StatusDiscontinued Status = "discontinued"
)

// ErrInvalidLifecycle is returned when a stored status and discontinued_date disagree.
var ErrInvalidLifecycle = errors.New("invalid lifecycle")

// Lifecycle is either Available or Discontinued on a given day.
// The zero value is Available.
type Lifecycle struct {
	discontinued bool
	since        string
}

// Available returns the available lifecycle.
func Available() Lifecycle { return Lifecycle{} }

// DiscontinuedOn returns a discontinued lifecycle dated day.
func DiscontinuedOn(day string) Lifecycle { return Lifecycle{discontinued: true, since: day} }

// Status reports the lifecycle state.
func (l Lifecycle) Status() Status {
	if l.discontinued {
		return StatusDiscontinued
	}
	return StatusAvailable
}

// IsDiscontinued reports whether the product is discontinued.
func (l Lifecycle) IsDiscontinued() bool { return l.discontinued }

// DiscontinuedDate returns the day the product was discontinued.
func (l Lifecycle) DiscontinuedDate() (string, bool) { return l.since, l.discontinued }

// Discontinue marks an available product discontinued on day.
// It returns false when the product was already discontinued.
func (p *Product) Discontinue(day string) bool {
	if p.Lifecycle.discontinued {
		return false
	}
	p.Lifecycle = DiscontinuedOn(day)
	return true
}

// Reactivate makes a discontinued product available again.
// It returns false when the product was already available.
func (p *Product) Reactivate() bool {
	if !p.Lifecycle.discontinued {
		return false
	}
	p.Lifecycle = Available()
	return true
}

type productAlias Product

type productJSON struct {
	productAlias
	Status           Status  `json:"status"`
	DiscontinuedDate *string `json:"discontinued_date"`
}

// MarshalJSON writes the lifecycle as the status/discontinued_date pair.
func (p Product) MarshalJSON() ([]byte, error) {
	out := productJSON{productAlias: productAlias(p), Status: p.Lifecycle.Status()}
	if day, ok := p.Lifecycle.DiscontinuedDate(); ok {
		out.DiscontinuedDate = &day
	}
	return json.Marshal(out)
}

// UnmarshalJSON rejects records whose status and discontinued_date disagree.
func (p *Product) UnmarshalJSON(b []byte) error {
	var in productJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	*p = Product(in.productAlias)
	switch in.Status {
	case StatusAvailable, "":
		if in.DiscontinuedDate != nil && *in.DiscontinuedDate != "" {
			return fmt.Errorf("%w: %s:%s is available but has discontinued_date %q",
				ErrInvalidLifecycle, p.Manufacturer, p.Code, *in.DiscontinuedDate)
		}
		p.Lifecycle = Available()
	case StatusDiscontinued:
		if in.DiscontinuedDate == nil || *in.DiscontinuedDate == "" {
			return fmt.Errorf("%w: %s:%s is discontinued without a date",
				ErrInvalidLifecycle, p.Manufacturer, p.Code)
		}
		p.Lifecycle = DiscontinuedOn(*in.DiscontinuedDate)
	default:
		return fmt.Errorf("%w: unknown status %q", ErrInvalidLifecycle, in.Status)
	}
	return nil
}
