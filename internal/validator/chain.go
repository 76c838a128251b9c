package validator

import "recordpipe/pkg/records"

// Chain runs validators in order and concatenates their findings.
type Chain struct {
	vs []Validator
}

// NewChain returns a Chain over vs, in the given order.
func NewChain(vs ...Validator) *Chain {
	return &Chain{vs: append([]Validator(nil), vs...)}
}

// Validate returns all errors for rec, grouped by validator in chain order.
// A nil result means the record is valid.
func (c *Chain) Validate(rec records.Record) []string {
	var errs []string
	for _, v := range c.vs {
		errs = append(errs, v.Validate(rec)...)
	}
	return errs
}

// Outcome validates rec and pairs it with its errors.
func (c *Chain) Outcome(rec records.Record) records.Outcome {
	return records.Outcome{Record: rec, Errors: c.Validate(rec)}
}

// Names lists the validators in order.
func (c *Chain) Names() []string {
	out := make([]string, len(c.vs))
	for i, v := range c.vs {
		out[i] = v.Name()
	}
	return out
}

// NeedsPriming reports whether any validator wants a priming pass.
func (c *Chain) NeedsPriming() bool {
	for _, v := range c.vs {
		if p, ok := v.(Primer); ok && p.NeedsPriming() {
			return true
		}
	}
	return false
}

// Prime forwards rec to every validator that wants a priming pass.
func (c *Chain) Prime(rec records.Record) {
	for _, v := range c.vs {
		if p, ok := v.(Primer); ok && p.NeedsPriming() {
			p.Prime(rec)
		}
	}
}
