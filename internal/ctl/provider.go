package ctl

import (
	"errors"
	"fmt"
	"strings"
)

const (
	stringQuerySeparator = ";"
	nameValueSeparator   = "="
)

var (
	// ErrExhausted is the distinct sentinel a provider returns once its
	// query collection has been fully consumed. It is not a failure.
	ErrExhausted = errors.New("ctl: no more queries")
	// ErrProviderFormat means a provider entry did not split into exactly
	// one name and one value.
	ErrProviderFormat = errors.New("ctl: malformed query entry")
)

// Pair is one (name, value) configuration query yielded by a provider.
type Pair struct {
	Name  string
	Value string
}

// Provider is a polymorphic source of ordered configuration pairs. First
// must be called before Next; both return ErrExhausted once the collection
// is consumed. A provider is not reusable after exhaustion or an error.
type Provider interface {
	First() (Pair, error)
	Next() (Pair, error)
}

// StringProvider is the simplest, elementary query provider. It tokenizes a
// ";"-separated, "="-delimited buffer, e.g. "stats.enabled=1;heap.0.automatic=0",
// and can be used directly to parse environment variables. Scanning is
// non-destructive: the provider keeps only a cursor into its own copy of
// the input.
type StringProvider struct {
	buf string
	pos int
}

// NewStringProvider creates a provider over the given query buffer.
func NewStringProvider(buf string) *StringProvider {
	return &StringProvider{buf: buf}
}

// First returns the first query in the buffer, restarting the cursor.
func (p *StringProvider) First() (Pair, error) {
	p.pos = 0
	return p.Next()
}

// Next returns the next query in sequence, or ErrExhausted.
func (p *StringProvider) Next() (Pair, error) {
	entry := p.nextEntry()
	if entry == "" {
		return Pair{}, ErrExhausted
	}
	return parseEntry(entry)
}

// nextEntry advances the cursor to the next non-empty ";"-separated token.
// Empty entries (consecutive or trailing separators) are skipped, same as
// the classic tokenizer would.
func (p *StringProvider) nextEntry() string {
	for p.pos < len(p.buf) {
		rest := p.buf[p.pos:]
		entry, _, _ := strings.Cut(rest, stringQuerySeparator)
		p.pos += len(entry) + len(stringQuerySeparator)
		if entry != "" {
			return entry
		}
	}
	return ""
}

// parseEntry splits an entire query entry into name and value. Exactly two
// tokens must result: a missing value, an empty name, or a value containing
// another separator are all format errors.
func parseEntry(entry string) (Pair, error) {
	name, value, found := strings.Cut(entry, nameValueSeparator)
	if !found {
		return Pair{}, fmt.Errorf("%w: %q has no value", ErrProviderFormat, entry)
	}
	if name == "" || value == "" {
		return Pair{}, fmt.Errorf("%w: %q", ErrProviderFormat, entry)
	}
	if strings.Contains(value, nameValueSeparator) {
		return Pair{}, fmt.Errorf("%w: %q has an extraneous value", ErrProviderFormat, entry)
	}
	return Pair{Name: name, Value: value}, nil
}
