package ctl

import (
	"errors"
	"fmt"
)

// LoadConfig drives a provider to exhaustion, submitting every yielded pair
// as a write-only query with SourceConfigInput. It stops at the first pair
// that fails to parse or apply and surfaces that failure; pairs applied
// before the failure are not rolled back.
func LoadConfig(target any, tree *Tree, p Provider) error {
	pair, err := p.First()
	for err == nil {
		if qerr := tree.Query(target, SourceConfigInput, pair.Name, nil, pair.Value); qerr != nil {
			return fmt.Errorf("apply %q: %w", pair.Name, qerr)
		}
		pair, err = p.Next()
	}
	if errors.Is(err, ErrExhausted) {
		return nil
	}
	return err
}
