package ctl

import (
	"fmt"
	"strconv"
	"strings"
)

const querySegmentSeparator = "."

// Query resolves a dotted path against the tree and dispatches the resolved
// leaf's callbacks. Exactly one read, one write, or a read followed by a
// write is performed per call, depending on which arguments are non-nil.
//
// The read runs first; the write runs only if the read succeeded or was not
// requested. The first failure wins. The index list collected during
// resolution is handed to both callbacks and never outlives the call.
func (t *Tree) Query(target any, src Source, path string, readArg, writeArg any) error {
	if readArg == nil && writeArg == nil {
		return fmt.Errorf("%w: query %q supplies neither a read nor a write argument",
			ErrInvalidArguments, path)
	}

	leaf, indexes, err := resolve(t.roots, path)
	if err != nil {
		return err
	}

	// Discard calls that are mostly correct but ask for an operation the
	// leaf does not provide.
	if (readArg != nil && leaf.Read == nil) || (writeArg != nil && leaf.Write == nil) {
		return fmt.Errorf("%w: leaf %q cannot service the requested operation",
			ErrInvalidArguments, path)
	}

	if readArg != nil {
		if err := leaf.Read(target, src, readArg, indexes); err != nil {
			return err
		}
	}
	if writeArg != nil {
		if err := leaf.Write(target, src, writeArg, indexes); err != nil {
			return err
		}
	}
	return nil
}

// resolve walks the path segment by segment, collecting index entries as it
// descends. It returns the terminal leaf and the index list innermost-first.
//
// Each segment is first tried as an integer literal (decimal, hex, octal or
// binary, optional sign); a segment that parses in full matches the first
// Indexed child at the current level, positionally. Anything else matches
// the first child with exactly equal name. Indexed and named children are
// mutually exclusive per level by construction of the namespace, so the
// tie-break is scan order.
func resolve(nodes []*Node, path string) (*Node, []Index, error) {
	var (
		indexes []Index
		match   *Node
	)

	rest := path
	for {
		seg, tail, more := strings.Cut(rest, querySegmentSeparator)

		// ParseInt with base 0 also accepts Go digit separators ("1_0");
		// those are not part of the path grammar, so such segments stay
		// plain names.
		value, perr := strconv.ParseInt(seg, 0, 64)
		isIndex := perr == nil && !strings.Contains(seg, "_")

		match = nil
		for _, n := range nodes {
			if isIndex && n.Kind == KindIndexed {
				match = n
				break
			}
			if n.Name == seg {
				match = n
				break
			}
		}
		if match == nil {
			// Includes trailing segments after a leaf: a leaf has no
			// children, so the scan of an empty child list lands here.
			return nil, nil, fmt.Errorf("%w: %q has no entry %q", ErrInvalidPath, path, seg)
		}

		if isIndex && match.Kind == KindIndexed {
			indexes = append([]Index{{Value: value, Name: match.Name}}, indexes...)
		}

		if !more {
			break
		}
		nodes = match.Children
		rest = tail
	}

	if match.Kind != KindLeaf {
		return nil, nil, fmt.Errorf("%w: %q stops at %q", ErrIncompletePath, path, match.Name)
	}
	return match, indexes, nil
}
