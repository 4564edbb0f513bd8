// Package duplicate contains the pure business logic for duplicate detection
// and consolidation. Nothing here performs I/O.
package duplicate

import "bytes"

// Digest is the result of hashing one item. Readable is false when the
// content could not be read; Sum is then meaningless.
type Digest struct {
	Sum      []byte
	Readable bool
}

// Classification is the verdict on a size/mime-matching pair.
type Classification struct {
	Exact bool
}

// Possible reports whether the pair is only a candidate (same size and mime
// type, content unverified or different).
func (c Classification) Possible() bool {
	return !c.Exact
}

// Classify compares two digests. A pair is exact only when both items were
// readable and their digests are equal.
func Classify(a, b Digest) Classification {
	if !a.Readable || !b.Readable {
		return Classification{Exact: false}
	}
	if len(a.Sum) == 0 || len(b.Sum) == 0 {
		return Classification{Exact: false}
	}
	return Classification{Exact: bytes.Equal(a.Sum, b.Sum)}
}
