package validator

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/zeebo/xxh3"

	"recordpipe/internal/config"
	"recordpipe/internal/failure"
	"recordpipe/pkg/records"
)

// KeySet counts occurrences of constraint keys. Keys are bucketed by the
// 128-bit xxh3 digest of the encoded value tuple; each bucket keeps the
// encoded tuples it has seen, so two keys that share a digest are still
// counted apart.
type KeySet struct {
	buckets map[xxh3.Uint128][]keyCount
	hash    func([]byte) xxh3.Uint128
	buf     []byte
	n       int
}

type keyCount struct {
	key   string
	count int
}

// NewKeySet returns an empty KeySet.
func NewKeySet() *KeySet {
	return &KeySet{buckets: make(map[xxh3.Uint128][]keyCount), hash: xxh3.Hash128}
}

// encode writes values unambiguously into k.buf (length-prefixed, absent
// distinct from empty).
func (k *KeySet) encode(values []string, present []bool) []byte {
	k.buf = k.buf[:0]
	for i, v := range values {
		if !present[i] {
			k.buf = binary.AppendUvarint(k.buf, 0)
			continue
		}
		k.buf = binary.AppendUvarint(k.buf, uint64(len(v))+1)
		k.buf = append(k.buf, v...)
	}
	return k.buf
}

// find returns the bucket for the key and the key's index in it, or -1.
func (k *KeySet) find(enc []byte) (xxh3.Uint128, int) {
	d := k.hash(enc)
	for i, kc := range k.buckets[d] {
		if kc.key == string(enc) {
			return d, i
		}
	}
	return d, -1
}

// Add records one occurrence of the key and returns how many times it had
// been seen before.
func (k *KeySet) Add(values []string, present []bool) int {
	enc := k.encode(values, present)
	d, i := k.find(enc)
	if i < 0 {
		k.buckets[d] = append(k.buckets[d], keyCount{key: string(enc), count: 1})
		k.n++
		return 0
	}
	b := k.buckets[d]
	b[i].count++
	return b[i].count - 1
}

// Count returns how many occurrences of the key have been recorded.
func (k *KeySet) Count(values []string, present []bool) int {
	d, i := k.find(k.encode(values, present))
	if i < 0 {
		return 0
	}
	return k.buckets[d][i].count
}

// Len returns the number of distinct keys.
func (k *KeySet) Len() int { return k.n }

type constraint struct {
	cols  []string
	label string // "[a, b]"
	seen  *KeySet
}

// Duplicate flags records whose values repeat for a uniqueness constraint.
//
// Under config.PolicyFlagSubsequent the first occurrence of a key passes and
// every later one is flagged. Under config.PolicyFlagAll every record whose
// key occurs more than once in the file is flagged, which requires the
// priming pass (see Primer).
type Duplicate struct {
	cs      []constraint
	flagAll bool
}

// NewDuplicate returns a Duplicate validator owning one fresh KeySet per
// constraint. An empty policy means flag-subsequent.
func NewDuplicate(constraints [][]string, policy string) (*Duplicate, error) {
	d := &Duplicate{}
	switch policy {
	case "", config.PolicyFlagSubsequent:
	case config.PolicyFlagAll:
		d.flagAll = true
	default:
		return nil, failure.Configuration("unknown duplicate_policy %q", policy)
	}
	for _, cols := range constraints {
		if len(cols) == 0 {
			continue
		}
		d.cs = append(d.cs, constraint{
			cols:  append([]string(nil), cols...),
			label: "[" + strings.Join(cols, ", ") + "]",
			seen:  NewKeySet(),
		})
	}
	return d, nil
}

func (d *Duplicate) Name() string { return "duplicate" }

// NeedsPriming is true for flag-all with at least one constraint.
func (d *Duplicate) NeedsPriming() bool { return d.flagAll && len(d.cs) > 0 }

// Prime counts rec's keys without reporting anything.
func (d *Duplicate) Prime(rec records.Record) {
	for i := range d.cs {
		c := &d.cs[i]
		values, present := project(rec, c.cols)
		c.seen.Add(values, present)
	}
}

func (d *Duplicate) Validate(rec records.Record) []string {
	var errs []string
	for i := range d.cs {
		c := &d.cs[i]
		values, present := project(rec, c.cols)
		var dup bool
		if d.flagAll {
			dup = c.seen.Count(values, present) > 1
		} else {
			dup = c.seen.Add(values, present) > 0
		}
		if dup {
			errs = append(errs, fmt.Sprintf("Duplicate record found for unique constraint %s: (%s)",
				c.label, strings.Join(values, ", ")))
		}
	}
	return errs
}

func project(rec records.Record, cols []string) ([]string, []bool) {
	values := make([]string, len(cols))
	present := make([]bool, len(cols))
	for i, c := range cols {
		values[i], present[i] = rec.Get(c)
	}
	return values, present
}
