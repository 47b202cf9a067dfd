// Package value implements the tagged scalar type V described in spec.md
// §2.1 and §4.1: NULL, sized signed/unsigned integers, fixed-point decimal,
// refcounted/inlined text, and timestamp, with a total order, a
// hash-compatible-with-equality contract, and numeric-widening arithmetic.
//
// This is grounded on noria/noria/src/data.rs (original_source): the
// variant set, the "ignore the tag when both sides are numeric" equality
// rule, and the Real(integer, fractional) fixed-point representation all
// carry over; the total order is the one spec.md §4.1 specifies rather
// than the (differently ordered) one in data.rs, since the spec's ordering
// is authoritative here.
package value

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Kind tags which variant a Value holds. Equality and hashing between
// numeric kinds ignore Kind (spec.md §4.1); Kind still determines display
// and the family used for ordering across incomparable types.
type Kind uint8

const (
	KindNull Kind = iota
	KindInt32
	KindInt64
	KindUint32
	KindUint64
	KindFixedPoint
	KindText
	KindTimestamp
)

// fixedPointFracLimit is the maximum magnitude of the fractional part,
// spec.md §4.1: "|fractional| ≤ 999_999_999".
const fixedPointFracLimit = 999_999_999

// inlineTextCap is the byte length under which Text is stored inline
// rather than in a refcounted heap string, mirroring the TinyText/Text
// split in data.rs (there TINYTEXT_WIDTH = 15; we use a slightly larger
// inline budget since Go strings don't need the pointer-sized trick C
// structs do, but the boundary concept is the same: short strings avoid an
// extra allocation).
const inlineTextCap = 22

// Value is the tagged scalar. Construct with the New* helpers; do not set
// fields directly from outside the package, since e.g. a Text value's
// "inline" classification must stay consistent with its byte length.
type Value struct {
	text    string
	ts      time.Time
	i64     int64
	fracPt  int32
	kind    Kind
	inline  bool
	u64     uint64
	isFrac  bool // set on FixedPoint to disambiguate from Int64 zero value
}

// Null is the single NULL value. NULL compares greater than everything
// else (spec.md §4.1: "NULL is greater than everything (sorts last)").
var Null = Value{kind: KindNull}

func NewInt32(v int32) Value   { return Value{kind: KindInt32, i64: int64(v)} }
func NewInt64(v int64) Value   { return Value{kind: KindInt64, i64: v} }
func NewUint32(v uint32) Value { return Value{kind: KindUint32, u64: uint64(v)} }
func NewUint64(v uint64) Value { return Value{kind: KindUint64, u64: v} }
func NewTimestamp(t time.Time) Value {
	return Value{kind: KindTimestamp, ts: t}
}

// NewText constructs a Text value, choosing the inline representation for
// short strings the way data.rs's TinyText does (spec.md: "refcounted
// text, inlined short text").
func NewText(s string) Value {
	return Value{kind: KindText, text: s, inline: len(s) <= inlineTextCap}
}

// NewFixedPoint constructs a fixed-point value directly from its integer
// and fractional parts, validating the §4.1 magnitude bound and
// propagating the carry if frac's sign disagrees with a nonzero integer
// part the way a naive caller might pass it.
func NewFixedPoint(integer int64, frac int32) (Value, error) {
	if frac > fixedPointFracLimit || frac < -fixedPointFracLimit {
		return Value{}, fmt.Errorf("value: fixed-point fractional part %d out of range [-%d, %d]", frac, fixedPointFracLimit, fixedPointFracLimit)
	}
	if integer > 0 && frac < 0 {
		integer--
		frac += fixedPointFracLimit + 1
	} else if integer < 0 && frac > 0 {
		integer++
		frac -= fixedPointFracLimit + 1
	}
	return Value{kind: KindFixedPoint, i64: integer, fracPt: frac, isFrac: true}, nil
}

// FixedPointFromFloat converts f into a fixed-point Value, scaling the
// fractional part by 1e9 and rounding to nearest, halves away from zero
// (spec.md §4.1). The rounding itself is delegated to shopspring/decimal,
// which rounds the exact decimal value of the binary float where a hand-rolled
// math.Round(f*1e9) would accumulate error; only the conversion step uses
// decimal.Decimal, the resulting Value still stores the bespoke
// (integer, fractional) pair.
func FixedPointFromFloat(f float64) (Value, error) {
	d := decimal.NewFromFloat(f)
	scaled := d.Mul(decimal.New(1, 9)).Round(0)
	integer := scaled.Div(decimal.New(1, 9)).Truncate(0).IntPart()
	frac := scaled.Sub(decimal.NewFromInt(integer).Mul(decimal.New(1, 9))).IntPart()
	return NewFixedPoint(integer, int32(frac))
}

func (v Value) Kind() Kind   { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }

// Int64 returns the value widened to int64; only valid for Int32/Int64/
// Uint32 (Uint64 may not fit and returns false).
func (v Value) Int64() (int64, bool) {
	switch v.kind {
	case KindInt32, KindInt64:
		return v.i64, true
	case KindUint32:
		return int64(v.u64), true
	case KindUint64:
		if v.u64 > 1<<63-1 {
			return 0, false
		}
		return int64(v.u64), true
	default:
		return 0, false
	}
}

func (v Value) Text() (string, bool) {
	if v.kind != KindText {
		return "", false
	}
	return v.text, true
}

func (v Value) Timestamp() (time.Time, bool) {
	if v.kind != KindTimestamp {
		return time.Time{}, false
	}
	return v.ts, true
}

// FixedPoint returns the (integer, fractional) pair.
func (v Value) FixedPoint() (int64, int32, bool) {
	if v.kind != KindFixedPoint {
		return 0, 0, false
	}
	return v.i64, v.fracPt, true
}

func (v Value) isNumeric() bool {
	switch v.kind {
	case KindInt32, KindInt64, KindUint32, KindUint64:
		return true
	default:
		return false
	}
}

// widen widens any numeric variant to a sign-and-magnitude pair (neg, mag
// uint64), which holds every Int32/Int64/Uint32/Uint64 value exactly;
// arithmetic converts it to big.Int rather than hand-rolling 128-bit math.
func (v Value) widen() widened {
	switch v.kind {
	case KindInt32, KindInt64:
		return widened{neg: v.i64 < 0, mag: absU64(v.i64)}
	case KindUint32, KindUint64:
		return widened{neg: false, mag: v.u64}
	default:
		return widened{}
	}
}

type widened struct {
	mag uint64
	neg bool
}

func absU64(i int64) uint64 {
	if i < 0 {
		return uint64(-(i + 1)) + 1
	}
	return uint64(i)
}

func (a widened) cmp(b widened) int {
	switch {
	case a.neg && !b.neg:
		if a.mag == 0 && b.mag == 0 {
			return 0
		}
		return -1
	case !a.neg && b.neg:
		if a.mag == 0 && b.mag == 0 {
			return 0
		}
		return 1
	case !a.neg && !b.neg:
		switch {
		case a.mag < b.mag:
			return -1
		case a.mag > b.mag:
			return 1
		default:
			return 0
		}
	default: // both negative: more negative magnitude is smaller
		switch {
		case a.mag > b.mag:
			return -1
		case a.mag < b.mag:
			return 1
		default:
			return 0
		}
	}
}

// family orders the incomparable groups per spec.md §4.1:
// "Numeric < FixedPoint < Text < Timestamp < NULL".
func (v Value) family() int {
	switch v.kind {
	case KindInt32, KindInt64, KindUint32, KindUint64:
		return 0
	case KindFixedPoint:
		return 1
	case KindText:
		return 2
	case KindTimestamp:
		return 3
	case KindNull:
		return 4
	default:
		return 5
	}
}

// Equal implements spec.md §4.1 equality: numeric kinds compare by widened
// value ignoring tag; Text/inline-text compare by byte content; everything
// else compares by family+payload.
func (a Value) Equal(b Value) bool {
	if a.isNumeric() && b.isNumeric() {
		return a.widen().cmp(b.widen()) == 0
	}
	if a.kind == KindText && b.kind == KindText {
		return a.text == b.text
	}
	if a.family() != b.family() {
		return false
	}
	switch a.kind {
	case KindNull:
		return true
	case KindFixedPoint:
		return a.i64 == b.i64 && a.fracPt == b.fracPt
	case KindTimestamp:
		return a.ts.Equal(b.ts)
	default:
		return false
	}
}

// Cmp implements the total order of spec.md §4.1. Returns -1, 0, 1.
func (a Value) Cmp(b Value) int {
	if a.isNumeric() && b.isNumeric() {
		return a.widen().cmp(b.widen())
	}
	if fa, fb := a.family(), b.family(); fa != fb {
		if fa < fb {
			return -1
		}
		return 1
	}
	switch a.kind {
	case KindNull:
		return 0
	case KindFixedPoint:
		if a.i64 != b.i64 {
			if a.i64 < b.i64 {
				return -1
			}
			return 1
		}
		if a.fracPt == b.fracPt {
			return 0
		}
		if a.fracPt < b.fracPt {
			return -1
		}
		return 1
	case KindText:
		return strings.Compare(a.text, b.text)
	case KindTimestamp:
		switch {
		case a.ts.Before(b.ts):
			return -1
		case a.ts.After(b.ts):
			return 1
		default:
			return 0
		}
	default:
		return 0
	}
}

// Hash returns a hash consistent with Equal: numeric values hash their
// widened form (i64 for signed families, u64 for unsigned, per spec.md
// §4.1), text hashes its byte content regardless of inline representation.
func (v Value) Hash() uint64 {
	const offset64 = 14695981039346656037
	const prime64 = 1099511628211

	fnv := func(b []byte) uint64 {
		h := uint64(offset64)
		for _, c := range b {
			h ^= uint64(c)
			h *= prime64
		}
		return h
	}

	switch v.kind {
	case KindNull:
		return 0
	case KindInt32, KindInt64:
		return fnv(int64Bytes(v.i64))
	case KindUint32, KindUint64:
		return fnv(uint64Bytes(v.u64))
	case KindFixedPoint:
		b := append(int64Bytes(v.i64), int32Bytes(v.fracPt)...)
		return fnv(b)
	case KindText:
		return fnv([]byte(v.text))
	case KindTimestamp:
		return fnv(int64Bytes(v.ts.UnixNano()))
	default:
		return 0
	}
}

func int64Bytes(i int64) []byte  { return uint64Bytes(uint64(i)) }
func int32Bytes(i int32) []byte  { return uint64Bytes(uint64(uint32(i)))[4:] }
func uint64Bytes(u uint64) []byte {
	b := make([]byte, 8)
	for i := 0; i < 8; i++ {
		b[7-i] = byte(u >> (8 * i))
	}
	return b
}

func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "NULL"
	case KindInt32, KindInt64:
		return fmt.Sprintf("%d", v.i64)
	case KindUint32, KindUint64:
		return fmt.Sprintf("%d", v.u64)
	case KindFixedPoint:
		frac := v.fracPt
		if frac < 0 {
			frac = -frac
		}
		return fmt.Sprintf("%d.%09d", v.i64, frac)
	case KindText:
		return v.text
	case KindTimestamp:
		return v.ts.Format(time.RFC3339Nano)
	default:
		return "?"
	}
}
