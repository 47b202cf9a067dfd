package value

import (
	"math/big"

	"github.com/flowmesh/dataflow/internal/ferr"
)

// Op is an arithmetic operator over two Values, spec.md §4.1: "+ − × ÷ is
// defined on numeric pairs with the widening rule above; NULL is
// absorbing. Other combinations fail with TypeMismatch."
type Op byte

const (
	OpAdd Op = iota
	OpSub
	OpMul
	OpDiv
)

// Arithmetic applies op to a and b following the numeric-widening rule:
// both operands are promoted to a 128-bit signed integer domain (or to
// fixed-point decimal when either side is FixedPoint), the result is
// narrowed back to the smallest Value kind that holds it.
func Arithmetic(op Op, a, b Value) (Value, error) {
	if a.IsNull() || b.IsNull() {
		return Null, nil
	}

	if a.kind == KindFixedPoint || b.kind == KindFixedPoint {
		return fixedPointArith(op, a, b)
	}

	if !a.isNumeric() || !b.isNumeric() {
		return Value{}, ferr.Newf(ferr.KindTypeMismatch, "arithmetic requires numeric operands, got %v and %v", a.kind, b.kind)
	}

	av, bv := bigFromWidened(a.widen()), bigFromWidened(b.widen())
	var r big.Int
	switch op {
	case OpAdd:
		r.Add(av, bv)
	case OpSub:
		r.Sub(av, bv)
	case OpMul:
		r.Mul(av, bv)
	case OpDiv:
		if bv.Sign() == 0 {
			return Value{}, ferr.New(ferr.KindOutOfRange, "division by zero")
		}
		r.Quo(av, bv)
	}
	return fromBig128(&r)
}

func bigFromWidened(w widened) *big.Int {
	r := new(big.Int).SetUint64(w.mag)
	if w.neg {
		r.Neg(r)
	}
	return r
}

var (
	minI32 = big.NewInt(-2147483648)
	maxI32 = big.NewInt(2147483647)
	maxU32 = big.NewInt(4294967295)
	minI64 = new(big.Int).SetInt64(-9223372036854775808)
	maxI64 = new(big.Int).SetInt64(9223372036854775807)
	maxU64 = new(big.Int).SetUint64(18446744073709551615)
)

// fromBig128 narrows r into the smallest Value variant that can hold it,
// mirroring noria's `From<i128> for DataType` (original_source data.rs):
// prefer Int32, then Uint32, then Int64, then Uint64; anything larger is
// out of range for this value model.
func fromBig128(r *big.Int) (Value, error) {
	switch {
	case r.Cmp(minI32) >= 0 && r.Cmp(maxI32) <= 0:
		return NewInt32(int32(r.Int64())), nil
	case r.Sign() >= 0 && r.Cmp(maxU32) <= 0:
		return NewUint32(uint32(r.Uint64())), nil
	case r.Cmp(minI64) >= 0 && r.Cmp(maxI64) <= 0:
		return NewInt64(r.Int64()), nil
	case r.Sign() >= 0 && r.Cmp(maxU64) <= 0:
		return NewUint64(r.Uint64()), nil
	default:
		return Value{}, ferr.Newf(ferr.KindOutOfRange, "arithmetic result %s does not fit any numeric value kind", r.String())
	}
}

// fixedPointArith promotes any numeric operand to fixed-point (fractional
// part 0) before applying op, then renormalizes carries so the fractional
// part stays within the §4.1 magnitude bound and shares the integer part's
// sign.
func fixedPointArith(op Op, a, b Value) (Value, error) {
	ai, af, err := toFixed(a)
	if err != nil {
		return Value{}, err
	}
	bi, bf, err := toFixed(b)
	if err != nil {
		return Value{}, err
	}

	const scale = int64(fixedPointFracLimit) + 1 // 1_000_000_000

	an := ai*scale + signedFrac(ai, af)
	bn := bi*scale + signedFrac(bi, bf)

	var rn int64
	switch op {
	case OpAdd:
		rn = an + bn
	case OpSub:
		rn = an - bn
	case OpMul:
		// scale cancels one factor of `scale` to keep the same fixed
		// point precision instead of squaring it.
		rn = (an * bn) / scale
	case OpDiv:
		if bn == 0 {
			return Value{}, ferr.New(ferr.KindOutOfRange, "division by zero")
		}
		rn = (an * scale) / bn
	}

	integer := rn / scale
	frac := int32(rn % scale)
	return NewFixedPoint(integer, frac)
}

func signedFrac(integer int64, frac int32) int64 {
	if integer < 0 {
		return -int64(abs32(frac))
	}
	return int64(abs32(frac))
}

func abs32(i int32) int32 {
	if i < 0 {
		return -i
	}
	return i
}

func toFixed(v Value) (int64, int32, error) {
	if v.kind == KindFixedPoint {
		return v.i64, v.fracPt, nil
	}
	if !v.isNumeric() {
		return 0, 0, ferr.Newf(ferr.KindTypeMismatch, "cannot coerce %v to fixed-point", v.kind)
	}
	i, ok := v.Int64()
	if !ok {
		return 0, 0, ferr.Newf(ferr.KindOutOfRange, "value does not fit in int64 for fixed-point coercion")
	}
	return i, 0, nil
}
