package value

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEqualityIgnoresNumericTag(t *testing.T) {
	a := NewInt32(42)
	b := NewUint64(42)
	assert.True(t, a.Equal(b))
	assert.Equal(t, a.Hash(), b.Hash())
}

func TestEqualityNegativeVsUnsigned(t *testing.T) {
	a := NewInt32(-1)
	b := NewUint32(1)
	assert.False(t, a.Equal(b))
}

func TestTextEquality(t *testing.T) {
	short := NewText("hi")
	long := NewText("a string long enough to not be inlined at all")
	assert.True(t, short.Equal(NewText("hi")))
	assert.False(t, short.Equal(long))
	assert.Equal(t, NewText("hi").Hash(), NewText("hi").Hash())
}

func TestTotalOrderFamilies(t *testing.T) {
	num := NewInt32(5)
	fp, err := NewFixedPoint(1, 500_000_000)
	require.NoError(t, err)
	txt := NewText("z")
	ts := NewTimestamp(time.Now())

	assert.Equal(t, -1, num.Cmp(fp))
	assert.Equal(t, -1, fp.Cmp(txt))
	assert.Equal(t, -1, txt.Cmp(ts))
	assert.Equal(t, -1, ts.Cmp(Null))
	assert.Equal(t, 1, Null.Cmp(num))
}

func TestFixedPointRange(t *testing.T) {
	_, err := NewFixedPoint(1, 1_000_000_000)
	assert.Error(t, err)
	_, err = NewFixedPoint(1, -1_000_000_000)
	assert.Error(t, err)
	v, err := NewFixedPoint(1, 999_999_999)
	require.NoError(t, err)
	assert.Equal(t, "1.999999999", v.String())
}

func TestFixedPointFromFloat(t *testing.T) {
	v, err := FixedPointFromFloat(3.5)
	require.NoError(t, err)
	i, f, ok := v.FixedPoint()
	require.True(t, ok)
	assert.Equal(t, int64(3), i)
	assert.Equal(t, int32(500_000_000), f)
}

func TestArithmeticAddWidening(t *testing.T) {
	sum, err := Arithmetic(OpAdd, NewInt32(2147483647), NewInt32(1))
	require.NoError(t, err)
	// Overflows int32 -> widens to uint32 since result is positive.
	assert.Equal(t, KindUint32, sum.Kind())
	n, ok := sum.Int64()
	require.True(t, ok)
	assert.Equal(t, int64(2147483648), n)
}

func TestArithmeticNullAbsorbing(t *testing.T) {
	r, err := Arithmetic(OpAdd, Null, NewInt32(1))
	require.NoError(t, err)
	assert.True(t, r.IsNull())
}

func TestArithmeticTypeMismatch(t *testing.T) {
	_, err := Arithmetic(OpAdd, NewText("x"), NewInt32(1))
	require.Error(t, err)
}

func TestArithmeticDivisionByZero(t *testing.T) {
	_, err := Arithmetic(OpDiv, NewInt32(1), NewInt32(0))
	require.Error(t, err)
}

func TestFixedPointArithmetic(t *testing.T) {
	a, _ := NewFixedPoint(1, 500_000_000)
	b, _ := NewFixedPoint(1, 500_000_000)
	sum, err := Arithmetic(OpAdd, a, b)
	require.NoError(t, err)
	i, f, _ := sum.FixedPoint()
	assert.Equal(t, int64(3), i)
	assert.Equal(t, int32(0), f)
}

func TestRowProjectAndKey(t *testing.T) {
	r := Row{NewInt32(1), NewText("a"), NewInt32(2)}
	assert.True(t, r.Project([]int{0, 2}).Equal(Row{NewInt32(1), NewInt32(2)}))
	assert.True(t, r.Key([]int{1}).Equal(Row{NewText("a")}))
}
