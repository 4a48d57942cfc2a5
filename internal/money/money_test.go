package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestRound2HalfAwayFromZero(t *testing.T) {
	assert.Equal(t, "0.13", Round2(d("0.125")).StringFixed(2))
	assert.Equal(t, "-0.13", Round2(d("-0.125")).StringFixed(2))
	assert.Equal(t, "533.33", Round2(d("533.3333")).StringFixed(2))
}

func TestExtendAndItbis(t *testing.T) {
	sub := Extend(d("3"), d("333.335"))
	assert.Equal(t, "1000.01", sub.StringFixed(2))

	assert.Equal(t, "270.00", Itbis(d("1500"), true).StringFixed(2))
	assert.True(t, Itbis(d("1500"), false).IsZero())
}

func TestParse(t *testing.T) {
	v, err := Parse("1500.50")
	require.NoError(t, err)
	assert.True(t, v.Equal(d("1500.5")))

	_, err = Parse("abc")
	assert.Error(t, err)
}
