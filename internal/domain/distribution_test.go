package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestDistribute_ProportionalToGoals(t *testing.T) {
	goals := CareBuckets{Vaccination: d("100"), Food: d("200"), Medical: d("100"), Other: d("100")}

	got, err := Distribute(d("50"), goals)
	require.NoError(t, err)

	assert.Equal(t, "10", got.Vaccination.String())
	assert.Equal(t, "20", got.Food.String())
	assert.Equal(t, "10", got.Medical.String())
	assert.Equal(t, "10", got.Other.String())
}

func TestDistribute_UnevenGoals(t *testing.T) {
	goals := CareBuckets{Vaccination: d("100"), Food: d("200"), Medical: d("50"), Other: d("50")}

	got, err := Distribute(d("40"), goals)
	require.NoError(t, err)

	assert.Equal(t, "10", got.Vaccination.String())
	assert.Equal(t, "20", got.Food.String())
	assert.Equal(t, "5", got.Medical.String())
	assert.Equal(t, "5", got.Other.String())
}

func TestDistribute_ZeroGoalsSplitsIntoQuarters(t *testing.T) {
	got, err := Distribute(d("40"), CareBuckets{})
	require.NoError(t, err)

	for _, v := range []decimal.Decimal{got.Vaccination, got.Food, got.Medical, got.Other} {
		assert.Equal(t, "10", v.String())
	}
}

func TestDistribute_SumsExactlyToAmount(t *testing.T) {
	cases := []struct {
		amount string
		goals  CareBuckets
	}{
		{"100", CareBuckets{Vaccination: d("1"), Food: d("1"), Medical: d("1")}},
		{"0.01", CareBuckets{Vaccination: d("3"), Food: d("3"), Medical: d("3"), Other: d("3")}},
		{"33.33", CareBuckets{}},
		{"999.99", CareBuckets{Vaccination: d("7"), Food: d("11"), Medical: d("13"), Other: d("17")}},
		{"10", CareBuckets{Other: d("5")}},
	}

	for _, tc := range cases {
		amount := d(tc.amount)
		got, err := Distribute(amount, tc.goals)
		require.NoError(t, err)
		assert.True(t, got.Total().Equal(amount), "amount %s split into %s", amount, got.Total())
		assert.False(t, got.HasNegative(), "amount %s produced a negative bucket", amount)
	}
}

func TestDistribute_RemainderGoesToOther(t *testing.T) {
	got, err := Distribute(d("100"), CareBuckets{Vaccination: d("1"), Food: d("1"), Medical: d("1")})
	require.NoError(t, err)

	assert.Equal(t, "33.33", got.Vaccination.String())
	assert.Equal(t, "0.01", got.Other.String())
}

func TestDistribute_RejectsNegatives(t *testing.T) {
	_, err := Distribute(d("-1"), CareBuckets{})
	assert.True(t, IsCode(err, ErrorInvalidInput))

	_, err = Distribute(d("1"), CareBuckets{Food: d("-5")})
	assert.True(t, IsCode(err, ErrorInvalidInput))
}
