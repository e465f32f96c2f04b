package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCampaignFee_Table(t *testing.T) {
	cases := []struct {
		priority Priority
		weeks    int
		want     string
	}{
		{PriorityLow, 1, "11"},
		{PriorityLow, 4, "12.5"},
		{PriorityMedium, 2, "12"},
		{PriorityHigh, 3, "13"},
		{PriorityCritical, 1, "12.5"},
		{PriorityCritical, 4, "14"},
	}

	for _, tc := range cases {
		got, err := CampaignFee(tc.priority, tc.weeks)
		require.NoError(t, err)
		assert.True(t, got.Equal(decimal.RequireFromString(tc.want)), "%s/%d: got %s want %s", tc.priority, tc.weeks, got, tc.want)
	}
}

func TestCampaignFee_StaysInRange(t *testing.T) {
	lo := decimal.RequireFromString("10.5")
	hi := decimal.NewFromInt(20)
	for _, p := range []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical} {
		for w := MinDurationWeeks; w <= MaxDurationWeeks; w++ {
			got, err := CampaignFee(p, w)
			require.NoError(t, err)
			assert.True(t, got.GreaterThanOrEqual(lo) && got.LessThanOrEqual(hi), "fee %s out of range", got)
		}
	}
}

func TestCampaignFee_RejectsOutOfRange(t *testing.T) {
	_, err := CampaignFee(PriorityLow, 0)
	assert.True(t, IsCode(err, ErrorInvalidInput))

	_, err = CampaignFee(PriorityLow, 5)
	assert.True(t, IsCode(err, ErrorInvalidInput))

	_, err = CampaignFee(Priority("URGENT"), 2)
	assert.True(t, IsCode(err, ErrorInvalidInput))
}

func TestAdoptionFeeReduction(t *testing.T) {
	assert.True(t, AdoptionFeeReduction(0).IsZero())
	assert.True(t, AdoptionFeeReduction(5).IsZero())
	assert.True(t, AdoptionFeeReduction(6).Equal(decimal.NewFromInt(5)))
	assert.True(t, AdoptionFeeReduction(12).Equal(decimal.NewFromInt(35)))
}

func TestPlatformFeeAmount(t *testing.T) {
	fee := PlatformFeeAmount(decimal.NewFromInt(60), decimal.RequireFromString("12.5"))
	assert.Equal(t, "7.5", fee.String())
	assert.Equal(t, "52.5", NetAmount(decimal.NewFromInt(60), decimal.RequireFromString("12.5")).String())
}

func TestParsePriority(t *testing.T) {
	p, err := ParsePriority("HIGH")
	require.NoError(t, err)
	assert.Equal(t, PriorityHigh, p)

	_, err = ParsePriority("high")
	assert.True(t, IsCode(err, ErrorInvalidInput))
}
