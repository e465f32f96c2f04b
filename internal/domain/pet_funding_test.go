package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPetFunding() *PetFunding {
	return &PetFunding{
		PetID:        uuid.New(),
		ShelterID:    uuid.New(),
		MonthlyGoals: CareBuckets{Vaccination: d("100"), Food: d("200"), Medical: d("100"), Other: d("100")},
	}
}

func TestPetFunding_ApplyDonationKeepsBucketsBalanced(t *testing.T) {
	p := newTestPetFunding()

	split, err := p.ApplyDonation(d("50"), t0)
	require.NoError(t, err)
	assert.Equal(t, "20", split.Food.String())

	_, err = p.ApplyDonation(d("33.33"), t0)
	require.NoError(t, err)

	assert.Equal(t, "83.33", p.CurrentMonthDonations.String())
	assert.True(t, p.CurrentMonthDistribution.Total().Equal(p.CurrentMonthDonations))
	assert.NoError(t, p.CheckInvariants())
}

func TestPetFunding_CorruptStateIsInvariantViolation(t *testing.T) {
	p := newTestPetFunding()
	p.CurrentMonthDonations = d("10")

	_, err := p.ApplyDonation(d("5"), t0)
	assert.True(t, IsCode(err, ErrorInvariantViolation))
}

func TestPetFunding_CycleReset(t *testing.T) {
	p := newTestPetFunding()
	assert.True(t, p.NeedsCycleReset(t0))

	_, err := p.ApplyDonation(d("40"), t0)
	require.NoError(t, err)

	p.ResetCycle(t0)
	assert.True(t, p.CurrentMonthDonations.IsZero())
	assert.True(t, p.CurrentMonthDistribution.Total().IsZero())
	require.NotNil(t, p.GoalsLastReset)
	assert.Equal(t, "500", p.MonthlyGoals.Total().String())

	assert.False(t, p.NeedsCycleReset(t0.Add(31*24*time.Hour)))
	assert.True(t, p.NeedsCycleReset(t0.Add(31*24*time.Hour+time.Second)))
}

func TestPetFunding_UpdateGoalsCooldown(t *testing.T) {
	p := newTestPetFunding()
	goals := CareBuckets{Vaccination: d("50"), Food: d("50"), Medical: d("50"), Other: d("50")}

	require.NoError(t, p.UpdateGoals(goals, t0))
	assert.Equal(t, "200", p.MonthlyGoals.Total().String())

	err := p.UpdateGoals(goals, t0.Add(10*24*time.Hour))
	assert.True(t, IsCode(err, ErrorWindowExpired))

	assert.NoError(t, p.UpdateGoals(goals, t0.Add(31*24*time.Hour)))

	err = p.UpdateGoals(CareBuckets{Food: d("-1")}, t0.Add(90*24*time.Hour))
	assert.True(t, IsCode(err, ErrorInvalidInput))
}

func TestDomainError_FormatsAndUnwraps(t *testing.T) {
	err := NewDomainError(ErrorWindowExpired, "expiresAt", "adoption request has expired")
	assert.Equal(t, "WINDOW_EXPIRED: adoption request has expired (expiresAt)", err.Error())

	wrapped := errors.Join(errors.New("context"), err)
	code, ok := CodeOf(wrapped)
	require.True(t, ok)
	assert.Equal(t, ErrorWindowExpired, code)
	assert.False(t, IsCode(errors.New("plain"), ErrorWindowExpired))
}
