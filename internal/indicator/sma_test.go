package indicator

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSMAPeriod3(t *testing.T) {
	t.Parallel()
	got, err := SMA([]float64{100, 102, 104, 103, 105}, 3)
	require.NoError(t, err)
	require.Len(t, got, 5)

	assert.False(t, got.Defined(0))
	assert.False(t, got.Defined(1))
	assert.InDelta(t, 102.0, got.At(2), 1e-12)
	assert.InDelta(t, 103.0, got.At(3), 1e-12)
	assert.InDelta(t, 104.0, got.At(4), 1e-12)
}

func TestSMAPeriodOneIsIdentity(t *testing.T) {
	t.Parallel()
	in := []float64{3, 1, 4, 1, 5}
	got, err := SMA(in, 1)
	require.NoError(t, err)
	for i, v := range in {
		require.True(t, got.Defined(i))
		assert.Equal(t, v, got.At(i))
	}
}

func TestSMAPeriodEqualsLength(t *testing.T) {
	t.Parallel()
	got, err := SMA([]float64{2, 4, 6, 8}, 4)
	require.NoError(t, err)
	assert.False(t, got.Defined(2))
	assert.InDelta(t, 5.0, got.At(3), 1e-12)
}

func TestSMAInsufficientData(t *testing.T) {
	t.Parallel()
	_, err := SMA([]float64{1, 2}, 3)
	assert.ErrorIs(t, err, ErrInsufficientData)

	_, err = SMA([]float64{1, 2}, 0)
	assert.Error(t, err)
}

func TestSMAMatchesWindowMean(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewSource(42))
	values := make([]float64, 2000)
	for i := range values {
		values[i] = 50 + rng.Float64()*100
	}
	for _, period := range []int{1, 2, 7, 50, 200} {
		got, err := SMA(values, period)
		require.NoError(t, err)
		require.Len(t, got, len(values))
		for k := range values {
			if k < period-1 {
				require.False(t, got.Defined(k), "period %d index %d should be warm-up", period, k)
				continue
			}
			sum := 0.0
			for _, v := range values[k-period+1 : k+1] {
				sum += v
			}
			require.InDelta(t, sum/float64(period), got.At(k), 1e-9, "period %d index %d", period, k)
		}
	}
}

func TestSeriesDefinedOutOfRange(t *testing.T) {
	t.Parallel()
	var s Series
	assert.False(t, s.Defined(-1))
	assert.False(t, s.Defined(0))
}
