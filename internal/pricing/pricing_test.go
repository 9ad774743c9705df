package pricing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	price float64
	err   error
	calls int
}

func (f *fakeFetcher) ETHPrice(context.Context) (float64, error) {
	f.calls++
	return f.price, f.err
}

func TestStatic(t *testing.T) {
	price, err := Static(3500).ETHUSD(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3500.0, price)
}

func TestLive_CachesPrice(t *testing.T) {
	f := &fakeFetcher{price: 2400.5}
	l := NewLive(f, 3500, time.Minute)

	for i := 0; i < 3; i++ {
		price, err := l.ETHUSD(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 2400.5, price)
	}
	assert.Equal(t, 1, f.calls)

	l.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, _ = l.ETHUSD(context.Background())
	assert.Equal(t, 2, f.calls)
}

func TestLive_FallsBackToStatic(t *testing.T) {
	tests := []struct {
		name    string
		fetcher *fakeFetcher
	}{
		{"upstream error", &fakeFetcher{err: errors.New("rate limited")}},
		{"zero price", &fakeFetcher{price: 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			price, err := NewLive(tt.fetcher, 3500, time.Minute).ETHUSD(context.Background())
			require.NoError(t, err)
			assert.Equal(t, 3500.0, price)
		})
	}
}
