package watchrunner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aaronromeo/imapvault/internal/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunRepeatsUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var rounds []int
	var results []error
	boom := errors.New("server unavailable")
	calls := 0
	err := Run(ctx, Deps{
		Interval: time.Millisecond,
		Log:      mock.SetupLogger(t),
		After: func(round int, err error) {
			rounds = append(rounds, round)
			results = append(results, err)
		},
	}, func(context.Context) error {
		calls++
		switch calls {
		case 2:
			return boom
		case 3:
			cancel()
			return context.Canceled
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, rounds)
	assert.Equal(t, []error{nil, boom}, results)
}

func TestRunRejectsZeroInterval(t *testing.T) {
	err := Run(context.Background(), Deps{}, func(context.Context) error { return nil })
	assert.Error(t, err)
}

func TestIsShutdown(t *testing.T) {
	live := context.Background()
	done, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name string
		ctx  context.Context
		err  error
		want bool
	}{
		{name: "live context", ctx: live, err: context.Canceled, want: false},
		{name: "cancelled without error", ctx: done, want: true},
		{name: "cancelled with wrapped cancel", ctx: done, err: errors.Join(errors.New("fetch"), context.Canceled), want: true},
		{name: "cancelled with other error", ctx: done, err: errors.New("disk full"), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsShutdown(tt.ctx, tt.err))
		})
	}
}
