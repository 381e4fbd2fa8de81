package feed

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apfl99/DexSwipe-Backend/internal/domain/model"
)

func TestIsSurging(t *testing.T) {
	f := model.Float
	tests := []struct {
		name           string
		p5m, p15m, p1h *float64
		want           bool
	}{
		{"accelerating", f(2), f(3), f(4), true},
		{"5m below floor", f(0.5), f(0.6), f(0.8), false},
		{"5m exactly at floor", f(0.6), f(1), f(2), true},
		{"5m lags 15m", f(1), f(4), f(4), false},
		{"15m lags 1h", f(2), f(1), f(8), false},
		{"missing 5m", nil, f(1), f(1), false},
		{"missing 1h", f(2), f(1), nil, false},
		{"missing 15m estimated from 1h", f(2), nil, f(4), false},
		{"nan", f(math.NaN()), f(1), f(1), false},
		{"inf", f(2), f(math.Inf(1)), f(1), false},
		{"negative 1h", f(1), f(0.5), f(-3), true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsSurging(tc.p5m, tc.p15m, tc.p1h))
		})
	}
}

func TestROISinceCaptured(t *testing.T) {
	f := model.Float
	tests := []struct {
		name              string
		current, captured *float64
		want              *float64
	}{
		{"gain", f(3), f(2), f(50)},
		{"loss", f(0.25), f(1), f(-75)},
		{"flat", f(1), f(1), f(0)},
		{"no captured price", f(1), nil, nil},
		{"no current price", nil, f(1), nil},
		{"zero captured price", f(1), f(0), nil},
		{"nan current", f(math.NaN()), f(1), nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ROISinceCaptured(tc.current, tc.captured)
			if tc.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.InDelta(t, *tc.want, *got, 1e-9)
		})
	}
}
