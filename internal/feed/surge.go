package feed

import "math"

// SurgeMin5m is the minimum 5m price change, in percent, for a surge.
const SurgeMin5m = 0.6

// IsSurging reports short-term acceleration: the 5m move is at least 0.6%
// and outpaces a third of the 15m move, which in turn outpaces a quarter of
// the 1h move. A missing 15m change is estimated as 1h/4.
func IsSurging(p5m, p15m, p1h *float64) bool {
	if p5m == nil || p1h == nil {
		return false
	}
	p15 := *p1h / 4
	if p15m != nil {
		p15 = *p15m
	}
	five, hour := *p5m, *p1h
	for _, v := range []float64{five, p15, hour} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return five >= SurgeMin5m && five > p15/3 && p15 > hour/4
}

// ROISinceCaptured is the percent change from the captured price, or nil
// when either price is unknown or the captured price is not positive.
func ROISinceCaptured(current, captured *float64) *float64 {
	if current == nil || captured == nil || *captured <= 0 {
		return nil
	}
	if math.IsNaN(*current) || math.IsInf(*current, 0) {
		return nil
	}
	roi := (*current - *captured) / *captured * 100
	return &roi
}
