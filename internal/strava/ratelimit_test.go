package strava

import (
	"net/http"
	"testing"
	"time"
)

func TestTimeUntilNext15MinWindow(t *testing.T) {
	tests := []struct {
		name string
		time time.Time
		want time.Duration
	}{
		{"on the hour", time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC), 15*time.Minute + 2*time.Second},
		{"minute 14", time.Date(2024, 1, 15, 10, 14, 0, 0, time.UTC), time.Minute + 2*time.Second},
		{"minute 15", time.Date(2024, 1, 15, 10, 15, 0, 0, time.UTC), 15*time.Minute + 2*time.Second},
		{"minute 44:30", time.Date(2024, 1, 15, 10, 44, 30, 0, time.UTC), 30*time.Second + 2*time.Second},
		{"minute 59", time.Date(2024, 1, 15, 10, 59, 0, 0, time.UTC), time.Minute + 2*time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := timeUntilNext15MinWindow(tt.time); got != tt.want {
				t.Errorf("timeUntilNext15MinWindow(%s) = %v, want %v", tt.time.Format("15:04:05"), got, tt.want)
			}
		})
	}
}

func TestTimeUntilMidnightUTC(t *testing.T) {
	tests := []struct {
		name string
		time time.Time
		want time.Duration
	}{
		{"midnight", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), 24*time.Hour + 2*time.Second},
		{"noon", time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC), 12*time.Hour + 2*time.Second},
		{"23:59", time.Date(2024, 1, 15, 23, 59, 0, 0, time.UTC), time.Minute + 2*time.Second},
		{"other zone", time.Date(2024, 1, 15, 20, 59, 0, 0, time.FixedZone("BRT", -3*3600)), time.Minute + 2*time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := timeUntilMidnightUTC(tt.time); got != tt.want {
				t.Errorf("timeUntilMidnightUTC = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseRateLimitHeaders(t *testing.T) {
	now := time.Date(2024, 1, 15, 10, 5, 0, 0, time.UTC)

	t.Run("uses tighter read limits", func(t *testing.T) {
		h := http.Header{}
		h.Set("X-RateLimit-Limit", "200,2000")
		h.Set("X-RateLimit-Usage", "10,100")
		h.Set("X-ReadRateLimit-Limit", "100,1000")
		h.Set("X-ReadRateLimit-Usage", "20,90")

		info := parseRateLimitHeaders(h, now)
		if info.Limit15Min != 100 || info.LimitDaily != 1000 {
			t.Errorf("expected limits 100/1000, got %d/%d", info.Limit15Min, info.LimitDaily)
		}
		if info.Usage15Min != 20 || info.UsageDaily != 100 {
			t.Errorf("expected usage 20/100, got %d/%d", info.Usage15Min, info.UsageDaily)
		}
		if info.IsRateLimited || info.RecommendedWait != 0 {
			t.Errorf("expected no wait, got %+v", info)
		}
	})

	t.Run("exhausted short window", func(t *testing.T) {
		h := http.Header{}
		h.Set("X-RateLimit-Limit", "100,1000")
		h.Set("X-RateLimit-Usage", "100,500")

		info := parseRateLimitHeaders(h, now)
		if !info.IsRateLimited {
			t.Error("expected rate limited")
		}
		if info.RecommendedWait != 10*time.Minute+2*time.Second {
			t.Errorf("expected wait until 10:15, got %v", info.RecommendedWait)
		}
	})

	t.Run("approaching daily limit", func(t *testing.T) {
		h := http.Header{}
		h.Set("X-RateLimit-Limit", "100,1000")
		h.Set("X-RateLimit-Usage", "1,996")

		info := parseRateLimitHeaders(h, now)
		if info.IsRateLimited {
			t.Error("expected not yet rate limited")
		}
		if info.RecommendedWait != info.TimeUntilDailyReset {
			t.Errorf("expected wait until daily reset, got %v", info.RecommendedWait)
		}
	})

	t.Run("no headers", func(t *testing.T) {
		info := parseRateLimitHeaders(http.Header{}, now)
		if info.Limit15Min != 0 || info.RecommendedWait != 0 {
			t.Errorf("expected empty info, got %+v", info)
		}
	})
}

func TestRateLimitInfoMethods(t *testing.T) {
	tests := []struct {
		info       RateLimitInfo
		short, day bool
	}{
		{RateLimitInfo{Limit15Min: 100, Usage15Min: 96}, true, false},
		{RateLimitInfo{Limit15Min: 100, Usage15Min: 95}, true, false},
		{RateLimitInfo{Limit15Min: 100, Usage15Min: 94}, false, false},
		{RateLimitInfo{Limit15Min: 0, Usage15Min: 100}, false, false},
		{RateLimitInfo{LimitDaily: 1000, UsageDaily: 996}, false, true},
		{RateLimitInfo{LimitDaily: 1000, UsageDaily: 500}, false, false},
	}

	for _, tt := range tests {
		if got := tt.info.IsApproaching15MinLimit(); got != tt.short {
			t.Errorf("%+v: IsApproaching15MinLimit = %v, want %v", tt.info, got, tt.short)
		}
		if got := tt.info.IsApproachingDailyLimit(); got != tt.day {
			t.Errorf("%+v: IsApproachingDailyLimit = %v, want %v", tt.info, got, tt.day)
		}
	}
}
