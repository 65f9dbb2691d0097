package strava

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// rateLimitBuffer keeps a few requests in reserve below each limit
const rateLimitBuffer = 5

// RateLimitInfo is the quota state reported by the last response
type RateLimitInfo struct {
	Limit15Min    int
	Usage15Min    int
	LimitDaily    int
	UsageDaily    int
	IsRateLimited bool

	TimeUntil15MinReset time.Duration
	TimeUntilDailyReset time.Duration
	RecommendedWait     time.Duration
}

// IsApproaching15MinLimit reports whether usage is within the buffer of the 15 minute limit
func (info *RateLimitInfo) IsApproaching15MinLimit() bool {
	return info.Limit15Min > 0 && info.Usage15Min >= info.Limit15Min-rateLimitBuffer
}

// IsApproachingDailyLimit reports whether usage is within the buffer of the daily limit
func (info *RateLimitInfo) IsApproachingDailyLimit() bool {
	return info.LimitDaily > 0 && info.UsageDaily >= info.LimitDaily-rateLimitBuffer
}

// refresh recomputes the reset windows and the recommended wait for now
func (info *RateLimitInfo) refresh(now time.Time) {
	info.TimeUntil15MinReset = timeUntilNext15MinWindow(now)
	info.TimeUntilDailyReset = timeUntilMidnightUTC(now)
	info.RecommendedWait = 0

	switch {
	case info.Limit15Min > 0 && info.Usage15Min >= info.Limit15Min:
		info.IsRateLimited = true
		info.RecommendedWait = info.TimeUntil15MinReset
	case info.LimitDaily > 0 && info.UsageDaily >= info.LimitDaily:
		info.IsRateLimited = true
		info.RecommendedWait = info.TimeUntilDailyReset
	case info.IsApproaching15MinLimit():
		info.RecommendedWait = info.TimeUntil15MinReset
	case info.IsApproachingDailyLimit():
		info.RecommendedWait = info.TimeUntilDailyReset
	}
}

// timeUntilNext15MinWindow returns the wait until the next quarter hour,
// when Strava resets the short window, plus a small margin
func timeUntilNext15MinWindow(now time.Time) time.Duration {
	next := now.Truncate(15 * time.Minute).Add(15 * time.Minute)
	return next.Sub(now) + 2*time.Second
}

// timeUntilMidnightUTC returns the wait until the daily window resets
func timeUntilMidnightUTC(now time.Time) time.Duration {
	nowUTC := now.UTC()
	midnight := time.Date(nowUTC.Year(), nowUTC.Month(), nowUTC.Day()+1, 0, 0, 0, 0, time.UTC)
	return midnight.Sub(nowUTC) + 2*time.Second
}

// parseLimitPair reads a "15min,daily" header value
func parseLimitPair(value string) (short, daily int) {
	if value == "" {
		return 0, 0
	}
	parts := strings.Split(value, ",")
	short, _ = strconv.Atoi(strings.TrimSpace(parts[0]))
	if len(parts) > 1 {
		daily, _ = strconv.Atoi(strings.TrimSpace(parts[1]))
	}
	return short, daily
}

// minPositive returns the smaller of a and b ignoring unset values
func minPositive(a, b int) int {
	switch {
	case a <= 0:
		return b
	case b <= 0:
		return a
	default:
		return min(a, b)
	}
}

// parseRateLimitHeaders merges the overall and read-only quotas Strava
// reports, keeping the tighter limit and the higher usage of each window
func parseRateLimitHeaders(headers http.Header, now time.Time) RateLimitInfo {
	limit15, limitDay := parseLimitPair(headers.Get("X-RateLimit-Limit"))
	usage15, usageDay := parseLimitPair(headers.Get("X-RateLimit-Usage"))
	readLimit15, readLimitDay := parseLimitPair(headers.Get("X-ReadRateLimit-Limit"))
	readUsage15, readUsageDay := parseLimitPair(headers.Get("X-ReadRateLimit-Usage"))

	info := RateLimitInfo{
		Limit15Min: minPositive(limit15, readLimit15),
		LimitDaily: minPositive(limitDay, readLimitDay),
		Usage15Min: max(usage15, readUsage15),
		UsageDaily: max(usageDay, readUsageDay),
	}
	info.refresh(now)
	return info
}
