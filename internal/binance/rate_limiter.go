package binance

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Binance futures enforces weight-based limits per minute. The scanner only
// issues low-weight public reads, but a burst across many symbols can still
// trip the limit, and a 429/418 ban would blind every instrument at once.
const (
	maxWeightPerMinute = 2400
	weightBudgetPct    = 0.6 // background analytics never use more than 60%
)

var futuresEndpointWeights = map[string]int{
	"/fapi/v1/premiumIndex":             1,
	"/fapi/v1/openInterest":             1,
	"/futures/data/globalLongShortAccountRatio": 1,
	"/futures/data/takerlongshortRatio":         1,
}

// RateLimiter tracks request weight against the per-minute budget and opens
// a circuit after repeated server-side rejections.
type RateLimiter struct {
	mu sync.Mutex

	currentWeight int
	weightResetAt time.Time

	circuitOpen   bool
	circuitOpenAt time.Time

	consecutiveErrors int
}

var (
	limiterOnce sync.Once
	limiter     *RateLimiter
)

// GetRateLimiter returns the process-wide limiter shared by all futures
// clients, mirroring Binance's per-IP accounting.
func GetRateLimiter() *RateLimiter {
	limiterOnce.Do(func() {
		limiter = &RateLimiter{weightResetAt: time.Now().Add(time.Minute)}
	})
	return limiter
}

// WaitForSlot blocks until the endpoint's weight fits the budget or the
// timeout expires. Returns false when the circuit is open or time ran out.
func (rl *RateLimiter) WaitForSlot(endpoint string, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	weight := futuresEndpointWeights[endpoint]
	if weight == 0 {
		weight = 1
	}

	for {
		rl.mu.Lock()
		now := time.Now()

		if rl.circuitOpen {
			if now.Sub(rl.circuitOpenAt) > time.Minute {
				rl.circuitOpen = false
				rl.consecutiveErrors = 0
				log.Info().Msg("futures rate limiter circuit closed")
			} else {
				rl.mu.Unlock()
				return false
			}
		}

		if now.After(rl.weightResetAt) {
			rl.currentWeight = 0
			rl.weightResetAt = now.Add(time.Minute)
		}

		budget := int(float64(maxWeightPerMinute) * weightBudgetPct)
		if rl.currentWeight+weight <= budget {
			rl.currentWeight += weight
			rl.mu.Unlock()
			return true
		}

		wait := time.Until(rl.weightResetAt)
		rl.mu.Unlock()

		if time.Now().Add(wait).After(deadline) {
			return false
		}
		time.Sleep(wait)
	}
}

// RecordError counts a server-side rejection; three in a row open the circuit.
func (rl *RateLimiter) RecordError() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.consecutiveErrors++
	if rl.consecutiveErrors >= 3 && !rl.circuitOpen {
		rl.circuitOpen = true
		rl.circuitOpenAt = time.Now()
		log.Warn().Msg("futures rate limiter circuit opened after repeated errors")
	}
}

// RecordSuccess resets the error streak.
func (rl *RateLimiter) RecordSuccess() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.consecutiveErrors = 0
}
