// Package ratelimit keeps the bots under the request budgets of the APIs
// they call.
//
// TokenBucket wraps golang.org/x/time/rate and is shared by the HTTP clients
// of a run. SlidingWindow counts requests in a fixed trailing window, which
// is how the social API meters timeline reads during a harvest:
//
//	limiter := ratelimit.FromConfig(cfg.RateLimit)
//	if err := limiter.Wait(ctx); err != nil {
//		return err
//	}
//
//	reads := ratelimit.NewSlidingWindow(cfg.Harvest.TimelineRequests, cfg.Harvest.TimelineWindow)
package ratelimit
