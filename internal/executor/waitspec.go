package executor

import (
	"context"
	"strings"
	"time"

	"github.com/brennhill/soulbrowser-agent/internal/action"
	"github.com/brennhill/soulbrowser-agent/internal/util"
	"github.com/brennhill/soulbrowser-agent/internal/wire"
)

// WaitSpecCondition builds the polled condition for a wait_for spec string.
// A "duration:<ms>" spec needs a start instant to measure elapsed time
// against, so it is anchored here at construction (once per action attempt)
// and becomes true only when at least that many milliseconds have passed.
// Every other kind delegates to EvalWaitSpec per poll.
func WaitSpecCondition(spec string) action.WaitCondition {
	kind, arg, _ := strings.Cut(spec, ":")
	if kind == "duration" {
		target := time.Duration(parseIntOr(arg, 0)) * time.Millisecond
		start := time.Now()
		return func(ctx context.Context, client wire.Client, route wire.Route) (bool, error) {
			return time.Since(start) >= target, nil
		}
	}
	return func(ctx context.Context, client wire.Client, route wire.Route) (bool, error) {
		return EvalWaitSpec(ctx, client, route, spec)
	}
}

// EvalWaitSpec evaluates a stateless wait_for condition spec: element
// visible/hidden, URL matches/equals pattern, title matches pattern,
// network idle for N ms. The "duration" kind is not handled here; it
// needs the start instant only WaitSpecCondition has.
func EvalWaitSpec(ctx context.Context, client wire.Client, route wire.Route, spec string) (bool, error) {
	kind, arg, _ := strings.Cut(spec, ":")
	switch kind {
	case "visible":
		found, err := client.QuerySelector(ctx, route, wire.Selector{CSS: arg})
		return found, err
	case "hidden":
		found, err := client.QuerySelector(ctx, route, wire.Selector{CSS: arg})
		if err != nil {
			return false, err
		}
		return !found, nil
	case "url_matches", "url_equals":
		signals, err := client.Evaluate(ctx, route, "location.href")
		if err != nil {
			return false, err
		}
		url, _ := signals.(string)
		if kind == "url_equals" {
			return url == arg, nil
		}
		return urlMatches(url, arg), nil
	case "title_matches":
		signals, err := client.Evaluate(ctx, route, "document.title")
		if err != nil {
			return false, err
		}
		title, _ := signals.(string)
		return strings.Contains(title, arg), nil
	case "network_idle":
		return true, client.WaitForIdle(ctx, route, parseIntOr(arg, 500))
	default:
		return false, nil
	}
}

// urlMatches treats a pattern starting with "/" as a path match against the
// URL's path component; anything else is a plain substring match.
func urlMatches(url, pattern string) bool {
	if strings.HasPrefix(pattern, "/") {
		return strings.HasPrefix(util.ExtractURLPath(url), pattern)
	}
	return strings.Contains(url, pattern)
}

func parseIntOr(s string, fallback int) int {
	n := 0
	any := false
	for _, r := range s {
		if r < '0' || r > '9' {
			return fallback
		}
		n = n*10 + int(r-'0')
		any = true
	}
	if !any {
		return fallback
	}
	return n
}
