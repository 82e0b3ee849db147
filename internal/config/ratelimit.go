package config

import (
    "os"
    "strconv"
    "strings"
    "time"
)

// RateLimitConfig drives one token-bucket limiter.  Every scope ("auth",
// "booking", ...) reads RATE_LIMIT_<SCOPE>_* first and falls back to the
// global RATE_LIMIT_* variables, then to the built-in defaults.
type RateLimitConfig struct {
    Scope          string
    Enabled        bool
    Capacity       int
    RefillTokens   int
    RefillInterval time.Duration
    TTL            time.Duration
    KeyStrategy    string
    Prefix         string
    Debug          bool
}

// scoped built-in defaults; unknown scopes use the global ones
var rateDefaults = map[string]RateLimitConfig{
    "":        {Capacity: 60, RefillTokens: 1, RefillInterval: time.Second, KeyStrategy: "ip_user_route"},
    "auth":    {Capacity: 10, RefillTokens: 1, RefillInterval: 6 * time.Second, KeyStrategy: "ip_route"},
    "booking": {Capacity: 20, RefillTokens: 1, RefillInterval: 3 * time.Second, KeyStrategy: "user_route"},
}

func LoadRateLimitConfig(scope string) RateLimitConfig {
    scope = strings.ToLower(strings.TrimSpace(scope))
    d, ok := rateDefaults[scope]
    if !ok {
        d = rateDefaults[""]
    }
    env := func(name string) string {
        if scope != "" {
            if v := os.Getenv("RATE_LIMIT_" + strings.ToUpper(scope) + "_" + name); v != "" {
                return v
            }
        }
        return os.Getenv("RATE_LIMIT_" + name)
    }

    cfg := RateLimitConfig{
        Scope:          scope,
        Enabled:        parseBool(env("ENABLED"), true),
        Capacity:       parseInt(env("CAPACITY"), d.Capacity),
        RefillTokens:   parseInt(env("REFILL_TOKENS"), d.RefillTokens),
        RefillInterval: parseDur(env("REFILL_INTERVAL"), d.RefillInterval),
        TTL:            parseDur(env("TTL"), 10*time.Minute),
        KeyStrategy:    strOr(env("KEY_STRATEGY"), d.KeyStrategy),
        Prefix:         strOr(env("PREFIX"), "rl"),
        Debug:          parseBool(env("DEBUG"), false),
    }
    if scope != "" {
        cfg.Prefix = cfg.Prefix + ":" + scope
    }
    if cfg.Capacity < 1 { cfg.Capacity = 1 }
    if cfg.RefillTokens < 1 { cfg.RefillTokens = 1 }
    if cfg.RefillInterval <= 0 { cfg.RefillInterval = time.Second }
    // keep the bucket alive for a few refill periods at least
    if minTTL := 5 * cfg.RefillInterval; cfg.TTL < minTTL { cfg.TTL = minTTL }
    return cfg
}

func strOr(v, d string) string { if v != "" { return v }; return d }

func parseBool(v string, d bool) bool {
    switch strings.ToLower(v) {
    case "1", "true", "yes", "on":
        return true
    case "0", "false", "no", "off":
        return false
    }
    return d
}

func parseInt(v string, d int) int {
    if n, err := strconv.Atoi(v); err == nil { return n }
    return d
}

func parseDur(v string, d time.Duration) time.Duration {
    if dur, err := time.ParseDuration(v); err == nil { return dur }
    return d
}
