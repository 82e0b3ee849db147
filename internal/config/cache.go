package config

import (
    "os"
    "strings"
    "time"
)

// CacheConfig defines settings for the response cache middleware that sits
// in front of the public space listing and search endpoints.  Methods lists
// the cacheable HTTP methods, KeyStrategy decides which parts of the request
// make up the key.
type CacheConfig struct {
    Enabled      bool
    Methods      map[string]bool
    TTL          time.Duration
    KeyStrategy  string
    Prefix       string
    MaxBodyBytes int
}

// LoadCacheConfig reads CACHE_* variables.  Listings change whenever a host
// edits a space, so the default TTL is short.
func LoadCacheConfig() CacheConfig {
    return CacheConfig{
        Enabled:      parseBool(os.Getenv("CACHE_ENABLED"), true),
        Methods:      parseMethods(strOr(os.Getenv("CACHE_METHODS"), "GET")),
        TTL:          parseDur(os.Getenv("CACHE_TTL"), 30*time.Second),
        KeyStrategy:  strOr(os.Getenv("CACHE_KEY_STRATEGY"), "route_query"),
        Prefix:       strOr(os.Getenv("CACHE_PREFIX"), "cache:spaces"),
        MaxBodyBytes: parseInt(os.Getenv("CACHE_MAX_BODY_BYTES"), 1<<20),
    }
}

func parseMethods(s string) map[string]bool {
    m := map[string]bool{}
    for _, p := range strings.Split(s, ",") {
        p = strings.TrimSpace(strings.ToUpper(p))
        if p != "" {
            m[p] = true
        }
    }
    return m
}
