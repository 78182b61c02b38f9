package redis

import "fmt"

// Key construction helpers for the state mirror and sync cache

// StateKey returns the key for the runtime state mirror (hash)
// Pattern: {prefix}:state
func StateKey(prefix string) string {
	return fmt.Sprintf("%s:state", prefix)
}

// SolarCacheKey returns the key for the cached solar sync result (JSON string)
// Pattern: {prefix}:solar
func SolarCacheKey(prefix string) string {
	return fmt.Sprintf("%s:solar", prefix)
}
