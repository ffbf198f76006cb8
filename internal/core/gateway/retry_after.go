package gateway

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// retryAfterHeader reads Retry-After as delta-seconds or an HTTP date.
func retryAfterHeader(resp *http.Response) time.Duration {
	if resp == nil || resp.Header == nil {
		return 0
	}

	retry := strings.TrimSpace(resp.Header.Get("Retry-After"))
	if retry == "" {
		return 0
	}

	if seconds, err := strconv.Atoi(retry); err == nil && seconds >= 0 {
		return time.Duration(seconds) * time.Second
	}
	if parsed, err := http.ParseTime(retry); err == nil {
		if wait := time.Until(parsed); wait > 0 {
			return wait
		}
	}

	return 0
}
