// File: internal/infra/metrics/metrics.go
package metrics

import "strings"

// norm keeps label values bounded and consistent.
func norm(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "unknown"
	}
	return s
}
