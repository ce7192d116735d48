package handler

import (
	"fmt"
	"strconv"
	"time"
)

// parsePositiveInt parses a strictly positive integer query value
func parsePositiveInt(v string) (int, error) {
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, fmt.Errorf("value must be positive: %d", n)
	}
	return n, nil
}

// parseDate parses a yyyy-mm-dd query value
func parseDate(v string) (time.Time, error) {
	return time.Parse("2006-01-02", v)
}

// parseDateOr parses a yyyy-mm-dd query value, falling back when empty
func parseDateOr(v string, fallback time.Time) (time.Time, error) {
	if v == "" {
		return fallback, nil
	}
	return parseDate(v)
}
