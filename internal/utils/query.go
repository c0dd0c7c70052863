package utils

import (
	"net/url"
	"strconv"
	"strings"
)

// QueryInt parses an integer query parameter, falling back to def when the
// value is missing or malformed.
func QueryInt(q url.Values, key string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(q.Get(key)))
	if err != nil {
		return def
	}
	return n
}

// QueryBool returns nil when the parameter is absent or unparsable.
func QueryBool(q url.Values, key string) *bool {
	v, err := strconv.ParseBool(strings.TrimSpace(q.Get(key)))
	if err != nil {
		return nil
	}
	return &v
}
