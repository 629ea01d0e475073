package utils

import (
	"net/url"
	"strconv"
	"strings"
)

// QueryInt safely parses an integer from query parameters.
// If missing or invalid, returns the provided default.
func QueryInt(q url.Values, key string, def int) int {
	v := q.Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// QueryEnum returns the upper-cased value of key if it is one of allowed,
// otherwise def.
func QueryEnum(q url.Values, key, def string, allowed ...string) string {
	v := strings.ToUpper(strings.TrimSpace(q.Get(key)))
	for _, a := range allowed {
		if v == a {
			return v
		}
	}
	return def
}

// Page clamps limit and offset to a window over n items.
func Page(n, limit, offset int) (start, end int) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	if offset > n {
		offset = n
	}
	end = offset + limit
	if end > n {
		end = n
	}
	return offset, end
}
