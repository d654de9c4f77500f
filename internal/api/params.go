package api

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

const dateLayout = "2006-01-02"

// parseInstant accepts RFC 3339 timestamps and plain dates. A plain date means
// midnight in the schedule time zone.
func parseInstant(value string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation(dateLayout, value, loc); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid time %q, expected RFC 3339 or YYYY-MM-DD", value)
}

// queryInstant reads an optional time query parameter, falling back to def.
func queryInstant(c *gin.Context, name string, loc *time.Location, def time.Time) (time.Time, error) {
	raw := c.Query(name)
	if raw == "" {
		return def, nil
	}
	t, err := parseInstant(raw, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: %w", name, err)
	}
	return t, nil
}

// requiredQuery reads a mandatory query parameter.
func requiredQuery(c *gin.Context, name string) (string, bool) {
	v := c.Query(name)
	if v == "" {
		badRequest(c, fmt.Sprintf("Query parameter '%s' is required.", name))
		return "", false
	}
	return v, true
}

// queryWeekday reads an optional weekday (0-6) query parameter.
func queryWeekday(c *gin.Context, name string) (*time.Weekday, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < int(time.Sunday) || n > int(time.Saturday) {
		return nil, fmt.Errorf("%s must be between 0 and 6", name)
	}
	wd := time.Weekday(n)
	return &wd, nil
}
