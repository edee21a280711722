package http

import (
	xutil "EconCast/pkg/util"

	"github.com/labstack/echo/v4"
)

// ParseIntDefault parses string to int or returns default if empty/invalid.
func ParseIntDefault(s string, def int) int { return xutil.ParseIntDefault(s, def) }

// QueryIntDefault reads an integer query parameter.
func QueryIntDefault(c echo.Context, name string, def int) int {
	return ParseIntDefault(c.QueryParam(name), def)
}
