package oem

import (
	"strconv"
	"strings"
)

// Float decodes numeric sensor fields across firmware generations: current
// iLO releases report JSON numbers, older ones strings ("47"). Values that
// parse as neither decode to zero rather than failing the whole document.
type Float float64

func (f *Float) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		*f = 0
		return nil
	}
	*f = Float(v)
	return nil
}
