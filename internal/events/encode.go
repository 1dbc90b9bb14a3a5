package events

import (
	"bytes"
	"errors"
	"strconv"
)

// ErrUnterminatedObject is returned when a line to be annotated does not end with '}'.
var ErrUnterminatedObject = errors.New("line does not end with a closing brace")

// AppendStatistics returns line with "mean" and "sd" appended as the last two
// fields, each formatted with two decimals. Existing fields keep their order
// and formatting.
func AppendStatistics(line []byte, mean, stddev float64) ([]byte, error) {
	trimmed := bytes.TrimRight(line, " \t\r\n")
	if len(trimmed) == 0 || trimmed[len(trimmed)-1] != '}' {
		return nil, ErrUnterminatedObject
	}
	body := trimmed[:len(trimmed)-1]

	out := make([]byte, 0, len(trimmed)+40)
	out = append(out, body...)
	if inner := bytes.TrimSpace(body); len(inner) > 0 && inner[len(inner)-1] != '{' {
		out = append(out, ',', ' ')
	}
	out = append(out, `"mean": "`...)
	out = append(out, FormatAmount(mean)...)
	out = append(out, `", "sd": "`...)
	out = append(out, FormatAmount(stddev)...)
	out = append(out, `"}`...)
	return out, nil
}

// FormatAmount renders v with exactly two digits after the decimal point.
func FormatAmount(v float64) string {
	s := strconv.FormatFloat(v, 'f', 2, 64)
	if s == "-0.00" {
		return "0.00"
	}
	return s
}
