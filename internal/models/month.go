package models

import (
	"strconv"
	"strings"
)

// MonthNames holds the canonical Spanish month names indexed by month number.
var MonthNames = [13]string{
	"",
	"ENERO", "FEBRERO", "MARZO", "ABRIL", "MAYO", "JUNIO",
	"JULIO", "AGOSTO", "SEPTIEMBRE", "OCTUBRE", "NOVIEMBRE", "DICIEMBRE",
}

var monthAbbreviations = map[string]int{
	"ENE": 1, "FEB": 2, "MAR": 3, "ABR": 4, "MAY": 5, "JUN": 6,
	"JUL": 7, "AGO": 8, "SEP": 9, "SEPT": 9, "SET": 9, "SETIEMBRE": 9,
	"OCT": 10, "NOV": 11, "DIC": 12,
	"EN": 1, "FE": 2, "MZ": 3, "AB": 4, "MY": 5, "JN": 6,
	"JL": 7, "AG": 8, "SE": 9, "OC": 10, "NV": 11, "DI": 12,
}

// MonthName returns the canonical Spanish name for month m, or "" when m is
// outside 1..12.
func MonthName(m int) string {
	if m < 1 || m > 12 {
		return ""
	}
	return MonthNames[m]
}

// MonthFromToken resolves a month word, abbreviation or two-digit number.
// It returns 0 when the token is not recognised.
func MonthFromToken(token string) int {
	token = strings.TrimSuffix(strings.ToUpper(strings.TrimSpace(token)), ".")
	if token == "" {
		return 0
	}
	if n, err := strconv.Atoi(token); err == nil {
		if n >= 1 && n <= 12 {
			return n
		}
		return 0
	}
	for i := 1; i <= 12; i++ {
		if MonthNames[i] == token {
			return i
		}
	}
	return monthAbbreviations[token]
}

// MonthHint returns the month the fragment's token points at, or 0. It is
// informational only: movement dates always use the expected period.
func (d DateFragment) MonthHint() int {
	return MonthFromToken(d.MonthToken)
}
