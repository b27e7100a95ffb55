package tle

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// LineLength is the fixed width of a TLE line. Both lines of an element
// set are exactly 69 columns; anything shorter is rejected outright.
const LineLength = 69

// Column layout for TLE line 1 (0-based slice bounds, per the standard
// 1-based column spec):
// 3-7: catalog number, 19-20: epoch year, 21-32: epoch day of year,
// 54-61: BSTAR drag term (exponent notation), 69: checksum.
const (
	l1CatalogStart = 2
	l1CatalogEnd   = 7
	l1EpochYrStart = 18
	l1EpochYrEnd   = 20
	l1EpochDyStart = 20
	l1EpochDyEnd   = 32
	l1BstarStart   = 53
	l1BstarEnd     = 61
)

// Column layout for TLE line 2:
// 3-7: catalog number, 9-16: inclination, 18-25: RAAN,
// 27-33: eccentricity (implied leading decimal), 35-42: argument of
// perigee, 44-51: mean anomaly, 53-63: mean motion, 69: checksum.
const (
	l2CatalogStart = 2
	l2CatalogEnd   = 7
	l2InclStart    = 8
	l2InclEnd      = 16
	l2RAANStart    = 17
	l2RAANEnd      = 25
	l2EccStart     = 26
	l2EccEnd       = 33
	l2ArgPStart    = 34
	l2ArgPEnd      = 42
	l2MeanAnStart  = 43
	l2MeanAnEnd    = 51
	l2MeanMoStart  = 52
	l2MeanMoEnd    = 63
)

// Epoch years below this pivot are 20xx, at or above are 19xx. The TLE
// format carries two-digit years; 57 splits at Sputnik.
const epochCenturyPivot = 57

var (
	ErrLineLength      = errors.New("tle: line shorter than 69 columns")
	ErrLineNumber      = errors.New("tle: unexpected line number")
	ErrChecksum        = errors.New("tle: checksum mismatch")
	ErrCatalogMismatch = errors.New("tle: catalog number differs between lines")
)

// ElementSet is one raw two-line element set as received from a provider,
// with the optional name line already stripped off.
type ElementSet struct {
	Name  string // from the "0 " name line when the feed carries one
	Line1 string
	Line2 string
}

// Elements holds the parsed orbital elements of a validated element set.
// Bstar is nil when the provider published a sentinel or blank drag term;
// an unfit drag solution is absent, not zero.
type Elements struct {
	ObjectID         int
	Epoch            time.Time
	InclinationDeg   float64
	RAANDeg          float64
	Eccentricity     float64
	ArgPerigeeDeg    float64
	MeanAnomalyDeg   float64
	MeanMotionRevDay float64
	Bstar            *float64
}

// Parse validates both lines (length, line numbers, checksums, matching
// catalog numbers) and extracts the orbital elements. Any malformed
// required field rejects the whole set; only the drag term degrades to
// absent.
func Parse(set ElementSet) (*Elements, error) {
	line1, line2 := set.Line1, set.Line2

	if len(line1) < LineLength || len(line2) < LineLength {
		return nil, ErrLineLength
	}
	line1, line2 = line1[:LineLength], line2[:LineLength]

	if line1[0] != '1' {
		return nil, fmt.Errorf("%w: line 1 starts with %q", ErrLineNumber, line1[0])
	}
	if line2[0] != '2' {
		return nil, fmt.Errorf("%w: line 2 starts with %q", ErrLineNumber, line2[0])
	}
	if err := VerifyChecksum(line1); err != nil {
		return nil, fmt.Errorf("line 1: %w", err)
	}
	if err := VerifyChecksum(line2); err != nil {
		return nil, fmt.Errorf("line 2: %w", err)
	}

	cat1, err := parseInt(line1[l1CatalogStart:l1CatalogEnd], "catalog number")
	if err != nil {
		return nil, err
	}
	cat2, err := parseInt(line2[l2CatalogStart:l2CatalogEnd], "catalog number")
	if err != nil {
		return nil, err
	}
	if cat1 != cat2 {
		return nil, fmt.Errorf("%w: %d vs %d", ErrCatalogMismatch, cat1, cat2)
	}

	epoch, err := parseEpoch(line1[l1EpochYrStart:l1EpochYrEnd], line1[l1EpochDyStart:l1EpochDyEnd])
	if err != nil {
		return nil, err
	}

	incl, err := parseFloat(line2[l2InclStart:l2InclEnd], "inclination")
	if err != nil {
		return nil, err
	}
	if incl < 0 || incl > 180 {
		return nil, fmt.Errorf("tle: inclination %v out of range [0,180]", incl)
	}

	raan, err := parseFloat(line2[l2RAANStart:l2RAANEnd], "raan")
	if err != nil {
		return nil, err
	}

	ecc, err := parseImpliedDecimal(line2[l2EccStart:l2EccEnd], "eccentricity")
	if err != nil {
		return nil, err
	}
	if ecc < 0 || ecc >= 1 {
		return nil, fmt.Errorf("tle: eccentricity %v out of range [0,1)", ecc)
	}

	argp, err := parseFloat(line2[l2ArgPStart:l2ArgPEnd], "argument of perigee")
	if err != nil {
		return nil, err
	}

	meanAn, err := parseFloat(line2[l2MeanAnStart:l2MeanAnEnd], "mean anomaly")
	if err != nil {
		return nil, err
	}

	meanMo, err := parseFloat(line2[l2MeanMoStart:l2MeanMoEnd], "mean motion")
	if err != nil {
		return nil, err
	}
	if meanMo <= 0 {
		return nil, fmt.Errorf("tle: mean motion %v must be positive", meanMo)
	}

	return &Elements{
		ObjectID:         cat1,
		Epoch:            epoch,
		InclinationDeg:   incl,
		RAANDeg:          raan,
		Eccentricity:     ecc,
		ArgPerigeeDeg:    argp,
		MeanAnomalyDeg:   meanAn,
		MeanMotionRevDay: meanMo,
		Bstar:            parseDragTerm(line1[l1BstarStart:l1BstarEnd]),
	}, nil
}

// Checksum computes the TLE checksum over the first 68 columns: each
// digit contributes its value, each minus sign contributes 1, everything
// else contributes 0, modulo 10.
func Checksum(line string) int {
	sum := 0
	for i := 0; i < len(line) && i < LineLength-1; i++ {
		c := line[i]
		switch {
		case c >= '0' && c <= '9':
			sum += int(c - '0')
		case c == '-':
			sum++
		}
	}
	return sum % 10
}

// VerifyChecksum compares the computed checksum against column 69.
func VerifyChecksum(line string) error {
	if len(line) < LineLength {
		return ErrLineLength
	}
	last := line[LineLength-1]
	if last < '0' || last > '9' {
		return fmt.Errorf("%w: checksum column %q is not a digit", ErrChecksum, last)
	}
	want := int(last - '0')
	if got := Checksum(line); got != want {
		return fmt.Errorf("%w: computed %d, line carries %d", ErrChecksum, got, want)
	}
	return nil
}

// parseEpoch converts the two-digit year and fractional day-of-year
// fields to a UTC timestamp, rounded to microseconds so the value
// round-trips through timestamp columns unchanged.
func parseEpoch(yearField, dayField string) (time.Time, error) {
	yy, err := parseInt(yearField, "epoch year")
	if err != nil {
		return time.Time{}, err
	}
	year := 2000 + yy
	if yy >= epochCenturyPivot {
		year = 1900 + yy
	}

	day, err := parseFloat(dayField, "epoch day")
	if err != nil {
		return time.Time{}, err
	}
	if day < 1 || day >= 367 {
		return time.Time{}, fmt.Errorf("tle: epoch day %v out of range [1,367)", day)
	}

	jan1 := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	offset := time.Duration((day - 1) * 24 * float64(time.Hour))
	return jan1.Add(offset).Round(time.Microsecond), nil
}

// parseDragTerm decodes the BSTAR field's exponent notation, e.g.
// " 36258-4" means 0.36258e-4. Blank fields, the all-zero sentinel the
// providers publish when no drag was fit, and anything malformed all
// come back nil.
func parseDragTerm(field string) *float64 {
	s := strings.TrimSpace(field)
	if s == "" {
		return nil
	}

	sign := 1.0
	switch s[0] {
	case '-':
		sign = -1.0
		s = s[1:]
	case '+':
		s = s[1:]
	}
	if len(s) < 2 {
		return nil
	}

	// Exponent is the trailing sign+digit pair; mantissa is everything
	// before it, read as 0.NNNNN.
	expStr := s[len(s)-2:]
	mantStr := s[:len(s)-2]
	if expStr[0] != '-' && expStr[0] != '+' {
		return nil
	}

	mant, err := strconv.ParseUint(mantStr, 10, 64)
	if err != nil {
		return nil
	}
	if mant == 0 {
		return nil // sentinel: no drag solution fit
	}

	exp, err := strconv.Atoi(expStr)
	if err != nil {
		return nil
	}

	value := sign * float64(mant) * pow10(exp-len(mantStr))
	return &value
}

func pow10(n int) float64 {
	out := 1.0
	for ; n > 0; n-- {
		out *= 10
	}
	for ; n < 0; n++ {
		out /= 10
	}
	return out
}

// parseImpliedDecimal reads a field with an implied leading decimal
// point, e.g. "0006703" means 0.0006703.
func parseImpliedDecimal(field, name string) (float64, error) {
	s := strings.TrimSpace(field)
	if s == "" {
		return 0, fmt.Errorf("tle: %s field is blank", name)
	}
	v, err := strconv.ParseFloat("0."+s, 64)
	if err != nil {
		return 0, fmt.Errorf("tle: malformed %s %q: %w", name, field, err)
	}
	return v, nil
}

func parseFloat(field, name string) (float64, error) {
	s := strings.TrimSpace(field)
	if s == "" {
		return 0, fmt.Errorf("tle: %s field is blank", name)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("tle: malformed %s %q: %w", name, field, err)
	}
	return v, nil
}

func parseInt(field, name string) (int, error) {
	s := strings.TrimSpace(field)
	if s == "" {
		return 0, fmt.Errorf("tle: %s field is blank", name)
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("tle: malformed %s %q: %w", name, field, err)
	}
	return v, nil
}
