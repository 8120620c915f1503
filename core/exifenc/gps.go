package exifenc

import "math"

// SecondsDenominator fixes five decimal places for the seconds component.
const SecondsDenominator = 100000

// gpsVersion is GPSVersionID 2.3.0.0.
var gpsVersion = []byte{2, 3, 0, 0}

// Rational is an EXIF unsigned rational.
type Rational struct {
	Num uint32
	Den uint32
}

// Float returns the rational as a float64; a zero denominator yields 0.
func (r Rational) Float() float64 {
	if r.Den == 0 {
		return 0
	}
	return float64(r.Num) / float64(r.Den)
}

// ToDMS splits |v| into whole degrees, whole minutes and seconds.
func ToDMS(v float64) [3]Rational {
	abs := math.Abs(v)
	deg := math.Floor(abs)
	minutes := (abs - deg) * 60
	min := math.Floor(minutes)
	sec := math.Round((minutes - min) * 60 * SecondsDenominator)

	if sec >= 60*SecondsDenominator {
		sec -= 60 * SecondsDenominator
		min++
	}
	if min >= 60 {
		min -= 60
		deg++
	}
	return [3]Rational{
		{Num: uint32(deg), Den: 1},
		{Num: uint32(min), Den: 1},
		{Num: uint32(sec), Den: SecondsDenominator},
	}
}

// FromDMS converts a DMS triple back to unsigned decimal degrees.
func FromDMS(dms [3]Rational) float64 {
	return dms[0].Float() + dms[1].Float()/60 + dms[2].Float()/3600
}

// LatitudeRef returns "N" for non-negative latitudes and "S" otherwise.
func LatitudeRef(lat float64) string {
	if lat >= 0 {
		return "N"
	}
	return "S"
}

// LongitudeRef returns "E" for non-negative longitudes and "W" otherwise.
func LongitudeRef(lon float64) string {
	if lon >= 0 {
		return "E"
	}
	return "W"
}
