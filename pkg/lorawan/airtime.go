package lorawan

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// FSK packets carry a 3 byte sync word and a length byte in front of the payload.
const (
	fskSyncWordSize = 3
	fskLengthSize   = 1
	fskCRCSize      = 2
)

// ErrInvalidAirtimeParams is returned when the modulation parameters can not
// describe a transmission.
var ErrInvalidAirtimeParams = errors.New("invalid airtime parameters")

// LoRaParams describes a LoRa transmission for time-on-air calculation
type LoRaParams struct {
	SpreadingFactor int
	Bandwidth       int // Hz
	CodeRate        int // 1 = 4/5 ... 4 = 4/8
	PreambleSymbols int
	PayloadSize     int
	ImplicitHeader  bool
	CRC             bool
}

// LoRaTimeOnAir returns the time on air of a LoRa packet.
func LoRaTimeOnAir(p LoRaParams) (time.Duration, error) {
	if p.SpreadingFactor < 5 || p.SpreadingFactor > 12 {
		return 0, fmt.Errorf("%w: spreading factor %d", ErrInvalidAirtimeParams, p.SpreadingFactor)
	}
	if p.Bandwidth <= 0 {
		return 0, fmt.Errorf("%w: bandwidth %d", ErrInvalidAirtimeParams, p.Bandwidth)
	}
	if p.CodeRate < 1 || p.CodeRate > 4 {
		return 0, fmt.Errorf("%w: code rate %d", ErrInvalidAirtimeParams, p.CodeRate)
	}
	if p.PayloadSize < 0 || p.PreambleSymbols < 0 {
		return 0, fmt.Errorf("%w: negative size", ErrInvalidAirtimeParams)
	}

	sf := float64(p.SpreadingFactor)
	symbolUs := float64(uint32(1)<<uint(p.SpreadingFactor)) * 1e6 / float64(p.Bandwidth)

	// low data rate optimization is mandated above 16ms symbols
	de := 0.0
	if symbolUs >= 16000 {
		de = 1
	}

	header := 20.0
	if p.ImplicitHeader {
		header = 0
	}

	crc := 0.0
	if p.CRC {
		crc = 1
	}

	var num, den, preambleExtra float64
	if p.SpreadingFactor < 7 {
		num = 8*float64(p.PayloadSize) - 4*sf + 16*crc + header
		den = 4 * sf
		preambleExtra = 6.25
	} else {
		num = 8*float64(p.PayloadSize) - 4*sf + 8 + 16*crc + header
		den = 4 * (sf - 2*de)
		preambleExtra = 4.25
	}

	payloadSymbols := 8 + math.Max(math.Ceil(num/den), 0)*float64(p.CodeRate+4)
	totalUs := (float64(p.PreambleSymbols) + preambleExtra + payloadSymbols) * symbolUs

	return time.Duration(math.Round(totalUs * float64(time.Microsecond))), nil
}

// FSKTimeOnAir returns the time on air of an FSK packet.
func FSKTimeOnAir(bitrate, preambleBytes, payloadSize int, crc bool) (time.Duration, error) {
	if bitrate <= 0 {
		return 0, fmt.Errorf("%w: bitrate %d", ErrInvalidAirtimeParams, bitrate)
	}
	if payloadSize < 0 || preambleBytes < 0 {
		return 0, fmt.Errorf("%w: negative size", ErrInvalidAirtimeParams)
	}

	bytes := preambleBytes + fskSyncWordSize + fskLengthSize + payloadSize
	if crc {
		bytes += fskCRCSize
	}

	totalUs := float64(bytes*8) * 1e6 / float64(bitrate)
	return time.Duration(math.Round(totalUs * float64(time.Microsecond))), nil
}
