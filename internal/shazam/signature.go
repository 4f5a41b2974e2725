// Package shazam is the pluggable identify utility: it decodes an acoustic
// signature file and asks the recognition service who the song is. It never
// touches the scan pipeline.
package shazam

import (
	"encoding/base64"
	"encoding/binary"
	"hash/crc32"
	"strings"

	"github.com/AdrienPensart/critical/internal/errs"
)

// DataURIPrefix wraps signatures exchanged as text.
const DataURIPrefix = "data:audio/vnd.shazam.sig;base64,"

const (
	magic1     = 0xcafe2580
	magic2     = 0x94119c00
	headerSize = 48
)

// sampleRates maps the shifted sample-rate id of the header.
var sampleRates = map[uint32]uint32{
	1: 8000,
	2: 11025,
	3: 16000,
	4: 32000,
	5: 44100,
	6: 48000,
}

// Signature is a decoded acoustic signature: enough to re-encode it for the
// recognition call and to derive the sample length.
type Signature struct {
	SampleRate    uint32
	NumberSamples uint32
	Peaks         []byte // raw frequency-peak payload, opaque here
	raw           []byte
}

// DecodeString accepts either a data URI or raw base64.
func DecodeString(s string) (*Signature, error) {
	s = strings.TrimSpace(strings.TrimPrefix(s, DataURIPrefix))
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, err
	}
	return Decode(raw)
}

// Decode parses the framed binary signature. Layout, little-endian: a
// 48-byte header (magic, CRC-32 of everything past the first 8 bytes,
// payload size, second magic, the shifted sample-rate id and the padded
// sample count), then the frequency-peak table.
func Decode(raw []byte) (*Signature, error) {
	if len(raw) < headerSize {
		return nil, &errs.InvalidDataLength{Length: len(raw)}
	}
	le := binary.LittleEndian
	if m := le.Uint32(raw[0:4]); m != magic1 {
		return nil, &errs.InvalidMagicNumber{Magic: m}
	}
	checksum := le.Uint32(raw[4:8])
	if actual := crc32.ChecksumIEEE(raw[8:]); actual != checksum {
		return nil, &errs.InvalidCRC32{Checksum: checksum}
	}
	if size := le.Uint32(raw[8:12]); int(size) != len(raw)-headerSize {
		return nil, &errs.InvalidDataLength{Length: int(size)}
	}
	if m := le.Uint32(raw[12:16]); m != magic2 {
		return nil, &errs.InvalidMagicNumber{Magic: m}
	}
	rateID := le.Uint32(raw[28:32]) >> 27
	sampleRate, ok := sampleRates[rateID]
	if !ok {
		return nil, &errs.InvalidSampleRate{ID: rateID}
	}
	paddedSamples := le.Uint32(raw[40:44])
	// The stored count carries sample_rate*0.24 of lead-in padding.
	numberSamples := paddedSamples - uint32(float64(sampleRate)*0.24)

	return &Signature{
		SampleRate:    sampleRate,
		NumberSamples: numberSamples,
		Peaks:         raw[headerSize:],
		raw:           raw,
	}, nil
}

// Encode renders the signature back to its data URI form.
func (s *Signature) Encode() string {
	return DataURIPrefix + base64.StdEncoding.EncodeToString(s.raw)
}

// Seconds is the audio length covered by the signature.
func (s *Signature) Seconds() float64 {
	if s.SampleRate == 0 {
		return 0
	}
	return float64(s.NumberSamples) / float64(s.SampleRate)
}

