package mfile

import (
	"io"
	"os"
	"strconv"
	"strings"

	id3v2 "github.com/bogem/id3v2/v2"

	"github.com/AdrienPensart/critical/internal/errs"
	"github.com/AdrienPensart/critical/internal/rating"
)

// Mp3File reads ID3v2 frames from an MP3 file. The duration comes from a
// scan of the MPEG audio frames, not from the tag.
type Mp3File struct {
	folder string
	path   string

	title, artist, album, genre string
	track                       int64
	fmpsRating                  string
	hasRating                   bool
	comment                     string
}

// OpenMp3 parses the ID3 tag of the MP3 file at path. All frame content is
// copied out so the file handle can be closed immediately.
func OpenMp3(folder, path string) (*Mp3File, error) {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return nil, &errs.TagError{Path: path, Format: "mp3", Err: err}
	}
	defer tag.Close()

	m := &Mp3File{
		folder: folder,
		path:   path,
		title:  tag.Title(),
		artist: tag.Artist(),
		album:  tag.Album(),
		genre:  tag.Genre(),
	}
	if text := tag.GetTextFrame(tag.CommonID("Track number/Position in set")).Text; text != "" {
		// "3" or "3/12"
		num, _, _ := strings.Cut(text, "/")
		if n, err := strconv.ParseInt(num, 10, 64); err == nil {
			m.track = n
		}
	}
	for _, framer := range tag.GetFrames(tag.CommonID("User defined text information frame")) {
		udt, ok := framer.(id3v2.UserDefinedTextFrame)
		if !ok {
			continue
		}
		if udt.Description == "FMPS_Rating" {
			m.fmpsRating = udt.Value
			m.hasRating = true
			break
		}
	}
	for _, framer := range tag.GetFrames(tag.CommonID("Comments")) {
		comment, ok := framer.(id3v2.CommentFrame)
		if !ok {
			continue
		}
		if comment.Language == "eng" {
			m.comment = comment.Text
			break
		}
	}
	return m, nil
}

func (m *Mp3File) Path() string   { return m.path }
func (m *Mp3File) Folder() string { return m.folder }

func (m *Mp3File) Artist() string { return m.artist }
func (m *Mp3File) Album() string  { return m.album }
func (m *Mp3File) Title() string  { return m.title }
func (m *Mp3File) Genre() string  { return m.genre }
func (m *Mp3File) Track() int64   { return m.track }

// Rating reads the FMPS_Rating user text frame, a unit fraction scaled by 5
// before validation.
func (m *Mp3File) Rating() (rating.Rating, error) {
	if !m.hasRating {
		return rating.Zero, nil
	}
	value, err := strconv.ParseFloat(m.fmpsRating, 64)
	if err != nil {
		return rating.Zero, nil
	}
	return rating.FromUnit(m.path, value)
}

// Keywords come from the first English COMM frame, whitespace-separated.
func (m *Mp3File) Keywords() []string {
	return splitKeywords(m.comment)
}

func (m *Mp3File) Size() (int64, error) { return fileSize(m.path) }

func (m *Mp3File) Links() []string { return []string{m.path} }

// Length scans the MPEG frame headers and sums their durations. Returns 0
// when no valid frame is found.
func (m *Mp3File) Length() int64 {
	f, err := os.Open(m.path)
	if err != nil {
		return 0
	}
	defer f.Close()
	seconds, err := mpegDuration(f)
	if err != nil {
		return 0
	}
	return int64(seconds)
}

// MPEG frame-header tables, Layer III only. Indexed by the header's bitrate
// and sample-rate fields.
var (
	bitratesV1L3 = [16]int{0, 32, 40, 48, 56, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320}
	bitratesV2L3 = [16]int{0, 8, 16, 24, 32, 40, 48, 56, 64, 80, 96, 112, 128, 144, 160}
	sampleRates  = map[byte][4]int{
		0: {11025, 12000, 8000, 0},  // MPEG 2.5
		2: {22050, 24000, 16000, 0}, // MPEG 2
		3: {44100, 48000, 32000, 0}, // MPEG 1
	}
)

// mpegDuration walks the audio frames of r, skipping any leading ID3v2 tag,
// and returns the accumulated duration in seconds. The header layout is the
// 32-bit big-endian MPEG frame sync described in ISO/IEC 11172-3.
func mpegDuration(r io.ReadSeeker) (float64, error) {
	var head [10]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		return 0, err
	}
	offset := int64(0)
	if string(head[0:3]) == "ID3" {
		// Syncsafe 28-bit tag size, excluding the 10-byte header.
		size := int64(head[6]&0x7f)<<21 | int64(head[7]&0x7f)<<14 |
			int64(head[8]&0x7f)<<7 | int64(head[9]&0x7f)
		offset = size + 10
	}
	if _, err := r.Seek(offset, io.SeekStart); err != nil {
		return 0, err
	}

	var seconds float64
	var hdr [4]byte
	for {
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			break
		}
		if hdr[0] != 0xff || hdr[1]&0xe0 != 0xe0 {
			// Lost sync: slide one byte forward.
			if _, err := r.Seek(-3, io.SeekCurrent); err != nil {
				break
			}
			continue
		}
		version := hdr[1] >> 3 & 0x03
		layer := hdr[1] >> 1 & 0x03
		if version == 1 || layer != 1 { // reserved version or not Layer III
			if _, err := r.Seek(-3, io.SeekCurrent); err != nil {
				break
			}
			continue
		}
		bitrateIdx := hdr[2] >> 4
		rateIdx := hdr[2] >> 2 & 0x03
		padding := int(hdr[2] >> 1 & 0x01)
		sampleRate := sampleRates[version][rateIdx]
		var bitrate, samplesPerFrame int
		if version == 3 {
			bitrate = bitratesV1L3[bitrateIdx]
			samplesPerFrame = 1152
		} else {
			bitrate = bitratesV2L3[bitrateIdx]
			samplesPerFrame = 576
		}
		if bitrate == 0 || sampleRate == 0 {
			if _, err := r.Seek(-3, io.SeekCurrent); err != nil {
				break
			}
			continue
		}
		frameLen := samplesPerFrame / 8 * bitrate * 1000 / sampleRate
		frameLen += padding
		seconds += float64(samplesPerFrame) / float64(sampleRate)
		if _, err := r.Seek(int64(frameLen-4), io.SeekCurrent); err != nil {
			break
		}
	}
	return seconds, nil
}
