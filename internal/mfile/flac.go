package mfile

import (
	"strconv"

	"github.com/go-flac/flacvorbis"
	flac "github.com/go-flac/go-flac"

	"github.com/AdrienPensart/critical/internal/errs"
	"github.com/AdrienPensart/critical/internal/rating"
)

// FlacFile reads Vorbis comments and STREAMINFO from a FLAC container.
type FlacFile struct {
	folder   string
	path     string
	stream   *flac.StreamInfoBlock
	comments *flacvorbis.MetaDataBlockVorbisComment
}

// OpenFlac parses the FLAC file at path.
func OpenFlac(folder, path string) (*FlacFile, error) {
	f, err := flac.ParseFile(path)
	if err != nil {
		return nil, &errs.TagError{Path: path, Format: "flac", Err: err}
	}
	stream, err := f.GetStreamInfo()
	if err != nil {
		return nil, &errs.TagError{Path: path, Format: "flac", Err: err}
	}
	file := &FlacFile{folder: folder, path: path, stream: stream}
	for _, meta := range f.Meta {
		if meta.Type != flac.VorbisComment {
			continue
		}
		comments, err := flacvorbis.ParseFromMetaDataBlock(*meta)
		if err != nil {
			return nil, &errs.TagError{Path: path, Format: "flac", Err: err}
		}
		file.comments = comments
		break
	}
	return file, nil
}

func (f *FlacFile) Path() string   { return f.path }
func (f *FlacFile) Folder() string { return f.folder }

// Length is the stream duration in seconds, from STREAMINFO.
func (f *FlacFile) Length() int64 {
	if f.stream == nil || f.stream.SampleRate == 0 {
		return 0
	}
	return f.stream.SampleCount / int64(f.stream.SampleRate)
}

func (f *FlacFile) comment(key string) string {
	if f.comments == nil {
		return ""
	}
	values, err := f.comments.Get(key)
	if err != nil || len(values) == 0 {
		return ""
	}
	return values[0]
}

func (f *FlacFile) Artist() string { return f.comment(flacvorbis.FIELD_ARTIST) }
func (f *FlacFile) Album() string  { return f.comment(flacvorbis.FIELD_ALBUM) }
func (f *FlacFile) Title() string  { return f.comment(flacvorbis.FIELD_TITLE) }
func (f *FlacFile) Genre() string  { return f.comment(flacvorbis.FIELD_GENRE) }

func (f *FlacFile) Track() int64 {
	n, err := strconv.ParseInt(f.comment(flacvorbis.FIELD_TRACKNUMBER), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// Rating reads the fmps_rating comment, a unit fraction scaled by 5 before
// validation. A missing or unparseable comment is Zero; a parseable value
// off the half-step scale is an error.
func (f *FlacFile) Rating() (rating.Rating, error) {
	value, err := strconv.ParseFloat(f.comment("FMPS_RATING"), 64)
	if err != nil {
		return rating.Zero, nil
	}
	return rating.FromUnit(f.path, value)
}

// Keywords come from the description comment, whitespace-separated.
func (f *FlacFile) Keywords() []string {
	return splitKeywords(f.comment("DESCRIPTION"))
}

func (f *FlacFile) Size() (int64, error) { return fileSize(f.path) }

func (f *FlacFile) Links() []string { return []string{f.path} }
