package mfile

import (
	"bytes"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	id3v2 "github.com/bogem/id3v2/v2"
)

func TestSplitKeywords(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"rock \x00live\x00 demo  ", []string{"rock", "live", "demo"}},
		{"", nil},
		{"   ", nil},
		{"\x00\x00", nil},
		{"one", []string{"one"}},
	}
	for _, tc := range tests {
		if got := splitKeywords(tc.in); !reflect.DeepEqual(got, tc.want) {
			t.Errorf("splitKeywords(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

// mpegFrame is one MPEG1 Layer III frame at 128 kbps / 44100 Hz, no padding.
// Frame length 144*128000/44100 = 417 bytes, 1152 samples.
func mpegFrame() []byte {
	frame := make([]byte, 417)
	copy(frame, []byte{0xff, 0xfb, 0x90, 0x00})
	return frame
}

func TestMpegDuration(t *testing.T) {
	var buf bytes.Buffer
	const frames = 200
	for i := 0; i < frames; i++ {
		buf.Write(mpegFrame())
	}
	seconds, err := mpegDuration(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("mpegDuration: %v", err)
	}
	want := float64(frames) * 1152 / 44100 // ≈5.22s
	if diff := seconds - want; diff > 0.001 || diff < -0.001 {
		t.Errorf("duration = %gs, want %gs", seconds, want)
	}
}

func TestMpegDurationSkipsID3(t *testing.T) {
	var buf bytes.Buffer
	// 100-byte ID3v2 tag body (syncsafe size 100).
	buf.Write([]byte{'I', 'D', '3', 4, 0, 0, 0, 0, 0, 100})
	buf.Write(make([]byte, 100))
	buf.Write(mpegFrame())
	seconds, err := mpegDuration(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("mpegDuration: %v", err)
	}
	if seconds == 0 {
		t.Error("frame after ID3 tag not counted")
	}
}

func TestOpenMp3ReadsFrames(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "song.mp3")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		t.Fatalf("id3v2.Open: %v", err)
	}
	tag.SetArtist("A")
	tag.SetAlbum("B")
	tag.SetTitle("T")
	tag.SetGenre("G")
	tag.AddTextFrame(tag.CommonID("Track number/Position in set"), id3v2.EncodingUTF8, "3/10")
	tag.AddUserDefinedTextFrame(id3v2.UserDefinedTextFrame{
		Encoding:    id3v2.EncodingUTF8,
		Description: "FMPS_Rating",
		Value:       "0.9",
	})
	tag.AddCommentFrame(id3v2.CommentFrame{
		Encoding: id3v2.EncodingUTF8,
		Language: "eng",
		Text:     "live bootleg",
	})
	if err := tag.Save(); err != nil {
		t.Fatalf("tag.Save: %v", err)
	}
	tag.Close()

	m, err := OpenMp3(dir, path)
	if err != nil {
		t.Fatalf("OpenMp3: %v", err)
	}
	if m.Artist() != "A" || m.Album() != "B" || m.Title() != "T" || m.Genre() != "G" {
		t.Errorf("tags = %q/%q/%q/%q", m.Artist(), m.Album(), m.Title(), m.Genre())
	}
	if m.Track() != 3 {
		t.Errorf("Track() = %d", m.Track())
	}
	r, err := m.Rating()
	if err != nil {
		t.Fatalf("Rating: %v", err)
	}
	if r.Float() != 4.5 {
		t.Errorf("Rating() = %g", r.Float())
	}
	if got := m.Keywords(); !reflect.DeepEqual(got, []string{"live", "bootleg"}) {
		t.Errorf("Keywords() = %v", got)
	}
	if m.Folder() != dir || m.Path() != path {
		t.Errorf("Folder/Path = %q/%q", m.Folder(), m.Path())
	}
	if links := m.Links(); len(links) != 1 || links[0] != path {
		t.Errorf("Links() = %v", links)
	}
}
