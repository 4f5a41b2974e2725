package shazam

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"hash/crc32"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/AdrienPensart/critical/internal/errs"
)

// validSignature builds a syntactically valid signature blob.
func validSignature(rateID, paddedSamples uint32, peaks []byte) []byte {
	le := binary.LittleEndian
	raw := make([]byte, headerSize+len(peaks))
	le.PutUint32(raw[0:4], magic1)
	le.PutUint32(raw[8:12], uint32(len(peaks)))
	le.PutUint32(raw[12:16], magic2)
	le.PutUint32(raw[28:32], rateID<<27)
	le.PutUint32(raw[40:44], paddedSamples)
	copy(raw[headerSize:], peaks)
	le.PutUint32(raw[4:8], crc32.ChecksumIEEE(raw[8:]))
	return raw
}

func TestDecodeValid(t *testing.T) {
	// 16 kHz with 10 seconds of samples plus the 0.24 s lead-in.
	raw := validSignature(3, 16000*10+3840, []byte{1, 2, 3, 4})
	sig, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if sig.SampleRate != 16000 {
		t.Errorf("SampleRate = %d", sig.SampleRate)
	}
	if sig.NumberSamples != 16000*10 {
		t.Errorf("NumberSamples = %d", sig.NumberSamples)
	}
	if got := sig.Seconds(); got != 10 {
		t.Errorf("Seconds() = %g", got)
	}
	if len(sig.Peaks) != 4 {
		t.Errorf("Peaks = %v", sig.Peaks)
	}
}

func TestDecodeRoundTripsThroughDataURI(t *testing.T) {
	raw := validSignature(5, 44100, nil)
	sig, err := Decode(raw)
	if err != nil {
		t.Fatal(err)
	}
	again, err := DecodeString(sig.Encode())
	if err != nil {
		t.Fatalf("DecodeString: %v", err)
	}
	if again.SampleRate != sig.SampleRate {
		t.Errorf("sample rate changed across round trip")
	}
}

func TestDecodeErrors(t *testing.T) {
	short := make([]byte, 10)
	if _, err := Decode(short); err == nil {
		t.Error("short input accepted")
	} else {
		var e *errs.InvalidDataLength
		if !errors.As(err, &e) {
			t.Errorf("short input: %v, want InvalidDataLength", err)
		}
	}

	badMagic := validSignature(3, 16000, nil)
	binary.LittleEndian.PutUint32(badMagic[0:4], 0xdeadbeef)
	if _, err := Decode(badMagic); err == nil {
		t.Error("bad magic accepted")
	} else {
		var e *errs.InvalidMagicNumber
		if !errors.As(err, &e) {
			t.Errorf("bad magic: %v, want InvalidMagicNumber", err)
		}
	}

	badCRC := validSignature(3, 16000, []byte{9})
	badCRC[len(badCRC)-1] ^= 0xff
	if _, err := Decode(badCRC); err == nil {
		t.Error("bad CRC accepted")
	} else {
		var e *errs.InvalidCRC32
		if !errors.As(err, &e) {
			t.Errorf("bad CRC: %v, want InvalidCRC32", err)
		}
	}

	badRate := validSignature(7, 16000, nil)
	if _, err := Decode(badRate); err == nil {
		t.Error("bad sample rate accepted")
	} else {
		var e *errs.InvalidSampleRate
		if !errors.As(err, &e) {
			t.Errorf("bad rate: %v, want InvalidSampleRate", err)
		}
	}
}

func TestRecognize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req tagRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"track": map[string]any{
				"title":    "T",
				"subtitle": "A",
				"sections": []map[string]any{{
					"type": "SONG",
					"metadata": []map[string]string{
						{"title": "Album", "text": "B"},
					},
				}},
			},
		})
	}))
	defer srv.Close()

	sig, err := Decode(validSignature(3, 16000, nil))
	if err != nil {
		t.Fatal(err)
	}
	song, err := Recognize(context.Background(), srv.URL, "/m/a.flac", sig)
	if err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	if song.Artist != "A" || song.Title != "T" || song.Album != "B" || song.Path != "/m/a.flac" {
		t.Errorf("song = %+v", song)
	}
}

func TestRecognizeNoMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	sig, err := Decode(validSignature(3, 16000, nil))
	if err != nil {
		t.Fatal(err)
	}
	_, err = Recognize(context.Background(), srv.URL, "/m/a.flac", sig)
	var noMatch *errs.NoMatch
	if !errors.As(err, &noMatch) {
		t.Fatalf("err = %v, want NoMatch", err)
	}
}
