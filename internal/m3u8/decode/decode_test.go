package decode

import (
	"errors"
	"strings"
	"testing"

	"github.com/snapetech/hlsfetch/internal/m3u8"
	"github.com/snapetech/hlsfetch/internal/m3u8/lex"
	"github.com/snapetech/hlsfetch/internal/m3u8/token"
)

func decodeManifest(t *testing.T, text string) *Manifest {
	t.Helper()
	lines, err := lex.Lex(strings.NewReader(text))
	if err != nil {
		t.Fatalf("lex: %v", err)
	}
	m, err := Decode(token.Tokenize(lines))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return m
}

func TestDecode_mediaPlaylistRoundTrip(t *testing.T) {
	text := strings.Join([]string{
		"#EXTM3U",
		"#EXT-X-VERSION:3",
		"#EXT-X-TARGETDURATION:10",
		"#EXT-X-MEDIA-SEQUENCE:5",
		"#EXTINF:9.009,",
		"segment5.ts",
		"#EXT-X-ENDLIST",
	}, "\n")
	m := decodeManifest(t, text)
	if len(m.Lines) != 7 {
		t.Fatalf("got %d lines, want 7: %+v", len(m.Lines), m.Lines)
	}
	if m.Lines[0].Tag.Kind != m3u8.TagM3u {
		t.Errorf("line 0 kind = %v", m.Lines[0].Tag.Kind)
	}
	if m.Lines[1].Tag.Kind != m3u8.TagVersion || m.Lines[1].Tag.Version != 3 {
		t.Errorf("line 1 = %+v", m.Lines[1])
	}
	if m.Lines[3].Tag.Kind != m3u8.TagMediaSequence || m.Lines[3].Tag.MediaSequence != 5 {
		t.Errorf("line 3 = %+v", m.Lines[3])
	}
	if m.Lines[4].Tag.Kind != m3u8.TagInf || m.Lines[4].Tag.Inf != 9.009 {
		t.Errorf("line 4 = %+v", m.Lines[4])
	}
	if !m.Lines[5].IsURI || m.Lines[5].URI != "segment5.ts" {
		t.Errorf("line 5 = %+v", m.Lines[5])
	}
}

func TestDecode_key(t *testing.T) {
	text := `#EXTM3U
#EXT-X-KEY:METHOD=AES-128,URI="https://example.com/key.bin",IV=0x00000000000000000000000000000001
`
	m := decodeManifest(t, text)
	key := m.Lines[1].Tag
	if key.Kind != m3u8.TagKey {
		t.Fatalf("kind = %v", key.Kind)
	}
	if key.Key.Method != m3u8.MethodAES128 {
		t.Errorf("method = %v", key.Key.Method)
	}
	if key.Key.URI != "https://example.com/key.bin" {
		t.Errorf("uri = %q", key.Key.URI)
	}
	if len(key.Key.IV) != 16 {
		t.Errorf("iv len = %d", len(key.Key.IV))
	}
}

func TestDecode_unknownTagPreserved(t *testing.T) {
	text := "#EXTM3U\n#EXT-X-VENDOR-FOO:42\n"
	m := decodeManifest(t, text)
	tag := m.Lines[1].Tag
	if tag.Kind != m3u8.TagUnknown || tag.UnknownName != "EXT-X-VENDOR-FOO" {
		t.Fatalf("tag = %+v", tag)
	}
	if tag.UnknownRaw.Kind != m3u8.ArgsInteger || tag.UnknownRaw.Int != 42 {
		t.Errorf("raw = %+v", tag.UnknownRaw)
	}
}

func TestDecode_streamInf(t *testing.T) {
	text := `#EXTM3U
#EXT-X-STREAM-INF:BANDWIDTH=1256000,RESOLUTION=1024x768,CODECS="avc1.4d401f,mp4a.40.2"
variant.m3u8
`
	m := decodeManifest(t, text)
	tag := m.Lines[1].Tag
	if tag.Kind != m3u8.TagStreamInf {
		t.Fatalf("kind = %v", tag.Kind)
	}
	if tag.StreamInf.Bandwidth != 1256000 {
		t.Errorf("bandwidth = %d", tag.StreamInf.Bandwidth)
	}
	if tag.StreamInf.Resolution != "1024x768" {
		t.Errorf("resolution = %q", tag.StreamInf.Resolution)
	}
}

func TestDecode_iFramesOnlyAndDiscontinuitySequence(t *testing.T) {
	text := "#EXTM3U\n#EXT-X-I-FRAMES-ONLY\n#EXT-X-DISCONTINUITY-SEQUENCE:7\n"
	m := decodeManifest(t, text)
	if m.Lines[1].Tag.Kind != m3u8.TagIFramesOnly {
		t.Errorf("line 1 kind = %v", m.Lines[1].Tag.Kind)
	}
	if m.Lines[2].Tag.Kind != m3u8.TagDiscontinuitySequence || m.Lines[2].Tag.DiscontinuitySequence != 7 {
		t.Errorf("line 2 = %+v", m.Lines[2])
	}
}

func TestDecode_daterangeSessionDataStartIFrameStreamInf(t *testing.T) {
	text := `#EXTM3U
#EXT-X-DATERANGE:ID="ad1",START-DATE="2020-01-01T00:00:00Z"
#EXT-X-SESSION-DATA:DATA-ID="com.example.title",VALUE="My Show"
#EXT-X-START:TIME-OFFSET=-10.0
#EXT-X-I-FRAME-STREAM-INF:BANDWIDTH=500000,URI="iframe.m3u8"
`
	m := decodeManifest(t, text)

	dr := m.Lines[1].Tag
	if dr.Kind != m3u8.TagDaterange {
		t.Fatalf("daterange kind = %v", dr.Kind)
	}
	if v, ok := dr.Daterange.Get("ID"); !ok || v.Str != "ad1" {
		t.Errorf("daterange ID = %+v, ok=%v", v, ok)
	}

	sd := m.Lines[2].Tag
	if sd.Kind != m3u8.TagSessionData {
		t.Fatalf("session-data kind = %v", sd.Kind)
	}
	if v, ok := sd.SessionData.Get("VALUE"); !ok || v.Str != "My Show" {
		t.Errorf("session-data VALUE = %+v, ok=%v", v, ok)
	}

	st := m.Lines[3].Tag
	if st.Kind != m3u8.TagStart {
		t.Fatalf("start kind = %v", st.Kind)
	}
	if v, ok := st.Start.Get("TIME-OFFSET"); !ok || v.Float != -10.0 {
		t.Errorf("start TIME-OFFSET = %+v, ok=%v", v, ok)
	}

	ifsi := m.Lines[4].Tag
	if ifsi.Kind != m3u8.TagIFrameStreamInf {
		t.Fatalf("i-frame-stream-inf kind = %v", ifsi.Kind)
	}
	if v, ok := ifsi.IFrameStreamInf.Get("URI"); !ok || v.Str != "iframe.m3u8" {
		t.Errorf("i-frame-stream-inf URI = %+v, ok=%v", v, ok)
	}
}

func TestDecode_sessionKeySharesKeyAttrShape(t *testing.T) {
	text := `#EXTM3U
#EXT-X-SESSION-KEY:METHOD=AES-128,URI="https://example.com/key.bin"
`
	m := decodeManifest(t, text)
	tag := m.Lines[1].Tag
	if tag.Kind != m3u8.TagSessionKey {
		t.Fatalf("kind = %v", tag.Kind)
	}
	if tag.SessionKey.Method != m3u8.MethodAES128 {
		t.Errorf("method = %v", tag.SessionKey.Method)
	}
	if tag.SessionKey.URI != "https://example.com/key.bin" {
		t.Errorf("uri = %q", tag.SessionKey.URI)
	}
}

func TestDecode_malformedKeyMethodIsMessageError(t *testing.T) {
	lines, err := lex.Lex(strings.NewReader("#EXTM3U\n#EXT-X-KEY:METHOD=ROT13\n"))
	if err != nil {
		t.Fatalf("lex: %v", err)
	}
	_, err = Decode(token.Tokenize(lines))
	if err == nil {
		t.Fatal("expected an error for unknown METHOD")
	}
	var msgErr *MessageError
	if !errors.As(err, &msgErr) {
		t.Errorf("err = %v, want *MessageError", err)
	}
}
