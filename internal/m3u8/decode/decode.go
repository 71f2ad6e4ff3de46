// Package decode binds a token.Node stream onto the typed m3u8.DecodedTag
// variants. Unlike a generic visitor-style deserializer, this is a direct,
// schema-specific state machine: each well-known tag name has its own small
// function that knows exactly which Node shape follows it, which produces
// clearer errors than routing every tag through one generic dispatch table.
package decode

import (
	"fmt"

	"github.com/snapetech/hlsfetch/internal/m3u8"
	"github.com/snapetech/hlsfetch/internal/m3u8/token"
)

// Context names the decoder state active when an error is raised, mirroring
// the state machine the reference deserializer drives explicitly.
type Context int

const (
	CtxManifest Context = iota
	CtxTag
	CtxTagName
	CtxIntAttribute
	CtxFloatAttribute
	CtxStringAttribute
	CtxAttributes
	CtxAttributeName
	CtxEnumAttribute
	CtxUri
)

func (c Context) String() string {
	names := [...]string{
		"Manifest", "Tag", "TagName", "IntAttribute", "FloatAttribute",
		"StringAttribute", "Attributes", "AttributeName", "EnumAttribute", "Uri",
	}
	if int(c) < len(names) {
		return names[c]
	}
	return "Unknown"
}

// UnexpectedEofError reports that the node stream ended while a context
// still expected more input.
type UnexpectedEofError struct {
	Ctx Context
}

func (e *UnexpectedEofError) Error() string {
	return fmt.Sprintf("m3u8 decode: unexpected end of input in context %s", e.Ctx)
}

// SyntaxError reports a Node of the wrong kind for the active context.
type SyntaxError struct {
	Ctx  Context
	Got  token.NodeKind
	Want string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("m3u8 decode: in context %s: got %s, want %s", e.Ctx, e.Got, e.Want)
}

// MessageError wraps a decoder-detected semantic problem that isn't a bare
// shape mismatch (an unrecognised METHOD keyword, say).
type MessageError struct {
	Msg string
}

func (e *MessageError) Error() string { return "m3u8 decode: " + e.Msg }

// Manifest is the fully decoded sequence of lines.
type Manifest struct {
	Lines []m3u8.DecodedLine
}

type cursor struct {
	nodes []token.Node
	pos   int
}

func (c *cursor) peek() (token.Node, bool) {
	if c.pos >= len(c.nodes) {
		return token.Node{}, false
	}
	return c.nodes[c.pos], true
}

func (c *cursor) next() (token.Node, bool) {
	n, ok := c.peek()
	if ok {
		c.pos++
	}
	return n, ok
}

func (c *cursor) expect(ctx Context, kind token.NodeKind, want string) (token.Node, error) {
	n, ok := c.next()
	if !ok {
		return token.Node{}, &UnexpectedEofError{Ctx: ctx}
	}
	if n.Kind != kind {
		return token.Node{}, &SyntaxError{Ctx: ctx, Got: n.Kind, Want: want}
	}
	return n, nil
}

// Decode runs the typed decoder over a Node stream and returns the decoded
// manifest.
func Decode(nodes []token.Node) (*Manifest, error) {
	c := &cursor{nodes: nodes}
	if _, err := c.expect(CtxManifest, token.ManifestStart, "ManifestStart"); err != nil {
		return nil, err
	}

	var m Manifest
	for {
		n, ok := c.peek()
		if !ok {
			return nil, &UnexpectedEofError{Ctx: CtxManifest}
		}
		if n.Kind == token.ManifestEnd {
			c.pos++
			break
		}
		switch n.Kind {
		case token.Uri:
			c.pos++
			m.Lines = append(m.Lines, m3u8.DecodedLine{IsURI: true, URI: n.Str})
		case token.TagStart:
			c.pos++
			tag, err := decodeTag(c)
			if err != nil {
				return nil, err
			}
			m.Lines = append(m.Lines, m3u8.DecodedLine{Tag: tag})
		default:
			return nil, &SyntaxError{Ctx: CtxManifest, Got: n.Kind, Want: "Uri or TagStart"}
		}
	}
	return &m, nil
}

func decodeTag(c *cursor) (m3u8.DecodedTag, error) {
	nameNode, err := c.expect(CtxTagName, token.TagName, "TagName")
	if err != nil {
		return m3u8.DecodedTag{}, err
	}
	name := nameNode.Name

	switch name {
	case "EXTM3U":
		return m3u8.DecodedTag{Kind: m3u8.TagM3u}, nil
	case "EXT-X-INDEPENDENT-SEGMENTS":
		return m3u8.DecodedTag{Kind: m3u8.TagIndependentSegments}, nil
	case "EXT-X-DISCONTINUITY":
		return m3u8.DecodedTag{Kind: m3u8.TagDiscontinuity}, nil
	case "EXT-X-ENDLIST":
		return m3u8.DecodedTag{Kind: m3u8.TagEndList}, nil
	case "EXTINF":
		return decodeInf(c)
	case "EXT-X-KEY":
		return decodeKey(c)
	case "EXT-X-MAP":
		return decodeMap(c)
	case "EXT-X-MEDIA-SEQUENCE":
		n, err := decodeIntAttribute(c)
		if err != nil {
			return m3u8.DecodedTag{}, err
		}
		return m3u8.DecodedTag{Kind: m3u8.TagMediaSequence, MediaSequence: uint64(n)}, nil
	case "EXT-X-TARGETDURATION":
		n, err := decodeIntAttribute(c)
		if err != nil {
			return m3u8.DecodedTag{}, err
		}
		return m3u8.DecodedTag{Kind: m3u8.TagTargetDuration, TargetDuration: uint64(n)}, nil
	case "EXT-X-VERSION":
		n, err := decodeIntAttribute(c)
		if err != nil {
			return m3u8.DecodedTag{}, err
		}
		return m3u8.DecodedTag{Kind: m3u8.TagVersion, Version: uint64(n)}, nil
	case "EXT-X-PLAYLIST-TYPE":
		s, err := decodeStringAttribute(c)
		if err != nil {
			return m3u8.DecodedTag{}, err
		}
		return m3u8.DecodedTag{Kind: m3u8.TagPlaylistType, PlaylistType: s}, nil
	case "EXT-X-PROGRAM-DATE-TIME":
		s, err := decodeStringAttribute(c)
		if err != nil {
			return m3u8.DecodedTag{}, err
		}
		return m3u8.DecodedTag{Kind: m3u8.TagProgramDateTime, ProgramDateTime: s}, nil
	case "EXT-X-STREAM-INF":
		return decodeStreamInf(c)
	case "EXT-X-MEDIA":
		return decodeMedia(c)
	case "EXT-X-I-FRAMES-ONLY":
		return m3u8.DecodedTag{Kind: m3u8.TagIFramesOnly}, nil
	case "EXT-X-DISCONTINUITY-SEQUENCE":
		n, err := decodeIntAttribute(c)
		if err != nil {
			return m3u8.DecodedTag{}, err
		}
		return m3u8.DecodedTag{Kind: m3u8.TagDiscontinuitySequence, DiscontinuitySequence: uint64(n)}, nil
	case "EXT-X-DATERANGE":
		a, err := decodeGenericAttributes(c)
		if err != nil {
			return m3u8.DecodedTag{}, err
		}
		return m3u8.DecodedTag{Kind: m3u8.TagDaterange, Daterange: a}, nil
	case "EXT-X-SESSION-DATA":
		a, err := decodeGenericAttributes(c)
		if err != nil {
			return m3u8.DecodedTag{}, err
		}
		return m3u8.DecodedTag{Kind: m3u8.TagSessionData, SessionData: a}, nil
	case "EXT-X-SESSION-KEY":
		attrs, err := readAttributes(c)
		if err != nil {
			return m3u8.DecodedTag{}, err
		}
		key, err := keyAttrsFrom(attrs)
		if err != nil {
			return m3u8.DecodedTag{}, err
		}
		return m3u8.DecodedTag{Kind: m3u8.TagSessionKey, SessionKey: key}, nil
	case "EXT-X-START":
		a, err := decodeGenericAttributes(c)
		if err != nil {
			return m3u8.DecodedTag{}, err
		}
		return m3u8.DecodedTag{Kind: m3u8.TagStart, Start: a}, nil
	case "EXT-X-I-FRAME-STREAM-INF":
		a, err := decodeGenericAttributes(c)
		if err != nil {
			return m3u8.DecodedTag{}, err
		}
		return m3u8.DecodedTag{Kind: m3u8.TagIFrameStreamInf, IFrameStreamInf: a}, nil
	default:
		return decodeUnknown(c, name)
	}
}

// decodeInf reads the EXTINF special form: Float then String.
func decodeInf(c *cursor) (m3u8.DecodedTag, error) {
	fn, err := c.expect(CtxFloatAttribute, token.Float, "Float")
	if err != nil {
		return m3u8.DecodedTag{}, err
	}
	sn, err := c.expect(CtxStringAttribute, token.String, "String")
	if err != nil {
		return m3u8.DecodedTag{}, err
	}
	return m3u8.DecodedTag{Kind: m3u8.TagInf, Inf: fn.Float, InfTitle: sn.Str}, nil
}

func decodeIntAttribute(c *cursor) (int64, error) {
	n, err := c.expect(CtxIntAttribute, token.Integer, "Integer")
	if err != nil {
		return 0, err
	}
	return n.Int, nil
}

func decodeStringAttribute(c *cursor) (string, error) {
	n, err := c.expect(CtxStringAttribute, token.String, "String")
	if err != nil {
		return "", err
	}
	return n.Str, nil
}

// readAttributes consumes an AttributesStart .. AttributesEnd run and
// returns the name->value map.
func readAttributes(c *cursor) (map[string]m3u8.AttributeValue, error) {
	if _, err := c.expect(CtxAttributes, token.AttributesStart, "AttributesStart"); err != nil {
		return nil, err
	}
	out := make(map[string]m3u8.AttributeValue)
	for {
		n, ok := c.peek()
		if !ok {
			return nil, &UnexpectedEofError{Ctx: CtxAttributes}
		}
		if n.Kind == token.AttributesEnd {
			c.pos++
			return out, nil
		}
		nameNode, err := c.expect(CtxAttributeName, token.AttributeName, "AttributeName")
		if err != nil {
			return nil, err
		}
		valNode, err := c.expect(CtxEnumAttribute, token.AttributeValue, "AttributeValue")
		if err != nil {
			return nil, err
		}
		out[nameNode.Name] = valNode.AttrVal
	}
}

func decodeKey(c *cursor) (m3u8.DecodedTag, error) {
	attrs, err := readAttributes(c)
	if err != nil {
		return m3u8.DecodedTag{}, err
	}
	key, err := keyAttrsFrom(attrs)
	if err != nil {
		return m3u8.DecodedTag{}, err
	}
	return m3u8.DecodedTag{Kind: m3u8.TagKey, Key: key}, nil
}

// keyAttrsFrom binds an attribute-list map onto m3u8.KeyAttrs. Shared by
// EXT-X-KEY and EXT-X-SESSION-KEY, which carry the identical attribute set.
func keyAttrsFrom(attrs map[string]m3u8.AttributeValue) (m3u8.KeyAttrs, error) {
	methodVal, ok := attrs["METHOD"]
	if !ok || methodVal.Kind != m3u8.AttrKeyword {
		return m3u8.KeyAttrs{}, &MessageError{Msg: "EXT-X-KEY missing METHOD"}
	}
	method, ok := m3u8.ParseEncryptionMethod(methodVal.Str)
	if !ok {
		return m3u8.KeyAttrs{}, &MessageError{Msg: fmt.Sprintf("EXT-X-KEY unknown METHOD %q", methodVal.Str)}
	}
	key := m3u8.KeyAttrs{Method: method}
	if v, ok := attrs["URI"]; ok && v.Kind == m3u8.AttrQuotedString {
		key.URI = v.Str
	}
	if v, ok := attrs["IV"]; ok && v.Kind == m3u8.AttrHex {
		key.IV = v.Hex
	}
	if v, ok := attrs["KEYFORMAT"]; ok && v.Kind == m3u8.AttrQuotedString {
		key.Keyformat = v.Str
	}
	if v, ok := attrs["KEYFORMATVERSIONS"]; ok && v.Kind == m3u8.AttrQuotedString {
		key.Keyformatversions = v.Str
	}
	return key, nil
}

// decodeGenericAttributes reads an attribute-list tag with no bespoke typed
// record (Daterange, SessionData, Start, IFrameStreamInf), keeping every
// attribute name and value the same way decodeUnknown does for unrecognised
// tags. The attributes pass through readAttributes' map, so the returned
// Attributes do not keep the order the attributes had on the line.
func decodeGenericAttributes(c *cursor) (m3u8.Attributes, error) {
	attrs, err := readAttributes(c)
	if err != nil {
		return m3u8.Attributes{}, err
	}
	a := m3u8.NewAttributes()
	for k, v := range attrs {
		a.Set(k, v)
	}
	return a, nil
}

func decodeMap(c *cursor) (m3u8.DecodedTag, error) {
	attrs, err := readAttributes(c)
	if err != nil {
		return m3u8.DecodedTag{}, err
	}
	var mp m3u8.MapAttrs
	if v, ok := attrs["URI"]; ok && v.Kind == m3u8.AttrQuotedString {
		mp.URI = v.Str
	}
	if v, ok := attrs["BYTERANGE"]; ok && v.Kind == m3u8.AttrQuotedString {
		mp.ByteRange = v.Str
	}
	return m3u8.DecodedTag{Kind: m3u8.TagMap, Map: mp}, nil
}

func decodeStreamInf(c *cursor) (m3u8.DecodedTag, error) {
	attrs, err := readAttributes(c)
	if err != nil {
		return m3u8.DecodedTag{}, err
	}
	var s m3u8.StreamInfAttrs
	if v, ok := attrs["BANDWIDTH"]; ok && v.Kind == m3u8.AttrInteger {
		s.Bandwidth = v.Int
	}
	if v, ok := attrs["AVERAGE-BANDWIDTH"]; ok && v.Kind == m3u8.AttrInteger {
		s.AverageBandwidth = v.Int
	}
	if v, ok := attrs["CODECS"]; ok && v.Kind == m3u8.AttrQuotedString {
		s.Codecs = v.Str
	}
	if v, ok := attrs["RESOLUTION"]; ok && v.Kind == m3u8.AttrResolution {
		s.Resolution = fmt.Sprintf("%dx%d", v.ResWidth, v.ResHeight)
	}
	if v, ok := attrs["FRAME-RATE"]; ok && v.Kind == m3u8.AttrFloat {
		s.FrameRate = v.Float
	}
	if v, ok := attrs["AUDIO"]; ok && v.Kind == m3u8.AttrQuotedString {
		s.Audio = v.Str
	}
	if v, ok := attrs["VIDEO"]; ok && v.Kind == m3u8.AttrQuotedString {
		s.Video = v.Str
	}
	if v, ok := attrs["SUBTITLES"]; ok && v.Kind == m3u8.AttrQuotedString {
		s.Subtitles = v.Str
	}
	return m3u8.DecodedTag{Kind: m3u8.TagStreamInf, StreamInf: s}, nil
}

func decodeMedia(c *cursor) (m3u8.DecodedTag, error) {
	attrs, err := readAttributes(c)
	if err != nil {
		return m3u8.DecodedTag{}, err
	}
	var md m3u8.MediaAttrs
	if v, ok := attrs["TYPE"]; ok && v.Kind == m3u8.AttrKeyword {
		md.Type = v.Str
	}
	if v, ok := attrs["URI"]; ok && v.Kind == m3u8.AttrQuotedString {
		md.URI = v.Str
	}
	if v, ok := attrs["GROUP-ID"]; ok && v.Kind == m3u8.AttrQuotedString {
		md.GroupID = v.Str
	}
	if v, ok := attrs["NAME"]; ok && v.Kind == m3u8.AttrQuotedString {
		md.Name = v.Str
	}
	if v, ok := attrs["LANGUAGE"]; ok && v.Kind == m3u8.AttrQuotedString {
		md.Language = v.Str
	}
	if v, ok := attrs["DEFAULT"]; ok && v.Kind == m3u8.AttrKeyword {
		md.Default = v.Str == "YES"
	}
	if v, ok := attrs["AUTOSELECT"]; ok && v.Kind == m3u8.AttrKeyword {
		md.Autoselect = v.Str == "YES"
	}
	return m3u8.DecodedTag{Kind: m3u8.TagMedia, Media: md}, nil
}

// decodeUnknown preserves whatever argument shape follows an unrecognised
// tag name so round-tripping / re-emission stays possible, per the
// full-tag-name-preservation convention.
func decodeUnknown(c *cursor, name string) (m3u8.DecodedTag, error) {
	n, ok := c.peek()
	if !ok {
		return m3u8.DecodedTag{}, &UnexpectedEofError{Ctx: CtxTag}
	}
	raw := m3u8.TagArgs{Kind: m3u8.ArgsNone}
	switch n.Kind {
	case token.Float:
		c.pos++
		sn, err := c.expect(CtxStringAttribute, token.String, "String")
		if err != nil {
			return m3u8.DecodedTag{}, err
		}
		raw = m3u8.TagArgs{Kind: m3u8.ArgsDuration, Duration: n.Float, Title: sn.Str}
	case token.Integer:
		c.pos++
		raw = m3u8.TagArgs{Kind: m3u8.ArgsInteger, Int: n.Int}
	case token.String:
		c.pos++
		raw = m3u8.TagArgs{Kind: m3u8.ArgsString, Str: n.Str}
	case token.AttributesStart:
		attrs, err := readAttributes(c)
		if err != nil {
			return m3u8.DecodedTag{}, err
		}
		a := m3u8.NewAttributes()
		for k, v := range attrs {
			a.Set(k, v)
		}
		raw = m3u8.TagArgs{Kind: m3u8.ArgsAttributes, Attrs: a}
	default:
		// No argument nodes for this tag (ArgsNone case).
	}
	return m3u8.DecodedTag{Kind: m3u8.TagUnknown, UnknownName: name, UnknownRaw: raw}, nil
}
