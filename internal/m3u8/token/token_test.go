package token

import (
	"testing"

	"github.com/snapetech/hlsfetch/internal/m3u8"
)

func TestTokenize_wrapsManifestStartEnd(t *testing.T) {
	nodes := Tokenize(nil)
	if len(nodes) != 2 {
		t.Fatalf("got %d nodes, want 2", len(nodes))
	}
	if nodes[0].Kind != ManifestStart || nodes[1].Kind != ManifestEnd {
		t.Errorf("nodes = %+v", nodes)
	}
}

func TestTokenize_integerTag(t *testing.T) {
	lines := []m3u8.Line{
		{Tag: m3u8.Tag{Name: "EXT-X-VERSION", Args: m3u8.TagArgs{Kind: m3u8.ArgsInteger, Int: 3}}},
	}
	nodes := Tokenize(lines)
	want := []NodeKind{ManifestStart, TagStart, TagName, Integer, ManifestEnd}
	assertKinds(t, nodes, want)
	if nodes[2].Name != "EXT-X-VERSION" {
		t.Errorf("TagName = %q", nodes[2].Name)
	}
	if nodes[3].Int != 3 {
		t.Errorf("Integer = %d", nodes[3].Int)
	}
}

func TestTokenize_attributeTag(t *testing.T) {
	attrs := m3u8.NewAttributes()
	attrs.Set("METHOD", m3u8.AttributeValue{Kind: m3u8.AttrKeyword, Str: "AES-128"})
	lines := []m3u8.Line{
		{Tag: m3u8.Tag{Name: "EXT-X-KEY", Args: m3u8.TagArgs{Kind: m3u8.ArgsAttributes, Attrs: attrs}}},
	}
	nodes := Tokenize(lines)
	want := []NodeKind{
		ManifestStart, TagStart, TagName, AttributesStart,
		AttributeName, AttributeValue, AttributesEnd, ManifestEnd,
	}
	assertKinds(t, nodes, want)
}

func TestTokenize_uriLine(t *testing.T) {
	lines := []m3u8.Line{{IsURI: true, URI: "segment0.ts"}}
	nodes := Tokenize(lines)
	assertKinds(t, nodes, []NodeKind{ManifestStart, Uri, ManifestEnd})
	if nodes[1].Str != "segment0.ts" {
		t.Errorf("Uri = %q", nodes[1].Str)
	}
}

func assertKinds(t *testing.T, nodes []Node, want []NodeKind) {
	t.Helper()
	if len(nodes) != len(want) {
		t.Fatalf("got %d nodes, want %d: %+v", len(nodes), len(want), nodes)
	}
	for i, k := range want {
		if nodes[i].Kind != k {
			t.Errorf("node %d kind = %v, want %v", i, nodes[i].Kind, k)
		}
	}
}
