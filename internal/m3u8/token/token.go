// Package token flattens a slice of m3u8.Line into a single linear stream
// of Node values. This is the seam between the shape-agnostic lexer and the
// schema-aware decoder: the decoder never looks at a Line or a TagArgs
// directly, only at the Node stream produced here.
package token

import "github.com/snapetech/hlsfetch/internal/m3u8"

type NodeKind int

const (
	ManifestStart NodeKind = iota
	TagStart
	TagName
	AttributesStart
	AttributeName
	AttributeValue
	AttributesEnd
	Integer
	Float
	String
	Uri
	ManifestEnd
)

func (k NodeKind) String() string {
	switch k {
	case ManifestStart:
		return "ManifestStart"
	case TagStart:
		return "TagStart"
	case TagName:
		return "TagName"
	case AttributesStart:
		return "AttributesStart"
	case AttributeName:
		return "AttributeName"
	case AttributeValue:
		return "AttributeValue"
	case AttributesEnd:
		return "AttributesEnd"
	case Integer:
		return "Integer"
	case Float:
		return "Float"
	case String:
		return "String"
	case Uri:
		return "Uri"
	case ManifestEnd:
		return "ManifestEnd"
	default:
		return "Unknown"
	}
}

// Node is one element of the flattened token stream. Only the fields
// relevant to Kind are populated.
type Node struct {
	Kind NodeKind

	Name     string // TagName, AttributeName
	Int      int64  // Integer
	Float    float64
	Str      string // String, Uri
	AttrVal  m3u8.AttributeValue // AttributeValue
}

// Tokenize walks lines in order and emits the corresponding Node stream,
// bracketed by ManifestStart/ManifestEnd.
func Tokenize(lines []m3u8.Line) []Node {
	nodes := make([]Node, 0, len(lines)*3+2)
	nodes = append(nodes, Node{Kind: ManifestStart})
	for _, line := range lines {
		if line.IsURI {
			nodes = append(nodes, Node{Kind: Uri, Str: line.URI})
			continue
		}
		nodes = append(nodes, Node{Kind: TagStart})
		nodes = append(nodes, Node{Kind: TagName, Name: line.Tag.Name})
		nodes = append(nodes, tagArgNodes(line.Tag.Args)...)
	}
	nodes = append(nodes, Node{Kind: ManifestEnd})
	return nodes
}

func tagArgNodes(args m3u8.TagArgs) []Node {
	switch args.Kind {
	case m3u8.ArgsNone:
		return nil
	case m3u8.ArgsDuration:
		return []Node{
			{Kind: Float, Float: args.Duration},
			{Kind: String, Str: args.Title},
		}
	case m3u8.ArgsAttributes:
		nodes := []Node{{Kind: AttributesStart}}
		for _, k := range args.Attrs.Keys {
			v := args.Attrs.Values[k]
			nodes = append(nodes,
				Node{Kind: AttributeName, Name: k},
				Node{Kind: AttributeValue, AttrVal: v},
			)
		}
		nodes = append(nodes, Node{Kind: AttributesEnd})
		return nodes
	case m3u8.ArgsInteger:
		return []Node{{Kind: Integer, Int: args.Int}}
	case m3u8.ArgsString:
		return []Node{{Kind: String, Str: args.Str}}
	default:
		return nil
	}
}
