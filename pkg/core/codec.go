package core

import (
	"fmt"

	"dagvault/pkg/errs"

	"github.com/ipfs/go-cid"
	"google.golang.org/protobuf/encoding/protowire"
)

const (
	CodecRaw     = cid.Raw
	CodecDagPB   = cid.DagProtobuf
	CodecDagCBOR = cid.DagCBOR
)

// CodecByName 把配置里的编码名转换为 multicodec
func CodecByName(name string) (uint64, error) {
	switch name {
	case "dag-pb", "protobuf":
		return CodecDagPB, nil
	case "dag-cbor", "cbor":
		return CodecDagCBOR, nil
	case "raw":
		return CodecRaw, nil
	default:
		return 0, fmt.Errorf("%w: unknown codec %q", errs.ErrValidation, name)
	}
}

// CodecName 是 CodecByName 的逆操作
func CodecName(codec uint64) string {
	switch codec {
	case CodecDagPB:
		return "dag-pb"
	case CodecDagCBOR:
		return "dag-cbor"
	case CodecRaw:
		return "raw"
	default:
		return fmt.Sprintf("0x%x", codec)
	}
}

// Encode 按指定编码序列化节点
func Encode(n *Node, codec uint64) ([]byte, error) {
	switch codec {
	case CodecDagPB:
		return encodeDagPB(n)
	case CodecDagCBOR:
		return encodeDagCBOR(n)
	case CodecRaw:
		if len(n.links) > 0 {
			return nil, fmt.Errorf("%w: raw blocks cannot carry links", errs.ErrValidation)
		}
		return n.Data(), nil
	default:
		return nil, fmt.Errorf("%w: unsupported codec 0x%x", errs.ErrValidation, codec)
	}
}

// Decode 根据 CID 中的 codec 反序列化节点
func Decode(id cid.Cid, data []byte) (*Node, error) {
	switch codec := id.Prefix().Codec; codec {
	case CodecDagPB:
		return decodeDagPB(data)
	case CodecDagCBOR:
		return decodeDagCBOR(data)
	case CodecRaw:
		return NewNode(data, nil), nil
	default:
		return nil, fmt.Errorf("unsupported codec 0x%x for %s", codec, id)
	}
}

// -----------------------------------------------------------------------------
// dag-pb
// PBNode { 2: repeated PBLink Links; 1: optional bytes Data }，Links 必须写在 Data 之前
// PBLink { 1: bytes Hash; 2: string Name; 3: uint64 Tsize }
// -----------------------------------------------------------------------------

const (
	pbNodeData  protowire.Number = 1
	pbNodeLinks protowire.Number = 2
	pbLinkHash  protowire.Number = 1
	pbLinkName  protowire.Number = 2
	pbLinkTsize protowire.Number = 3
)

func encodeDagPB(n *Node) ([]byte, error) {
	var buf []byte
	for i, l := range n.links {
		if !l.Cid.Defined() {
			return nil, fmt.Errorf("%w: link %d (%q) has no target", errs.ErrValidation, i, l.Name)
		}
		var lb []byte
		lb = protowire.AppendTag(lb, pbLinkHash, protowire.BytesType)
		lb = protowire.AppendBytes(lb, l.Cid.Bytes())
		lb = protowire.AppendTag(lb, pbLinkName, protowire.BytesType)
		lb = protowire.AppendString(lb, l.Name)
		lb = protowire.AppendTag(lb, pbLinkTsize, protowire.VarintType)
		lb = protowire.AppendVarint(lb, l.Size)

		buf = protowire.AppendTag(buf, pbNodeLinks, protowire.BytesType)
		buf = protowire.AppendBytes(buf, lb)
	}
	if n.data != nil {
		buf = protowire.AppendTag(buf, pbNodeData, protowire.BytesType)
		buf = protowire.AppendBytes(buf, n.data)
	}
	return buf, nil
}

func decodeDagPB(b []byte) (*Node, error) {
	n := &Node{}
	for len(b) > 0 {
		num, typ, m := protowire.ConsumeTag(b)
		if m < 0 {
			return nil, fmt.Errorf("invalid dag-pb node: %w", protowire.ParseError(m))
		}
		b = b[m:]

		switch {
		case num == pbNodeData && typ == protowire.BytesType:
			v, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return nil, fmt.Errorf("invalid dag-pb data: %w", protowire.ParseError(m))
			}
			n.data = append([]byte{}, v...)
			b = b[m:]
		case num == pbNodeLinks && typ == protowire.BytesType:
			v, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return nil, fmt.Errorf("invalid dag-pb link: %w", protowire.ParseError(m))
			}
			l, err := decodePBLink(v)
			if err != nil {
				return nil, err
			}
			n.links = append(n.links, l)
			b = b[m:]
		default:
			m := protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return nil, fmt.Errorf("invalid dag-pb field %d: %w", num, protowire.ParseError(m))
			}
			b = b[m:]
		}
	}
	return n, nil
}

func decodePBLink(b []byte) (Link, error) {
	var l Link
	for len(b) > 0 {
		num, typ, m := protowire.ConsumeTag(b)
		if m < 0 {
			return Link{}, fmt.Errorf("invalid dag-pb link: %w", protowire.ParseError(m))
		}
		b = b[m:]

		switch {
		case num == pbLinkHash && typ == protowire.BytesType:
			v, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return Link{}, protowire.ParseError(m)
			}
			c, err := cid.Cast(v)
			if err != nil {
				return Link{}, fmt.Errorf("invalid link hash: %w", err)
			}
			l.Cid = c
			b = b[m:]
		case num == pbLinkName && typ == protowire.BytesType:
			v, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return Link{}, protowire.ParseError(m)
			}
			l.Name = string(v)
			b = b[m:]
		case num == pbLinkTsize && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return Link{}, protowire.ParseError(m)
			}
			l.Size = v
			b = b[m:]
		default:
			m := protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return Link{}, protowire.ParseError(m)
			}
			b = b[m:]
		}
	}
	if !l.Cid.Defined() {
		return Link{}, fmt.Errorf("invalid dag-pb link: missing hash")
	}
	return l, nil
}

// -----------------------------------------------------------------------------
// dag-cbor
// 与 dag-pb 的 dag-json 形状保持一致：{"Data": bytes, "Links": [{"Hash", "Name", "Tsize"}]}
// -----------------------------------------------------------------------------

type cborLink struct {
	Hash  cidRef `cbor:"Hash"`
	Name  string `cbor:"Name"`
	Tsize uint64 `cbor:"Tsize"`
}

type cborNode struct {
	Data  []byte     `cbor:"Data,omitempty"`
	Links []cborLink `cbor:"Links"`
}

func encodeDagCBOR(n *Node) ([]byte, error) {
	cn := cborNode{
		Data:  n.data,
		Links: make([]cborLink, 0, len(n.links)),
	}
	for _, l := range n.links {
		cn.Links = append(cn.Links, cborLink{Hash: cidRef{l.Cid}, Name: l.Name, Tsize: l.Size})
	}
	return EncodeObject(cn)
}

func decodeDagCBOR(b []byte) (*Node, error) {
	var cn cborNode
	if err := DecodeObject(b, &cn); err != nil {
		return nil, fmt.Errorf("invalid dag-cbor node: %w", err)
	}
	links := make([]Link, 0, len(cn.Links))
	for _, l := range cn.Links {
		links = append(links, Link{Name: l.Name, Size: l.Tsize, Cid: l.Hash.Cid})
	}
	return &Node{data: cn.Data, links: links}, nil
}
