// Package dvrpc 定义 dagvault 的 gRPC 接口。
// 消息使用 CBOR 编码，通过 content-subtype "cbor" 协商。
package dvrpc

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

// CodecName 注册到 gRPC 的 content-subtype
const CodecName = "cbor"

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	if encMode, err = (cbor.EncOptions{Sort: cbor.SortCanonical}).EncMode(); err != nil {
		panic(err)
	}
	if decMode, err = (cbor.DecOptions{MaxArrayElements: 1 << 20}).DecMode(); err != nil {
		panic(err)
	}
	encoding.RegisterCodec(codec{})
}

type codec struct{}

func (codec) Marshal(v any) ([]byte, error) {
	data, err := encMode.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("dvrpc: marshal %T: %w", v, err)
	}
	return data, nil
}

func (codec) Unmarshal(data []byte, v any) error {
	if err := decMode.Unmarshal(data, v); err != nil {
		return fmt.Errorf("dvrpc: unmarshal %T: %w", v, err)
	}
	return nil
}

func (codec) Name() string { return CodecName }

// CallOption 客户端必须带上，否则默认使用 proto 编码
func CallOption() grpc.CallOption {
	return grpc.CallContentSubtype(CodecName)
}
