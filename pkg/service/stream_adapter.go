package service

import (
	"fmt"

	dvrpc "dagvault/pkg/api/dvrpc/v1"
)

// =============================================================================
// 1. Upload Adapter: gRPC Stream -> io.Reader
// =============================================================================

// UploadStream 定义了 Upload 接口所需的最小集合，方便测试 Mock
type UploadStream interface {
	Recv() (*dvrpc.UploadRequest, error)
}

// GrpcStreamReader 将 gRPC Upload 流包装为 io.Reader
// 供 pkg/ingester 使用
type GrpcStreamReader struct {
	stream      UploadStream
	internalBuf []byte // 从 Recv 拿到、还没被 Read 读走的数据
	err         error  // 流的终止状态 (如 EOF)
}

func NewGrpcStreamReader(stream UploadStream) *GrpcStreamReader {
	return &GrpcStreamReader{
		stream: stream,
	}
}

// Read 实现了 io.Reader 接口
func (r *GrpcStreamReader) Read(p []byte) (n int, err error) {
	if r.err != nil {
		return 0, r.err
	}

	// 内部缓冲为空时拉取下一帧，跳过没有数据的帧
	for len(r.internalBuf) == 0 {
		req, err := r.stream.Recv()
		if err != nil {
			r.err = err
			return 0, err
		}
		if req.Meta != nil {
			r.err = fmt.Errorf("protocol violation: unexpected metadata frame")
			return 0, r.err
		}
		r.internalBuf = req.ChunkData
	}

	copied := copy(p, r.internalBuf)
	r.internalBuf = r.internalBuf[copied:]
	return copied, nil
}

// =============================================================================
// 2. Cat Adapter: io.Writer -> gRPC Stream
// =============================================================================

// CatStream 定义了 Cat 接口所需的最小集合
type CatStream interface {
	Send(*dvrpc.CatResponse) error
}

// GrpcStreamWriter 将 gRPC Cat 流包装为 io.Writer
// 供 pkg/exporter 使用
type GrpcStreamWriter struct {
	stream CatStream
}

func NewGrpcStreamWriter(stream CatStream) *GrpcStreamWriter {
	return &GrpcStreamWriter{stream: stream}
}

// Write 每次写入发送一帧；Send 返回前消息已经序列化，p 可以被调用方复用
func (w *GrpcStreamWriter) Write(p []byte) (n int, err error) {
	if len(p) == 0 {
		return 0, nil
	}
	if err := w.stream.Send(&dvrpc.CatResponse{ChunkData: p}); err != nil {
		return 0, fmt.Errorf("grpc send failed: %w", err)
	}
	return len(p), nil
}
