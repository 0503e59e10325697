// Package client 封装与 dv-server 的 gRPC 连接。
package client

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	dvrpc "dagvault/pkg/api/dvrpc/v1"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
)

// UploadChunkSize 上传时每帧携带的数据量
const UploadChunkSize = 1 << 20

// DVClient 封装了与 dagvault 服务端的连接
type DVClient struct {
	conn *grpc.ClientConn

	Data dvrpc.DataServiceClient
	Node dvrpc.NodeServiceClient
}

// NewDVClient 创建客户端，连接在后台建立
func NewDVClient(addr string, extra ...grpc.DialOption) (*DVClient, error) {
	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(64<<20),
			grpc.MaxCallSendMsgSize(64<<20),
		),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                10 * time.Second,
			Timeout:             20 * time.Second,
			PermitWithoutStream: true,
		}),
	}
	opts = append(opts, extra...)

	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create grpc client for %s: %w", addr, err)
	}

	return &DVClient{
		conn: conn,
		Data: dvrpc.NewDataServiceClient(conn),
		Node: dvrpc.NewNodeServiceClient(conn),
	}, nil
}

// Close 关闭底层连接
func (c *DVClient) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// UploadFile 双阶段上传：先用 sha256 询问服务端，未命中时再流式上传
// 返回 file 节点的 CID，以及是否命中秒传
func (c *DVClient) UploadFile(ctx context.Context, path string, pin bool) (string, bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", false, err
	}
	defer f.Close()

	// 1. 计算线性哈希
	h := sha256.New()
	size, err := io.Copy(h, f)
	if err != nil {
		return "", false, err
	}
	sum := hex.EncodeToString(h.Sum(nil))

	// 2. 秒传检查；命中但需要 pin 时补一次 pin
	check, err := c.Data.CheckFile(ctx, &dvrpc.CheckFileRequest{Sha256: sum, Size: size})
	if err != nil {
		return "", false, err
	}
	if check.Exists {
		if pin {
			if _, err := c.Node.PinAdd(ctx, &dvrpc.PinAddRequest{Paths: []string{check.Cid}, Recursive: true}); err != nil {
				return "", false, err
			}
		}
		return check.Cid, true, nil
	}

	// 3. 流式上传
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", false, err
	}
	stream, err := c.Data.Upload(ctx)
	if err != nil {
		return "", false, err
	}
	if err := stream.Send(&dvrpc.UploadRequest{Meta: &dvrpc.FileMeta{Path: path, Sha256: sum, Pin: pin}}); err != nil {
		return "", false, err
	}
	buf := make([]byte, UploadChunkSize)
	for {
		n, err := f.Read(buf)
		if n > 0 {
			if err := stream.Send(&dvrpc.UploadRequest{ChunkData: buf[:n]}); err != nil {
				return "", false, err
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", false, err
		}
	}
	resp, err := stream.CloseAndRecv()
	if err != nil {
		return "", false, err
	}
	return resp.Cid, false, nil
}

// Cat 把路径对应的文件内容写到 w
func (c *DVClient) Cat(ctx context.Context, path string, w io.Writer) error {
	stream, err := c.Data.Cat(ctx, &dvrpc.CatRequest{Path: path})
	if err != nil {
		return err
	}
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if _, err := w.Write(resp.ChunkData); err != nil {
			return err
		}
	}
}
