package service

import (
	"context"
	"fmt"
	"io"
	"net"
	"testing"

	dvrpc "dagvault/pkg/api/dvrpc/v1"
	"dagvault/pkg/app"
	"dagvault/pkg/dirs"
	"dagvault/pkg/ingester"
	"dagvault/pkg/meta"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"
)

// =============================================================================
// Mocks (模拟 gRPC 流的行为)
// =============================================================================

// MockUploadStream 模拟客户端流式发送
type MockUploadStream struct {
	grpc.ServerStream // 嵌入以满足接口，只覆盖用到的方法
	Ctx               context.Context
	Requests          []*dvrpc.UploadRequest
	cursor            int
	Response          *dvrpc.UploadResponse
}

func (m *MockUploadStream) Context() context.Context {
	if m.Ctx == nil {
		return context.Background()
	}
	return m.Ctx
}

func (m *MockUploadStream) Recv() (*dvrpc.UploadRequest, error) {
	if m.cursor >= len(m.Requests) {
		return nil, io.EOF
	}
	req := m.Requests[m.cursor]
	m.cursor++
	return req, nil
}

func (m *MockUploadStream) SendAndClose(resp *dvrpc.UploadResponse) error {
	m.Response = resp
	return nil
}

// MockCatStream 模拟服务端流式响应
type MockCatStream struct {
	grpc.ServerStream
	Ctx       context.Context
	Responses []*dvrpc.CatResponse
}

func (m *MockCatStream) Context() context.Context {
	if m.Ctx == nil {
		return context.Background()
	}
	return m.Ctx
}

// Send 和真实的流一样在返回前完成拷贝
func (m *MockCatStream) Send(resp *dvrpc.CatResponse) error {
	m.Responses = append(m.Responses, &dvrpc.CatResponse{ChunkData: append([]byte(nil), resp.ChunkData...)})
	return nil
}

// setupTestApp 是所有 Service 测试共享的基础设施
// 块存储和 datastore 在内存中，文件索引使用共享内存 SQLite
func setupTestApp(t *testing.T) *app.App {
	t.Helper()
	a, err := app.NewMemoryApp(context.Background(), t.TempDir(), dirs.DefaultOptions(), ingester.DefaultOptions())
	require.NoError(t, err)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := meta.NewSQLiteDB(dsn)
	require.NoError(t, err)
	a.Repository = meta.NewRepository(db)
	a.Ingester.SetIndex(a.Repository)
	return a
}

// startServer 通过 bufconn 启动完整的 gRPC 服务
func startServer(t *testing.T, a *app.App) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1 << 20)

	srv := grpc.NewServer()
	dvrpc.RegisterNodeServiceServer(srv, NewNodeService(a))
	dvrpc.RegisterDataServiceServer(srv, NewDataService(a))
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}
