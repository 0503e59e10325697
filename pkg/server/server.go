package server

import (
	dvrpc "dagvault/pkg/api/dvrpc/v1"
	"dagvault/pkg/app"
	"dagvault/pkg/service"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// MaxMsgSize 与客户端保持一致
const MaxMsgSize = 64 << 20

// New 创建注册了全部服务的 gRPC 服务端
// 拦截器顺序：recovery 在最外层，panic 也会被记录
func New(a *app.App) *grpc.Server {
	srv := grpc.NewServer(
		grpc.MaxRecvMsgSize(MaxMsgSize),
		grpc.MaxSendMsgSize(MaxMsgSize),
		grpc.ChainUnaryInterceptor(UnaryRecoveryInterceptor, UnaryLoggingInterceptor),
		grpc.ChainStreamInterceptor(StreamRecoveryInterceptor, StreamLoggingInterceptor),
	)

	dvrpc.RegisterNodeServiceServer(srv, service.NewNodeService(a))
	dvrpc.RegisterDataServiceServer(srv, service.NewDataService(a))

	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, hs)
	return srv
}
