package dvrpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	DataService_CheckFile_FullMethodName = "/dagvault.v1.DataService/CheckFile"
	DataService_Upload_FullMethodName    = "/dagvault.v1.DataService/Upload"
	DataService_Cat_FullMethodName       = "/dagvault.v1.DataService/Cat"
)

// DataServiceClient 文件上传与读取
type DataServiceClient interface {
	CheckFile(ctx context.Context, in *CheckFileRequest, opts ...grpc.CallOption) (*CheckFileResponse, error)
	Upload(ctx context.Context, opts ...grpc.CallOption) (grpc.ClientStreamingClient[UploadRequest, UploadResponse], error)
	Cat(ctx context.Context, in *CatRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[CatResponse], error)
}

type dataServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewDataServiceClient(cc grpc.ClientConnInterface) DataServiceClient {
	return &dataServiceClient{cc}
}

func (c *dataServiceClient) CheckFile(ctx context.Context, in *CheckFileRequest, opts ...grpc.CallOption) (*CheckFileResponse, error) {
	cOpts := append([]grpc.CallOption{grpc.StaticMethod(), CallOption()}, opts...)
	out := new(CheckFileResponse)
	if err := c.cc.Invoke(ctx, DataService_CheckFile_FullMethodName, in, out, cOpts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *dataServiceClient) Upload(ctx context.Context, opts ...grpc.CallOption) (grpc.ClientStreamingClient[UploadRequest, UploadResponse], error) {
	cOpts := append([]grpc.CallOption{grpc.StaticMethod(), CallOption()}, opts...)
	stream, err := c.cc.NewStream(ctx, &DataService_ServiceDesc.Streams[0], DataService_Upload_FullMethodName, cOpts...)
	if err != nil {
		return nil, err
	}
	return &grpc.GenericClientStream[UploadRequest, UploadResponse]{ClientStream: stream}, nil
}

func (c *dataServiceClient) Cat(ctx context.Context, in *CatRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[CatResponse], error) {
	cOpts := append([]grpc.CallOption{grpc.StaticMethod(), CallOption()}, opts...)
	stream, err := c.cc.NewStream(ctx, &DataService_ServiceDesc.Streams[1], DataService_Cat_FullMethodName, cOpts...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[CatRequest, CatResponse]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

// DataServiceServer 服务端实现需要嵌入 UnimplementedDataServiceServer
type DataServiceServer interface {
	CheckFile(context.Context, *CheckFileRequest) (*CheckFileResponse, error)
	Upload(grpc.ClientStreamingServer[UploadRequest, UploadResponse]) error
	Cat(*CatRequest, grpc.ServerStreamingServer[CatResponse]) error
	mustEmbedUnimplementedDataServiceServer()
}

type UnimplementedDataServiceServer struct{}

func (UnimplementedDataServiceServer) CheckFile(context.Context, *CheckFileRequest) (*CheckFileResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method CheckFile not implemented")
}
func (UnimplementedDataServiceServer) Upload(grpc.ClientStreamingServer[UploadRequest, UploadResponse]) error {
	return status.Errorf(codes.Unimplemented, "method Upload not implemented")
}
func (UnimplementedDataServiceServer) Cat(*CatRequest, grpc.ServerStreamingServer[CatResponse]) error {
	return status.Errorf(codes.Unimplemented, "method Cat not implemented")
}
func (UnimplementedDataServiceServer) mustEmbedUnimplementedDataServiceServer() {}

func RegisterDataServiceServer(s grpc.ServiceRegistrar, srv DataServiceServer) {
	s.RegisterService(&DataService_ServiceDesc, srv)
}

func _DataService_Upload_Handler(srv any, stream grpc.ServerStream) error {
	return srv.(DataServiceServer).Upload(&grpc.GenericServerStream[UploadRequest, UploadResponse]{ServerStream: stream})
}

func _DataService_Cat_Handler(srv any, stream grpc.ServerStream) error {
	m := new(CatRequest)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(DataServiceServer).Cat(m, &grpc.GenericServerStream[CatRequest, CatResponse]{ServerStream: stream})
}

var DataService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "dagvault.v1.DataService",
	HandlerType: (*DataServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "CheckFile",
			Handler: unaryHandler(DataService_CheckFile_FullMethodName, func(srv any, ctx context.Context, req *CheckFileRequest) (any, error) {
				return srv.(DataServiceServer).CheckFile(ctx, req)
			}),
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Upload",
			Handler:       _DataService_Upload_Handler,
			ClientStreams: true,
		},
		{
			StreamName:    "Cat",
			Handler:       _DataService_Cat_Handler,
			ServerStreams: true,
		},
	},
	Metadata: "dagvault/v1/data",
}
