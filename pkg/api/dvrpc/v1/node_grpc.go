package dvrpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	NodeService_PinAdd_FullMethodName    = "/dagvault.v1.NodeService/PinAdd"
	NodeService_PinRm_FullMethodName     = "/dagvault.v1.NodeService/PinRm"
	NodeService_PinLs_FullMethodName     = "/dagvault.v1.NodeService/PinLs"
	NodeService_PinVerify_FullMethodName = "/dagvault.v1.NodeService/PinVerify"
	NodeService_AddLink_FullMethodName   = "/dagvault.v1.NodeService/AddLink"
	NodeService_FilesLink_FullMethodName = "/dagvault.v1.NodeService/FilesLink"
	NodeService_FilesStat_FullMethodName = "/dagvault.v1.NodeService/FilesStat"
)

// NodeServiceClient pin 管理与目录编辑
type NodeServiceClient interface {
	PinAdd(ctx context.Context, in *PinAddRequest, opts ...grpc.CallOption) (*PinAddResponse, error)
	PinRm(ctx context.Context, in *PinRmRequest, opts ...grpc.CallOption) (*PinRmResponse, error)
	PinLs(ctx context.Context, in *PinLsRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[PinLsResponse], error)
	PinVerify(ctx context.Context, in *PinVerifyRequest, opts ...grpc.CallOption) (*PinVerifyResponse, error)
	AddLink(ctx context.Context, in *AddLinkRequest, opts ...grpc.CallOption) (*AddLinkResponse, error)
	FilesLink(ctx context.Context, in *FilesLinkRequest, opts ...grpc.CallOption) (*FilesLinkResponse, error)
	FilesStat(ctx context.Context, in *FilesStatRequest, opts ...grpc.CallOption) (*FilesStatResponse, error)
}

type nodeServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewNodeServiceClient(cc grpc.ClientConnInterface) NodeServiceClient {
	return &nodeServiceClient{cc}
}

func (c *nodeServiceClient) unary(ctx context.Context, method string, in, out any, opts []grpc.CallOption) error {
	cOpts := append([]grpc.CallOption{grpc.StaticMethod(), CallOption()}, opts...)
	return c.cc.Invoke(ctx, method, in, out, cOpts...)
}

func (c *nodeServiceClient) PinAdd(ctx context.Context, in *PinAddRequest, opts ...grpc.CallOption) (*PinAddResponse, error) {
	out := new(PinAddResponse)
	if err := c.unary(ctx, NodeService_PinAdd_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *nodeServiceClient) PinRm(ctx context.Context, in *PinRmRequest, opts ...grpc.CallOption) (*PinRmResponse, error) {
	out := new(PinRmResponse)
	if err := c.unary(ctx, NodeService_PinRm_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *nodeServiceClient) PinLs(ctx context.Context, in *PinLsRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[PinLsResponse], error) {
	cOpts := append([]grpc.CallOption{grpc.StaticMethod(), CallOption()}, opts...)
	stream, err := c.cc.NewStream(ctx, &NodeService_ServiceDesc.Streams[0], NodeService_PinLs_FullMethodName, cOpts...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[PinLsRequest, PinLsResponse]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

func (c *nodeServiceClient) PinVerify(ctx context.Context, in *PinVerifyRequest, opts ...grpc.CallOption) (*PinVerifyResponse, error) {
	out := new(PinVerifyResponse)
	if err := c.unary(ctx, NodeService_PinVerify_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *nodeServiceClient) AddLink(ctx context.Context, in *AddLinkRequest, opts ...grpc.CallOption) (*AddLinkResponse, error) {
	out := new(AddLinkResponse)
	if err := c.unary(ctx, NodeService_AddLink_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *nodeServiceClient) FilesLink(ctx context.Context, in *FilesLinkRequest, opts ...grpc.CallOption) (*FilesLinkResponse, error) {
	out := new(FilesLinkResponse)
	if err := c.unary(ctx, NodeService_FilesLink_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *nodeServiceClient) FilesStat(ctx context.Context, in *FilesStatRequest, opts ...grpc.CallOption) (*FilesStatResponse, error) {
	out := new(FilesStatResponse)
	if err := c.unary(ctx, NodeService_FilesStat_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

// NodeServiceServer 服务端实现需要嵌入 UnimplementedNodeServiceServer
type NodeServiceServer interface {
	PinAdd(context.Context, *PinAddRequest) (*PinAddResponse, error)
	PinRm(context.Context, *PinRmRequest) (*PinRmResponse, error)
	PinLs(*PinLsRequest, grpc.ServerStreamingServer[PinLsResponse]) error
	PinVerify(context.Context, *PinVerifyRequest) (*PinVerifyResponse, error)
	AddLink(context.Context, *AddLinkRequest) (*AddLinkResponse, error)
	FilesLink(context.Context, *FilesLinkRequest) (*FilesLinkResponse, error)
	FilesStat(context.Context, *FilesStatRequest) (*FilesStatResponse, error)
	mustEmbedUnimplementedNodeServiceServer()
}

type UnimplementedNodeServiceServer struct{}

func (UnimplementedNodeServiceServer) PinAdd(context.Context, *PinAddRequest) (*PinAddResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method PinAdd not implemented")
}
func (UnimplementedNodeServiceServer) PinRm(context.Context, *PinRmRequest) (*PinRmResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method PinRm not implemented")
}
func (UnimplementedNodeServiceServer) PinLs(*PinLsRequest, grpc.ServerStreamingServer[PinLsResponse]) error {
	return status.Errorf(codes.Unimplemented, "method PinLs not implemented")
}
func (UnimplementedNodeServiceServer) PinVerify(context.Context, *PinVerifyRequest) (*PinVerifyResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method PinVerify not implemented")
}
func (UnimplementedNodeServiceServer) AddLink(context.Context, *AddLinkRequest) (*AddLinkResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method AddLink not implemented")
}
func (UnimplementedNodeServiceServer) FilesLink(context.Context, *FilesLinkRequest) (*FilesLinkResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method FilesLink not implemented")
}
func (UnimplementedNodeServiceServer) FilesStat(context.Context, *FilesStatRequest) (*FilesStatResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method FilesStat not implemented")
}
func (UnimplementedNodeServiceServer) mustEmbedUnimplementedNodeServiceServer() {}

func RegisterNodeServiceServer(s grpc.ServiceRegistrar, srv NodeServiceServer) {
	s.RegisterService(&NodeService_ServiceDesc, srv)
}

// unaryHandler 生成一元方法的 handler
func unaryHandler[Req any](method string, call func(srv any, ctx context.Context, req *Req) (any, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv, ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv, ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func _NodeService_PinLs_Handler(srv any, stream grpc.ServerStream) error {
	m := new(PinLsRequest)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(NodeServiceServer).PinLs(m, &grpc.GenericServerStream[PinLsRequest, PinLsResponse]{ServerStream: stream})
}

var NodeService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "dagvault.v1.NodeService",
	HandlerType: (*NodeServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "PinAdd",
			Handler: unaryHandler(NodeService_PinAdd_FullMethodName, func(srv any, ctx context.Context, req *PinAddRequest) (any, error) {
				return srv.(NodeServiceServer).PinAdd(ctx, req)
			}),
		},
		{
			MethodName: "PinRm",
			Handler: unaryHandler(NodeService_PinRm_FullMethodName, func(srv any, ctx context.Context, req *PinRmRequest) (any, error) {
				return srv.(NodeServiceServer).PinRm(ctx, req)
			}),
		},
		{
			MethodName: "PinVerify",
			Handler: unaryHandler(NodeService_PinVerify_FullMethodName, func(srv any, ctx context.Context, req *PinVerifyRequest) (any, error) {
				return srv.(NodeServiceServer).PinVerify(ctx, req)
			}),
		},
		{
			MethodName: "AddLink",
			Handler: unaryHandler(NodeService_AddLink_FullMethodName, func(srv any, ctx context.Context, req *AddLinkRequest) (any, error) {
				return srv.(NodeServiceServer).AddLink(ctx, req)
			}),
		},
		{
			MethodName: "FilesLink",
			Handler: unaryHandler(NodeService_FilesLink_FullMethodName, func(srv any, ctx context.Context, req *FilesLinkRequest) (any, error) {
				return srv.(NodeServiceServer).FilesLink(ctx, req)
			}),
		},
		{
			MethodName: "FilesStat",
			Handler: unaryHandler(NodeService_FilesStat_FullMethodName, func(srv any, ctx context.Context, req *FilesStatRequest) (any, error) {
				return srv.(NodeServiceServer).FilesStat(ctx, req)
			}),
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "PinLs",
			Handler:       _NodeService_PinLs_Handler,
			ServerStreams: true,
		},
	},
	Metadata: "dagvault/v1/node",
}
