package grpc

import (
	"context"

	"google.golang.org/grpc"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "gophvault.Vault"

// Full method names.
const (
	MethodRegister     = "/" + ServiceName + "/Register"
	MethodVerifyTOTP   = "/" + ServiceName + "/VerifyTOTP"
	MethodAddPassword  = "/" + ServiceName + "/AddPassword"
	MethodGetPasswords = "/" + ServiceName + "/GetPasswords"
	MethodPing         = "/" + ServiceName + "/Ping"
)

// VaultServer is the server API of the vault service.
type VaultServer interface {
	Register(context.Context, *RegisterRequest) (*RegisterResponse, error)
	VerifyTOTP(context.Context, *VerifyTOTPRequest) (*VerifyTOTPResponse, error)
	AddPassword(context.Context, *AddPasswordRequest) (*AddPasswordResponse, error)
	GetPasswords(context.Context, *GetPasswordsRequest) (*GetPasswordsResponse, error)
	Ping(context.Context, *PingRequest) (*PingResponse, error)
}

// VaultServiceDesc describes the service for grpc.Server.RegisterService.
var VaultServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*VaultServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod("Register", VaultServer.Register),
		unaryMethod("VerifyTOTP", VaultServer.VerifyTOTP),
		unaryMethod("AddPassword", VaultServer.AddPassword),
		unaryMethod("GetPasswords", VaultServer.GetPasswords),
		unaryMethod("Ping", VaultServer.Ping),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "gophvault/vault.json",
}

func unaryMethod[Req, Resp any](name string, call func(VaultServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	fullMethod := "/" + ServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(VaultServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(srv.(VaultServer), ctx, req.(*Req))
			})
		},
	}
}

// VaultClient calls the vault service over an established connection.
type VaultClient struct {
	cc grpc.ClientConnInterface
}

func NewVaultClient(cc grpc.ClientConnInterface) *VaultClient {
	return &VaultClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *VaultClient) Register(ctx context.Context, in *RegisterRequest, opts ...grpc.CallOption) (*RegisterResponse, error) {
	return invoke[RegisterResponse](ctx, c.cc, MethodRegister, in, opts)
}

func (c *VaultClient) VerifyTOTP(ctx context.Context, in *VerifyTOTPRequest, opts ...grpc.CallOption) (*VerifyTOTPResponse, error) {
	return invoke[VerifyTOTPResponse](ctx, c.cc, MethodVerifyTOTP, in, opts)
}

func (c *VaultClient) AddPassword(ctx context.Context, in *AddPasswordRequest, opts ...grpc.CallOption) (*AddPasswordResponse, error) {
	return invoke[AddPasswordResponse](ctx, c.cc, MethodAddPassword, in, opts)
}

func (c *VaultClient) GetPasswords(ctx context.Context, in *GetPasswordsRequest, opts ...grpc.CallOption) (*GetPasswordsResponse, error) {
	return invoke[GetPasswordsResponse](ctx, c.cc, MethodGetPasswords, in, opts)
}

func (c *VaultClient) Ping(ctx context.Context, in *PingRequest, opts ...grpc.CallOption) (*PingResponse, error) {
	return invoke[PingResponse](ctx, c.cc, MethodPing, in, opts)
}
