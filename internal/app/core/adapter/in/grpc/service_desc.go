package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ledger.v1.Ledger 服務定義
// 請求與回應都是 google.protobuf.Struct，欄位說明見各方法
const (
	ServiceName = "ledger.v1.Ledger"

	Ledger_CreateAccount_FullMethodName = "/ledger.v1.Ledger/CreateAccount"
	Ledger_GetBalance_FullMethodName    = "/ledger.v1.Ledger/GetBalance"
	Ledger_Credit_FullMethodName        = "/ledger.v1.Ledger/Credit"
	Ledger_Debit_FullMethodName         = "/ledger.v1.Ledger/Debit"
	Ledger_Transfer_FullMethodName      = "/ledger.v1.Ledger/Transfer"
)

// LedgerServer 伺服器端需實作的方法
type LedgerServer interface {
	// CreateAccount {name} -> account
	CreateAccount(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// GetBalance {id, currency?} -> {account, conversion_available, conversion?}
	GetBalance(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// Credit {id, amount} -> account
	Credit(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// Debit {id, amount} -> account
	Debit(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// Transfer {from, to, amount} -> {from, to, amount}
	Transfer(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// RegisterLedgerServer 註冊到 grpc.Server
func RegisterLedgerServer(s grpc.ServiceRegistrar, srv LedgerServer) {
	s.RegisterService(&Ledger_ServiceDesc, srv)
}

type ledgerMethod func(LedgerServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call ledgerMethod) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(LedgerServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(LedgerServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// Ledger_ServiceDesc 手寫的 ServiceDesc，形式與 protoc-gen-go-grpc 產生的一致
var Ledger_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*LedgerServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "CreateAccount",
			Handler:    unaryHandler(Ledger_CreateAccount_FullMethodName, LedgerServer.CreateAccount),
		},
		{
			MethodName: "GetBalance",
			Handler:    unaryHandler(Ledger_GetBalance_FullMethodName, LedgerServer.GetBalance),
		},
		{
			MethodName: "Credit",
			Handler:    unaryHandler(Ledger_Credit_FullMethodName, LedgerServer.Credit),
		},
		{
			MethodName: "Debit",
			Handler:    unaryHandler(Ledger_Debit_FullMethodName, LedgerServer.Debit),
		},
		{
			MethodName: "Transfer",
			Handler:    unaryHandler(Ledger_Transfer_FullMethodName, LedgerServer.Transfer),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "ledger/v1/ledger.proto",
}

// LedgerClient 客戶端
type LedgerClient interface {
	CreateAccount(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	GetBalance(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Credit(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Debit(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Transfer(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type ledgerClient struct {
	cc grpc.ClientConnInterface
}

func NewLedgerClient(cc grpc.ClientConnInterface) LedgerClient {
	return &ledgerClient{cc}
}

func (c *ledgerClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ledgerClient) CreateAccount(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, Ledger_CreateAccount_FullMethodName, in, opts...)
}

func (c *ledgerClient) GetBalance(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, Ledger_GetBalance_FullMethodName, in, opts...)
}

func (c *ledgerClient) Credit(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, Ledger_Credit_FullMethodName, in, opts...)
}

func (c *ledgerClient) Debit(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, Ledger_Debit_FullMethodName, in, opts...)
}

func (c *ledgerClient) Transfer(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, Ledger_Transfer_FullMethodName, in, opts...)
}
