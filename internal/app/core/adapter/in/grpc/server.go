package grpc

import (
	"context"
	"errors"
	"math"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/JoeShih716/go-cash-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-cash-ledger/internal/app/core/usecase"
)

// maxExactAmount float64 (Struct 的數字型別) 能精確表示的最大整數
const maxExactAmount = 1 << 53

type GrpcServer struct {
	core *usecase.CoreUseCase
}

func NewGrpcServer(core *usecase.CoreUseCase) *GrpcServer {
	return &GrpcServer{
		core: core,
	}
}

func (s *GrpcServer) CreateAccount(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	acc, err := s.core.CreateAccount(ctx, stringField(req, "name"))
	if err != nil {
		return nil, toStatus(err)
	}
	return newStruct(accountFields(acc))
}

func (s *GrpcServer) GetBalance(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	view, err := s.core.GetBalance(ctx, stringField(req, "id"), stringField(req, "currency"))
	if err != nil {
		return nil, toStatus(err)
	}
	out := map[string]any{
		"account":              accountFields(view.Account),
		"conversion_available": view.ConversionAvailable,
	}
	if view.Conversion != nil {
		out["conversion"] = map[string]any{
			"from":          view.Conversion.From,
			"to":            view.Conversion.To,
			"source_amount": view.Conversion.SourceAmount.String(),
			"amount":        view.Conversion.Amount.String(),
			"rate":          view.Conversion.Rate.String(),
		}
	}
	return newStruct(out)
}

func (s *GrpcServer) Credit(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	amount, err := amountField(req)
	if err != nil {
		return nil, err
	}
	acc, err := s.core.Credit(ctx, stringField(req, "id"), amount)
	if err != nil {
		return nil, toStatus(err)
	}
	return newStruct(accountFields(acc))
}

func (s *GrpcServer) Debit(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	amount, err := amountField(req)
	if err != nil {
		return nil, err
	}
	acc, err := s.core.Debit(ctx, stringField(req, "id"), amount)
	if err != nil {
		return nil, toStatus(err)
	}
	return newStruct(accountFields(acc))
}

func (s *GrpcServer) Transfer(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	amount, err := amountField(req)
	if err != nil {
		return nil, err
	}
	res, err := s.core.Transfer(ctx, stringField(req, "from"), stringField(req, "to"), amount)
	if err != nil {
		return nil, toStatus(err)
	}
	return newStruct(map[string]any{
		"from":   accountFields(res.From),
		"to":     accountFields(res.To),
		"amount": res.Amount,
	})
}

func stringField(req *structpb.Struct, key string) string {
	return req.GetFields()[key].GetStringValue()
}

// amountField 金額必須是 number 且為整數 (最小貨幣單位)
func amountField(req *structpb.Struct) (int64, error) {
	v, ok := req.GetFields()["amount"]
	if !ok {
		return 0, status.Error(codes.InvalidArgument, "amount is required")
	}
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, status.Error(codes.InvalidArgument, "amount must be a number")
	}
	f := n.NumberValue
	if f != math.Trunc(f) || math.Abs(f) > maxExactAmount {
		return 0, status.Error(codes.InvalidArgument, "amount must be an integer in minor units")
	}
	return int64(f), nil
}

func accountFields(acc *domain.Account) map[string]any {
	return map[string]any{
		"id":         acc.ID,
		"name":       acc.Name,
		"balance":    acc.Balance,
		"currency":   acc.Currency,
		"created_at": acc.CreatedAt.UTC().Format(time.RFC3339Nano),
		"updated_at": acc.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func newStruct(fields map[string]any) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Error(codes.Internal, "encode response failed")
	}
	return out, nil
}

// toStatus 錯誤種類轉 gRPC 狀態碼，只輸出對外訊息
func toStatus(err error) error {
	var de *domain.Error
	if !errors.As(err, &de) {
		return status.Error(codes.Internal, "internal error")
	}
	switch de.Kind {
	case domain.KindInvalidAmount, domain.KindInvalidArgument:
		return status.Error(codes.InvalidArgument, de.Message)
	case domain.KindNotFound:
		if side := de.Field("side"); side != "" {
			return status.Errorf(codes.NotFound, "%s %s: %s", side, de.Message, de.Field("id"))
		}
		return status.Errorf(codes.NotFound, "%s: %s", de.Message, de.Field("id"))
	case domain.KindAlreadyExists:
		return status.Error(codes.AlreadyExists, de.Message)
	case domain.KindInsufficientFunds:
		return status.Error(codes.FailedPrecondition, de.Message)
	case domain.KindUnavailable:
		return status.Error(codes.Unavailable, de.Message)
	default:
		return status.Error(codes.Internal, "internal error")
	}
}

// UnaryLogger 紀錄每個 RPC 的耗時與結果
func UnaryLogger(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		code := status.Code(err)
		fields := []zap.Field{
			zap.String("method", info.FullMethod),
			zap.String("code", code.String()),
			zap.Duration("latency", time.Since(start)),
		}
		switch code {
		case codes.OK:
			logger.Debug("grpc request", fields...)
		case codes.Internal, codes.Unavailable:
			logger.Error("grpc request failed", append(fields, zap.Error(err))...)
		default:
			logger.Info("grpc request rejected", append(fields, zap.Error(err))...)
		}
		return resp, err
	}
}

var _ LedgerServer = (*GrpcServer)(nil)
