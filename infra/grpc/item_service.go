package grpc

import (
	"context"
	"errors"
	"fmt"
	"itemsvc/app/item"
	"itemsvc/domain"
	"itemsvc/pkg/events"
	"itemsvc/pkg/httperror"
	"net/http"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const ItemServiceName = "items.v1.ItemService"

const (
	createItemMethod = "/" + ItemServiceName + "/CreateItem"
	listItemsMethod  = "/" + ItemServiceName + "/ListItems"
	getItemMethod    = "/" + ItemServiceName + "/GetItem"
)

// ItemServiceServer is the gRPC face of the item resource. Items travel as
// google.protobuf.Struct values shaped like the HTTP JSON bodies.
type ItemServiceServer interface {
	CreateItem(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ListItems(ctx context.Context, req *emptypb.Empty) (*structpb.ListValue, error)
	GetItem(ctx context.Context, req *wrapperspb.Int64Value) (*structpb.Struct, error)
}

var itemServiceDesc = grpc.ServiceDesc{
	ServiceName: ItemServiceName,
	HandlerType: (*ItemServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "CreateItem",
			Handler: unaryHandler(createItemMethod, func(s ItemServiceServer, ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
				return s.CreateItem(ctx, req)
			}),
		},
		{
			MethodName: "ListItems",
			Handler: unaryHandler(listItemsMethod, func(s ItemServiceServer, ctx context.Context, req *emptypb.Empty) (*structpb.ListValue, error) {
				return s.ListItems(ctx, req)
			}),
		},
		{
			MethodName: "GetItem",
			Handler: unaryHandler(getItemMethod, func(s ItemServiceServer, ctx context.Context, req *wrapperspb.Int64Value) (*structpb.Struct, error) {
				return s.GetItem(ctx, req)
			}),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "items/v1/item_service.proto",
}

func unaryHandler[Req any, Res any](fullMethod string, call func(ItemServiceServer, context.Context, *Req) (*Res, error)) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ItemServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(ItemServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func RegisterItemServiceServer(s grpc.ServiceRegistrar, srv ItemServiceServer) {
	s.RegisterService(&itemServiceDesc, srv)
}

// ItemService runs the same handlers as the HTTP surface.
type ItemService struct {
	createItem *item.CreateItemHandler
	getItems   *item.GetItemsHandler
	getItem    *item.GetItemHandler
}

var _ ItemServiceServer = (*ItemService)(nil)

func NewItemService(repository item.Repository, publisher events.Publisher, serviceName string) *ItemService {
	return &ItemService{
		createItem: item.NewCreateItemHandler(repository, publisher, serviceName),
		getItems:   item.NewGetItemsHandler(repository),
		getItem:    item.NewGetItemHandler(repository),
	}
}

func (s *ItemService) CreateItem(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	createReq, err := createRequestFromStruct(req)
	if err != nil {
		return nil, mapError(err)
	}

	res, err := s.createItem.Handle(ctx, createReq)
	if err != nil {
		return nil, mapError(err)
	}

	return itemToStruct(*res)
}

func (s *ItemService) ListItems(ctx context.Context, _ *emptypb.Empty) (*structpb.ListValue, error) {
	res, err := s.getItems.Handle(ctx, &item.GetItemsRequest{})
	if err != nil {
		return nil, mapError(err)
	}

	values := make([]*structpb.Value, 0, len(*res))
	for _, i := range *res {
		st, err := itemToStruct(i)
		if err != nil {
			return nil, err
		}
		values = append(values, structpb.NewStructValue(st))
	}

	return &structpb.ListValue{Values: values}, nil
}

func (s *ItemService) GetItem(ctx context.Context, req *wrapperspb.Int64Value) (*structpb.Struct, error) {
	res, err := s.getItem.Handle(ctx, &item.GetItemRequest{ItemID: req.GetValue()})
	if err != nil {
		return nil, mapError(err)
	}

	return itemToStruct(*res)
}

func createRequestFromStruct(req *structpb.Struct) (*item.CreateItemRequest, error) {
	var createReq item.CreateItemRequest
	fields := req.GetFields()

	if v, ok := fields["name"]; ok {
		if _, isNull := v.GetKind().(*structpb.Value_NullValue); !isNull {
			s, ok := v.GetKind().(*structpb.Value_StringValue)
			if !ok {
				return nil, invalidString("name")
			}
			createReq.Name = &s.StringValue
		}
	}

	if v, ok := fields["description"]; ok {
		if _, isNull := v.GetKind().(*structpb.Value_NullValue); !isNull {
			s, ok := v.GetKind().(*structpb.Value_StringValue)
			if !ok {
				return nil, invalidString("description")
			}
			createReq.Description = &s.StringValue
		}
	}

	return &createReq, nil
}

func invalidString(field string) *httperror.Error {
	return httperror.BadRequest(
		"item.create.invalid_field",
		"Invalid request",
		[]httperror.FieldError{{
			Loc:  []string{"body", field},
			Msg:  "Input should be a valid string",
			Type: "string_type",
		}},
	)
}

func itemToStruct(i domain.Item) (*structpb.Struct, error) {
	fields := map[string]any{
		"id":          i.ID,
		"name":        i.Name,
		"description": nil,
	}
	if i.Description != nil {
		fields["description"] = *i.Description
	}

	st, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Error(codes.Internal, fmt.Sprintf("encode item: %v", err))
	}
	return st, nil
}

func mapError(err error) error {
	var httpErr *httperror.Error
	if !errors.As(err, &httpErr) {
		return status.Error(codes.Internal, "internal error")
	}

	switch httpErr.Status {
	case http.StatusNotFound:
		return status.Error(codes.NotFound, httpErr.Message)
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		msg := httpErr.Message
		if details, ok := httpErr.Details.([]httperror.FieldError); ok && len(details) > 0 {
			fe := details[0]
			msg = fmt.Sprintf("%s: %s", fe.Loc[len(fe.Loc)-1], fe.Msg)
		}
		return status.Error(codes.InvalidArgument, msg)
	default:
		return status.Error(codes.Internal, httpErr.Message)
	}
}
