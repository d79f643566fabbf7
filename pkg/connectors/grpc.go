// Copyright 2026 © The PIPO Agent Authors
// SPDX-License-Identifier: Apache-2.0

package connectors

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/reflection/grpc_reflection_v1alpha"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/MagicOwO/pipo-agent/pkg/action"
	"github.com/MagicOwO/pipo-agent/pkg/errors"
)

// GRPCConnector generates actions from a gRPC server via reflection. Each
// unary method becomes one action; messages are built dynamically from the
// discovered descriptors.
type GRPCConnector struct {
	target       string
	conn         *grpc.ClientConn
	services     map[string]*GRPCService
	opts         []grpc.DialOption
	actionPrefix string
}

// GRPCService is a service discovered via reflection.
type GRPCService struct {
	Name     string
	FullName string
	Methods  []GRPCMethod
}

// GRPCMethod is a method in a discovered service.
type GRPCMethod struct {
	Name        string
	FullName    string
	InputType   protoreflect.MessageDescriptor
	OutputType  protoreflect.MessageDescriptor
	IsStreaming bool
}

// GRPCOption configures the GRPCConnector.
type GRPCOption func(*GRPCConnector)

// WithGRPCDialOptions adds custom gRPC dial options.
func WithGRPCDialOptions(opts ...grpc.DialOption) GRPCOption {
	return func(c *GRPCConnector) {
		c.opts = append(c.opts, opts...)
	}
}

// WithGRPCInsecure uses an insecure connection.
func WithGRPCInsecure() GRPCOption {
	return func(c *GRPCConnector) {
		c.opts = append(c.opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}
}

// WithGRPCActionPrefix prefixes generated action names.
func WithGRPCActionPrefix(prefix string) GRPCOption {
	return func(c *GRPCConnector) {
		c.actionPrefix = prefix
	}
}

// NewGRPCConnector connects to the target and discovers services through
// server reflection.
func NewGRPCConnector(target string, opts ...GRPCOption) (*GRPCConnector, error) {
	c := &GRPCConnector{
		target:   target,
		services: make(map[string]*GRPCService),
	}
	for _, opt := range opts {
		opt(c)
	}
	if len(c.opts) == 0 {
		c.opts = append(c.opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, err := grpc.DialContext(ctx, target, c.opts...)
	if err != nil {
		return nil, errors.New(errors.CodeExecution, fmt.Sprintf("cannot connect to %s", target), err)
	}
	c.conn = conn

	if err := c.reflect(ctx); err != nil {
		conn.Close()
		return nil, errors.New(errors.CodeExecution, "grpc reflection failed", err)
	}
	return c, nil
}

// NewGRPCConnectorFromServices builds a connector from known services,
// skipping reflection.
func NewGRPCConnectorFromServices(target string, services map[string]*GRPCService, opts ...GRPCOption) *GRPCConnector {
	c := &GRPCConnector{
		target:   target,
		services: services,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *GRPCConnector) reflect(ctx context.Context) error {
	client := grpc_reflection_v1alpha.NewServerReflectionClient(c.conn)

	stream, err := client.ServerReflectionInfo(ctx)
	if err != nil {
		return fmt.Errorf("reflection stream: %w", err)
	}
	defer stream.CloseSend()

	if err := stream.Send(&grpc_reflection_v1alpha.ServerReflectionRequest{
		MessageRequest: &grpc_reflection_v1alpha.ServerReflectionRequest_ListServices{ListServices: ""},
	}); err != nil {
		return fmt.Errorf("list services: %w", err)
	}

	resp, err := stream.Recv()
	if err != nil {
		return fmt.Errorf("list services response: %w", err)
	}
	listResp := resp.GetListServicesResponse()
	if listResp == nil {
		return fmt.Errorf("unexpected reflection response type")
	}

	for _, svc := range listResp.GetService() {
		serviceName := svc.GetName()
		if strings.HasPrefix(serviceName, "grpc.reflection") {
			continue
		}

		if err := stream.Send(&grpc_reflection_v1alpha.ServerReflectionRequest{
			MessageRequest: &grpc_reflection_v1alpha.ServerReflectionRequest_FileContainingSymbol{
				FileContainingSymbol: serviceName,
			},
		}); err != nil {
			continue
		}
		resp, err := stream.Recv()
		if err != nil {
			continue
		}
		fdResp := resp.GetFileDescriptorResponse()
		if fdResp == nil {
			continue
		}
		if err := c.parseFileDescriptors(serviceName, fdResp.GetFileDescriptorProto()); err != nil {
			continue
		}
	}
	return nil
}

func (c *GRPCConnector) parseFileDescriptors(serviceName string, fdProtos [][]byte) error {
	var files []*descriptorpb.FileDescriptorProto
	for _, fdBytes := range fdProtos {
		var fd descriptorpb.FileDescriptorProto
		if err := proto.Unmarshal(fdBytes, &fd); err != nil {
			return err
		}
		files = append(files, &fd)
	}

	resolver := &protoregistry.Files{}
	for _, fdProto := range files {
		fd, err := protodesc.NewFile(fdProto, resolver)
		if err != nil {
			continue
		}
		resolver.RegisterFile(fd)
	}

	desc, err := resolver.FindDescriptorByName(protoreflect.FullName(serviceName))
	if err != nil {
		return err
	}
	serviceDesc, ok := desc.(protoreflect.ServiceDescriptor)
	if !ok {
		return fmt.Errorf("%s is not a service", serviceName)
	}

	svc := &GRPCService{
		Name:     string(serviceDesc.Name()),
		FullName: serviceName,
	}
	methods := serviceDesc.Methods()
	for i := 0; i < methods.Len(); i++ {
		method := methods.Get(i)
		svc.Methods = append(svc.Methods, GRPCMethod{
			Name:        string(method.Name()),
			FullName:    fmt.Sprintf("/%s/%s", serviceName, method.Name()),
			InputType:   method.Input(),
			OutputType:  method.Output(),
			IsStreaming: method.IsStreamingClient() || method.IsStreamingServer(),
		})
	}

	c.services[serviceName] = svc
	return nil
}

// Specs generates one action spec per unary method. Streaming methods are
// skipped.
func (c *GRPCConnector) Specs() []action.Spec {
	serviceNames := make([]string, 0, len(c.services))
	for name := range c.services {
		serviceNames = append(serviceNames, name)
	}
	sort.Strings(serviceNames)

	var specs []action.Spec
	for _, serviceName := range serviceNames {
		svc := c.services[serviceName]
		for _, method := range svc.Methods {
			if method.IsStreaming {
				continue
			}
			specs = append(specs, c.methodSpec(svc, method))
		}
	}
	return specs
}

func (c *GRPCConnector) methodSpec(svc *GRPCService, method GRPCMethod) action.Spec {
	name := toSnakeCase(fmt.Sprintf("%s_%s", svc.Name, method.Name))
	if c.actionPrefix != "" {
		name = c.actionPrefix + "_" + name
	}

	return action.Spec{
		Name:        name,
		Description: fmt.Sprintf("gRPC method %s.%s", svc.Name, method.Name),
		Params:      messageParams(method.InputType),
	}
}

// messageParams maps the top-level fields of a message to parameters.
// Nested messages and maps surface as object parameters.
func messageParams(msg protoreflect.MessageDescriptor) []action.ParamSpec {
	var params []action.ParamSpec
	fields := msg.Fields()
	for i := 0; i < fields.Len(); i++ {
		field := fields.Get(i)
		fieldName := string(field.JSONName())
		if fieldName == "" {
			fieldName = string(field.Name())
		}
		params = append(params, action.ParamSpec{
			Name:     fieldName,
			Type:     fieldParamType(field),
			Required: field.Cardinality() == protoreflect.Required,
		})
	}
	return params
}

func fieldParamType(field protoreflect.FieldDescriptor) action.ParamType {
	if field.IsList() {
		return action.ParamList
	}
	if field.IsMap() {
		return action.ParamObject
	}
	switch field.Kind() {
	case protoreflect.BoolKind:
		return action.ParamBool
	case protoreflect.Int32Kind, protoreflect.Sint32Kind, protoreflect.Sfixed32Kind,
		protoreflect.Int64Kind, protoreflect.Sint64Kind, protoreflect.Sfixed64Kind,
		protoreflect.Uint32Kind, protoreflect.Fixed32Kind,
		protoreflect.Uint64Kind, protoreflect.Fixed64Kind:
		return action.ParamInt
	case protoreflect.FloatKind, protoreflect.DoubleKind:
		return action.ParamFloat
	case protoreflect.MessageKind:
		return action.ParamObject
	default:
		return action.ParamString
	}
}

// Execute invokes a unary gRPC method with a dynamically built message.
func (c *GRPCConnector) Execute(ctx context.Context, name string, args map[string]any) (any, error) {
	method, err := c.findMethod(name)
	if err != nil {
		return nil, err
	}
	if c.conn == nil {
		return nil, errors.New(errors.CodeExecution, "not connected to grpc server", nil)
	}

	inputMsg := dynamicpb.NewMessage(method.InputType)
	if err := populateMessage(inputMsg, args); err != nil {
		return nil, errors.New(errors.CodeInvalidInput, "cannot build input message", err)
	}

	outputMsg := dynamicpb.NewMessage(method.OutputType)
	if err := c.conn.Invoke(ctx, method.FullName, inputMsg, outputMsg); err != nil {
		return nil, errors.New(errors.CodeExecution, "grpc call failed", err).WithRecoverable(true)
	}
	return messageToMap(outputMsg), nil
}

func (c *GRPCConnector) findMethod(name string) (*GRPCMethod, error) {
	trimmed := name
	if c.actionPrefix != "" && strings.HasPrefix(name, c.actionPrefix+"_") {
		trimmed = strings.TrimPrefix(name, c.actionPrefix+"_")
	}

	for _, svc := range c.services {
		for i := range svc.Methods {
			method := &svc.Methods[i]
			if trimmed == toSnakeCase(fmt.Sprintf("%s_%s", svc.Name, method.Name)) {
				return method, nil
			}
		}
	}
	return nil, errors.New(errors.CodeNotFound, fmt.Sprintf("method %q not found", name), nil)
}

func populateMessage(msg *dynamicpb.Message, args map[string]any) error {
	if args == nil {
		return nil
	}

	fields := msg.Descriptor().Fields()
	for key, value := range args {
		var field protoreflect.FieldDescriptor
		for i := 0; i < fields.Len(); i++ {
			f := fields.Get(i)
			if string(f.JSONName()) == key || string(f.Name()) == key {
				field = f
				break
			}
		}
		if field == nil {
			continue
		}

		protoValue, err := toProtoValue(field, value)
		if err != nil {
			return fmt.Errorf("field %s: %w", key, err)
		}
		msg.Set(field, protoValue)
	}
	return nil
}

func toProtoValue(field protoreflect.FieldDescriptor, value any) (protoreflect.Value, error) {
	if value == nil {
		return protoreflect.Value{}, nil
	}

	switch field.Kind() {
	case protoreflect.BoolKind:
		if b, ok := value.(bool); ok {
			return protoreflect.ValueOfBool(b), nil
		}
	case protoreflect.Int32Kind, protoreflect.Sint32Kind, protoreflect.Sfixed32Kind:
		if n, ok := toInt64(value); ok {
			return protoreflect.ValueOfInt32(int32(n)), nil
		}
	case protoreflect.Int64Kind, protoreflect.Sint64Kind, protoreflect.Sfixed64Kind:
		if n, ok := toInt64(value); ok {
			return protoreflect.ValueOfInt64(n), nil
		}
	case protoreflect.Uint32Kind, protoreflect.Fixed32Kind:
		if n, ok := toUint64(value); ok {
			return protoreflect.ValueOfUint32(uint32(n)), nil
		}
	case protoreflect.Uint64Kind, protoreflect.Fixed64Kind:
		if n, ok := toUint64(value); ok {
			return protoreflect.ValueOfUint64(n), nil
		}
	case protoreflect.FloatKind:
		if f, ok := toFloat64(value); ok {
			return protoreflect.ValueOfFloat32(float32(f)), nil
		}
	case protoreflect.DoubleKind:
		if f, ok := toFloat64(value); ok {
			return protoreflect.ValueOfFloat64(f), nil
		}
	case protoreflect.StringKind:
		if s, ok := value.(string); ok {
			return protoreflect.ValueOfString(s), nil
		}
	case protoreflect.BytesKind:
		if s, ok := value.(string); ok {
			return protoreflect.ValueOfBytes([]byte(s)), nil
		}
	case protoreflect.EnumKind:
		if s, ok := value.(string); ok {
			if v := field.Enum().Values().ByName(protoreflect.Name(s)); v != nil {
				return protoreflect.ValueOfEnum(v.Number()), nil
			}
		}
	case protoreflect.MessageKind:
		if m, ok := value.(map[string]any); ok {
			nested := dynamicpb.NewMessage(field.Message())
			if err := populateMessage(nested, m); err != nil {
				return protoreflect.Value{}, err
			}
			return protoreflect.ValueOfMessage(nested), nil
		}
	}
	return protoreflect.Value{}, fmt.Errorf("cannot convert %T to %s", value, field.Kind())
}

func messageToMap(msg *dynamicpb.Message) map[string]any {
	result := make(map[string]any)
	msg.Range(func(field protoreflect.FieldDescriptor, value protoreflect.Value) bool {
		key := string(field.JSONName())
		if key == "" {
			key = string(field.Name())
		}
		result[key] = protoValueToGo(field, value)
		return true
	})
	return result
}

func protoValueToGo(field protoreflect.FieldDescriptor, value protoreflect.Value) any {
	if field.IsList() {
		list := value.List()
		result := make([]any, list.Len())
		for i := 0; i < list.Len(); i++ {
			result[i] = scalarToGo(field, list.Get(i))
		}
		return result
	}
	if field.IsMap() {
		m := value.Map()
		result := make(map[string]any)
		m.Range(func(k protoreflect.MapKey, v protoreflect.Value) bool {
			result[fmt.Sprintf("%v", k.Interface())] = scalarToGo(field.MapValue(), v)
			return true
		})
		return result
	}
	return scalarToGo(field, value)
}

func scalarToGo(field protoreflect.FieldDescriptor, value protoreflect.Value) any {
	switch field.Kind() {
	case protoreflect.MessageKind:
		if msg, ok := value.Interface().(*dynamicpb.Message); ok {
			return messageToMap(msg)
		}
		return value.Interface()
	case protoreflect.EnumKind:
		return string(field.Enum().Values().ByNumber(value.Enum()).Name())
	default:
		return value.Interface()
	}
}

// Close closes the gRPC connection.
func (c *GRPCConnector) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Services returns the discovered services.
func (c *GRPCConnector) Services() map[string]*GRPCService {
	return c.services
}

// Target returns the gRPC target address.
func (c *GRPCConnector) Target() string {
	return c.target
}
