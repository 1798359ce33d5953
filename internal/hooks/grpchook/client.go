// Package grpchook implements hooks.QueryAuthorizer and
// hooks.ResponseAuthorizer by dispatching to an external policy sidecar over
// gRPC, adapting grpcrt/runtime.go's dynamicpb request/response construction
// to two small fixed-shape messages instead of a schema-derived registry.
package grpchook

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"

	hooks "github.com/fedgraph/gateway/internal/hooks"
)

// Client is a gRPC client to a single authorization sidecar endpoint. It
// wraps the one *grpc.ClientConn handed to New rather than a multi-endpoint
// provider or a connection pool, since a policy sidecar is one fixed address per deployment, not
// a pool of interchangeable subgraph backends.
type Client struct {
	conn *grpc.ClientConn
}

func New(conn *grpc.ClientConn) *Client { return &Client{conn: conn} }

var (
	_ hooks.QueryAuthorizer    = (*Client)(nil)
	_ hooks.ResponseAuthorizer = (*Client)(nil)
)

func (c *Client) AuthorizeQuery(ctx context.Context, token hooks.AuthToken, elements []hooks.QueryElement) ([]hooks.Decision, any, error) {
	md := authorizeQueryMethod()
	req := dynamicpb.NewMessage(md.Input())
	req.Set(md.Input().Fields().ByName("subject"), protoreflect.ValueOfString(token.Subject))

	elemDesc := md.Input().Fields().ByName("elements").Message()
	list := req.Mutable(md.Input().Fields().ByName("elements")).List()
	for _, el := range elements {
		list.Append(protoreflect.ValueOfMessage(encodeQueryElement(elemDesc, el)))
	}
	req.Set(md.Input().Fields().ByName("elements"), protoreflect.ValueOfList(list))

	resp := dynamicpb.NewMessage(md.Output())
	if err := c.conn.Invoke(ctx, fullMethod(md), req, resp); err != nil {
		return nil, nil, fmt.Errorf("grpchook: AuthorizeQuery: %w", err)
	}

	decisionsField := md.Output().Fields().ByName("decisions")
	decisionsList := resp.Get(decisionsField).List()
	decisions := make([]hooks.Decision, decisionsList.Len())
	for i := 0; i < decisionsList.Len(); i++ {
		decisions[i] = decodeDecision(decisionsList.Get(i).Message())
	}

	state := resp.Get(md.Output().Fields().ByName("state")).Bytes()
	return decisions, []byte(state), nil
}

func (c *Client) AuthorizeResponse(ctx context.Context, state any, elements []hooks.ResponseElement) ([]hooks.ResponseDecision, error) {
	md := authorizeResponseMethod()
	req := dynamicpb.NewMessage(md.Input())

	if b, ok := state.([]byte); ok {
		req.Set(md.Input().Fields().ByName("state"), protoreflect.ValueOfBytes(b))
	}

	elemDesc := md.Input().Fields().ByName("elements").Message()
	list := req.Mutable(md.Input().Fields().ByName("elements")).List()
	for _, el := range elements {
		msg, err := encodeResponseElement(elemDesc, el)
		if err != nil {
			return nil, fmt.Errorf("grpchook: encode response element: %w", err)
		}
		list.Append(protoreflect.ValueOfMessage(msg))
	}
	req.Set(md.Input().Fields().ByName("elements"), protoreflect.ValueOfList(list))

	resp := dynamicpb.NewMessage(md.Output())
	if err := c.conn.Invoke(ctx, fullMethod(md), req, resp); err != nil {
		return nil, fmt.Errorf("grpchook: AuthorizeResponse: %w", err)
	}

	decisionsList := resp.Get(md.Output().Fields().ByName("decisions")).List()
	decisions := make([]hooks.ResponseDecision, decisionsList.Len())
	for i := 0; i < decisionsList.Len(); i++ {
		decisions[i] = decodeResponseDecision(decisionsList.Get(i).Message())
	}
	return decisions, nil
}

func fullMethod(md protoreflect.MethodDescriptor) string {
	return fmt.Sprintf("/%s/%s", md.Parent().FullName(), md.Name())
}

func encodeQueryElement(desc protoreflect.MessageDescriptor, el hooks.QueryElement) protoreflect.Message {
	msg := dynamicpb.NewMessage(desc)
	pathField := desc.Fields().ByName("path")
	pathList := msg.Mutable(pathField).List()
	for _, p := range el.Path {
		pathList.Append(protoreflect.ValueOfString(p))
	}
	msg.Set(pathField, protoreflect.ValueOfList(pathList))
	msg.Set(desc.Fields().ByName("type_name"), protoreflect.ValueOfString(el.TypeName))
	msg.Set(desc.Fields().ByName("field_name"), protoreflect.ValueOfString(el.FieldName))
	return msg
}

func decodeDecision(msg protoreflect.Message) hooks.Decision {
	desc := msg.Descriptor()
	el := hooks.QueryElement{}
	if elemVal := msg.Get(desc.Fields().ByName("element")); elemVal.Message() != nil {
		elemMsg := elemVal.Message()
		elemDesc := elemMsg.Descriptor()
		pathList := elemMsg.Get(elemDesc.Fields().ByName("path")).List()
		for i := 0; i < pathList.Len(); i++ {
			el.Path = append(el.Path, pathList.Get(i).String())
		}
		el.TypeName = elemMsg.Get(elemDesc.Fields().ByName("type_name")).String()
		el.FieldName = elemMsg.Get(elemDesc.Fields().ByName("field_name")).String()
	}
	return hooks.Decision{
		Element: el,
		Allow:   msg.Get(desc.Fields().ByName("allow")).Bool(),
		Reason:  msg.Get(desc.Fields().ByName("reason")).String(),
	}
}

func encodeResponseElement(desc protoreflect.MessageDescriptor, el hooks.ResponseElement) (protoreflect.Message, error) {
	msg := dynamicpb.NewMessage(desc)
	pathField := desc.Fields().ByName("path")
	pathList := msg.Mutable(pathField).List()
	for _, p := range el.Path {
		pathList.Append(protoreflect.ValueOfString(p))
	}
	msg.Set(pathField, protoreflect.ValueOfList(pathList))
	msg.Set(desc.Fields().ByName("type_name"), protoreflect.ValueOfString(el.TypeName))

	fieldsJSON, err := json.Marshal(el.Fields)
	if err != nil {
		return nil, err
	}
	msg.Set(desc.Fields().ByName("fields_json"), protoreflect.ValueOfBytes(fieldsJSON))
	return msg, nil
}

func decodeResponseDecision(msg protoreflect.Message) hooks.ResponseDecision {
	desc := msg.Descriptor()
	pathList := msg.Get(desc.Fields().ByName("path")).List()
	path := make([]string, pathList.Len())
	for i := 0; i < pathList.Len(); i++ {
		path[i] = pathList.Get(i).String()
	}
	return hooks.ResponseDecision{
		Path:   path,
		Denied: msg.Get(desc.Fields().ByName("denied")).Bool(),
		Reason: msg.Get(desc.Fields().ByName("reason")).String(),
	}
}
