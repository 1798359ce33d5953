package grpchook

import (
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"

	hooks "github.com/fedgraph/gateway/internal/hooks"
)

func TestEncodeDecodeQueryElementRoundTrips(t *testing.T) {
	desc := authorizeQueryMethod().Input().Fields().ByName("elements").Message()
	el := hooks.QueryElement{Path: []string{"me", "reviews"}, TypeName: "Review", FieldName: "body"}
	msg := encodeQueryElement(desc, el)

	require.Equal(t, "Review", msg.Get(desc.Fields().ByName("type_name")).String())
	require.Equal(t, "body", msg.Get(desc.Fields().ByName("field_name")).String())
	pathList := msg.Get(desc.Fields().ByName("path")).List()
	require.Equal(t, 2, pathList.Len())
	require.Equal(t, "me", pathList.Get(0).String())
	require.Equal(t, "reviews", pathList.Get(1).String())
}

func TestDecodeDecisionRoundTrips(t *testing.T) {
	decisionDesc := authorizeQueryMethod().Output().Fields().ByName("decisions").Message()
	elemDesc := decisionDesc.Fields().ByName("element").Message()

	elemMsg := encodeQueryElement(elemDesc, hooks.QueryElement{Path: []string{"a"}, TypeName: "T", FieldName: "f"})
	decisionMsg := dynamicpb.NewMessage(decisionDesc)
	decisionMsg.Set(decisionDesc.Fields().ByName("element"), protoreflect.ValueOfMessage(elemMsg))
	decisionMsg.Set(decisionDesc.Fields().ByName("allow"), protoreflect.ValueOfBool(true))
	decisionMsg.Set(decisionDesc.Fields().ByName("reason"), protoreflect.ValueOfString("ok"))

	d := decodeDecision(decisionMsg)
	require.True(t, d.Allow)
	require.Equal(t, "ok", d.Reason)
	require.Equal(t, []string{"a"}, d.Element.Path)
	require.Equal(t, "T", d.Element.TypeName)
}

func TestEncodeResponseElementCarriesFieldsAsJSON(t *testing.T) {
	desc := authorizeResponseMethod().Input().Fields().ByName("elements").Message()
	msg, err := encodeResponseElement(desc, hooks.ResponseElement{
		Path:     []string{"me"},
		TypeName: "User",
		Fields:   map[string]any{"id": "1"},
	})
	require.NoError(t, err)
	raw := msg.Get(desc.Fields().ByName("fields_json")).Bytes()
	require.JSONEq(t, `{"id":"1"}`, string(raw))
}

func TestDecodeResponseDecision(t *testing.T) {
	desc := authorizeResponseMethod().Output().Fields().ByName("decisions").Message()
	msg := dynamicpb.NewMessage(desc)
	pathList := msg.Mutable(desc.Fields().ByName("path")).List()
	pathList.Append(protoreflect.ValueOfString("me"))
	msg.Set(desc.Fields().ByName("path"), protoreflect.ValueOfList(pathList))
	msg.Set(desc.Fields().ByName("denied"), protoreflect.ValueOfBool(true))
	msg.Set(desc.Fields().ByName("reason"), protoreflect.ValueOfString("forbidden"))

	d := decodeResponseDecision(msg)
	require.True(t, d.Denied)
	require.Equal(t, []string{"me"}, d.Path)
	require.Equal(t, "forbidden", d.Reason)
}
