package grpchook

import (
	"sync"

	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"
)

// The authorization sidecar's wire shape is fixed, not schema-derived, so it
// is hand-built once here with descriptorpb the way
// grpcrt's tests build ad hoc method descriptors, rather than compiled from
// the supergraph SDL through a protoreg-style registry pass.

var (
	descOnce sync.Once
	fileDesc protoreflect.FileDescriptor
)

func file() protoreflect.FileDescriptor {
	descOnce.Do(func() {
		fdp := &descriptorpb.FileDescriptorProto{
			Name:    pstr("gateway_authz.proto"),
			Package: pstr("gatewayauthz"),
			Syntax:  pstr("proto3"),
			MessageType: []*descriptorpb.DescriptorProto{
				message("QueryElement",
					field("path", 1, repeatedString),
					field("type_name", 2, optionalString),
					field("field_name", 3, optionalString),
				),
				message("Decision",
					messageField("element", 1, ".gatewayauthz.QueryElement"),
					field("allow", 2, optionalBool),
					field("reason", 3, optionalString),
				),
				message("AuthorizeQueryRequest",
					field("subject", 1, optionalString),
					messageFieldRepeated("elements", 2, ".gatewayauthz.QueryElement"),
				),
				message("AuthorizeQueryResponse",
					messageFieldRepeated("decisions", 1, ".gatewayauthz.Decision"),
					field("state", 2, optionalBytes),
				),
				message("ResponseElement",
					field("path", 1, repeatedString),
					field("type_name", 2, optionalString),
					field("fields_json", 3, optionalBytes),
				),
				message("ResponseDecision",
					field("path", 1, repeatedString),
					field("denied", 2, optionalBool),
					field("reason", 3, optionalString),
				),
				message("AuthorizeResponseRequest",
					field("state", 1, optionalBytes),
					messageFieldRepeated("elements", 2, ".gatewayauthz.ResponseElement"),
				),
				message("AuthorizeResponseResponse",
					messageFieldRepeated("decisions", 1, ".gatewayauthz.ResponseDecision"),
				),
			},
			Service: []*descriptorpb.ServiceDescriptorProto{{
				Name: pstr("Authorization"),
				Method: []*descriptorpb.MethodDescriptorProto{
					{
						Name:       pstr("AuthorizeQuery"),
						InputType:  pstr(".gatewayauthz.AuthorizeQueryRequest"),
						OutputType: pstr(".gatewayauthz.AuthorizeQueryResponse"),
					},
					{
						Name:       pstr("AuthorizeResponse"),
						InputType:  pstr(".gatewayauthz.AuthorizeResponseRequest"),
						OutputType: pstr(".gatewayauthz.AuthorizeResponseResponse"),
					},
				},
			}},
		}
		set := &descriptorpb.FileDescriptorSet{File: []*descriptorpb.FileDescriptorProto{fdp}}
		files, err := protodesc.NewFiles(set)
		if err != nil {
			panic("grpchook: build descriptor: " + err.Error())
		}
		fd, err := files.FindFileByPath("gateway_authz.proto")
		if err != nil {
			panic("grpchook: find descriptor: " + err.Error())
		}
		fileDesc = fd
	})
	return fileDesc
}

func authorizeQueryMethod() protoreflect.MethodDescriptor {
	return file().Services().ByName("Authorization").Methods().ByName("AuthorizeQuery")
}

func authorizeResponseMethod() protoreflect.MethodDescriptor {
	return file().Services().ByName("Authorization").Methods().ByName("AuthorizeResponse")
}

type fieldSpec struct {
	name     string
	number   int32
	label    descriptorpb.FieldDescriptorProto_Label
	kind     descriptorpb.FieldDescriptorProto_Type
	typeName string
}

var (
	repeatedString = fieldSpec{label: descriptorpb.FieldDescriptorProto_LABEL_REPEATED, kind: descriptorpb.FieldDescriptorProto_TYPE_STRING}
	optionalString = fieldSpec{label: descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL, kind: descriptorpb.FieldDescriptorProto_TYPE_STRING}
	optionalBool   = fieldSpec{label: descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL, kind: descriptorpb.FieldDescriptorProto_TYPE_BOOL}
	optionalBytes  = fieldSpec{label: descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL, kind: descriptorpb.FieldDescriptorProto_TYPE_BYTES}
)

func field(name string, number int32, spec fieldSpec) *descriptorpb.FieldDescriptorProto {
	return &descriptorpb.FieldDescriptorProto{
		Name:     pstr(name),
		JsonName: pstr(name),
		Number:   pint32(number),
		Label:    spec.label.Enum(),
		Type:     spec.kind.Enum(),
	}
}

func messageField(name string, number int32, typeName string) *descriptorpb.FieldDescriptorProto {
	return &descriptorpb.FieldDescriptorProto{
		Name:     pstr(name),
		JsonName: pstr(name),
		Number:   pint32(number),
		Label:    descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
		Type:     descriptorpb.FieldDescriptorProto_TYPE_MESSAGE.Enum(),
		TypeName: pstr(typeName),
	}
}

func messageFieldRepeated(name string, number int32, typeName string) *descriptorpb.FieldDescriptorProto {
	f := messageField(name, number, typeName)
	f.Label = descriptorpb.FieldDescriptorProto_LABEL_REPEATED.Enum()
	return f
}

func message(name string, fields ...*descriptorpb.FieldDescriptorProto) *descriptorpb.DescriptorProto {
	return &descriptorpb.DescriptorProto{Name: pstr(name), Field: fields}
}

func pstr(s string) *string { return &s }
func pint32(n int32) *int32 { return &n }
