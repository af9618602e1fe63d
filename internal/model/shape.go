package model

import (
	"context"
	"fmt"
	"strings"

	"github.com/bufbuild/protocompile"
	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/aevon-lab/aevon-rollup/internal/core/aggregation"
)

const schemaPackage = "rollup.v1"

// RenderSchema renders the key and value shapes of pe as a proto3 file with
// two messages, <Name>Key and <Name>Value.
func RenderSchema(pe PhysicalEntity) string {
	name := MessageName(pe)

	var b strings.Builder
	b.WriteString("syntax = \"proto3\";\n\n")
	fmt.Fprintf(&b, "package %s;\n", schemaPackage)
	if usesTimestamp(pe.KeyShape) || usesTimestamp(pe.ValueShape) {
		b.WriteString("\nimport \"google/protobuf/timestamp.proto\";\n")
	}
	writeMessage(&b, name+"Key", pe.KeyShape)
	writeMessage(&b, name+"Value", pe.ValueShape)
	return b.String()
}

// MessageName returns the CamelCase message prefix for pe.
func MessageName(pe PhysicalEntity) string {
	src := pe.Topic
	if src == "" {
		src = "entity"
	}
	var b strings.Builder
	for _, part := range strings.Split(src, "_") {
		if part == "" {
			continue
		}
		b.WriteString(strings.ToUpper(part[:1]))
		b.WriteString(part[1:])
	}
	name := b.String()
	if name == "" || (name[0] >= '0' && name[0] <= '9') {
		name = "T" + name
	}
	return name
}

func writeMessage(b *strings.Builder, name string, cols []aggregation.Column) {
	fmt.Fprintf(b, "\nmessage %s {\n", name)
	for i, c := range cols {
		label := ""
		if c.Nullable {
			label = "optional "
		}
		fmt.Fprintf(b, "  %s%s %s = %d;\n", label, protoType(c.Type), fieldName(c.Name), i+1)
	}
	b.WriteString("}\n")
}

func fieldName(name string) string {
	f := aggregation.ObjectName(name)
	if f == "" || (f[0] >= '0' && f[0] <= '9') {
		f = "f_" + f
	}
	return f
}

func protoType(t string) string {
	switch t {
	case aggregation.TypeInt:
		return "int32"
	case aggregation.TypeBigint:
		return "int64"
	case aggregation.TypeDouble:
		return "double"
	case aggregation.TypeBoolean:
		return "bool"
	case aggregation.TypeTimestamp:
		return "google.protobuf.Timestamp"
	}
	// decimals travel as strings to keep precision
	return "string"
}

func usesTimestamp(cols []aggregation.Column) bool {
	for _, c := range cols {
		if c.Type == aggregation.TypeTimestamp {
			return true
		}
	}
	return false
}

// CompileSchema compiles pe's rendered schema and returns its file descriptor.
// It fails on shapes that render to invalid proto, such as duplicate column names.
func CompileSchema(ctx context.Context, pe PhysicalEntity) (protoreflect.FileDescriptor, error) {
	fileName := MessageName(pe) + ".proto"
	resolver := &singleFileResolver{
		fileName: fileName,
		content:  pe.Schema,
	}

	compiler := protocompile.Compiler{
		Resolver:       protocompile.WithStandardImports(resolver),
		SourceInfoMode: protocompile.SourceInfoNone,
	}

	files, err := compiler.Compile(ctx, fileName)
	if err != nil {
		return nil, fmt.Errorf("compile shape of %q: %w", pe.Topic, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("compile shape of %q: no files compiled", pe.Topic)
	}
	return files[0], nil
}

// singleFileResolver provides proto content for compilation.
type singleFileResolver struct {
	fileName string
	content  string
}

func (r *singleFileResolver) FindFileByPath(path string) (protocompile.SearchResult, error) {
	if path == r.fileName {
		return protocompile.SearchResult{
			Source: strings.NewReader(r.content),
		}, nil
	}
	return protocompile.SearchResult{}, fmt.Errorf("file not found: %s", path)
}
