// Package protofilter converts filter trees to and from protobuf messages, so
// services exchanging google.protobuf.Struct payloads can carry them.
package protofilter

import (
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/theplant/filtergroup/filter"
)

type Option func(*options)

type options struct {
	transformHook    func(filter.TransformFunc) filter.TransformFunc
	complexityLimits *filter.ComplexityLimits
}

// WithTransformHook allows customizing the transform applied to every filter
// after decoding. Hooks added later run outermost.
func WithTransformHook(hooks ...func(filter.TransformFunc) filter.TransformFunc) Option {
	return func(opts *options) {
		prev := opts.transformHook
		opts.transformHook = func(next filter.TransformFunc) filter.TransformFunc {
			if prev != nil {
				next = prev(next)
			}
			return filter.Chain(next, hooks...)
		}
	}
}

// WithComplexityLimits sets custom complexity limits for the filter.
// By default, filter.DefaultLimits is used.
// Pass nil to disable complexity checking.
func WithComplexityLimits(limits *filter.ComplexityLimits) Option {
	return func(opts *options) {
		opts.complexityLimits = limits
	}
}

// FromMessage decodes a message whose JSON form is a filter tree, such as a
// structpb.Struct or a generated message mirroring the tree.
// By default, complexity is checked against filter.DefaultLimits.
func FromMessage[T proto.Message](msg T, opts ...Option) (*filter.FilterGroup, error) {
	if lo.IsNil(msg) {
		return nil, errors.New("filter message is nil")
	}

	o := &options{
		complexityLimits: filter.DefaultLimits,
	}
	for _, opt := range opts {
		opt(o)
	}

	data, err := protojson.Marshal(msg)
	if err != nil {
		return nil, errors.Wrap(err, "marshal proto to json")
	}

	g, err := filter.Parse(data)
	if err != nil {
		return nil, err
	}

	if err := filter.CheckComplexity(g, o.complexityLimits); err != nil {
		return nil, err
	}

	if o.transformHook == nil {
		return g, nil
	}
	g, err = filter.Transform(g, o.transformHook(filter.Identity))
	if err != nil {
		return nil, err
	}
	if err := filter.ValidateErr(g); err != nil {
		return nil, err
	}
	return g, nil
}

// FromStruct decodes a filter tree carried in a Struct.
func FromStruct(s *structpb.Struct, opts ...Option) (*filter.FilterGroup, error) {
	return FromMessage(s, opts...)
}

// ToStruct encodes a filter tree as a Struct.
func ToStruct(g *filter.FilterGroup) (*structpb.Struct, error) {
	if g == nil {
		return nil, errors.New("filter group is nil")
	}
	m, err := filter.ToMap(g)
	if err != nil {
		return nil, err
	}
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, errors.Wrap(err, "convert filter to struct")
	}
	return s, nil
}

// Unmarshal decodes the protojson form of a Struct carrying a filter tree.
func Unmarshal(data []byte, opts ...Option) (*filter.FilterGroup, error) {
	s := &structpb.Struct{}
	if err := protojson.Unmarshal(data, s); err != nil {
		return nil, errors.Wrap(err, "unmarshal struct")
	}
	return FromStruct(s, opts...)
}
