package cursor

import (
	"context"

	"github.com/pkg/errors"

	"github.com/theplant/filtergroup"
)

// codec maps between the cursors clients see and the cursors an adapter
// understands.
type codec struct {
	encode func(cursor string) (string, error)
	decode func(cursor string) (string, error)
}

func (c codec) decodeField(name string, cursor *string) (*string, error) {
	if cursor == nil {
		return nil, nil
	}
	plain, err := c.decode(*cursor)
	if err != nil {
		return nil, filtergroup.InvalidRequest(errors.Wrapf(err, "invalid %s cursor", name))
	}
	return &plain, nil
}

func wrap[T any](c codec, next filtergroup.ApplyCursorsFunc[T]) filtergroup.ApplyCursorsFunc[T] {
	return func(ctx context.Context, req *filtergroup.ApplyCursorsRequest) (*filtergroup.ApplyCursorsResponse[T], error) {
		after, err := c.decodeField("after", req.After)
		if err != nil {
			return nil, err
		}
		before, err := c.decodeField("before", req.Before)
		if err != nil {
			return nil, err
		}
		req.After, req.Before = after, before

		rsp, err := next(ctx, req)
		if err != nil {
			return nil, err
		}
		for _, edge := range rsp.LazyEdges {
			inner := edge.Cursor
			edge.Cursor = func(ctx context.Context) (string, error) {
				plain, err := inner(ctx)
				if err != nil {
					return "", err
				}
				return c.encode(plain)
			}
		}
		return rsp, nil
	}
}
