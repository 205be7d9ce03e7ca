package cursor

import (
	"encoding/base64"

	"github.com/theplant/filtergroup"
)

var base64Codec = codec{
	encode: func(cursor string) (string, error) {
		return base64.RawURLEncoding.EncodeToString([]byte(cursor)), nil
	},
	decode: func(cursor string) (string, error) {
		b, err := base64.RawURLEncoding.DecodeString(cursor)
		return string(b), err
	},
}

// Base64 makes the cursors of next opaque to clients.
func Base64[T any](next filtergroup.ApplyCursorsFunc[T]) filtergroup.ApplyCursorsFunc[T] {
	return wrap(base64Codec, next)
}
