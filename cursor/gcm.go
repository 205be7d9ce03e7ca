package cursor

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"

	"github.com/pkg/errors"

	"github.com/theplant/filtergroup"
	"github.com/theplant/filtergroup/filter"
)

// NewGCM returns an AES-GCM AEAD for key. The AEAD is safe for concurrent use.
func NewGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.Wrap(err, "could not create cipher")
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errors.Wrap(err, "could not create AEAD")
	}
	return aead, nil
}

// NewGCMFromSecret derives a 256 bit key from a configured secret.
func NewGCMFromSecret(secret string) (cipher.AEAD, error) {
	if secret == "" {
		return nil, errors.New("cursor secret is empty")
	}
	key := sha256.Sum256([]byte(secret))
	return NewGCM(key[:])
}

// sealedCodec seals cursors with aead. The additional data is authenticated
// but not stored, so opening with different data fails.
func sealedCodec(aead cipher.AEAD, additional []byte) codec {
	return codec{
		encode: func(cursor string) (string, error) {
			nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(cursor)+aead.Overhead())
			if _, err := rand.Read(nonce); err != nil {
				return "", errors.Wrap(err, "could not generate nonce")
			}
			return base64.RawURLEncoding.EncodeToString(aead.Seal(nonce, nonce, []byte(cursor), additional)), nil
		},
		decode: func(cursor string) (string, error) {
			sealed, err := base64.RawURLEncoding.DecodeString(cursor)
			if err != nil {
				return "", errors.Wrap(err, "could not decode cipher text")
			}
			n := aead.NonceSize()
			if len(sealed) < n {
				return "", errors.New("cipher text too short")
			}
			plain, err := aead.Open(nil, sealed[:n], sealed[n:], additional)
			if err != nil {
				return "", errors.Wrap(err, "could not decrypt cipher text")
			}
			return string(plain), nil
		},
	}
}

// GCM encrypts the cursors of next so clients can neither read nor forge
// them. Cursors are bound to the request filter and fail to decrypt when
// replayed with another one.
func GCM[T any](aead cipher.AEAD) func(next filtergroup.ApplyCursorsFunc[T]) filtergroup.ApplyCursorsFunc[T] {
	return func(next filtergroup.ApplyCursorsFunc[T]) filtergroup.ApplyCursorsFunc[T] {
		return func(ctx context.Context, req *filtergroup.ApplyCursorsRequest) (*filtergroup.ApplyCursorsResponse[T], error) {
			var binding []byte
			if req.Filter != nil {
				b, err := filter.Marshal(req.Filter)
				if err != nil {
					return nil, err
				}
				binding = b
			}
			return wrap(sealedCodec(aead, binding), next)(ctx, req)
		}
	}
}
