package builtin

import (
	"context"
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"hash"

	"github.com/google/uuid"
	"github.com/rendis/stencil/internal/action"
	"github.com/rendis/stencil/internal/scope"
	"github.com/rendis/stencil/pkg/schema"
)

// hashFunc returns a new hash.Hash for the given algorithm name.
func hashFunc(algorithm string) (func() hash.Hash, error) {
	switch algorithm {
	case "sha256":
		return sha256.New, nil
	case "sha512":
		return sha512.New, nil
	case "sha384":
		return sha512.New384, nil
	case "md5":
		return md5.New, nil
	case "sha1":
		return sha1.New, nil
	default:
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "unsupported hash algorithm: %s", algorithm)
	}
}

// hash writes the hex digest of value.
func hashFactory() action.Factory {
	return &factory{name: "hash", create: func(ctx context.Context, params action.Params) (action.Action, error) {
		data, err := params.String(ctx, "value", "")
		if err != nil {
			return nil, err
		}
		algorithm, err := params.String(ctx, "algorithm", "sha256")
		if err != nil {
			return nil, err
		}
		newHash, err := hashFunc(algorithm)
		if err != nil {
			return nil, err
		}

		h := newHash()
		h.Write([]byte(data))
		return emit(hex.EncodeToString(h.Sum(nil))), nil
	}}
}

// hmac writes the hex HMAC of value under key.
func hmacFactory() action.Factory {
	return &factory{name: "hmac", create: func(ctx context.Context, params action.Params) (action.Action, error) {
		data, err := params.String(ctx, "value", "")
		if err != nil {
			return nil, err
		}
		key, err := params.String(ctx, "key", "")
		if err != nil {
			return nil, err
		}
		if key == "" {
			return nil, schema.NewError(schema.ErrCodeValidation, "hmac: missing required parameter \"key\"")
		}
		algorithm, err := params.String(ctx, "algorithm", "sha256")
		if err != nil {
			return nil, err
		}
		newHash, err := hashFunc(algorithm)
		if err != nil {
			return nil, err
		}

		mac := hmac.New(newHash, []byte(key))
		mac.Write([]byte(data))
		return emit(hex.EncodeToString(mac.Sum(nil))), nil
	}}
}

// uuid writes a random v4 UUID, generated at execution time.
func uuidFactory() action.Factory {
	return &factory{name: "uuid", create: func(context.Context, action.Params) (action.Action, error) {
		return run(func(_ context.Context, _ action.Body, _ *scope.Scope, w action.Writer) error {
			return w.Write(uuid.NewString())
		}), nil
	}}
}
