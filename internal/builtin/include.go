package builtin

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"io/fs"
	"path"
	"strings"

	"github.com/rendis/stencil/internal/action"
	"github.com/rendis/stencil/internal/scope"
	"github.com/rendis/stencil/pkg/schema"
)

const defaultMaxIncludeSize = 10 * 1024 * 1024 // 10MB

// include writes the contents of a file from opts.Files. Encoding is text,
// base64 or auto (base64 when the data looks binary).
func includeFactory(opts Options) action.Factory {
	return &factory{name: "include", create: func(ctx context.Context, params action.Params) (action.Action, error) {
		raw, err := params.Required(ctx, "path")
		if err != nil {
			return nil, err
		}
		name, ok := raw.(string)
		if !ok || name == "" {
			return nil, schema.NewError(schema.ErrCodeValidation, "include: path must be a non-empty string")
		}
		name = path.Clean(strings.TrimPrefix(name, "./"))
		if !fs.ValidPath(name) {
			return nil, schema.NewErrorf(schema.ErrCodeValidation, "include: invalid path %q", name)
		}

		enc, err := params.String(ctx, "encoding", "auto")
		if err != nil {
			return nil, err
		}
		if enc != "text" && enc != "base64" && enc != "auto" {
			return nil, schema.NewErrorf(schema.ErrCodeValidation, "include: invalid encoding %q", enc)
		}

		return run(func(_ context.Context, _ action.Body, _ *scope.Scope, w action.Writer) error {
			if opts.Files == nil {
				return schema.NewError(schema.ErrCodeExecution, "include: no file tree configured")
			}
			data, err := readLimited(opts.Files, name, opts.MaxIncludeSize)
			if err != nil {
				return err
			}

			useBase64 := enc == "base64" || (enc == "auto" && isBinary(data))
			if useBase64 {
				return w.Write(base64.StdEncoding.EncodeToString(data))
			}
			return w.Write(string(data))
		}), nil
	}}
}

func readLimited(fsys fs.FS, name string, limit int64) ([]byte, error) {
	f, err := fsys.Open(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, schema.NewErrorf(schema.ErrCodeLookup, "include: file %q not found", name).WithCause(err)
		}
		return nil, schema.NewErrorf(schema.ErrCodeExecution, "include: %v", err).WithCause(err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeExecution, "include: failed to read %q: %v", name, err).WithCause(err)
	}
	if int64(len(data)) > limit {
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "include: %q exceeds %d bytes", name, limit)
	}
	return data, nil
}

// isBinary checks if data contains null bytes in its first 8KiB.
func isBinary(data []byte) bool {
	check := data
	if len(check) > 8192 {
		check = check[:8192]
	}
	for _, b := range check {
		if b == 0 {
			return true
		}
	}
	return false
}
