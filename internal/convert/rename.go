package convert

import (
	"context"
	"fmt"
)

// RenameConverter only rewrites the file extension. The bytes are passed
// through unmodified and the output carries a Note saying so.
type RenameConverter struct{}

// Name implements Converter.
func (RenameConverter) Name() string { return "rename" }

// Convert implements Converter.
func (RenameConverter) Convert(_ context.Context, in *Input, format string) (*Output, error) {
	f, err := NormalizeFormat(format)
	if err != nil {
		in.Body.Close()
		return nil, err
	}
	out := passThrough(in)
	if !Convertible(in.FileName, f) {
		return out, nil
	}

	out.FileName = TargetName(in.FileName, f)
	out.Note = fmt.Sprintf("file renamed to .%s without re-encoding; contents are the original media", f)
	return out, nil
}
