package tool

import (
	"fmt"

	"github.com/spf13/afero"

	"github.com/hupe1980/cmdmesh/internal/util"
)

const maxReadBytes = 64 * 1024

// NewReadFileTool exposes read access to fs. Callers restrict fs to the
// workspace, e.g. with afero.NewBasePathFs.
func NewReadFileTool(fs afero.Fs) Tool {
	return NewFunctionTool(
		"read_file",
		"Read a text file from the workspace.",
		util.ObjectSchema(util.String("path", "Path relative to the workspace root", true)),
		func(_ *Context, args map[string]any) (any, error) {
			path, _ := args["path"].(string)

			info, err := fs.Stat(path)
			if err != nil {
				return nil, NewToolError("read_file", err.Error(), CodeNotFound)
			}
			if info.IsDir() {
				return nil, NewToolError("read_file", fmt.Sprintf("%s is a directory", path), CodeValidation)
			}

			data, err := afero.ReadFile(fs, path)
			if err != nil {
				return nil, err
			}

			truncated := false
			if len(data) > maxReadBytes {
				data = data[:maxReadBytes]
				truncated = true
			}

			return map[string]any{"path": path, "content": string(data), "truncated": truncated}, nil
		},
	)
}
