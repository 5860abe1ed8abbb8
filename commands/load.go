package commands

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/hupe1980/cmdmesh/command"
	"github.com/hupe1980/cmdmesh/core"
	"github.com/hupe1980/cmdmesh/thread"
)

// maxLoadSize caps the bytes a single "load file" appends to the thread.
const maxLoadSize = 256 << 10

// NewLoad creates the "load" group.
func NewLoad() command.Handler {
	requires := []string{command.IntegrationFS}

	return command.NewGroup(command.Spec{
		Name:         "load",
		Summary:      "load files into the conversation",
		Integrations: requires,
	},
		command.NewLeaf(command.Spec{
			Name:         "file",
			Summary:      "append a file to the thread",
			Integrations: requires,
		}, loadFile),
		command.NewLeaf(command.Spec{
			Name:         "folder",
			Summary:      "load every file of a directory",
			Integrations: requires,
		}, loadFolder),
	)
}

// FileMessage renders the thread message for a loaded file.
func FileMessage(path, content string) string {
	return fmt.Sprintf("[file %s]\n%s", path, content)
}

func loadFile(_ context.Context, cc *command.Context, req command.Request) (*command.Context, error) {
	if req.Args == "" {
		return cc, command.Usage("load file", "<path>")
	}
	fs, err := command.Lookup[afero.Fs](cc.Integrations, command.IntegrationFS)
	if err != nil {
		return cc, err
	}

	path := req.Args
	info, err := fs.Stat(path)
	if err != nil {
		return cc, core.NewError(core.ErrCodeNotFound, fmt.Sprintf("cannot load %s", path), err)
	}
	if info.IsDir() {
		return cc, core.Errorf(core.ErrCodeInvalidArguments, "%s is a directory, use load folder", path)
	}
	if info.Size() > maxLoadSize {
		return cc, core.Errorf(core.ErrCodeInvalidArguments, "%s is too large (%d bytes, limit %d)", path, info.Size(), maxLoadSize)
	}

	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return cc, core.NewError(core.ErrCodeNotFound, fmt.Sprintf("cannot load %s", path), err)
	}

	cc.Thread.Append(thread.NewUserMessage(cc.Username, FileMessage(path, string(data))))
	cc.LogDebug("command.load.file", "session", cc.SessionID, "path", path, "bytes", len(data))
	cc.Say(fmt.Sprintf("loaded %s (%d bytes)", path, len(data)))

	return cc, nil
}

func loadFolder(_ context.Context, cc *command.Context, req command.Request) (*command.Context, error) {
	if req.Args == "" {
		return cc, command.Usage("load folder", "<path>")
	}
	fs, err := command.Lookup[afero.Fs](cc.Integrations, command.IntegrationFS)
	if err != nil {
		return cc, err
	}

	// ReadDir returns entries sorted by name.
	entries, err := afero.ReadDir(fs, req.Args)
	if err != nil {
		return cc, core.NewError(core.ErrCodeNotFound, fmt.Sprintf("cannot list %s", req.Args), err)
	}

	n := 0
	for _, e := range entries {
		if !e.Mode().IsRegular() {
			continue
		}
		cc.Enqueue("load file " + filepath.Join(req.Args, e.Name()))
		n++
	}
	if n == 0 {
		cc.Warn("%s contains no files", req.Args)
	}

	return cc, nil
}
