// Package folderconn is the reference "folder" connector for the
// FolderSource query source: it lists files under a directory (honoring
// recursive/extension options). A separate Watcher reports file changes
// under a directory through fsnotify; the refresh orchestrator does not
// subscribe to it.
package folderconn

import (
	"context"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/sqldef/powerquery/connector"
	"github.com/sqldef/powerquery/pqerr"
	"github.com/sqldef/powerquery/table"
	"github.com/sqldef/powerquery/value"
)

const ID = "folder"

type Request struct {
	Path           string
	Recursive      bool
	FileExtensions []string
}

type Connector struct {
	walk func(root string, fn fs.WalkDirFunc) error
}

func New() *Connector {
	return &Connector{walk: filepath.WalkDir}
}

func (c *Connector) ID() string             { return ID }
func (c *Connector) PermissionKind() string { return "file" }

func (c *Connector) CacheKey(req connector.Request) (any, error) {
	r, ok := req.Params.(Request)
	if !ok {
		return nil, pqerr.New(pqerr.KindInvalidArgument, "folderconn: unrecognized request payload")
	}
	return map[string]any{
		"kind":      "folder",
		"path":      r.Path,
		"recursive": r.Recursive,
		"ext":       r.FileExtensions,
	}, nil
}

var columns = []table.Column{
	{Name: "Name", Type: table.TypeText},
	{Name: "Folder Path", Type: table.TypeText},
	{Name: "Extension", Type: table.TypeText},
}

func (c *Connector) Execute(ctx context.Context, req connector.Request, host connector.Host) (connector.Result, error) {
	r, ok := req.Params.(Request)
	if !ok {
		return connector.Result{}, pqerr.New(pqerr.KindInvalidArgument, "folderconn: unrecognized request payload")
	}

	var paths []string
	err := c.walk(r.Path, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if !r.Recursive && path != r.Path {
				return filepath.SkipDir
			}
			return nil
		}
		if !extensionMatches(path, r.FileExtensions) {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return connector.Result{}, pqerr.Wrap(pqerr.KindCancelled, "folderconn: listing cancelled", ctx.Err())
		}
		return connector.Result{}, pqerr.Wrap(pqerr.KindConnectorFailure, "folderconn: listing directory", err)
	}
	sort.Strings(paths)

	rows := make([][]value.Value, 0, len(paths))
	for _, p := range paths {
		rows = append(rows, []value.Value{
			value.Text(filepath.Base(p)),
			value.Text(filepath.Dir(p)),
			value.Text(filepath.Ext(p)),
		})
	}
	return connector.Result{Table: table.New(columns, rows), Meta: connector.ResultMeta{RowCountKnown: true}}, nil
}

func extensionMatches(path string, exts []string) bool {
	if len(exts) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range exts {
		if strings.ToLower(e) == ext {
			return true
		}
	}
	return false
}

// Watcher wraps fsnotify and reports every create/write/remove/rename
// under the watched path on Changes. Nothing in the refresh orchestrator
// reads it, so RefreshOnDependencyChange is not driven by it.
type Watcher struct {
	w *fsnotify.Watcher
}

// NewWatcher starts watching path (and, if recursive, every existing
// subdirectory — fsnotify does not recurse on its own).
func NewWatcher(path string, recursive bool) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, pqerr.Wrap(pqerr.KindConnectorFailure, "folderconn: starting watcher", err)
	}
	if err := w.Add(path); err != nil {
		w.Close()
		return nil, pqerr.Wrap(pqerr.KindConnectorFailure, "folderconn: watching "+path, err)
	}
	if recursive {
		filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
			if err == nil && d.IsDir() && p != path {
				w.Add(p)
			}
			return nil
		})
	}
	return &Watcher{w: w}, nil
}

// Changes and Errors expose fsnotify's own event and error channels
// unchanged.
func (w *Watcher) Changes() <-chan fsnotify.Event { return w.w.Events }
func (w *Watcher) Errors() <-chan error            { return w.w.Errors }
func (w *Watcher) Close() error                    { return w.w.Close() }

var _ connector.Connector = (*Connector)(nil)
