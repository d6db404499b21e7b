package memfs

import (
	"strings"
	"sync/atomic"

	"github.com/marmos91/mdfs/internal/logger"
	"github.com/marmos91/mdfs/pkg/fsal"
)

// Capacity the export advertises through statfs. Nothing enforces it; an
// in-memory tree is bounded by the process heap, not by a block device.
const (
	reportedTotalBytes = 512 << 20
	reportedTotalFiles = 1 << 20
	maxIOSize          = 1 << 20
)

// Export is one in-memory namespace rooted at a single directory handle.
type Export struct {
	id      uint16
	path    string
	options fsal.ExportOptions

	root  *Handle
	ready atomic.Bool

	objects    atomic.Int64
	nextFileID atomic.Uint64
}

var _ fsal.Export = (*Export)(nil)

// NewExport creates a ready export with an empty root directory owned by
// root, mode 0755.
func NewExport(id uint16, path string, options fsal.ExportOptions) *Export {
	e := &Export{
		id:      id,
		path:    strings.TrimSuffix(path, "/"),
		options: options,
	}

	e.root = newHandle(e, fsal.Directory, &fsal.Attributes{
		Mask: fsal.AttrMode | fsal.AttrOwner | fsal.AttrGroup,
		Mode: 0o755,
	})
	e.root.dirState.RefExportRoot()
	e.ready.Store(true)

	logger.Info("Created in-memory export %d at %s", id, path)
	return e
}

// Unmount marks the export not ready. Junction resolution into it starts
// failing; existing handles keep working.
func (e *Export) Unmount() {
	e.ready.Store(false)
}

func (e *Export) ID() uint16 {
	return e.id
}

func (e *Export) Path() string {
	return e.path
}

func (e *Export) Ready() bool {
	return e.ready.Load()
}

func (e *Export) Options() fsal.ExportOptions {
	return e.options
}

// Root returns the root handle, ref'd.
func (e *Export) Root(ctx *fsal.OpContext) (fsal.ObjectHandle, error) {
	if !e.ready.Load() {
		return nil, fsal.Errorf(fsal.ErrStale, "export %d is not mounted", e.id)
	}
	e.root.Ref()
	return e.root, nil
}

// LookupPath resolves an absolute path against the export's mount path,
// walking component by component without permission checks.
func (e *Export) LookupPath(ctx *fsal.OpContext, path string) (fsal.ObjectHandle, error) {
	if !e.ready.Load() {
		return nil, fsal.Errorf(fsal.ErrStale, "export %d is not mounted", e.id)
	}

	rel, ok := strings.CutPrefix(path, e.path)
	if !ok {
		return nil, fsal.Errorf(fsal.ErrNotFound, "%s is outside export %s", path, e.path)
	}

	current := fsal.ObjectHandle(e.root)
	current.Ref()

	for _, name := range strings.Split(rel, "/") {
		if name == "" {
			continue
		}
		child, err := current.Lookup(ctx, name)
		current.Unref()
		if err != nil {
			return nil, err
		}
		current = child
	}
	return current, nil
}

// DynamicInfo reports usage derived from the live object count. Byte
// usage counts regular file content only.
func (e *Export) DynamicInfo(ctx *fsal.OpContext, obj fsal.ObjectHandle) (fsal.DynamicInfo, error) {
	if !e.ready.Load() {
		return fsal.DynamicInfo{}, fsal.Errorf(fsal.ErrStale, "export %d is not mounted", e.id)
	}

	files := uint64(e.objects.Load())
	if files > reportedTotalFiles {
		files = reportedTotalFiles
	}

	var used uint64
	e.walkBytes(e.root, &used)
	if used > reportedTotalBytes {
		used = reportedTotalBytes
	}

	return fsal.DynamicInfo{
		TotalBytes: reportedTotalBytes,
		FreeBytes:  reportedTotalBytes - used,
		AvailBytes: reportedTotalBytes - used,
		TotalFiles: reportedTotalFiles,
		FreeFiles:  reportedTotalFiles - files,
		AvailFiles: reportedTotalFiles - files,
		MaxRead:    maxIOSize,
		MaxWrite:   maxIOSize,
	}, nil
}

func (e *Export) walkBytes(h *Handle, used *uint64) {
	if h.file != nil {
		*used += h.attrs.Size
		return
	}
	if h.dir == nil {
		return
	}
	h.dir.ascend(0, func(ent *dirent) bool {
		e.walkBytes(ent.child, used)
		return true
	})
}
