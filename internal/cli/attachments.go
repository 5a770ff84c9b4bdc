package cli

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/sync/errgroup"

	"github.com/randalmurphal/bugfiler/internal/bugtracker"
	bferrors "github.com/randalmurphal/bugfiler/internal/errors"
)

// expandAttachments resolves glob patterns (** supported) to regular files,
// in pattern order without duplicates. A pattern matching nothing is an error.
func expandAttachments(patterns []string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	for _, pattern := range patterns {
		matches, err := doublestar.FilepathGlob(pattern)
		if err != nil {
			return nil, bferrors.ErrValidation(fmt.Sprintf("bad attachment pattern %q", pattern)).WithCause(err)
		}
		found := 0
		for _, m := range matches {
			info, err := os.Stat(m)
			if err != nil || !info.Mode().IsRegular() {
				continue
			}
			found++
			if !seen[m] {
				seen[m] = true
				files = append(files, m)
			}
		}
		if found == 0 {
			return nil, bferrors.ErrValidation(fmt.Sprintf("no files match %q", pattern))
		}
	}
	return files, nil
}

// uploadResult is the outcome of one attachment upload.
type uploadResult struct {
	Path     string `json:"path"`
	FileName string `json:"file_name"`
	Size     int64  `json:"size"`
	Error    string `json:"error,omitempty"`
}

// uploadConcurrency bounds parallel attachment uploads.
const uploadConcurrency = 4

// uploadAttachments uploads every file to the issue identified by ref and
// records successes in history. A failed upload does not stop the others;
// results keep the order of files.
func (a *App) uploadAttachments(ctx context.Context, ref bugtracker.IssueRef, files []string) []uploadResult {
	target := ref.AttachmentsURI()
	results := make([]uploadResult, len(files))

	var g errgroup.Group
	g.SetLimit(uploadConcurrency)
	for i, path := range files {
		g.Go(func() error {
			r := uploadResult{Path: path, FileName: filepath.Base(path)}
			r.Size, r.Error = a.uploadOne(ctx, target, path, r.FileName)
			results[i] = r
			return nil
		})
	}
	_ = g.Wait()

	for _, r := range results {
		if r.Error == "" {
			a.recordAttachment(ctx, ref.Key, r.FileName, r.Size)
		}
	}
	return results
}

func (a *App) uploadOne(ctx context.Context, target *url.URL, path, name string) (int64, string) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err.Error()
	}
	defer func() { _ = f.Close() }()

	var size int64
	if info, err := f.Stat(); err == nil {
		size = info.Size()
	}
	res := a.facade.AttachFile(ctx, target, name, f)
	if !res.OK() {
		return size, res.Message()
	}
	return size, ""
}

func (a *App) recordAttachment(ctx context.Context, issueKey, name string, size int64) {
	h, err := a.History(ctx)
	if err != nil {
		a.logger.Warn("open history", "error", err)
		return
	}
	if _, err := h.RecordAttachment(ctx, a.holder.Load().URL, issueKey, name, size); err != nil {
		a.logger.Warn("record attachment", "issue", issueKey, "file", name, "error", err)
	}
}

func failedUploads(results []uploadResult) int {
	n := 0
	for _, r := range results {
		if r.Error != "" {
			n++
		}
	}
	return n
}

// printUploads writes one line per upload.
func printUploads(w io.Writer, results []uploadResult) {
	for _, r := range results {
		if r.Error != "" {
			_, _ = fmt.Fprintf(w, "  %s %s: %s\n", errorStyle.Render("failed"), r.FileName, r.Error)
			continue
		}
		_, _ = fmt.Fprintf(w, "  %s %s %s\n", successStyle.Render("attached"), r.FileName, subtleStyle.Render(fmt.Sprintf("(%d bytes)", r.Size)))
	}
}
