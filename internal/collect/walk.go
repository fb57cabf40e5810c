package collect

import (
	"context"
	"iter"
	"path"

	"github.com/aliskhannn/watermarker/internal/model"
)

// Walk returns a lazy depth-first traversal of dir that yields items in
// the same order as Collect. Each call to the returned sequence starts a
// fresh traversal; a directory is listed only when the iteration reaches
// it. Unreadable directories are yielded as errors and skipped.
func Walk(ctx context.Context, dir Directory, opts Options) iter.Seq2[model.InputItem, error] {
	type frame struct {
		entries []Entry
		next    int
		prefix  string
	}

	return func(yield func(model.InputItem, error) bool) {
		var stack []*frame

		// open lists d and pushes it; it reports false if iteration must stop.
		open := func(d Directory, prefix string) bool {
			entries, err := d.Entries(ctx)
			if err != nil {
				e := model.NewError(model.ErrCollection, logicalPath(prefix), err)
				e.Retryable = true
				return yield(model.InputItem{}, e)
			}
			stack = append(stack, &frame{entries: entries, prefix: prefix})
			return true
		}

		if !open(dir, dir.Name()) {
			return
		}

		for len(stack) > 0 {
			if err := ctx.Err(); err != nil {
				yield(model.InputItem{}, model.NewError(model.ErrCancelled, "", err))
				return
			}

			top := stack[len(stack)-1]
			if top.next == len(top.entries) {
				stack = stack[:len(stack)-1]
				continue
			}
			e := top.entries[top.next]
			top.next++

			switch {
			case e.File != nil:
				if !opts.accepts(e.File.Name()) {
					continue
				}
				item := model.InputItem{
					Source: e.File,
					Path:   logicalPath(path.Join(top.prefix, e.File.Name())),
				}
				if !yield(item, nil) {
					return
				}
			case e.Dir != nil:
				if !opts.descends(e.Dir.Name()) {
					continue
				}
				if !open(e.Dir, path.Join(top.prefix, e.Dir.Name())) {
					return
				}
			}
		}
	}
}
