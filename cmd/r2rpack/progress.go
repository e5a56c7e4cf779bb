package main

import (
	"io"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"

	"r2rpack/internal/archive"
	"r2rpack/internal/packaging"
)

func isattyTerminal(fd uintptr) bool {
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// newProgressFactory renders one progress bar per archive. The bar is built
// lazily on the first tick because the file total is only known once the
// archiver finishes its pre-count.
func newProgressFactory(w io.Writer) packaging.ProgressFactory {
	return func(label string) archive.ProgressFunc {
		var bar *progressbar.ProgressBar
		return func(done, total int) {
			if bar == nil {
				bar = progressbar.NewOptions(total,
					progressbar.OptionSetDescription(label),
					progressbar.OptionSetWriter(w),
					progressbar.OptionShowCount(),
					progressbar.OptionSetWidth(40),
					progressbar.OptionClearOnFinish(),
				)
			}
			_ = bar.Set(done)
			if total > 0 && done >= total {
				_ = bar.Finish()
			}
		}
	}
}
