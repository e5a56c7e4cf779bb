package archive

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"r2rpack/internal/fileutil"
)

// Source pairs a directory on disk with the name it takes inside the archive.
type Source struct {
	Path string
	Name string
}

// ProgressFunc receives a tick after each regular file is written. total is
// the pre-counted number of regular files across all sources.
type ProgressFunc func(done, total int)

// Create builds one gzip-compressed tar archive at dest from the given
// sources. When progress is non-nil the sources are traversed once up front
// to count files, then again while writing; archive creation dominates run
// time so the extra pass is cheap relative to compression.
//
// On error the partially written dest is left in place for inspection.
func Create(dest string, sources []Source, progress ProgressFunc) error {
	total := 0
	if progress != nil {
		for _, src := range sources {
			n, err := fileutil.CountFiles(src.Path)
			if err != nil {
				return fmt.Errorf("count files in %s: %w", src.Path, err)
			}
			total += n
		}
	}

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create archive %s: %w", dest, err)
	}
	defer out.Close()

	gw := gzip.NewWriter(out)
	tw := tar.NewWriter(gw)

	done := 0
	for _, src := range sources {
		if err := addTree(tw, src, progress, total, &done); err != nil {
			return err
		}
	}

	if err := tw.Close(); err != nil {
		return fmt.Errorf("finalize tar stream: %w", err)
	}
	if err := gw.Close(); err != nil {
		return fmt.Errorf("finalize gzip stream: %w", err)
	}
	return out.Close()
}

func addTree(tw *tar.Writer, src Source, progress ProgressFunc, total int, done *int) error {
	return filepath.WalkDir(src.Path, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		rel, err := filepath.Rel(src.Path, path)
		if err != nil {
			return err
		}
		name := src.Name
		if rel != "." {
			name = filepath.ToSlash(filepath.Join(src.Name, rel))
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		switch {
		case info.Mode().IsDir():
			header, err := tar.FileInfoHeader(info, "")
			if err != nil {
				return err
			}
			header.Name = name + "/"
			return tw.WriteHeader(header)
		case info.Mode()&os.ModeSymlink != 0:
			target, err := os.Readlink(path)
			if err != nil {
				return err
			}
			header, err := tar.FileInfoHeader(info, target)
			if err != nil {
				return err
			}
			header.Name = name
			return tw.WriteHeader(header)
		case info.Mode().IsRegular():
			header, err := tar.FileInfoHeader(info, "")
			if err != nil {
				return err
			}
			header.Name = name
			if err := tw.WriteHeader(header); err != nil {
				return err
			}
			file, err := os.Open(path)
			if err != nil {
				return err
			}
			_, err = io.Copy(tw, file)
			file.Close()
			if err != nil {
				return fmt.Errorf("archive %s: %w", path, err)
			}
			*done++
			if progress != nil {
				progress(*done, total)
			}
			return nil
		default:
			// Sockets, devices and other irregular files have no place in a
			// data submission; skip them.
			return nil
		}
	})
}
