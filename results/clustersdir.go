package results

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"layoutdedupe/logging"
	"layoutdedupe/types"
)

// WriteClusterDirs exports one directory per cluster containing a
// canonical.txt naming the canonical member and a link per member, so
// reviewers can browse clusters in a file manager. Symlinks fall back to
// copies on filesystems that refuse them. Per-entry failures are logged and
// skipped.
func WriteClusterDirs(dir string, clusters []types.Cluster, shots []types.Screenshot) {
	for _, c := range clusters {
		cdir := filepath.Join(dir, fmt.Sprintf("cluster_%04d", c.ID))
		if err := os.MkdirAll(cdir, 0o755); err != nil {
			logging.LogWarning("cannot create cluster directory %s: %v", cdir, err)
			continue
		}

		canonicalName := shots[c.Canonical].Filename
		if err := os.WriteFile(filepath.Join(cdir, "canonical.txt"), []byte(canonicalName+"\n"), 0o644); err != nil {
			logging.LogWarning("cannot write canonical.txt in %s: %v", cdir, err)
		}

		for _, m := range c.Members {
			src := shots[m].Path
			dst := filepath.Join(cdir, shots[m].Filename)
			if _, err := os.Lstat(dst); err == nil {
				continue
			}
			if err := linkOrCopy(src, dst); err != nil {
				logging.LogWarning("cannot link %s into %s: %v", src, cdir, err)
			}
		}
	}
}

func linkOrCopy(src, dst string) error {
	abs, err := filepath.Abs(src)
	if err != nil {
		return err
	}
	if err := os.Symlink(abs, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
