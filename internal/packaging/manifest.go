package packaging

import (
	"fmt"
	"os"
	"strings"
)

// writeManifest persists `<digest>  <name>` lines in creation order, the
// format the R2R repository verifies transfers against (md5sum -c compatible).
func writeManifest(path string, packages []Package) error {
	var b strings.Builder
	for _, pkg := range packages {
		fmt.Fprintf(&b, "%s  %s\n", pkg.Digest, pkg.Name)
	}
	return os.WriteFile(path, []byte(b.String()), 0o644)
}
