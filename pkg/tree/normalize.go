package tree

import (
	"path"
	"strings"
)

// normalize rewrites an OS path into the tree's canonical slash-separated,
// no-trailing-slash form, matching how every backing indexes its entries.
func normalize(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	p = path.Clean(p)
	if p == "." {
		return ""
	}
	return strings.TrimPrefix(p, "/")
}
