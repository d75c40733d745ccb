package engine

import "strings"

// ExtensionLabel returns the destination subfolder name for a file: the
// suffix after the last dot of its basename, without the dot. Names with
// no dot, dotfiles such as ".bashrc", and names ending in a dot have no
// label. "a.tar.gz" maps to "gz".
func ExtensionLabel(name string) string {
	i := strings.LastIndexByte(name, '.')
	if i <= 0 || i == len(name)-1 {
		return ""
	}
	return name[i+1:]
}
