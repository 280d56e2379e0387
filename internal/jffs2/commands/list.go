package commands

import (
	"fmt"
	"math"
	"os"

	"github.com/fatih/color"

	"github.com/gingerrexayers/jffs2-go/internal/jffs2/lib"
	"github.com/gingerrexayers/jffs2-go/internal/jffs2/types"
)

var (
	dirColor  = color.New(color.FgBlue, color.Bold)
	linkColor = color.New(color.FgCyan)
	warnColor = color.New(color.FgYellow)
)

// formatBytes is a utility to convert bytes into a human-readable string (KB, MB, GB).
func formatBytes(bytes int64, decimals int) string {
	if bytes == 0 {
		return "0 Bytes"
	}
	const k = 1024
	if decimals < 0 {
		decimals = 0
	}
	sizes := []string{"Bytes", "KB", "MB", "GB", "TB"}

	i := int(math.Floor(math.Log(float64(bytes)) / math.Log(k)))
	if i >= len(sizes) {
		i = len(sizes) - 1
	}

	return fmt.Sprintf("%.*f %s", decimals, float64(bytes)/math.Pow(k, float64(i)), sizes[i])
}

// typeString names a dirent type for the listing.
func typeString(t uint8) string {
	switch t {
	case types.DTDir:
		return "dir"
	case types.DTReg:
		return "file"
	case types.DTLnk:
		return "link"
	default:
		return fmt.Sprintf("?%d", t)
	}
}

// modeString renders the entry's permission bits with a type letter.
func modeString(e types.Entry) string {
	letter := "-"
	switch e.Type {
	case types.DTDir:
		letter = "d"
	case types.DTLnk:
		letter = "l"
	}
	perms := os.FileMode(e.Mode & 0o777).String()
	return letter + perms[1:]
}

// displayPath colors an entry path by type and annotates symlink targets
// and unrecoverable content.
func displayPath(e types.Entry) string {
	p := e.Path
	switch {
	case e.IsDir():
		p = dirColor.Sprint(p)
	case e.IsSymlink():
		p = linkColor.Sprint(p)
		if e.Target != "" {
			p += " -> " + e.Target
		}
	}
	if !e.Available {
		p += warnColor.Sprint(" (content unavailable)")
	}
	return p
}

// List is the main function for the 'list' command. It prints every
// resolved entry of the image followed by a diagnostics summary.
func List(imagePath string, opts Options) error {
	img, err := lib.Open(imagePath)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", imagePath, err)
	}

	entries := img.List()
	if len(entries) == 0 {
		fmt.Printf("No entries found in \"%s\".\n", imagePath)
	} else {
		fmt.Printf("%-8s %-6s %-11s %-12s %-21s %s\n", "INODE", "TYPE", "MODE", "SIZE", "MODIFIED", "PATH")
		var totalSize int64
		for _, e := range entries {
			size := ""
			if e.Type == types.DTReg {
				size = formatBytes(e.Size, 2)
				totalSize += e.Size
			}
			modified := ""
			if !e.ModTime.IsZero() {
				modified = e.ModTime.UTC().Format("2006-01-02 15:04:05")
			}
			fmt.Printf("%-8d %-6s %-11s %-12s %-21s %s\n",
				e.Ino, typeString(e.Type), modeString(e), size, modified, displayPath(e))
		}
		fmt.Printf("\n%d entries, %s of file data.\n", len(entries), formatBytes(totalSize, 2))
	}

	diags := img.Diagnostics()
	for _, d := range diags {
		warnColor.Printf("warning: %s at offset %d: %s\n", d.Kind, d.Offset, d.Detail)
	}
	if opts.Strict && len(diags) > 0 {
		return fmt.Errorf("strict mode: image produced %d diagnostics", len(diags))
	}
	return nil
}
