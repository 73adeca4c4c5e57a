package main

import (
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/maruel/natural"
)

// MediaLocator finds the media file a sidecar describes. It returns the
// empty string when nothing matches.
type MediaLocator interface {
	Locate(dir, stem, editedWord string) string
}

// takeoutLocator undoes the renaming Google Takeout applies to exported files.
type takeoutLocator struct{}

const supplementalSuffix = ".supplemental-metadata"

// Takeout truncates long base names before it adds "(n)" and the extension.
var truncateLengths = []int{47, 46}

// "IMG_0001.jpg(1)" is the sidecar stem of the second "IMG_0001.jpg".
var duplicateSuffix = regexp.MustCompile(`^(.*)\((\d+)\)$`)

var titleReplacer = strings.NewReplacer(
	"%", "_", "<", "_", ">", "_", "=", "_", ":", "_", "?", "_", "¿", "_",
	"*", "_", "#", "_", "&", "_", "{", "_", "}", "_", "\\", "_", "@", "_",
	"!", "_", "+", "_", "|", "_", "\"", "_", "'", "_",
)

func (takeoutLocator) Locate(dir, stem, editedWord string) string {
	title, dup := stem, ""
	if m := duplicateSuffix.FindStringSubmatch(title); m != nil {
		title, dup = m[1], m[2]
	}
	title = trimSupplemental(title)

	titles := []string{title}
	if sanitized := titleReplacer.Replace(title); sanitized != title {
		titles = append(titles, sanitized)
	}

	for _, t := range titles {
		ext := filepath.Ext(t)
		base := strings.TrimSuffix(t, ext)
		for _, name := range candidateNames(base, ext, dup, editedWord) {
			if path := findWithExtensionCase(dir, name); path != "" {
				return path
			}
		}
	}

	// Last resort: the extension in the title does not match the file on disk
	// (HEIC exported as JPEG, or no extension at all).
	for _, t := range titles {
		base := strings.TrimSuffix(t, filepath.Ext(t))
		if dup != "" {
			base += "(" + dup + ")"
		}
		if path := findByBaseName(dir, base, editedWord); path != "" {
			return path
		}
	}

	return ""
}

// candidateNames lists file names to try, most specific first. The edited
// copy wins over the original for every base name variant.
func candidateNames(base, ext, dup, editedWord string) []string {
	bases := []string{base}
	for _, n := range truncateLengths {
		for _, cut := range truncations(base, n) {
			if !slices.Contains(bases, cut) {
				bases = append(bases, cut)
			}
		}
	}

	var names []string
	for _, b := range bases {
		if dup != "" {
			b += "(" + dup + ")"
		}
		if editedWord != "" {
			names = append(names, b+"-"+editedWord+ext)
		}
		names = append(names, b+ext)
	}
	return names
}

// truncations returns base cut to n characters and to n bytes. Byte cuts that
// split a multi-byte rune cannot name a real file and are dropped.
func truncations(base string, n int) []string {
	var cuts []string
	if r := []rune(base); len(r) > n {
		cuts = append(cuts, string(r[:n]))
	}
	if len(base) > n && utf8.ValidString(base[:n]) {
		cuts = append(cuts, base[:n])
	}
	return cuts
}

// trimSupplemental strips ".supplemental-metadata" from the stem, including
// the truncated forms Takeout produces for long names (".supplemental-met").
func trimSupplemental(stem string) string {
	i := strings.LastIndex(stem, ".")
	if i < 0 {
		return stem
	}
	suffix := stem[i:]
	if len(suffix) >= len(".su") && strings.HasPrefix(supplementalSuffix, suffix) {
		return stem[:i]
	}
	return stem
}

// findWithExtensionCase checks name as-is and with a lower/upper-cased extension.
func findWithExtensionCase(dir, name string) string {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for _, candidate := range []string{name, base + strings.ToLower(ext), base + strings.ToUpper(ext)} {
		path := filepath.Join(dir, candidate)
		if isRegularFile(path) {
			return path
		}
	}
	return ""
}

// findByBaseName picks the first supported media file in dir whose name
// without extension is base (or its edited copy).
func findByBaseName(dir, base, editedWord string) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	sortEntries(entries)

	wanted := []string{base}
	if editedWord != "" {
		wanted = []string{base + "-" + editedWord, base}
	}
	for _, w := range wanted {
		for _, e := range entries {
			if !e.Type().IsRegular() {
				continue
			}
			name := e.Name()
			if strings.TrimSuffix(name, filepath.Ext(name)) == w && classify(name) != CodecUnsupported {
				return filepath.Join(dir, name)
			}
		}
	}
	return ""
}

func isRegularFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// sortEntries orders directory entries naturally (a1, a2, a10) so walks are
// reproducible and match the order Takeout numbers duplicates in.
func sortEntries(entries []os.DirEntry) {
	slices.SortFunc(entries, func(a, b os.DirEntry) int {
		switch {
		case a.Name() == b.Name():
			return 0
		case natural.Less(a.Name(), b.Name()):
			return -1
		default:
			return 1
		}
	})
}
