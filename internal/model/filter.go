package model

// Filter narrows the set of a game's downloads before processing.
// The zero value selects everything.
//
// Filters are resolved once per game, not once per file, because two of
// the rules depend on the game's full download set:
//
//   - English fallback: if the requested language has no files for a
//     game, the game's English files are taken instead. The fallback is
//     all-or-nothing per game; it never mixes languages.
//   - Exclusion veto: if any of the game's downloads is in the excluded
//     language, the whole game is skipped, not just that file.
type Filter struct {
	// Platform restricts downloads to one operating system.
	// Empty means all platforms.
	Platform Platform

	// Language restricts downloads to one store-local language name.
	// Empty means all languages.
	Language string

	// EnglishFallback substitutes English files when Language is set and
	// a game has no files in that language.
	EnglishFallback bool

	// ExcludeLanguage vetoes entire games containing any download in
	// this language. Empty disables the veto.
	ExcludeLanguage string
}

// englishLanguage is the store-local name used for fallback resolution.
const englishLanguage = "English"

// Resolve applies the filter to one game and returns the downloads to
// process, in catalog order. Rules are applied in a fixed order: the
// platform filter per file, then the per-game language fallback, then
// the per-game exclusion veto. vetoed reports whether the exclusion
// rule dropped the whole game.
func (f Filter) Resolve(g Game) (files []Download, vetoed bool) {
	if f.ExcludeLanguage != "" {
		for _, d := range g.Downloads {
			if d.Language == f.ExcludeLanguage {
				return nil, true
			}
		}
	}

	var candidates []Download
	for _, d := range g.Downloads {
		if f.Platform != "" && d.Platform != f.Platform {
			continue
		}
		candidates = append(candidates, d)
	}

	if f.Language == "" {
		return candidates, false
	}

	// First pass: the requested language only. Second pass: English,
	// consulted only when the first pass selected nothing.
	for _, d := range candidates {
		if d.Language == f.Language {
			files = append(files, d)
		}
	}
	if len(files) == 0 && f.EnglishFallback {
		for _, d := range candidates {
			if d.Language == englishLanguage {
				files = append(files, d)
			}
		}
	}
	return files, false
}
