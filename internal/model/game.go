package model

import (
	"net/url"
	"path"
	"path/filepath"
	"regexp"
	"strings"
)

// Platform identifies the operating system a download targets.
type Platform string

const (
	PlatformWindows Platform = "windows"
	PlatformMac     Platform = "mac"
	PlatformLinux   Platform = "linux"
)

// ParsePlatform converts a user-supplied string into a Platform.
// An empty string is valid and means "no platform filter".
//
// Accepted values (case-insensitive): "windows", "mac", "osx", "linux".
func ParsePlatform(s string) (Platform, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return "", true
	case "windows":
		return PlatformWindows, true
	case "mac", "osx":
		return PlatformMac, true
	case "linux":
		return PlatformLinux, true
	default:
		return "", false
	}
}

// Download describes one downloadable file of a game: an installer,
// patch or language pack. It is immutable once read from the catalog.
//
// MD5 is the content hash declared by the storefront. It may be empty;
// in that case the engine cannot verify the file and cannot resume a
// partial copy of it.
type Download struct {
	// Name is the display name of the file as reported by the storefront.
	Name string

	// Language is the store-local language name, e.g. "English" or "Czech".
	Language string

	// Platform is the operating system this file targets.
	Platform Platform

	// URL is the download location. May require authentication.
	URL string

	// Size is the declared size in bytes.
	Size int64

	// MD5 is the declared content hash in lowercase hex, or empty when
	// the catalog carries none.
	MD5 string
}

// Filename returns the on-disk file name for this download.
//
// The last segment of the URL path is preferred since it carries the
// real file name (e.g. "setup_game_1.0.exe"); the display name is used
// as a fallback for URLs without a usable path.
func (d Download) Filename() string {
	if u, err := url.Parse(d.URL); err == nil {
		if base := path.Base(u.Path); base != "" && base != "." && base != "/" {
			return base
		}
	}
	return SanitizeName(d.Name)
}

// Game is one entry of the user's library with its downloadable files.
type Game struct {
	// ID is the storefront-assigned game id.
	ID int64

	// Title is the display title, unsanitized.
	Title string

	// Downloads lists the game's files in catalog order.
	Downloads []Download
}

// InstallDir returns the directory games files are saved under:
// {base}/{sanitized title}.
func (g Game) InstallDir(base string) string {
	return filepath.Join(base, SanitizeName(g.Title))
}

// TargetPath returns the full on-disk path for one of the game's files.
func (g Game) TargetPath(base string, d Download) string {
	return filepath.Join(g.InstallDir(base), d.Filename())
}

var (
	invalidNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)
	underscoreRuns   = regexp.MustCompile(`__+`)
)

// SanitizeName makes a string safe to use as a file or directory name.
//
// Every character outside [A-Za-z0-9._-] is replaced with an
// underscore, then runs of two or more underscores are collapsed to
// one, so "The Witcher® 3: Wild Hunt" becomes "The_Witcher_3_Wild_Hunt".
func SanitizeName(name string) string {
	name = invalidNameChars.ReplaceAllString(name, "_")
	name = underscoreRuns.ReplaceAllString(name, "_")
	return name
}
