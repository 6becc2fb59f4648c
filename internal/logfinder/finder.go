// Package logfinder locates the Entropia Universe chat log.
package logfinder

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// EnvLocation is the environment variable name for specifying the chat log
// path (or the directory containing it).
const EnvLocation = "PEDLOG_LOCATION"

// LogFileName is the name of the chat log written by the game client.
const LogFileName = "chat.log"

// ErrLogNotFound is returned when no chat log can be located.
var ErrLogNotFound = errors.New("chat log not found")

// DefaultLocations returns candidate chat log paths in priority order.
// The game writes to the user's Documents folder, which OneDrive may have
// relocated.
func DefaultLocations() []string {
	home := os.Getenv("USERPROFILE")
	if home == "" {
		home, _ = os.UserHomeDir()
	}
	if home == "" {
		return nil
	}
	return []string{
		filepath.Join(home, "Documents", "Entropia Universe", LogFileName),
		filepath.Join(home, "OneDrive", "Documents", "Entropia Universe", LogFileName),
	}
}

// FindLog returns the path of the chat log.
//
// Priority:
//  1. explicit (if non-empty)
//  2. PEDLOG_LOCATION environment variable
//  3. The most recently modified of DefaultLocations()
//
// explicit and the environment variable may name the file itself or the
// directory that contains chat.log. Returns ErrLogNotFound if no valid file
// is found. The returned path has symlinks resolved.
func FindLog(explicit string) (string, error) {
	if explicit != "" {
		if resolved := resolveLog(explicit); resolved != "" {
			return resolved, nil
		}
		return "", fmt.Errorf("%w: specified path is not a readable chat log", ErrLogNotFound)
	}

	if env := os.Getenv(EnvLocation); env != "" {
		if resolved := resolveLog(env); resolved != "" {
			return resolved, nil
		}
		return "", fmt.Errorf("%w: %s environment variable points to an invalid path", ErrLogNotFound, EnvLocation)
	}

	if path, ok := latest(DefaultLocations()); ok {
		return path, nil
	}
	return "", ErrLogNotFound
}

// logCandidate holds a log file path and its cached modification time.
type logCandidate struct {
	path    string
	modTime int64
}

// latest returns the most recently modified valid log among paths.
// Stat results are cached so that sorting does not race with deletions.
func latest(paths []string) (string, bool) {
	candidates := make([]logCandidate, 0, len(paths))
	for _, p := range paths {
		resolved := resolveLog(p)
		if resolved == "" {
			continue
		}
		info, err := os.Stat(resolved)
		if err != nil {
			continue
		}
		candidates = append(candidates, logCandidate{
			path:    resolved,
			modTime: info.ModTime().UnixNano(),
		})
	}
	if len(candidates) == 0 {
		return "", false
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].modTime > candidates[j].modTime
	})
	return candidates[0].path, true
}

// resolveLog resolves symlinks and checks that path is, or is a directory
// containing, a regular chat log file. Returns "" if not.
func resolveLog(path string) string {
	info, err := os.Stat(path)
	if err != nil {
		return ""
	}
	if info.IsDir() {
		path = filepath.Join(path, LogFileName)
	}

	// Works with Windows junctions in Go 1.20+.
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		return ""
	}

	info, err = os.Stat(resolved)
	if err != nil || !info.Mode().IsRegular() {
		return ""
	}
	return resolved
}
