package core

import (
	"os"
	"path/filepath"
)

type Paths struct {
	HomeDir     string
	DataDir     string
	ConfigFile  string
	RCFile      string
	LogFile     string
	HistoryFile string
}

var defaultPaths *Paths

func ensureDefaultPaths() {
	if defaultPaths == nil {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			panic(err)
		}

		defaultPaths = &Paths{
			HomeDir:     homeDir,
			DataDir:     filepath.Join(homeDir, ".gcomp"),
			ConfigFile:  filepath.Join(homeDir, ".gcomp", "config.yaml"),
			RCFile:      filepath.Join(homeDir, ".gcomprc"),
			LogFile:     filepath.Join(homeDir, ".gcomp", "gcomp.log"),
			HistoryFile: filepath.Join(homeDir, ".gcomp", "history.db"),
		}

		err = os.MkdirAll(defaultPaths.DataDir, 0755)
		if err != nil {
			panic(err)
		}
	}
}

func HomeDir() string {
	ensureDefaultPaths()
	return defaultPaths.HomeDir
}

func DataDir() string {
	ensureDefaultPaths()
	return defaultPaths.DataDir
}

func ConfigFile() string {
	ensureDefaultPaths()
	return defaultPaths.ConfigFile
}

func RCFile() string {
	ensureDefaultPaths()
	return defaultPaths.RCFile
}

func LogFile() string {
	ensureDefaultPaths()
	return defaultPaths.LogFile
}

func HistoryFile() string {
	ensureDefaultPaths()
	return defaultPaths.HistoryFile
}

// ExpandHome replaces a leading "~/" in path with the home directory.
func ExpandHome(path string) string {
	if path == "~" {
		return HomeDir()
	}
	if len(path) > 1 && path[0] == '~' && path[1] == '/' {
		return filepath.Join(HomeDir(), path[2:])
	}
	return path
}

// ResetPaths clears the cached paths, forcing them to be reinitialized.
// This is primarily used for testing purposes.
func ResetPaths() {
	defaultPaths = nil
}
