// Package config provides configuration management for flare.
package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// Paths holds all the path configurations for flare.
type Paths struct {
	// ConfigDir is the directory for configuration files (~/.config/flare)
	ConfigDir string

	// DataDir is the directory for data files (~/.local/share/flare)
	DataDir string

	// RuntimeDir is the directory for runtime files like the socket and lock file
	RuntimeDir string
}

// DefaultPaths returns the default paths following the XDG Base Directory layout.
// On Windows, it uses %APPDATA% instead.
func DefaultPaths() *Paths {
	home := homeDir()

	if runtime.GOOS == "windows" {
		appData := os.Getenv("APPDATA")
		if appData == "" {
			appData = filepath.Join(home, "AppData", "Roaming")
		}
		localAppData := os.Getenv("LOCALAPPDATA")
		if localAppData == "" {
			localAppData = filepath.Join(home, "AppData", "Local")
		}

		return &Paths{
			ConfigDir:  filepath.Join(appData, "flare"),
			DataDir:    filepath.Join(localAppData, "flare"),
			RuntimeDir: filepath.Join(localAppData, "flare", "run"),
		}
	}

	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		configHome = filepath.Join(home, ".config")
	}

	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		dataHome = filepath.Join(home, ".local", "share")
	}

	runtimeDir := os.Getenv("XDG_RUNTIME_DIR")
	if runtimeDir == "" {
		// Fallback to ~/.flare/run for runtime files
		runtimeDir = filepath.Join(home, ".flare", "run")
	} else {
		runtimeDir = filepath.Join(runtimeDir, "flare")
	}

	return &Paths{
		ConfigDir:  filepath.Join(configHome, "flare"),
		DataDir:    filepath.Join(dataHome, "flare"),
		RuntimeDir: runtimeDir,
	}
}

// ConfigFile returns the path to the main configuration file.
func (p *Paths) ConfigFile() string {
	return filepath.Join(p.ConfigDir, "config.yaml")
}

// SocketFile returns the path to the Unix domain socket.
func (p *Paths) SocketFile() string {
	return filepath.Join(p.RuntimeDir, "flare.sock")
}

// LockFile returns the path to the single-instance lock file.
func (p *Paths) LockFile() string {
	return filepath.Join(p.RuntimeDir, "flare.lock")
}

// LogDir returns the path to the log directory.
func (p *Paths) LogDir() string {
	return filepath.Join(p.DataDir, "logs")
}

// LogFile returns the path to the daemon log file.
func (p *Paths) LogFile() string {
	return filepath.Join(p.LogDir(), "flare.log")
}

// EventsDatabase returns the default calendar database used by event sources.
func (p *Paths) EventsDatabase() string {
	return filepath.Join(p.DataDir, "events.db")
}

// EnsureDirectories creates all necessary directories.
func (p *Paths) EnsureDirectories() error {
	dirs := []string{
		p.ConfigDir,
		p.DataDir,
		p.LogDir(),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	// The runtime dir holds the socket; keep it private.
	return os.MkdirAll(p.RuntimeDir, 0700)
}

// homeDir returns the user's home directory.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		if runtime.GOOS == "windows" {
			return os.Getenv("USERPROFILE")
		}
		return os.Getenv("HOME")
	}
	return home
}
