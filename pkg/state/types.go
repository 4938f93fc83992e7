package state

import "path/filepath"

type Paths struct {
	DB    string
	Store string
	State string
	Tmp   string
	Logs  string
	Tel   string
	Crash string // failed precache operations for later inspection
}

func PathsFor(dbPath string) Paths {
	statePath := filepath.Join(dbPath, "state")
	return Paths{
		DB:    dbPath,
		Store: filepath.Join(dbPath, "store"),

		State: statePath,
		Tmp:   filepath.Join(statePath, "tmp"),
		Logs:  filepath.Join(statePath, "logs"),
		Tel:   filepath.Join(statePath, "telemetry"),
		Crash: filepath.Join(statePath, "crash"),
	}
}

func StorePath(dbPath string) string { return PathsFor(dbPath).Store }
func LogsPath(dbPath string) string  { return PathsFor(dbPath).Logs }
func CrashPath(dbPath string) string { return PathsFor(dbPath).Crash }
