/*
flag Package set up cli flags shared across binaries

Usage:

	Flags listed in this package are shared across boundaries and binary-agnostic
	For binary dependent flags please define in their respective package
*/

package flag

import (
	"flag"
)

const (
	ArchiveServer = "archive_server"
	MediaBackup   = "media_backup"
)

var (
	IsDevelopment bool
	ServiceName   string
	SnapshotPath  string
	ConfigPath    string
)

func init() {
	flag.BoolVar(&IsDevelopment, "dev", true, "set to true if the current run is for development. default value is true")
	flag.StringVar(&ServiceName, "service", ArchiveServer, "'archive_server' or 'media_backup'")
	flag.StringVar(&SnapshotPath, "snapshot", "tweets.json", "path to the captured snapshot file")
	flag.StringVar(&ConfigPath, "config", "config.json", "path to the archive config file")
}

// ParseFlags parses the shared flags, call from main before reading them.
func ParseFlags() {
	flag.Parse()
}
