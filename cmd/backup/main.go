package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/uplynxed/archivemux/archive"
	"github.com/uplynxed/archivemux/config"
	"github.com/uplynxed/archivemux/media"
	"github.com/uplynxed/archivemux/normalizer"
	"github.com/uplynxed/archivemux/utils/dotenv"
	. "github.com/uplynxed/archivemux/utils/flag"
	. "github.com/uplynxed/archivemux/utils/log"
)

// Prints the backup manifest for the main user's media: every URL a mirror
// job should fetch, best quality first-party rendition per attachment.
func main() {
	ParseFlags()

	if err := dotenv.LoadDotEnvs(); err != nil {
		panic(err)
	}

	cfg, err := config.Load(ConfigPath)
	if err != nil {
		Log.Fatal("fail to load config: ", err)
	}

	snapshot, err := os.ReadFile(SnapshotPath)
	if err != nil {
		Log.Fatal("fail to read snapshot file: ", err)
	}

	n := normalizer.New()
	if err := n.AddSnapshot(snapshot); err != nil {
		Log.Fatal("fail to parse snapshot: ", err)
	}

	built := archive.Build(n, cfg)
	items := media.BackupList(built)

	encoded, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		Log.Fatal("fail to encode backup manifest: ", err)
	}
	fmt.Println(string(encoded))
	Log.Infof("backup manifest lists %d items", len(items))
}
