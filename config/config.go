package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/araddon/dateparse"
	"github.com/pkg/errors"

	"github.com/uplynxed/archivemux/model"
	Logger "github.com/uplynxed/archivemux/utils/log"
)

// Alias records a handle migration: the handle a user goes by now and the
// handles they previously went by.
type Alias struct {
	Current string   `json:"current"`
	Former  []string `json:"former"`
}

// Config is the archive-level configuration loaded from config.json. Missing
// keys keep their defaults, the file only needs to name what it overrides.
type Config struct {
	Theme      string          `json:"theme"`
	MainUserID string          `json:"id"`
	Aliases    []Alias         `json:"aliases"`
	Filters    model.FilterSet `json:"filters"`
	BannerPosY float64         `json:"banner_pos_y"`

	// date_cutoff is either false or a date string, hence the raw detour.
	RawDateCutoff    json.RawMessage `json:"date_cutoff"`
	DateCutoffToggle bool            `json:"date_cutoff_toggle"`

	DateCutoff        time.Time `json:"-"`
	DateCutoffEnabled bool      `json:"-"`
}

// Default returns the configuration used when config.json omits a key.
func Default() *Config {
	return &Config{
		Theme:      "auto",
		BannerPosY: 65,
		Filters: model.FilterSet{
			model.FilterReply:    model.ReplyNone,
			model.FilterRetweet:  model.RetweetNone,
			model.FilterMedia:    model.FilterAll,
			model.FilterFavorite: model.FilterAll,
		},
	}
}

// Load reads and parses the config file, merging it over the defaults. An
// unreadable or unparseable file is an error, an invalid date_cutoff value
// only logs and disables the cutoff.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "fail to read config file")
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "fail to parse config file")
	}

	cfg.parseDateCutoff()
	return cfg, nil
}

func (c *Config) parseDateCutoff() {
	if len(c.RawDateCutoff) == 0 {
		return
	}

	var raw interface{}
	if err := json.Unmarshal(c.RawDateCutoff, &raw); err != nil {
		Logger.Log.Error("invalid date_cutoff value in config: ", err)
		return
	}

	str, ok := raw.(string)
	if !ok {
		// false (or anything non-string) disables the cutoff
		return
	}

	cutoff, err := dateparse.ParseAny(str)
	if err != nil {
		Logger.Log.Error("invalid date_cutoff value in config: ", err)
		return
	}

	c.DateCutoff = cutoff
	c.DateCutoffEnabled = true
}
