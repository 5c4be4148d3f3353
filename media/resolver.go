package media

import (
	"encoding/json"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/uplynxed/archivemux/store"
	"github.com/uplynxed/archivemux/utils"
	Logger "github.com/uplynxed/archivemux/utils/log"
)

const kvKey = "media_replacements"

// Unavailable is the terminal resolved state after every source in the
// fallback chain has failed.
const Unavailable = "unavailable"

// Replacement is the resolved substitution record for one upstream media
// URL, keyed by the query-stripped form of that URL.
type Replacement struct {
	Filename   string `json:"filename"`
	Ext        string `json:"ext"`
	IndexURL   string `json:"index_url"`
	OrigURL    string `json:"orig_url"`
	LocalPath  string `json:"local_path"`
	ArchiveURL string `json:"archive_url"`

	// ResolvedURL records the source that currently renders, set by the
	// failure chain. Unavailable once the chain is exhausted.
	ResolvedURL string `json:"resolved_url,omitempty"`
	Attempts    int    `json:"attempts,omitempty"`
}

var (
	formatPattern         = regexp.MustCompile(`format=(\w+)`)
	filePattern           = regexp.MustCompile(`/(([\w-]+)\.(\w+))$`)
	lastSlashPattern      = regexp.MustCompile(`/([^/]+)$`)
	lastSlashQueryPattern = regexp.MustCompile(`/([^/?]+)\?`)
	fileQueryPattern      = regexp.MustCompile(`/(([\w-]+)\.(\w+))\?`)
)

// familyRule classifies one upstream URL family and extracts its filename,
// extension and the per-family reconstructions.
type familyRule struct {
	marker  string
	markers []string
	extract func(entry *Replacement, origURL string)
}

// Rules are ordered, the first family whose marker appears in the URL wins.
var familyRules = []familyRule{
	{
		marker: "pbs.twimg.com/profile_images",
		extract: func(entry *Replacement, origURL string) {
			if m := filePattern.FindStringSubmatch(origURL); m != nil {
				entry.Filename, entry.Ext = m[2], m[3]
				entry.ArchiveURL = "https://web.archive.org/web/https://pbs.twimg.com/profile_images/" +
					entry.Filename + "." + entry.Ext
			}
		},
	},
	{
		marker: "pbs.twimg.com/profile_banners",
		extract: func(entry *Replacement, origURL string) {
			if m := lastSlashPattern.FindStringSubmatch(origURL); m != nil {
				entry.Filename, entry.Ext = m[1], "jpg"
			}
		},
	},
	{
		marker: "pbs.twimg.com/card_img",
		extract: func(entry *Replacement, origURL string) {
			if m := lastSlashQueryPattern.FindStringSubmatch(origURL); m != nil {
				entry.Filename = m[1]
			}
			if m := formatPattern.FindStringSubmatch(origURL); m != nil {
				entry.Ext = m[1]
			}
		},
	},
	{
		marker: "pbs.twimg.com/media",
		extract: func(entry *Replacement, origURL string) {
			if strings.Contains(origURL, "?") {
				if m := lastSlashQueryPattern.FindStringSubmatch(origURL); m != nil {
					entry.Filename = m[1]
				}
				if m := formatPattern.FindStringSubmatch(origURL); m != nil {
					entry.Ext = m[1]
				}
			} else if m := filePattern.FindStringSubmatch(origURL); m != nil {
				entry.Filename, entry.Ext = m[2], m[3]
			}
			if entry.Filename != "" {
				entry.ArchiveURL = "https://web.archive.org/web/https://pbs.twimg.com/media/" +
					entry.Filename + "." + entry.Ext
				// The name=orig rendition is the highest quality upstream copy.
				entry.OrigURL = "https://pbs.twimg.com/media/" + entry.Filename +
					"?format=" + entry.Ext + "&name=orig"
			}
		},
	},
	{
		markers: []string{"pbs.twimg.com/amplify_video_thumb", "pbs.twimg.com/ext_tw_video_thumb"},
		extract: func(entry *Replacement, origURL string) {
			if m := filePattern.FindStringSubmatch(origURL); m != nil {
				entry.Filename, entry.Ext = m[2], m[3]
			}
		},
	},
	{
		markers: []string{"video.twimg.com/amplify_video", "video.twimg.com/ext_tw_video"},
		extract: func(entry *Replacement, origURL string) {
			if m := fileQueryPattern.FindStringSubmatch(origURL); m != nil {
				entry.Filename, entry.Ext = m[2], m[3]
			} else if m := filePattern.FindStringSubmatch(origURL); m != nil {
				entry.Filename, entry.Ext = m[2], m[3]
			}
		},
	},
}

func (r familyRule) matches(url string) bool {
	if r.marker != "" {
		return strings.Contains(url, r.marker)
	}
	for _, marker := range r.markers {
		if strings.Contains(url, marker) {
			return true
		}
	}
	return false
}

// Resolver memoizes URL replacements in the KV store. Persistence is
// throttled with a trailing guarantee, a render burst resolving hundreds of
// URLs writes once.
type Resolver struct {
	mu      sync.Mutex
	kv      store.KV
	entries map[string]*Replacement
	persist func()
}

func NewResolver(kv store.KV) *Resolver {
	r := &Resolver{
		kv:      kv,
		entries: make(map[string]*Replacement),
	}
	r.persist = utils.Throttle(r.persistNow, 2*time.Second)
	return r
}

// Load restores the memoized replacement map. A missing key is a first run,
// not an error.
func (r *Resolver) Load() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := r.kv.Get(kvKey)
	if err == store.ErrNotFound {
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "fail to load media replacements")
	}
	if err := json.Unmarshal(data, &r.entries); err != nil {
		return errors.Wrap(err, "fail to parse media replacements")
	}
	return nil
}

// Resolve returns the replacement entry for an upstream URL, computing and
// memoizing it on first sight. Unmatched URLs pass through: their local
// path is the original URL itself.
func (r *Resolver) Resolve(url string) *Replacement {
	key := stripQuery(url)

	r.mu.Lock()
	if entry, ok := r.entries[key]; ok {
		r.mu.Unlock()
		return entry
	}
	entry := classify(url, key)
	r.entries[key] = entry
	r.mu.Unlock()

	r.persist()
	return entry
}

func classify(url, key string) *Replacement {
	entry := &Replacement{
		IndexURL:   key,
		OrigURL:    url,
		ArchiveURL: "https://web.archive.org/web/" + url,
	}

	matched := false
	for _, rule := range familyRules {
		if rule.matches(url) {
			rule.extract(entry, url)
			matched = true
			break
		}
	}

	if entry.Ext == "" {
		entry.Ext = "jpg"
	}
	if !matched || entry.Filename == "" {
		// Passthrough, nothing local to substitute.
		entry.LocalPath = entry.OrigURL
		return entry
	}

	entry.LocalPath = "media/" + entry.Filename + "." + entry.Ext
	return entry
}

// Sources returns the remaining fallback chain for an entry, best first:
// upstream original, local copy, archived copy, then whatever the failure
// chain last recorded.
func (r *Resolver) Sources(entry *Replacement) []string {
	chain := []string{entry.OrigURL, entry.LocalPath, entry.ArchiveURL}
	if entry.ResolvedURL != "" && entry.ResolvedURL != Unavailable &&
		!utils.ContainsString(chain, entry.ResolvedURL) {
		chain = append(chain, entry.ResolvedURL)
	}
	if entry.Attempts >= len(chain) {
		return nil
	}
	return chain[entry.Attempts:]
}

// Fail records that the entry's current source failed to render and
// advances to the next one. Exhausting the chain records the terminal
// unavailable state.
func (r *Resolver) Fail(url string) string {
	key := stripQuery(url)

	r.mu.Lock()
	entry, ok := r.entries[key]
	if !ok {
		entry = classify(url, key)
		r.entries[key] = entry
	}

	entry.Attempts++
	remaining := r.Sources(entry)
	if len(remaining) == 0 {
		entry.ResolvedURL = Unavailable
	} else {
		entry.ResolvedURL = remaining[0]
	}
	resolved := entry.ResolvedURL
	r.mu.Unlock()

	r.persist()
	return resolved
}

// Purge drops one memoized entry, or every entry when target is "all".
func (r *Resolver) Purge(target string) {
	r.mu.Lock()
	if target == "all" {
		r.entries = make(map[string]*Replacement)
	} else {
		delete(r.entries, stripQuery(target))
	}
	r.mu.Unlock()

	r.persist()
}

func (r *Resolver) persistNow() {
	r.mu.Lock()
	encoded, err := json.Marshal(r.entries)
	r.mu.Unlock()
	if err != nil {
		Logger.Log.Error("fail to encode media replacements: ", err)
		return
	}
	if err := r.kv.Set(kvKey, encoded); err != nil {
		Logger.Log.Error("fail to persist media replacements: ", err)
	}
}

func stripQuery(url string) string {
	if idx := strings.Index(url, "?"); idx >= 0 {
		return url[:idx]
	}
	return url
}
