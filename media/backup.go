package media

import (
	"github.com/uplynxed/archivemux/archive"
	"github.com/uplynxed/archivemux/model"
)

// BackupItem is one URL worth mirroring locally, with the thumbnail that
// accompanies it for videos and gifs.
type BackupItem struct {
	PostID   string `json:"post_id"`
	Kind     string `json:"kind"`
	URL      string `json:"url"`
	ThumbURL string `json:"thumb_url,omitempty"`
}

// BackupList enumerates the main user's attached media at the best
// available quality: the highest-bitrate variant for videos and gifs, the
// name=orig reconstruction for photos.
func BackupList(s *archive.Store) []BackupItem {
	var out []BackupItem
	for _, post := range s.Timeline {
		for _, m := range post.Media {
			item := BackupItem{PostID: post.ID, Kind: m.Kind}
			switch m.Kind {
			case model.MediaVideo, model.MediaAnimatedGif:
				item.URL = bestVariant(m.Variants)
				item.ThumbURL = m.ThumbURL
			default:
				item.URL = origPhotoURL(m.URL)
			}
			if item.URL == "" {
				continue
			}
			out = append(out, item)
		}
	}
	return out
}

func bestVariant(variants []model.MediaVariant) string {
	best := ""
	bestBitrate := -1
	for _, variant := range variants {
		if variant.Bitrate > bestBitrate {
			best = variant.URL
			bestBitrate = variant.Bitrate
		}
	}
	return best
}

// origPhotoURL reconstructs the full-quality rendition of a photo URL.
func origPhotoURL(url string) string {
	entry := classify(url, stripQuery(url))
	return entry.OrigURL
}
