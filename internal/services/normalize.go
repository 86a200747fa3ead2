package services

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/desertthunder/setshare/internal/models"
)

// catalogImage represents an image resource.
type catalogImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

type catalogAlbum struct {
	Name   string         `json:"name"`
	Images []catalogImage `json:"images"`
}

// catalogTrack is the wire shape of one track in a bulk fetch response.
type catalogTrack struct {
	ID      string       `json:"id"`
	Name    string       `json:"name"`
	Artists artistField  `json:"artists"`
	Album   catalogAlbum `json:"album"`
}

// record maps the wire shape into the canonical TrackRecord. All field-shape
// sniffing ends here; nothing past this point sees raw catalog JSON.
func (t *catalogTrack) record(now time.Time) models.TrackRecord {
	record := models.TrackRecord{
		TrackID:         t.ID,
		Title:           t.Name,
		ArtistDisplay:   t.Artists.Display(),
		LastRefreshedAt: now,
	}
	if len(t.Album.Images) > 0 {
		record.AlbumArtURL = t.Album.Images[0].URL
	}
	return record
}

// artistField tolerates every representation the catalog has been observed to
// send for artists: a bare string, an object with a name, or an array of
// either.
type artistField struct {
	names []string
}

// Display joins the artist names for presentation.
func (a artistField) Display() string {
	return strings.Join(a.names, ", ")
}

func (a *artistField) UnmarshalJSON(data []byte) error {
	a.names = nil

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s != "" {
			a.names = []string{s}
		}
		return nil
	}

	var obj struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &obj); err == nil && obj.Name != "" {
		a.names = []string{obj.Name}
		return nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		// Unknown shape; treat as no artist rather than failing the track.
		return nil
	}

	for _, item := range raw {
		var name string
		if err := json.Unmarshal(item, &name); err == nil {
			if name != "" {
				a.names = append(a.names, name)
			}
			continue
		}

		var entry struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal(item, &entry); err == nil && entry.Name != "" {
			a.names = append(a.names, entry.Name)
		}
	}

	return nil
}
