package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/setshare/internal/models"
)

var (
	_ list.Item = collectionItem{}
	_ list.Item = songItem{}
)

// collectionItem wraps [models.Collection] to implement [list.Item].
type collectionItem struct {
	collection models.Collection
}

func (i collectionItem) FilterValue() string { return i.collection.Name }
func (i collectionItem) Title() string       { return i.collection.Name }
func (i collectionItem) Description() string {
	desc := fmt.Sprintf("%d songs", len(i.collection.Songs))
	if len(i.collection.Tags) > 0 {
		desc = fmt.Sprintf("%s • %s", desc, strings.Join(i.collection.Tags, ", "))
	}
	return desc
}

// songItem wraps [models.SongEntry] to implement [list.Item].
type songItem struct {
	song models.SongEntry
}

func (i songItem) FilterValue() string { return i.song.Title }
func (i songItem) Title() string       { return i.song.Title }
func (i songItem) Description() string { return i.song.ArtistDisplay }
