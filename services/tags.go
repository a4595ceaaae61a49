package services

import (
	"log"
	"os"

	"arkive/types"

	"github.com/dhowden/tag"
)

// ReadTags extracts embedded tag metadata (ID3, Vorbis comments, MP4 atoms)
// from an audio file. Returns nil when the file is unreadable, has no
// parseable tags, or the tags are empty — the caller omits the field.
func ReadTags(path string) *types.TagMetadata {
	file, err := os.Open(path)
	if err != nil {
		log.Printf("Warning: could not open audio file %s: %v", path, err)
		return nil
	}
	defer file.Close()

	meta, err := tag.ReadFrom(file)
	if err != nil {
		return nil
	}

	track, _ := meta.Track()
	tags := &types.TagMetadata{
		Title:       meta.Title(),
		Artist:      meta.Artist(),
		Album:       meta.Album(),
		TrackNumber: track,
	}

	if tags.Title == "" && tags.Artist == "" && tags.Album == "" && tags.TrackNumber == 0 {
		return nil
	}
	return tags
}
