package types

import (
	"encoding/json"
	"time"
)

// ManifestVersion is the schema version written into every manifest.
const ManifestVersion = "1.0"

// NodeType distinguishes file and folder entries in a manifest tree.
type NodeType string

const (
	NodeTypeFile   NodeType = "file"
	NodeTypeFolder NodeType = "folder"
)

// Manifest describes the contents of one archive folder.
type Manifest struct {
	Version     string         `json:"version"`
	GeneratedAt time.Time      `json:"generatedAt"`
	Folder      string         `json:"folder"`
	Children    []ManifestNode `json:"children"`
}

// ManifestNode is a single entry in a manifest tree. File nodes carry
// size/mimeType and optional audio metadata; folder nodes carry children.
type ManifestNode struct {
	Name     string         `json:"name"`
	Type     NodeType       `json:"type"`
	Path     string         `json:"path"`
	Size     int64          `json:"size,omitempty"`
	MimeType string         `json:"mimeType,omitempty"`
	Audio    *AudioMetadata `json:"audio,omitempty"`
	Tags     *TagMetadata   `json:"tags,omitempty"`
	Children []ManifestNode `json:"children,omitempty"`
}

// AudioMetadata holds stream information extracted by the external probe
// tool. It is omitted entirely when probing is disabled or fails.
type AudioMetadata struct {
	Duration      float64 `json:"duration,omitempty"`
	Bitrate       int     `json:"bitrate,omitempty"`
	SampleRate    int     `json:"sampleRate,omitempty"`
	Channels      int     `json:"channels,omitempty"`
	ChannelLayout string  `json:"channelLayout,omitempty"`
	Codec         string  `json:"codec,omitempty"`
}

// TagMetadata holds embedded tag information (ID3, Vorbis comments, etc.)
// read from the file itself, independent of the probe tool.
type TagMetadata struct {
	Title       string `json:"title,omitempty"`
	Artist      string `json:"artist,omitempty"`
	Album       string `json:"album,omitempty"`
	TrackNumber int    `json:"trackNumber,omitempty"`
}

type fileNodeJSON struct {
	Name     string         `json:"name"`
	Type     NodeType       `json:"type"`
	Path     string         `json:"path"`
	Size     int64          `json:"size"`
	MimeType string         `json:"mimeType"`
	Audio    *AudioMetadata `json:"audio,omitempty"`
	Tags     *TagMetadata   `json:"tags,omitempty"`
}

type folderNodeJSON struct {
	Name     string         `json:"name"`
	Type     NodeType       `json:"type"`
	Path     string         `json:"path"`
	Children []ManifestNode `json:"children"`
}

// MarshalJSON keeps the two node shapes disjoint on the wire: folder nodes
// always carry children (possibly empty) and never file fields, file nodes
// always carry size and mimeType and never children.
func (n ManifestNode) MarshalJSON() ([]byte, error) {
	if n.Type == NodeTypeFolder {
		children := n.Children
		if children == nil {
			children = []ManifestNode{}
		}
		return json.Marshal(folderNodeJSON{
			Name:     n.Name,
			Type:     NodeTypeFolder,
			Path:     n.Path,
			Children: children,
		})
	}
	return json.Marshal(fileNodeJSON{
		Name:     n.Name,
		Type:     NodeTypeFile,
		Path:     n.Path,
		Size:     n.Size,
		MimeType: n.MimeType,
		Audio:    n.Audio,
		Tags:     n.Tags,
	})
}

// CountNodes returns the number of entries (files and folders) in the tree.
func CountNodes(children []ManifestNode) int {
	count := 0
	for _, child := range children {
		count++
		if child.Type == NodeTypeFolder {
			count += CountNodes(child.Children)
		}
	}
	return count
}
