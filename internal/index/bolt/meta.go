package bolt

import (
	"encoding/binary"
	"encoding/json"
	"time"

	"otterlive/internal/model"
)

const (
	bucketMeta           = "meta"
	bucketTokens         = "tokens"
	bucketDocuments      = "documents"
	bucketTrackedFiles   = "tracked_files"
	bucketTrackedFolders = "tracked_folders"

	keySnapshotID = "snapshot_id"
	keySavedAt    = "saved_at"
)

var snapshotBuckets = []string{
	bucketMeta,
	bucketTokens,
	bucketDocuments,
	bucketTrackedFiles,
	bucketTrackedFolders,
}

type documentMeta struct {
	Path         string `json:"path"`
	Tracked      bool   `json:"tracked"`
	ParentFolder string `json:"parent_folder"`
	ModTime      int64  `json:"mod_time"`
}

func encodeDocument(d model.Document) ([]byte, error) {
	return json.Marshal(documentMeta{
		Path:         d.Path,
		Tracked:      d.Tracked,
		ParentFolder: d.ParentFolder,
		ModTime:      d.ModTime.UnixNano(),
	})
}

func decodeDocument(id int, data []byte) (model.Document, error) {
	var m documentMeta
	if err := json.Unmarshal(data, &m); err != nil {
		return model.Document{}, err
	}
	return model.Document{
		ID:           id,
		Path:         m.Path,
		Tracked:      m.Tracked,
		ParentFolder: m.ParentFolder,
		ModTime:      time.Unix(0, m.ModTime),
	}, nil
}

// docKey is big-endian so documents iterate in id order.
func docKey(id int) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(id))
	return b[:]
}

func docID(key []byte) int {
	return int(binary.BigEndian.Uint64(key))
}
