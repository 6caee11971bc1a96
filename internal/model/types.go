package model

import "time"

// Document is one indexed file. ID is process-unique and only grows.
type Document struct {
	ID           int       `json:"id"`
	Path         string    `json:"path"`
	Tracked      bool      `json:"tracked"`
	ParentFolder string    `json:"parent_folder"`
	ModTime      time.Time `json:"mod_time"`
}

type Stats struct {
	Documents      int `json:"documents"`
	Keys           int `json:"keys"`
	Pending        int `json:"pending"`
	TrackedFiles   int `json:"tracked_files"`
	TrackedFolders int `json:"tracked_folders"`
	WatchedFolders int `json:"watched_folders"`
}
