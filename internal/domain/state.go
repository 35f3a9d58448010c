package domain

// DownloadStatus is the state of a client download session.
type DownloadStatus string

const (
	DownloadIdle        DownloadStatus = "idle"
	DownloadValidating  DownloadStatus = "validating"
	DownloadReady       DownloadStatus = "ready"
	DownloadDownloading DownloadStatus = "downloading"
	DownloadSuccess     DownloadStatus = "success"
	DownloadError       DownloadStatus = "error"
)

// transitions lists the allowed successors of each status. Reset to idle
// and failure into error are allowed from everywhere and not listed.
var transitions = map[DownloadStatus][]DownloadStatus{
	DownloadIdle:        {DownloadValidating},
	DownloadValidating:  {DownloadValidating, DownloadReady},
	DownloadReady:       {DownloadValidating, DownloadDownloading},
	DownloadDownloading: {DownloadSuccess},
	DownloadSuccess:     {DownloadReady, DownloadValidating},
	DownloadError:       {DownloadValidating},
}

// CanTransition reports whether a session may move from s to next.
func (s DownloadStatus) CanTransition(next DownloadStatus) bool {
	if next == DownloadIdle || next == DownloadError {
		return true
	}
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal returns true if the session finished its last download.
func (s DownloadStatus) IsTerminal() bool {
	return s == DownloadSuccess || s == DownloadError
}

// DownloadState is a snapshot of a client download session.
type DownloadState struct {
	Status   DownloadStatus  `json:"status"`
	Progress int             `json:"progress"`
	Error    string          `json:"error,omitempty"`
	File     *FileDescriptor `json:"fileInfo,omitempty"`
}
