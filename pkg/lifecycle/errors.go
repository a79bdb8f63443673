package lifecycle

import "errors"

var (
	// ErrUnsupportedFileType rejects uploads outside the extension allowlist.
	ErrUnsupportedFileType = errors.New("unsupported file type")
	// ErrFileTooLarge rejects uploads above the size cap.
	ErrFileTooLarge = errors.New("file too large")
	// ErrEmptyDocument marks a document whose text is empty or whitespace.
	ErrEmptyDocument = errors.New("document is empty")
	// ErrUnreadableDocument marks an upload whose text could not be extracted.
	ErrUnreadableDocument = errors.New("document could not be read")
)
