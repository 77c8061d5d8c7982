// Package transcript manages committed transcript artifacts.
//
// A transcript is a plain-text sidecar stored next to its media file, named
// by appending the configured extension to the full media filename
// (clip.mp3 -> clip.mp3.txt). Commits are atomic: content is written to a
// hidden temp file in the destination directory, synced, stamped with the
// source's modification time, and renamed into place. A transcript whose
// mtime equals the source's mtime is considered current without reading it.
package transcript
