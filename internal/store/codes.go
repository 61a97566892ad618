package store

import "fmt"

// Code is the outcome of adding a track.
type Code int

const (
	Success Code = iota
	DropboxSuccess
	NameTooLong
	Reserved
	NotAudio
	BadURL
	BadName
	NameInUse
	ValidationTimeout
	UnhandledError
)

var codeNames = [...]string{
	Success:           "SUCCESS",
	DropboxSuccess:    "DROPBOXSUCCESS",
	NameTooLong:       "LONG",
	Reserved:          "RESERVED",
	NotAudio:          "NOTAUDIO",
	BadURL:            "BADURL",
	BadName:           "BADNAME",
	NameInUse:         "INUSE",
	ValidationTimeout: "TIMEOUT",
	UnhandledError:    "UNHANDLEDERR",
}

func (c Code) String() string {
	if c < 0 || int(c) >= len(codeNames) {
		return fmt.Sprintf("code(%d)", int(c))
	}
	return codeNames[c]
}

func (c Code) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

// OK reports whether the track was stored.
func (c Code) OK() bool { return c == Success || c == DropboxSuccess }

// Message is the text shown to the uploader.
func (c Code) Message(name string) string {
	switch c {
	case Success:
		return fmt.Sprintf("Added [%s].", name)
	case DropboxSuccess:
		return fmt.Sprintf("Added [%s]. Dropbox links cannot be verified ahead of time; make sure the file is an audio file.", name)
	case NameTooLong:
		return fmt.Sprintf("[%s] is longer than %d characters.", name, MaxNameLen)
	case Reserved:
		return fmt.Sprintf("[%s] is reserved by the shared album.", name)
	case NotAudio:
		return "The link does not point to an audio resource."
	case BadURL:
		return "You did not provide a valid URL."
	case BadName:
		return fmt.Sprintf(`[%s] contains one of the forbidden characters []()"'{}.`, name)
	case NameInUse:
		return fmt.Sprintf("[%s] already exists in this room.", name)
	case ValidationTimeout:
		return "The link did not respond in time."
	}
	return "There was an unhandled issue while adding the track."
}
