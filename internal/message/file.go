package message

import "regexp"

const fileMarkerPrefix = "📎 "

var (
	fileNamePattern = regexp.MustCompile(`📎 ([^\s—]+)`)
	fileURLPattern  = regexp.MustCompile(`https?://\S*/files/\S+`)
)

// FileMarker returns the message content announcing an uploaded file. The
// display layer matches on this exact format.
func FileMarker(filename, url string) string {
	return fileMarkerPrefix + filename + " — " + url
}

// ParseFileMarker extracts the filename and URL from content produced by
// FileMarker. ok is false when content does not reference an uploaded file.
func ParseFileMarker(content string) (filename, url string, ok bool) {
	url = fileURLPattern.FindString(content)
	if url == "" {
		return "", "", false
	}
	if m := fileNamePattern.FindStringSubmatch(content); m != nil {
		filename = m[1]
	}
	return filename, url, true
}
