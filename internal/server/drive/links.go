package drive

import "strings"

// canonicalHost is the only prefix a metadata-supplied view link may carry.
// Drive occasionally leaks alternate viewer URLs (docs host, usercontent
// host) into webViewLink; those are rejected and rebuilt from the file id.
const canonicalHost = "https://drive.google.com/"

// CanonicalViewLink builds the canonical viewer URL for a file id.
func CanonicalViewLink(fileID string) string {
	return canonicalHost + "file/d/" + fileID + "/view"
}

// ResolveViewLink returns the metadata link if it already points at the
// canonical host, otherwise a link regenerated from the file id.
func ResolveViewLink(metadataLink, fileID string) string {
	if strings.HasPrefix(metadataLink, canonicalHost) {
		return metadataLink
	}
	return CanonicalViewLink(fileID)
}
