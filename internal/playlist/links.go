package playlist

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/AdrienPensart/critical/internal/store"
)

// Kind is one of the URI shapes a folder link can take in an m3u playlist.
type Kind string

const (
	KindLocal      Kind = "local"
	KindRemote     Kind = "remote"
	KindLocalSSH   Kind = "local-ssh"
	KindRemoteSSH  Kind = "remote-ssh"
	KindLocalHTTP  Kind = "local-http"
	KindRemoteHTTP Kind = "remote-http"
	KindAll        Kind = "all"
)

// ParseKind validates a --kind value.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindLocal, KindRemote, KindLocalSSH, KindRemoteSSH, KindLocalHTTP, KindRemoteHTTP, KindAll:
		return Kind(s), nil
	}
	return "", fmt.Errorf("unknown link kind %q", s)
}

func hasKind(kinds []Kind, k Kind) bool {
	for _, kind := range kinds {
		if kind == KindAll || kind == k {
			return true
		}
	}
	return false
}

// effectivePath is the file path as emitted for plain and HTTP links:
// relativized against the folder root when asked, spaces escaped.
func effectivePath(l store.FolderLink, relative bool) (string, error) {
	path := l.Path
	if relative {
		rel, err := filepath.Rel(l.Name, l.Path)
		if err != nil {
			return "", err
		}
		path = rel
	}
	return strings.ReplaceAll(path, " ", `\ `), nil
}

func httpLink(l store.FolderLink, relative bool) (string, error) {
	path, err := effectivePath(l, relative)
	if err != nil {
		return "", err
	}
	return "http://" + l.IPv4 + "/" + path, nil
}

// SSH links always carry the raw absolute path: the remote side does not
// share our working directory, and scp quoting handles spaces.
func localSSHLink(l store.FolderLink) string {
	return l.Username + "@localhost:" + l.Path
}

func remoteSSHLink(l store.FolderLink) string {
	return l.Username + "@" + l.IPv4 + ":" + l.Path
}

// linksFor emits one URI per requested kind for a single folder link.
func linksFor(l store.FolderLink, relative bool, kinds []Kind) ([]string, error) {
	var links []string
	if hasKind(kinds, KindLocalSSH) {
		links = append(links, localSSHLink(l))
	}
	if hasKind(kinds, KindRemoteSSH) {
		links = append(links, remoteSSHLink(l))
	}
	if hasKind(kinds, KindLocalHTTP) {
		link, err := httpLink(l, relative)
		if err != nil {
			return nil, err
		}
		links = append(links, link)
	}
	if hasKind(kinds, KindRemoteHTTP) {
		link, err := httpLink(l, relative)
		if err != nil {
			return nil, err
		}
		links = append(links, link)
	}
	if hasKind(kinds, KindLocal) {
		link, err := effectivePath(l, relative)
		if err != nil {
			return nil, err
		}
		links = append(links, link)
	}
	if hasKind(kinds, KindRemote) {
		link, err := effectivePath(l, relative)
		if err != nil {
			return nil, err
		}
		links = append(links, link)
	}
	return links, nil
}
