package asset

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// A Resource is a readable stream for a local file or a file served over
// http/https. Scene files use resources to locate the material libraries and
// textures they reference.
type Resource struct {
	io.ReadCloser
	url *url.URL
}

// Get the location of this resource.
func (r *Resource) Path() string {
	return r.url.String()
}

// Get the file name of this resource without any leading path or URL
// components.
func (r *Resource) Name() string {
	if r.IsRemote() {
		return path.Base(r.url.Path)
	}
	return filepath.Base(r.url.Path)
}

// Returns true if the resource is streamed over http/https.
func (r *Resource) IsRemote() bool {
	return r.url.Scheme != ""
}

// Open a resource. Locations without a scheme are treated as paths to local
// files. If relTo is not nil, relative locations are resolved against the
// directory that contains relTo; this lets a remote scene reference its
// material libraries with relative paths.
//
// The caller must close the returned resource.
func NewResource(location string, relTo *Resource) (*Resource, error) {
	loc, err := resolve(location, relTo)
	if err != nil {
		return nil, err
	}

	var stream io.ReadCloser
	switch loc.Scheme {
	case "":
		stream, err = os.Open(filepath.Clean(loc.Path))
		if err != nil {
			return nil, err
		}
	case "http", "https":
		resp, err := http.Get(loc.String())
		if err != nil {
			return nil, fmt.Errorf("resource: could not fetch '%s': %s", loc.String(), err)
		}
		if resp.StatusCode >= 400 {
			resp.Body.Close()
			return nil, fmt.Errorf("resource: could not fetch '%s': status %d", loc.String(), resp.StatusCode)
		}
		stream = resp.Body
	default:
		return nil, fmt.Errorf("resource: unsupported scheme '%s'", loc.Scheme)
	}

	return &Resource{ReadCloser: stream, url: loc}, nil
}

// Wrap an in-memory stream into a resource. Relative references from the
// returned resource are resolved against name.
func NewResourceFromStream(name string, source io.Reader) *Resource {
	loc, err := url.Parse(filepath.ToSlash(name))
	if err != nil {
		loc = &url.URL{Path: name}
	}
	return &Resource{
		ReadCloser: io.NopCloser(source),
		url:        loc,
	}
}

// Parse location into a URL and resolve it against the location of relTo.
func resolve(location string, relTo *Resource) (*url.URL, error) {
	// Scene files exported on windows may use backslashes
	loc, err := url.Parse(strings.ReplaceAll(location, `\`, `/`))
	if err != nil {
		return nil, err
	}
	if loc.Scheme != "" || relTo == nil || filepath.IsAbs(loc.Path) {
		return loc, nil
	}

	parent := *relTo.url
	if parent.Scheme != "" {
		parent.Path = path.Join(path.Dir(parent.Path), loc.Path)
		return &parent, nil
	}

	dir, err := filepath.Abs(filepath.Dir(parent.Path))
	if err != nil {
		return nil, fmt.Errorf("resource: could not detect abs path for %s; %s", parent.String(), err.Error())
	}
	return &url.URL{Path: filepath.Join(dir, filepath.FromSlash(loc.Path))}, nil
}
