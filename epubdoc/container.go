package epubdoc

import (
	"encoding/xml"
	"errors"

	"github.com/tsawler/intelliparse/internal/ooxml"
)

// Container-related errors.
var (
	ErrNoContainer      = errors.New("epub: missing META-INF/container.xml")
	ErrInvalidContainer = errors.New("epub: invalid container.xml")
	ErrNoRootfile       = errors.New("epub: no rootfile found in container.xml")
)

const containerPath = "META-INF/container.xml"

// containerXML represents the structure of META-INF/container.xml.
type containerXML struct {
	XMLName   xml.Name `xml:"container"`
	Version   string   `xml:"version,attr"`
	Rootfiles struct {
		Rootfile []rootfile `xml:"rootfile"`
	} `xml:"rootfiles"`
}

type rootfile struct {
	FullPath  string `xml:"full-path,attr"`
	MediaType string `xml:"media-type,attr"`
}

// parseContainer returns the path of the OPF package document.
func parseContainer(pkg *ooxml.Package) (string, error) {
	if !pkg.Has(containerPath) {
		return "", ErrNoContainer
	}

	var container containerXML
	if err := pkg.ReadXML(containerPath, &container); err != nil {
		return "", ErrInvalidContainer
	}

	for _, rf := range container.Rootfiles.Rootfile {
		if (rf.MediaType == "application/oebps-package+xml" || rf.MediaType == "") && rf.FullPath != "" {
			return rf.FullPath, nil
		}
	}

	// no media-type match; take the first one
	for _, rf := range container.Rootfiles.Rootfile {
		if rf.FullPath != "" {
			return rf.FullPath, nil
		}
	}

	return "", ErrNoRootfile
}
