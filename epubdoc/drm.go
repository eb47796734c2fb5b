package epubdoc

import (
	"encoding/xml"
	"errors"
	"strings"

	"github.com/tsawler/intelliparse/internal/ooxml"
)

// ErrDRMProtected is returned for books whose content is encrypted.
var ErrDRMProtected = errors.New("epub: DRM-protected content cannot be processed")

// encryptionXML represents the structure of META-INF/encryption.xml.
type encryptionXML struct {
	XMLName       xml.Name `xml:"encryption"`
	EncryptedData []struct {
		EncryptionMethod struct {
			Algorithm string `xml:"Algorithm,attr"`
		} `xml:"EncryptionMethod"`
		CipherData struct {
			CipherReference struct {
				URI string `xml:"URI,attr"`
			} `xml:"CipherReference"`
		} `xml:"CipherData"`
	} `xml:"EncryptedData"`
}

// checkForDRM returns ErrDRMProtected when the book carries Adobe ADEPT
// rights or encrypted content documents. Font obfuscation is allowed.
func checkForDRM(pkg *ooxml.Package) error {
	if pkg.Has("META-INF/rights.xml") {
		return ErrDRMProtected
	}
	if !pkg.Has("META-INF/encryption.xml") {
		return nil
	}
	var enc encryptionXML
	if err := pkg.ReadXML("META-INF/encryption.xml", &enc); err != nil {
		// unreadable encryption manifest; treat as protected
		return ErrDRMProtected
	}
	for _, ed := range enc.EncryptedData {
		if isFontObfuscation(ed.EncryptionMethod.Algorithm) {
			continue
		}
		if isContentFile(ed.CipherData.CipherReference.URI) {
			return ErrDRMProtected
		}
	}
	return nil
}

// isFontObfuscation reports whether algorithm is the IDPF or Adobe font
// mangling scheme.
func isFontObfuscation(algorithm string) bool {
	if !strings.Contains(algorithm, "obfuscation") {
		return false
	}
	return strings.Contains(algorithm, "adobe.com") || strings.Contains(algorithm, "idpf.org")
}

// isContentFile reports whether uri names a document or stylesheet.
func isContentFile(uri string) bool {
	switch strings.ToLower(uri[strings.LastIndex(uri, ".")+1:]) {
	case "xhtml", "html", "htm", "xml", "css":
		return true
	}
	return false
}
