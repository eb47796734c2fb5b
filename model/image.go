package model

// Image is an embedded raster image, or the rendered raster of a region.
type Image struct {
	Name   string `json:"name"`
	Alt    string `json:"alt,omitempty"`
	MIME   string `json:"mime,omitempty"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
	// Data holds the encoded bytes; the orchestrator strips it unless asked.
	Data        []byte `json:"data,omitempty"`
	OCRText     string `json:"ocr_text,omitempty"`
	Description string `json:"description,omitempty"`
}

// Caption returns the best textual stand-in for the image: OCR text, then
// the AI description, then alt text.
func (i *Image) Caption() string {
	switch {
	case i.OCRText != "":
		return i.OCRText
	case i.Description != "":
		return i.Description
	}
	return i.Alt
}

// HasText reports whether OCR or AI already produced text for the image.
func (i *Image) HasText() bool {
	return i.OCRText != "" || i.Description != ""
}
