package docx

import (
	"encoding/xml"
	"strconv"
	"strings"
)

// valXML is the common <w:x w:val="..."/> shape.
type valXML struct {
	Val string `xml:"val,attr"`
}

// stylesXML represents the structure of word/styles.xml
type stylesXML struct {
	XMLName xml.Name      `xml:"styles"`
	Styles  []styleDefXML `xml:"style"`
}

// styleDefXML represents a style definition.
type styleDefXML struct {
	Type    string `xml:"type,attr"`
	StyleID string `xml:"styleId,attr"`
	Name    valXML `xml:"name"`
	BasedOn valXML `xml:"basedOn"`
	PPr     struct {
		OutlineLvl *valXML `xml:"outlineLvl"`
		NumPr      *struct {
			NumID valXML `xml:"numId"`
		} `xml:"numPr"`
	} `xml:"pPr"`
}

// numberingXML represents word/numbering.xml
type numberingXML struct {
	XMLName      xml.Name `xml:"numbering"`
	AbstractNums []struct {
		AbstractNumID string `xml:"abstractNumId,attr"`
		Levels        []struct {
			ILvl   string `xml:"ilvl,attr"`
			NumFmt valXML `xml:"numFmt"`
		} `xml:"lvl"`
	} `xml:"abstractNum"`
	Nums []struct {
		NumID         string `xml:"numId,attr"`
		AbstractNumID valXML `xml:"abstractNumId"`
	} `xml:"num"`
}

type styleInfo struct {
	name       string
	basedOn    string
	outlineLvl int // -1 when unset
	numID      string
}

// styleResolver answers heading and list questions about paragraph styles.
type styleResolver struct {
	styles map[string]styleInfo
	// numFormats maps numId -> ilvl -> numFmt
	numFormats map[string]map[int]string
}

func newStyleResolver(styles *stylesXML, numbering *numberingXML) *styleResolver {
	sr := &styleResolver{
		styles:     make(map[string]styleInfo),
		numFormats: make(map[string]map[int]string),
	}
	if styles != nil {
		for _, s := range styles.Styles {
			info := styleInfo{name: s.Name.Val, basedOn: s.BasedOn.Val, outlineLvl: -1}
			if s.PPr.OutlineLvl != nil {
				if n, err := strconv.Atoi(s.PPr.OutlineLvl.Val); err == nil {
					info.outlineLvl = n
				}
			}
			if s.PPr.NumPr != nil {
				info.numID = s.PPr.NumPr.NumID.Val
			}
			sr.styles[strings.ToLower(s.StyleID)] = info
		}
	}
	if numbering != nil {
		abstract := make(map[string]map[int]string)
		for _, an := range numbering.AbstractNums {
			lvls := make(map[int]string)
			for _, l := range an.Levels {
				if n, err := strconv.Atoi(l.ILvl); err == nil {
					lvls[n] = l.NumFmt.Val
				}
			}
			abstract[an.AbstractNumID] = lvls
		}
		for _, n := range numbering.Nums {
			if lvls, ok := abstract[n.AbstractNumID.Val]; ok {
				sr.numFormats[n.NumID] = lvls
			}
		}
	}
	return sr
}

var builtinHeadings = map[string]int{
	"title":    1,
	"subtitle": 2,
	"heading1": 1, "heading2": 2, "heading3": 3,
	"heading4": 4, "heading5": 5, "heading6": 6,
	"heading7": 6, "heading8": 6, "heading9": 6,
}

// headingLevel returns the heading level for a paragraph, or 0 if the
// paragraph is not a heading. A direct outline level wins over the style.
func (sr *styleResolver) headingLevel(styleID string, directOutline int) int {
	if directOutline >= 0 && directOutline < 9 {
		return directOutline + 1
	}
	id := strings.ToLower(styleID)
	for depth := 0; id != "" && depth < 10; depth++ {
		if lvl, ok := builtinHeadings[id]; ok {
			return lvl
		}
		info, ok := sr.styles[id]
		if !ok {
			break
		}
		if info.outlineLvl >= 0 && info.outlineLvl < 9 {
			return info.outlineLvl + 1
		}
		name := strings.ToLower(strings.ReplaceAll(info.name, " ", ""))
		if lvl, ok := builtinHeadings[name]; ok {
			return lvl
		}
		id = strings.ToLower(info.basedOn)
	}
	return 0
}

// listNumID returns the numbering ID from the paragraph or its style.
func (sr *styleResolver) listNumID(styleID, direct string) string {
	if direct != "" {
		return direct
	}
	if info, ok := sr.styles[strings.ToLower(styleID)]; ok {
		return info.numID
	}
	return ""
}

// ordered reports whether a numbering level renders numbers rather than
// bullets.
func (sr *styleResolver) ordered(numID string, level int) bool {
	lvls, ok := sr.numFormats[numID]
	if !ok {
		return false
	}
	f := lvls[level]
	return f != "" && f != "bullet" && f != "none"
}
