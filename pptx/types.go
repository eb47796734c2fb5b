package pptx

import (
	"encoding/xml"
	"strconv"
)

// presentationXML represents the ppt/presentation.xml file structure.
type presentationXML struct {
	XMLName     xml.Name        `xml:"presentation"`
	SlideIDList *slideIDListXML `xml:"sldIdLst"`
	SlideSize   *extXML         `xml:"sldSz"`
}

type slideIDListXML struct {
	SlideIDs []slideIDXML `xml:"sldId"`
}

type slideIDXML struct {
	ID  string `xml:"id,attr"`
	RID string `xml:"http://schemas.openxmlformats.org/officeDocument/2006/relationships id,attr"`
}

// slideXML represents ppt/slides/slideN.xml and notesSlideN.xml. Both
// hold a cSld with a shape tree.
type slideXML struct {
	CSld struct {
		Name   string    `xml:"name,attr"`
		SpTree spTreeXML `xml:"spTree"`
	} `xml:"cSld"`
	Show string `xml:"show,attr"`
}

// shapeNode is one child of a shape tree. Exactly one field is set.
type shapeNode struct {
	Shape *spXML
	Pic   *picXML
	Frame *graphicFrameXML
	Group *spTreeXML
}

// spTreeXML is a shape tree or a group shape. Children are kept in
// document order, which xml struct tags cannot do across element names.
type spTreeXML struct {
	Xfrm  *xfrmXML
	Nodes []shapeNode
}

func (t *spTreeXML) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch se := tok.(type) {
		case xml.StartElement:
			switch se.Name.Local {
			case "grpSpPr":
				var props spPrXML
				if err := d.DecodeElement(&props, &se); err != nil {
					return err
				}
				t.Xfrm = props.Xfrm
			case "sp", "cxnSp":
				var sp spXML
				if err := d.DecodeElement(&sp, &se); err != nil {
					return err
				}
				t.Nodes = append(t.Nodes, shapeNode{Shape: &sp})
			case "pic":
				var pic picXML
				if err := d.DecodeElement(&pic, &se); err != nil {
					return err
				}
				t.Nodes = append(t.Nodes, shapeNode{Pic: &pic})
			case "graphicFrame":
				var gf graphicFrameXML
				if err := d.DecodeElement(&gf, &se); err != nil {
					return err
				}
				t.Nodes = append(t.Nodes, shapeNode{Frame: &gf})
			case "grpSp":
				var grp spTreeXML
				if err := d.DecodeElement(&grp, &se); err != nil {
					return err
				}
				t.Nodes = append(t.Nodes, shapeNode{Group: &grp})
			case "AlternateContent", "Choice":
				// descend into the preferred branch
			default:
				if err := d.Skip(); err != nil {
					return err
				}
			}
		case xml.EndElement:
			if se.Name.Local == start.Name.Local {
				return nil
			}
		}
	}
}

type cNvPrXML struct {
	ID     int    `xml:"id,attr"`
	Name   string `xml:"name,attr"`
	Descr  string `xml:"descr,attr"`
	Title  string `xml:"title,attr"`
	Hidden bool   `xml:"hidden,attr"`
}

type nvPrXML struct {
	Ph *phXML `xml:"ph"`
}

type phXML struct {
	Type string `xml:"type,attr"`
	Idx  int    `xml:"idx,attr"`
}

// spXML represents a shape element.
type spXML struct {
	NvSpPr struct {
		CNvPr cNvPrXML `xml:"cNvPr"`
		NvPr  nvPrXML  `xml:"nvPr"`
	} `xml:"nvSpPr"`
	SpPr   spPrXML    `xml:"spPr"`
	TxBody *txBodyXML `xml:"txBody"`
}

type spPrXML struct {
	Xfrm *xfrmXML `xml:"xfrm"`
}

type xfrmXML struct {
	Off offXML `xml:"off"`
	Ext extXML `xml:"ext"`
}

type offXML struct {
	X int64 `xml:"x,attr"`
	Y int64 `xml:"y,attr"`
}

type extXML struct {
	Cx int64 `xml:"cx,attr"`
	Cy int64 `xml:"cy,attr"`
}

type txBodyXML struct {
	P []pXML `xml:"p"`
}

// pXML is a paragraph of runs, line breaks and fields kept in order.
type pXML struct {
	PPr  *pPrXML
	Text string
}

func (p *pXML) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var buf []byte
	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch se := tok.(type) {
		case xml.StartElement:
			switch se.Name.Local {
			case "pPr":
				var ppr pPrXML
				if err := d.DecodeElement(&ppr, &se); err != nil {
					return err
				}
				p.PPr = &ppr
			case "t":
				var s string
				if err := d.DecodeElement(&s, &se); err != nil {
					return err
				}
				buf = append(buf, s...)
			case "br":
				buf = append(buf, '\n')
				if err := d.Skip(); err != nil {
					return err
				}
			case "r", "fld":
				// runs and fields hold <a:t>
			default:
				if err := d.Skip(); err != nil {
					return err
				}
			}
		case xml.EndElement:
			if se.Name.Local == start.Name.Local {
				p.Text = string(buf)
				return nil
			}
		}
	}
}

type pPrXML struct {
	Lvl       int       `xml:"lvl,attr"`
	BuNone    *struct{} `xml:"buNone"`
	BuChar    *struct{} `xml:"buChar"`
	BuAutoNum *struct {
		Type string `xml:"type,attr"`
	} `xml:"buAutoNum"`
}

// picXML represents a picture element.
type picXML struct {
	NvPicPr struct {
		CNvPr cNvPrXML `xml:"cNvPr"`
	} `xml:"nvPicPr"`
	BlipFill struct {
		Blip struct {
			Embed string `xml:"embed,attr"`
		} `xml:"blip"`
	} `xml:"blipFill"`
	SpPr spPrXML `xml:"spPr"`
}

// graphicFrameXML holds tables, charts and diagrams.
type graphicFrameXML struct {
	NvGraphicFramePr struct {
		CNvPr cNvPrXML `xml:"cNvPr"`
	} `xml:"nvGraphicFramePr"`
	Xfrm    *xfrmXML `xml:"xfrm"`
	Graphic struct {
		GraphicData struct {
			URI string  `xml:"uri,attr"`
			Tbl *tblXML `xml:"tbl"`
		} `xml:"graphicData"`
	} `xml:"graphic"`
}

type tblXML struct {
	Rows []struct {
		Cells []tcXML `xml:"tc"`
	} `xml:"tr"`
}

type tcXML struct {
	TxBody   *txBodyXML `xml:"txBody"`
	RowSpan  int        `xml:"rowSpan,attr"`
	GridSpan int        `xml:"gridSpan,attr"`
	VMerge   string     `xml:"vMerge,attr"`
	HMerge   string     `xml:"hMerge,attr"`
}

// xmlBool reads an ST_OnOff attribute value.
func xmlBool(s string) bool {
	b, err := strconv.ParseBool(s)
	return err == nil && b
}
