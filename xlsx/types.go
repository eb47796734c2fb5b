// Package xlsx provides XLSX (Office Open XML Spreadsheet) document parsing.
//
// Every worksheet becomes one section holding its used range as a table.
package xlsx

import "encoding/xml"

// workbookXML represents the xl/workbook.xml file structure.
type workbookXML struct {
	XMLName    xml.Name `xml:"workbook"`
	WorkbookPr struct {
		Date1904 string `xml:"date1904,attr"`
	} `xml:"workbookPr"`
	Sheets []struct {
		Name  string `xml:"name,attr"`
		State string `xml:"state,attr"`
		RID   string `xml:"http://schemas.openxmlformats.org/officeDocument/2006/relationships id,attr"`
	} `xml:"sheets>sheet"`
}

// worksheetXML represents xl/worksheets/sheetN.xml.
type worksheetXML struct {
	XMLName    xml.Name `xml:"worksheet"`
	Rows       []rowXML `xml:"sheetData>row"`
	MergeCells []struct {
		Ref string `xml:"ref,attr"`
	} `xml:"mergeCells>mergeCell"`
}

type rowXML struct {
	R     int       `xml:"r,attr"`
	Cells []cellXML `xml:"c"`
}

type cellXML struct {
	R  string `xml:"r,attr"`
	T  string `xml:"t,attr"` // s, n, b, str, inlineStr, e
	S  int    `xml:"s,attr"`
	V  string `xml:"v"`
	F  string `xml:"f"`
	Is *siXML `xml:"is"`
}

// sharedStringsXML represents xl/sharedStrings.xml.
type sharedStringsXML struct {
	XMLName xml.Name `xml:"sst"`
	SI      []siXML  `xml:"si"`
}

// siXML is a string item: plain text or rich text runs. Phonetic runs
// (rPh) are ignored.
type siXML struct {
	T string `xml:"t"`
	R []struct {
		T string `xml:"t"`
	} `xml:"r"`
}

func (si siXML) text() string {
	if len(si.R) == 0 {
		return si.T
	}
	s := si.T
	for _, r := range si.R {
		s += r.T
	}
	return s
}

// stylesXML represents xl/styles.xml; only number formats are read.
type stylesXML struct {
	XMLName xml.Name `xml:"styleSheet"`
	NumFmts []struct {
		ID   int    `xml:"numFmtId,attr"`
		Code string `xml:"formatCode,attr"`
	} `xml:"numFmts>numFmt"`
	CellXfs []struct {
		NumFmtID int `xml:"numFmtId,attr"`
	} `xml:"cellXfs>xf"`
}
