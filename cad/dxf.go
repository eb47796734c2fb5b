package cad

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// pair is one DXF group: a code line followed by a value line.
type pair struct {
	code  int
	value string
}

// scanner reads group pairs from ASCII DXF.
type scanner struct {
	sc   *bufio.Scanner
	line int
}

func newScanner(data []byte) *scanner {
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	return &scanner{sc: sc}
}

func (s *scanner) readLine() (string, bool) {
	if !s.sc.Scan() {
		return "", false
	}
	s.line++
	return strings.TrimRight(s.sc.Text(), "\r"), true
}

// next returns the next group pair. It reports false at the end of input;
// a code line without a value is an error.
func (s *scanner) next() (pair, bool, error) {
	codeLine, ok := s.readLine()
	if !ok {
		return pair{}, false, s.sc.Err()
	}
	code, err := strconv.Atoi(strings.TrimSpace(codeLine))
	if err != nil {
		return pair{}, false, fmt.Errorf("line %d: invalid group code %q", s.line, codeLine)
	}
	value, ok := s.readLine()
	if !ok {
		return pair{}, false, fmt.Errorf("line %d: group code %d has no value", s.line, code)
	}
	if code != 1 && code != 3 {
		value = strings.TrimSpace(value)
	}
	return pair{code: code, value: value}, true, nil
}

// entity is a text-bearing drawing entity.
type entity struct {
	kind   string
	layer  string
	x, y   float64
	height float64
	tag    string
	prompt string
	parts  []string // MTEXT continuation chunks (code 3)
	text   string   // code 1
}

// textEntities are the entity types that carry readable text.
var textEntities = map[string]bool{
	"TEXT":   true,
	"MTEXT":  true,
	"ATTRIB": true,
	"ATTDEF": true,
}

// drawing is the parsed content of a DXF file.
type drawing struct {
	header   map[string]string
	entities []entity
	layers   []string // in order of first use
}

// parseDXF reads the HEADER and ENTITIES sections. On a syntax error the
// content read so far is returned along with the error.
func parseDXF(data []byte) (*drawing, error) {
	d := &drawing{header: map[string]string{}}
	s := newScanner(data)
	sections := 0
	for {
		p, ok, err := s.next()
		if err != nil {
			return d, err
		}
		if !ok {
			if sections == 0 {
				return d, fmt.Errorf("no sections found")
			}
			return d, fmt.Errorf("missing EOF marker")
		}
		if p.code != 0 {
			continue
		}
		switch p.value {
		case "EOF":
			return d, nil
		case "SECTION":
			sections++
			name, ok, err := s.next()
			if err != nil {
				return d, err
			}
			if !ok || name.code != 2 {
				return d, fmt.Errorf("line %d: section without a name", s.line)
			}
			switch name.value {
			case "HEADER":
				err = d.readHeader(s)
			case "ENTITIES":
				err = d.readEntities(s)
			default:
				err = skipSection(s)
			}
			if err != nil {
				return d, fmt.Errorf("%s section: %w", name.value, err)
			}
		}
	}
}

// readHeader stores the first value of each $VARIABLE.
func (d *drawing) readHeader(s *scanner) error {
	current := ""
	for {
		p, ok, err := s.next()
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("unterminated section")
		}
		switch {
		case p.code == 0 && p.value == "ENDSEC":
			return nil
		case p.code == 9:
			current = p.value
		case current != "":
			if _, seen := d.header[current]; !seen {
				d.header[current] = p.value
			}
		}
	}
}

// readEntities collects the text-bearing entities of the ENTITIES section.
func (d *drawing) readEntities(s *scanner) error {
	seenLayer := map[string]bool{}
	var cur *entity
	flush := func() {
		if cur == nil {
			return
		}
		if cur.layer == "" {
			cur.layer = "0"
		}
		d.entities = append(d.entities, *cur)
		if !seenLayer[cur.layer] {
			seenLayer[cur.layer] = true
			d.layers = append(d.layers, cur.layer)
		}
		cur = nil
	}

	for {
		p, ok, err := s.next()
		if err != nil {
			flush()
			return err
		}
		if !ok {
			flush()
			return fmt.Errorf("unterminated section")
		}
		if p.code == 0 {
			flush()
			if p.value == "ENDSEC" {
				return nil
			}
			if textEntities[p.value] {
				cur = &entity{kind: p.value}
			}
			continue
		}
		if cur == nil {
			continue
		}
		switch p.code {
		case 1:
			cur.text = p.value
		case 2:
			cur.tag = p.value
		case 3:
			if cur.kind == "MTEXT" {
				cur.parts = append(cur.parts, p.value)
			} else {
				cur.prompt = p.value
			}
		case 8:
			cur.layer = p.value
		case 10:
			cur.x = parseFloat(p.value)
		case 20:
			cur.y = parseFloat(p.value)
		case 40:
			cur.height = parseFloat(p.value)
		}
	}
}

func skipSection(s *scanner) error {
	for {
		p, ok, err := s.next()
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("unterminated section")
		}
		if p.code == 0 && p.value == "ENDSEC" {
			return nil
		}
	}
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return f
}
