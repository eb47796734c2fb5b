package cad

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
)

// codePages maps $DWGCODEPAGE values to decoders for drawings written
// before AutoCAD 2007, which store text in the ANSI code page.
var codePages = map[string]encoding.Encoding{
	"ANSI_874":  charmap.Windows874,
	"ANSI_932":  japanese.ShiftJIS,
	"ANSI_936":  simplifiedchinese.GBK,
	"ANSI_949":  korean.EUCKR,
	"ANSI_950":  traditionalchinese.Big5,
	"ANSI_1250": charmap.Windows1250,
	"ANSI_1251": charmap.Windows1251,
	"ANSI_1252": charmap.Windows1252,
	"ANSI_1253": charmap.Windows1253,
	"ANSI_1254": charmap.Windows1254,
	"ANSI_1255": charmap.Windows1255,
	"ANSI_1256": charmap.Windows1256,
	"ANSI_1257": charmap.Windows1257,
	"ANSI_1258": charmap.Windows1258,
}

// decodeCodePage converts raw DXF bytes to UTF-8 using the drawing's code
// page. Data that is already valid UTF-8 is returned unchanged.
func decodeCodePage(data []byte, codePage string) []byte {
	if utf8.Valid(data) {
		return data
	}
	enc, ok := codePages[strings.ToUpper(codePage)]
	if !ok {
		enc = charmap.Windows1252
	}
	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return data
	}
	return out
}

// codePageOf finds $DWGCODEPAGE without a full parse, since the bytes must
// be decoded before parsing.
func codePageOf(data []byte) string {
	head := string(data[:min(len(data), 64*1024)])
	i := strings.Index(head, "$DWGCODEPAGE")
	if i < 0 {
		return ""
	}
	fields := strings.Fields(head[i:])
	// $DWGCODEPAGE, group code 3, value
	if len(fields) >= 3 {
		return fields[2]
	}
	return ""
}

// decodeUnicodeEscapes replaces \U+XXXX sequences with the character.
func decodeUnicodeEscapes(s string) string {
	if !strings.Contains(s, `\U+`) && !strings.Contains(s, `\u+`) {
		return s
	}
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		if i+7 <= len(s) && s[i] == '\\' && (s[i+1] == 'U' || s[i+1] == 'u') && s[i+2] == '+' {
			if v, err := strconv.ParseUint(s[i+3:i+7], 16, 32); err == nil {
				sb.WriteRune(rune(v))
				i += 6
				continue
			}
		}
		sb.WriteByte(s[i])
	}
	return sb.String()
}

// specialCodes are the %% control codes of single-line TEXT.
var specialCodes = strings.NewReplacer(
	"%%d", "°", "%%D", "°",
	"%%p", "±", "%%P", "±",
	"%%c", "⌀", "%%C", "⌀",
	"%%%", "%",
	"%%u", "", "%%U", "",
	"%%o", "", "%%O", "",
	"%%k", "", "%%K", "",
)

// cleanText decodes TEXT and ATTRIB values.
func cleanText(s string) string {
	return strings.TrimSpace(specialCodes.Replace(decodeUnicodeEscapes(s)))
}

// cleanMText strips MTEXT inline formatting. Paragraph breaks become
// newlines and stacked fractions become "a/b".
func cleanMText(s string) string {
	s = decodeUnicodeEscapes(s)
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '{', '}':
			continue
		case '\\':
		default:
			sb.WriteByte(c)
			continue
		}
		if i+1 >= len(s) {
			break
		}
		i++
		switch s[i] {
		case 'P':
			sb.WriteByte('\n')
		case 'X':
			sb.WriteByte('\n')
		case '~':
			sb.WriteByte(' ')
		case '\\', '{', '}':
			sb.WriteByte(s[i])
		case 'L', 'l', 'O', 'o', 'K', 'k':
			// underline, overline and strike toggles
		case 'S':
			// stacked text runs to ';', with '^', '/' or '#' between parts
			end := strings.IndexByte(s[i:], ';')
			if end < 0 {
				end = len(s) - i
			}
			stack := s[i+1 : i+end]
			stack = strings.NewReplacer("^", "/", "#", "/").Replace(stack)
			sb.WriteString(strings.TrimSpace(stack))
			i += end
		case 'f', 'F', 'H', 'h', 'W', 'w', 'Q', 'q', 'T', 't', 'A', 'a', 'C', 'c', 'p':
			// parameterized codes run to ';'
			if end := strings.IndexByte(s[i:], ';'); end >= 0 {
				i += end
			}
		default:
			sb.WriteByte('\\')
			sb.WriteByte(s[i])
		}
	}
	lines := strings.Split(sb.String(), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
