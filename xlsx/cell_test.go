package xlsx

import (
	"testing"
	"time"
)

func TestParseCellRef(t *testing.T) {
	tests := []struct {
		ref     string
		wantCol int
		wantRow int
		wantErr bool
	}{
		{"A1", 0, 0, false},
		{"Z1", 25, 0, false},
		{"AA1", 26, 0, false},
		{"BA1", 52, 0, false},
		{"C100", 2, 99, false},
		{"$B$7", 1, 6, false},
		{"xfd1048576", 16383, 1048575, false},
		{"", 0, 0, true},
		{"1", 0, 0, true},
		{"A", 0, 0, true},
		{"A0", 0, 0, true},
		{"A-1", 0, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			col, row, err := ParseCellRef(tt.ref)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseCellRef(%q) expected error, got %d,%d", tt.ref, col, row)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseCellRef(%q) error = %v", tt.ref, err)
			}
			if col != tt.wantCol || row != tt.wantRow {
				t.Errorf("ParseCellRef(%q) = %d,%d, want %d,%d", tt.ref, col, row, tt.wantCol, tt.wantRow)
			}
		})
	}
}

func TestParseRangeRef(t *testing.T) {
	c1, r1, c2, r2, err := ParseRangeRef("C3:A1")
	if err != nil {
		t.Fatalf("ParseRangeRef error = %v", err)
	}
	if c1 != 0 || r1 != 0 || c2 != 2 || r2 != 2 {
		t.Errorf("got %d,%d:%d,%d, want normalized 0,0:2,2", c1, r1, c2, r2)
	}

	c1, r1, c2, r2, err = ParseRangeRef("B2")
	if err != nil || c1 != 1 || r1 != 1 || c2 != 1 || r2 != 1 {
		t.Errorf("single cell range = %d,%d:%d,%d err=%v", c1, r1, c2, r2, err)
	}

	if _, _, _, _, err := ParseRangeRef("A1:?"); err == nil {
		t.Error("expected error for malformed range")
	}
}

func TestColumnIndexRoundTrip(t *testing.T) {
	for _, col := range []string{"A", "Z", "AA", "AZ", "BA", "ZZ", "AAA", "XFD"} {
		idx := ColumnToIndex(col)
		if got := IndexToColumn(idx); got != col {
			t.Errorf("IndexToColumn(ColumnToIndex(%q)) = %q", col, got)
		}
	}
	if ColumnToIndex("A1") != -1 {
		t.Error("ColumnToIndex should reject digits")
	}
	if IndexToColumn(-1) != "" {
		t.Error("IndexToColumn(-1) should be empty")
	}
}

func TestIsDateFormat(t *testing.T) {
	tests := map[string]bool{
		"yyyy-mm-dd":            true,
		"d/m/yy h:mm":           true,
		"[$-409]mmmm d, yyyy":   true,
		"h:mm:ss":               true,
		"0.00":                  false,
		"#,##0":                 false,
		`"Day "0`:               false,
		"[Red]0.00;[Blue]-0.00": false,
	}
	for code, want := range tests {
		if got := isDateFormat(code); got != want {
			t.Errorf("isDateFormat(%q) = %v, want %v", code, got, want)
		}
	}
}

func TestSerialToTime(t *testing.T) {
	tests := []struct {
		serial   float64
		date1904 bool
		want     time.Time
	}{
		{1, false, time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC)},
		{61, false, time.Date(1900, 3, 1, 0, 0, 0, 0, time.UTC)},
		{45000, false, time.Date(2023, 3, 15, 0, 0, 0, 0, time.UTC)},
		{45000.5, false, time.Date(2023, 3, 15, 12, 0, 0, 0, time.UTC)},
		{0, true, time.Date(1904, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		if got := serialToTime(tt.serial, tt.date1904); !got.Equal(tt.want) {
			t.Errorf("serialToTime(%v, %v) = %v, want %v", tt.serial, tt.date1904, got, tt.want)
		}
	}
}

func TestFormatDate(t *testing.T) {
	if got, ok := formatDate("45000", false); !ok || got != "2023-03-15" {
		t.Errorf("formatDate(45000) = %q, %v", got, ok)
	}
	if got, ok := formatDate("0.75", false); !ok || got != "18:00:00" {
		t.Errorf("formatDate(0.75) = %q, %v", got, ok)
	}
	if _, ok := formatDate("abc", false); ok {
		t.Error("formatDate should reject non-numbers")
	}
}
