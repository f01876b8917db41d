package raster

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// EncodeOptions control how values are printed.
type EncodeOptions struct {
	Precision int     // decimal digits; negative means shortest exact form
	NoData    float64 // written for missing cells
}

// DefaultEncodeOptions returns six decimal digits and DefaultNoData.
func DefaultEncodeOptions() EncodeOptions {
	return EncodeOptions{Precision: 6, NoData: DefaultNoData}
}

// EncodeASCII writes r as an ArcInfo ASCII grid.
func EncodeASCII(w io.Writer, r *Raster, opts EncodeOptions) error {
	if err := r.Validate(); err != nil {
		return err
	}

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "ncols         %d\n", r.NCols)
	fmt.Fprintf(bw, "nrows         %d\n", r.NRows)
	fmt.Fprintf(bw, "xllcorner     %s\n", formatHeader(r.XLLCorner))
	fmt.Fprintf(bw, "yllcorner     %s\n", formatHeader(r.YLLCorner))
	fmt.Fprintf(bw, "cellsize      %s\n", formatHeader(r.CellSize))
	fmt.Fprintf(bw, "NODATA_value  %s\n", formatValue(opts.NoData, opts.Precision))

	nodata := formatValue(opts.NoData, opts.Precision)
	for row := 0; row < r.NRows; row++ {
		for col := 0; col < r.NCols; col++ {
			if col > 0 {
				bw.WriteByte(' ')
			}
			v := r.At(row, col)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				bw.WriteString(nodata)
				continue
			}
			bw.WriteString(formatValue(v, opts.Precision))
		}
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

func formatHeader(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatValue(v float64, precision int) string {
	return strconv.FormatFloat(v, 'f', precision, 64)
}

// MaxCells bounds ncols*nrows of a decoded grid.
const MaxCells = 1 << 27

// DecodeASCII reads an ArcInfo ASCII grid. Header keys are case-insensitive
// and cell-center origins are converted to corners. NODATA cells become NaN.
func DecodeASCII(rd io.Reader) (*Raster, error) {
	sc := bufio.NewScanner(rd)
	sc.Buffer(make([]byte, 64*1024), 64*1024*1024)
	sc.Split(bufio.ScanWords)

	r := &Raster{NoData: DefaultNoData}
	var xCenter, yCenter bool
	var pending string
	for sc.Scan() {
		word := sc.Text()
		key := strings.ToLower(word)
		if !isHeaderKey(key) {
			pending = word
			break
		}
		if !sc.Scan() {
			return nil, fmt.Errorf("header %s has no value", word)
		}
		value := sc.Text()
		var err error
		switch key {
		case "ncols":
			r.NCols, err = strconv.Atoi(value)
		case "nrows":
			r.NRows, err = strconv.Atoi(value)
		case "xllcorner", "xllcenter":
			r.XLLCorner, err = strconv.ParseFloat(value, 64)
			xCenter = key == "xllcenter"
		case "yllcorner", "yllcenter":
			r.YLLCorner, err = strconv.ParseFloat(value, 64)
			yCenter = key == "yllcenter"
		case "cellsize":
			r.CellSize, err = strconv.ParseFloat(value, 64)
		case "nodata_value":
			r.NoData, err = strconv.ParseFloat(value, 64)
		}
		if err != nil {
			return nil, fmt.Errorf("header %s: %w", word, err)
		}
	}
	if r.NCols <= 0 || r.NRows <= 0 {
		return nil, fmt.Errorf("missing or invalid ncols/nrows")
	}
	if r.NCols > MaxCells/r.NRows {
		return nil, fmt.Errorf("grid of %dx%d cells exceeds the limit of %d cells", r.NCols, r.NRows, MaxCells)
	}
	if !(r.CellSize > 0) || math.IsInf(r.CellSize, 0) {
		return nil, fmt.Errorf("missing or invalid cellsize")
	}
	if xCenter {
		r.XLLCorner -= r.CellSize / 2
	}
	if yCenter {
		r.YLLCorner -= r.CellSize / 2
	}

	n := r.NCols * r.NRows
	r.Values = make([]float64, 0, n)
	parse := func(word string) error {
		if len(r.Values) == n {
			return fmt.Errorf("more than %d values", n)
		}
		v, err := strconv.ParseFloat(word, 64)
		if err != nil {
			return fmt.Errorf("value %d: %w", len(r.Values)+1, err)
		}
		if v == r.NoData {
			v = math.NaN()
		}
		r.Values = append(r.Values, v)
		return nil
	}
	if pending != "" {
		if err := parse(pending); err != nil {
			return nil, err
		}
	}
	for sc.Scan() {
		if err := parse(sc.Text()); err != nil {
			return nil, err
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(r.Values) != n {
		return nil, fmt.Errorf("expected %d values, got %d", n, len(r.Values))
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

func isHeaderKey(key string) bool {
	switch key {
	case "ncols", "nrows", "xllcorner", "xllcenter", "yllcorner", "yllcenter", "cellsize", "nodata_value":
		return true
	default:
		return false
	}
}
