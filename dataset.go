package dendrite

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// TruthTable returns the two-input truth table of the named boolean
// function: "and", "or", "xor", or "nand".
func TruthTable(name string) (xData, yData [][]float64, err error) {
	var op func(a, b bool) bool
	switch strings.ToLower(name) {
	case "and":
		op = func(a, b bool) bool { return a && b }
	case "or":
		op = func(a, b bool) bool { return a || b }
	case "xor":
		op = func(a, b bool) bool { return a != b }
	case "nand":
		op = func(a, b bool) bool { return !(a && b) }
	default:
		return nil, nil, fmt.Errorf("%w: unknown truth table %q", ErrUnsupportedFunction, name)
	}
	for _, a := range []bool{false, true} {
		for _, b := range []bool{false, true} {
			xData = append(xData, []float64{b2f(a), b2f(b)})
			yData = append(yData, []float64{b2f(op(a, b))})
		}
	}
	return
}

func b2f(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// LoadCSV reads a numeric dataset, one sample per record.  The last
// targets columns of each record are the targets and the rest are
// the inputs.  Blank lines are skipped; every record must have the
// same number of fields.
func LoadCSV(r io.Reader, targets int) (xData, yData [][]float64, err error) {
	rows, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return
	}
	if len(rows) == 0 {
		return nil, nil, ErrEmptyDataset
	}
	width := len(rows[0])
	if targets < 1 || targets >= width {
		return nil, nil, fmt.Errorf("%w: %d target columns of %d", ErrDimensionMismatch, targets, width)
	}
	for i, row := range rows {
		nums := make([]float64, len(row))
		for j, s := range row {
			nums[j], err = strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				return nil, nil, fmt.Errorf("record %d field %d: %w", i+1, j+1, err)
			}
		}
		split := len(nums) - targets
		xData = append(xData, nums[:split:split])
		yData = append(yData, nums[split:])
	}
	return
}
