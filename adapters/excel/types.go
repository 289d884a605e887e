package excel

// RawRowData represents a row of raw sheet data keyed by column header
type RawRowData map[string]string

// ExcelData represents a complete sheet
type ExcelData struct {
	Headers []string     // Column headers
	Rows    []RawRowData // Data rows
}

// Accepted headers for each event column, lower case
var (
	energyHeaders = []string{"energy", "energy_mc", "e"}
	radiusHeaders = []string{"radius", "radial_mc", "r"}
	timeHeaders   = []string{"time", "t"}
	weightHeaders = []string{"weight", "w"}
)
