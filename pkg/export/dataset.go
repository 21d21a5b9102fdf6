package export

// Dataset is a generic tabular payload for report rendering.
type Dataset struct {
	Headers []string
	Rows    [][]string
}
