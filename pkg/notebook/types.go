package notebook

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

const (
	// FormatMajor is the nbformat major version emitted by this package.
	FormatMajor = 4
	// FormatMinor is the nbformat minor version emitted by this package. Minor
	// 5 is the first revision that requires cell ids.
	FormatMinor = 5
)

// CellType enumerates the nbformat cell kinds.
type CellType string

const (
	CellTypeCode     CellType = "code"
	CellTypeMarkdown CellType = "markdown"
	CellTypeRaw      CellType = "raw"
)

// Cell is a single unit of notebook content.
type Cell struct {
	ID       string
	Type     CellType
	Source   string
	Metadata map[string]any
	// Outputs and ExecutionCount only apply to code cells and are dropped
	// when serialising other kinds.
	Outputs        []json.RawMessage
	ExecutionCount *int
}

// NewCodeCell returns a code cell holding source.
func NewCodeCell(source string) Cell {
	return Cell{Type: CellTypeCode, Source: source}
}

// NewMarkdownCell returns a markdown cell holding source.
func NewMarkdownCell(source string) Cell {
	return Cell{Type: CellTypeMarkdown, Source: source}
}

type cellJSON struct {
	ID             string            `json:"id,omitempty"`
	CellType       CellType          `json:"cell_type"`
	Metadata       map[string]any    `json:"metadata"`
	Source         json.RawMessage   `json:"source"`
	Outputs        []json.RawMessage `json:"outputs,omitempty"`
	ExecutionCount *int              `json:"execution_count,omitempty"`
}

type codeCellJSON struct {
	ID             string            `json:"id,omitempty"`
	CellType       CellType          `json:"cell_type"`
	ExecutionCount *int              `json:"execution_count"`
	Metadata       map[string]any    `json:"metadata"`
	Outputs        []json.RawMessage `json:"outputs"`
	Source         string            `json:"source"`
}

type textCellJSON struct {
	ID       string         `json:"id,omitempty"`
	CellType CellType       `json:"cell_type"`
	Metadata map[string]any `json:"metadata"`
	Source   string         `json:"source"`
}

// MarshalJSON emits the nbformat shape for the cell kind: code cells always
// carry execution_count and outputs, other kinds carry neither.
func (c Cell) MarshalJSON() ([]byte, error) {
	metadata := c.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	cellType := c.Type
	if cellType == "" {
		cellType = CellTypeCode
	}

	if cellType == CellTypeCode {
		outputs := c.Outputs
		if outputs == nil {
			outputs = []json.RawMessage{}
		}
		return json.Marshal(codeCellJSON{
			ID:             c.ID,
			CellType:       cellType,
			ExecutionCount: c.ExecutionCount,
			Metadata:       metadata,
			Outputs:        outputs,
			Source:         c.Source,
		})
	}
	return json.Marshal(textCellJSON{
		ID:       c.ID,
		CellType: cellType,
		Metadata: metadata,
		Source:   c.Source,
	})
}

// UnmarshalJSON accepts both the single string and the list-of-lines forms
// nbformat allows for source.
func (c *Cell) UnmarshalJSON(data []byte) error {
	var raw cellJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	switch raw.CellType {
	case CellTypeCode, CellTypeMarkdown, CellTypeRaw:
	case "":
		return fmt.Errorf("notebook: cell_type is required")
	default:
		return fmt.Errorf("notebook: unknown cell_type %q", raw.CellType)
	}

	source, err := decodeSource(raw.Source)
	if err != nil {
		return err
	}

	*c = Cell{
		ID:       raw.ID,
		Type:     raw.CellType,
		Source:   source,
		Metadata: raw.Metadata,
	}
	if raw.CellType == CellTypeCode {
		c.Outputs = raw.Outputs
		c.ExecutionCount = raw.ExecutionCount
	}
	return nil
}

func decodeSource(raw json.RawMessage) (string, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return "", nil
	}
	if strings.HasPrefix(trimmed, "[") {
		var lines []string
		if err := json.Unmarshal(raw, &lines); err != nil {
			return "", fmt.Errorf("notebook: decode source lines: %w", err)
		}
		return strings.Join(lines, ""), nil
	}
	var source string
	if err := json.Unmarshal(raw, &source); err != nil {
		return "", fmt.Errorf("notebook: decode source: %w", err)
	}
	return source, nil
}

// Notebook is the document envelope.
type Notebook struct {
	Cells         []Cell         `json:"cells"`
	Metadata      map[string]any `json:"metadata"`
	NBFormat      int            `json:"nbformat"`
	NBFormatMinor int            `json:"nbformat_minor"`
}

// New wraps cells into an nbformat 4.5 envelope with empty metadata. A nil
// slice is normalised to an empty one so the document always carries a cells
// array.
func New(cells []Cell) Notebook {
	if cells == nil {
		cells = []Cell{}
	}
	return Notebook{
		Cells:         cells,
		Metadata:      map[string]any{},
		NBFormat:      FormatMajor,
		NBFormatMinor: FormatMinor,
	}
}

// Marshal assigns missing cell ids and serialises the document.
func (n Notebook) Marshal() ([]byte, error) {
	doc := n
	if doc.Cells == nil {
		doc.Cells = []Cell{}
	}
	if doc.Metadata == nil {
		doc.Metadata = map[string]any{}
	}
	doc.Cells = AssignIDs(doc.Cells)
	return json.Marshal(doc)
}

// AssignIDs returns a copy of cells where every cell without an id receives
// one derived from its position, type, and source. The derivation is stable
// so rendering the same input twice yields identical documents.
func AssignIDs(cells []Cell) []Cell {
	out := make([]Cell, len(cells))
	copy(out, cells)
	for i := range out {
		if out[i].ID != "" {
			continue
		}
		out[i].ID = cellID(i, out[i])
	}
	return out
}

func cellID(position int, cell Cell) string {
	h := sha256.New()
	h.Write([]byte(strconv.Itoa(position)))
	h.Write([]byte{0})
	h.Write([]byte(cell.Type))
	h.Write([]byte{0})
	h.Write([]byte(cell.Source))
	return hex.EncodeToString(h.Sum(nil))[:12]
}
