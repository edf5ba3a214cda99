package output

import (
	"encoding/base64"
	"fmt"
	"fortio.org/safecast"
	"github.com/google/uuid"
	"github.com/viant/linescope/debugprobe"
	"math/big"
	"strconv"
	"strings"
)

// DecodeError reports malformed probe output
type DecodeError struct {
	Index   int // position in the cleaned record sequence
	Content string
	Reason  string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode probe output at record %d (%q): %s", e.Index, e.Content, e.Reason)
}

// Parse decodes raw program output into one capture per probe firing, in execution order.
// A block ends at the first LINE_END record that follows its last node.
func Parse(lines []string) ([]*LineCapture, error) {
	records := Clean(lines)
	var result []*LineCapture
	for i := 0; i < len(records); i++ {
		record := records[i]
		if !strings.HasPrefix(record, debugprobe.LineStartMarker) {
			continue
		}
		line, err := parseMarker(record)
		if err != nil {
			return nil, &DecodeError{Index: i, Content: record, Reason: err.Error()}
		}
		p := &parser{records: records, pos: i + 1}
		nodes, err := p.forest()
		if err != nil {
			return nil, err
		}
		if p.pos >= len(records) {
			return nil, &DecodeError{Index: i, Content: record, Reason: "missing " + debugprobe.LineEndMarker}
		}
		if err := p.expect(debugprobe.LineEndMarker); err != nil {
			return nil, err
		}
		result = append(result, &LineCapture{Line: line, Nodes: nodes})
		i = p.pos - 1
	}
	return result, nil
}

func parseMarker(record string) (int, error) {
	parts := strings.Split(record, ";")
	if len(parts) != 3 {
		return 0, fmt.Errorf("invalid marker")
	}
	line, err := strconv.Atoi(parts[2])
	if err != nil {
		return 0, fmt.Errorf("invalid line number: %w", err)
	}
	if line < 1 {
		return 0, fmt.Errorf("invalid line number: %d", line)
	}
	return line, nil
}

// ParseForest decodes the records enclosed by one pair of capture markers.
func ParseForest(records []string) ([]*Node, error) {
	p := &parser{records: records}
	nodes, err := p.forest()
	if err != nil {
		return nil, err
	}
	if p.pos < len(p.records) {
		p.pos++
		return nil, p.fail("unexpected record")
	}
	return nodes, nil
}

type parser struct {
	records []string
	pos     int
}

func (p *parser) fail(reason string, args ...interface{}) error {
	index := p.pos - 1
	if index < 0 {
		index = 0
	}
	content := ""
	if index < len(p.records) {
		content = p.records[index]
	}
	return &DecodeError{Index: index, Content: content, Reason: fmt.Sprintf(reason, args...)}
}

func (p *parser) next() (string, error) {
	if p.pos >= len(p.records) {
		p.pos++
		return "", p.fail("unexpected end of capture")
	}
	record := p.records[p.pos]
	p.pos++
	return record, nil
}

func (p *parser) expect(token string) error {
	record, err := p.next()
	if err != nil {
		return err
	}
	if record != token {
		return p.fail("expected %v", token)
	}
	return nil
}

func (p *parser) peek() string {
	if p.pos < len(p.records) {
		return p.records[p.pos]
	}
	return ""
}

// forest decodes sibling nodes while the next record opens one.
func (p *parser) forest() ([]*Node, error) {
	var nodes []*Node
	for p.peek() == debugprobe.StartNode {
		node, err := p.node()
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

func (p *parser) node() (*Node, error) {
	if err := p.expect(debugprobe.StartNode); err != nil {
		return nil, err
	}
	kindText, err := p.next()
	if err != nil {
		return nil, err
	}
	node := &Node{}
	switch kindText {
	case debugprobe.Complex:
		node.Kind = Complex
	case debugprobe.Primitive:
		node.Kind = Primitive
	default:
		return nil, p.fail("unknown node kind")
	}
	if node.Name, err = p.next(); err != nil {
		return nil, err
	}
	if node.Type, err = p.next(); err != nil {
		return nil, err
	}
	if node.Payload, err = p.next(); err != nil {
		return nil, err
	}
	length, err := p.payload(node)
	if err != nil {
		return nil, err
	}
	if node.Children, err = p.forest(); err != nil {
		return nil, err
	}
	if err := p.expect(debugprobe.EndNode); err != nil {
		return nil, err
	}
	if len(node.Children) > 0 && (node.Kind == Primitive || node.Payload == debugprobe.KindNotImplemented || node.Payload == debugprobe.KindRcMeta) {
		return nil, p.fail("%v node %v cannot have children", node.Payload, node.Name)
	}
	if arity, ok := tagArity(node); ok && len(node.Children) != arity {
		return nil, p.fail("%v %v expects %d children, got %d", node.Name, node.Value, arity, len(node.Children))
	}
	if node.Payload == debugprobe.KindArrayLen {
		if len(node.Children) != length {
			return nil, p.fail("%v declares %d elements, got %d", node.Name, length, len(node.Children))
		}
		for i, child := range node.Children {
			if child.Name == debugprobe.IncIndex {
				child.Name = strconv.Itoa(i)
			}
		}
	}
	return node, nil
}

// tagArity returns the child count of tags emitted by the builtin encoders for errors, sql Null types and nil values.
func tagArity(node *Node) (int, bool) {
	if node.Payload != debugprobe.KindStrIdent {
		return 0, false
	}
	switch {
	case node.Value == "nil":
		return 0, true
	case node.Type == "error":
		switch node.Value {
		case "Ok":
			return 0, true
		case "Err":
			return 1, true
		}
	case strings.HasPrefix(node.Type, "database/sql.Null"):
		switch node.Value {
		case "None":
			return 0, true
		case "Some":
			return 1, true
		}
	}
	return 0, false
}

// payload consumes the payload records of node and returns the announced element count for sequences.
func (p *parser) payload(node *Node) (int, error) {
	switch node.Payload {
	case debugprobe.KindStr, debugprobe.KindStrIdent, debugprobe.KindErrorStr:
		text, err := p.next()
		node.Value = text
		return 0, err
	case debugprobe.KindNoData:
		return 0, nil
	case debugprobe.KindNotImplemented:
		node.Value = "not implemented"
		return 0, nil
	case debugprobe.KindInt, debugprobe.KindUint:
		n, err := p.integer(node.Payload == debugprobe.KindInt)
		if err != nil {
			return 0, err
		}
		node.Value = n.String()
		return 0, nil
	case debugprobe.KindBool:
		raw, err := p.data(debugprobe.BoolWidth)
		if err != nil {
			return 0, err
		}
		switch raw[0] {
		case 0:
			node.Value = "false"
		case 1:
			node.Value = "true"
		default:
			return 0, p.fail("invalid bool byte %d", raw[0])
		}
		return 0, nil
	case debugprobe.KindUUID:
		raw, err := p.data(debugprobe.UUIDWidth)
		if err != nil {
			return 0, err
		}
		id, err := uuid.FromBytes(raw)
		if err != nil {
			return 0, p.fail("invalid uuid: %v", err)
		}
		node.Value = id.String()
		return 0, nil
	case debugprobe.KindRcMeta:
		length, err := p.integer(true)
		if err != nil {
			return 0, err
		}
		capacity, err := p.integer(true)
		if err != nil {
			return 0, err
		}
		node.Value = fmt.Sprintf("len: %v, cap: %v", length, capacity)
		return 0, nil
	case debugprobe.KindArrayLen:
		n, err := p.integer(false)
		if err != nil {
			return 0, err
		}
		if !n.IsUint64() {
			return 0, p.fail("sequence length %v out of range", n)
		}
		length, err := safecast.Conv[int](n.Uint64())
		if err != nil {
			return 0, p.fail("sequence length: %v", err)
		}
		node.Value = "len: " + strconv.Itoa(length)
		return length, nil
	}
	return 0, p.fail("unknown payload kind")
}

func (p *parser) data(width int) ([]byte, error) {
	record, err := p.next()
	if err != nil {
		return nil, err
	}
	raw, err := base64.StdEncoding.DecodeString(record)
	if err != nil {
		return nil, p.fail("invalid base64: %v", err)
	}
	if len(raw) != width {
		return nil, p.fail("expected %d bytes, got %d", width, len(raw))
	}
	return raw, nil
}

// integer decodes a 128 bit little endian payload.
func (p *parser) integer(signed bool) (*big.Int, error) {
	raw, err := p.data(debugprobe.IntWidth)
	if err != nil {
		return nil, err
	}
	return decodeInt128(raw, signed), nil
}

func decodeInt128(raw []byte, signed bool) *big.Int {
	bigEndian := make([]byte, len(raw))
	for i, b := range raw {
		bigEndian[len(raw)-1-i] = b
	}
	n := new(big.Int).SetBytes(bigEndian)
	if signed && raw[len(raw)-1]&0x80 != 0 {
		n.Sub(n, new(big.Int).Lsh(big.NewInt(1), uint(8*len(raw))))
	}
	return n
}
