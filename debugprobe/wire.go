package debugprobe

// Record prefixes. Every wire line is written as exactly one record.
const (
	LogPrefix  = "debugprobe log: "
	DataPrefix = "debugprobe data: "
)

// Capture markers wrap the forest emitted by one probe firing.
const (
	MarkerPrefix    = "-.!"
	LineStartMarker = MarkerPrefix + ";LINE_START"
	LineEndMarker   = MarkerPrefix + ";LINE_END"
)

// Node tokens.
const (
	StartNode = "START_NODE"
	EndNode   = "END_NODE"
	Complex   = "complex"
	Primitive = "primitive"
)

// IncIndex is the slot name of sequence elements, rewritten to the element position when decoded.
const IncIndex = "-inc-index"

// Payload kinds.
const (
	KindInt            = "int"
	KindUint           = "uint"
	KindBool           = "bool"
	KindStr            = "str"
	KindStrIdent       = "str_ident"
	KindErrorStr       = "error_str"
	KindNoData         = "no_data"
	KindRcMeta         = "rc_meta"
	KindArrayLen       = "array_len"
	KindUUID           = "uuid"
	KindNotImplemented = "not_implemented"
)

// Payload widths in bytes.
const (
	IntWidth  = 16
	BoolWidth = 1
	UUIDWidth = 16
)

// OutputEnv names a file the probe appends records to instead of stderr.
const OutputEnv = "LINESCOPE_PROBE_OUT"

// PutInt128 writes v sign-extended to 128 bits in little endian order.
func PutInt128(dst []byte, v int64) {
	putLE(dst, uint64(v))
	fill := byte(0)
	if v < 0 {
		fill = 0xff
	}
	for i := 8; i < IntWidth; i++ {
		dst[i] = fill
	}
}

// PutUint128 writes v zero-extended to 128 bits in little endian order.
func PutUint128(dst []byte, v uint64) {
	putLE(dst, v)
	for i := 8; i < IntWidth; i++ {
		dst[i] = 0
	}
}

func putLE(dst []byte, v uint64) {
	for i := 0; i < 8; i++ {
		dst[i] = byte(v >> (8 * i))
	}
}

// EscapeText makes text safe to emit as a single log record.
func EscapeText(text string) string {
	var needs bool
	for i := 0; i < len(text); i++ {
		if c := text[i]; c == '\\' || c == '\n' || c == '\r' {
			needs = true
			break
		}
	}
	if !needs {
		return text
	}
	out := make([]byte, 0, len(text)+8)
	for i := 0; i < len(text); i++ {
		switch c := text[i]; c {
		case '\\':
			out = append(out, '\\', '\\')
		case '\n':
			out = append(out, '\\', 'n')
		case '\r':
			out = append(out, '\\', 'r')
		default:
			out = append(out, c)
		}
	}
	return string(out)
}

// UnescapeText reverses EscapeText. Unknown escapes are kept verbatim.
func UnescapeText(text string) string {
	if len(text) == 0 {
		return text
	}
	var has bool
	for i := 0; i < len(text); i++ {
		if text[i] == '\\' {
			has = true
			break
		}
	}
	if !has {
		return text
	}
	out := make([]byte, 0, len(text))
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c != '\\' || i+1 == len(text) {
			out = append(out, c)
			continue
		}
		i++
		switch text[i] {
		case '\\':
			out = append(out, '\\')
		case 'n':
			out = append(out, '\n')
		case 'r':
			out = append(out, '\r')
		default:
			out = append(out, '\\', text[i])
		}
	}
	return string(out)
}
