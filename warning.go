package shapefile

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Errors.
var (
	ErrContentLengthMismatch = errors.New("content length does not match written length")
	ErrRecordTooLarge        = errors.New("content length too large")
	ErrTooManyParts          = errors.New("too many parts")
	ErrTooManyPoints         = errors.New("too many points")
	ErrUnclosedRing          = errors.New("ring is not closed")
)

// A WarningKind is the kind of a Warning.
type WarningKind int

// Warning kinds.
const (
	WarningFileCode WarningKind = iota + 1
	WarningVersion
	WarningShapeTypeMismatch
	WarningOrphanedHole
	WarningDegenerateRing
	WarningMalformedRecord
	WarningRecordNumber
)

var warningKindNames = map[WarningKind]string{
	WarningFileCode:          "file code",
	WarningVersion:           "version",
	WarningShapeTypeMismatch: "shape type mismatch",
	WarningOrphanedHole:      "orphaned hole",
	WarningDegenerateRing:    "degenerate ring",
	WarningMalformedRecord:   "malformed record",
	WarningRecordNumber:      "record number",
}

func (k WarningKind) String() string {
	if name, ok := warningKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("WarningKind(%d)", int(k))
}

// A Warning is a recoverable problem found while reading. The data it refers
// to is skipped or excluded; reading continues.
type Warning struct {
	Kind WarningKind
	// RecordNumber is the 1-based number of the record, or 0 for the header.
	RecordNumber int
	// Part is the 0-based index of the ring or part the warning refers to, or
	// -1.
	Part    int
	Message string
}

func (w *Warning) Error() string {
	switch {
	case w.RecordNumber == 0:
		return fmt.Sprintf("header: %s: %s", w.Kind, w.Message)
	case w.Part >= 0:
		return fmt.Sprintf("record %d: part %d: %s: %s", w.RecordNumber, w.Part, w.Kind, w.Message)
	default:
		return fmt.Sprintf("record %d: %s: %s", w.RecordNumber, w.Kind, w.Message)
	}
}

// A warnings accumulates warnings and logs each one as it is added.
type warnings struct {
	logger       *zap.Logger
	recordNumber int
	list         []*Warning
}

func newWarnings(logger *zap.Logger) *warnings {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &warnings{
		logger: logger,
	}
}

func (ws *warnings) add(kind WarningKind, part int, format string, args ...any) {
	w := &Warning{
		Kind:         kind,
		RecordNumber: ws.recordNumber,
		Part:         part,
		Message:      fmt.Sprintf(format, args...),
	}
	ws.list = append(ws.list, w)
	ws.logger.Warn(w.Message,
		zap.Stringer("kind", kind),
		zap.Int("record", w.RecordNumber),
		zap.Int("part", part),
	)
}

func (ws *warnings) addAll(list []*Warning) {
	for _, w := range list {
		ws.list = append(ws.list, w)
		ws.logger.Warn(w.Message,
			zap.Stringer("kind", w.Kind),
			zap.Int("record", w.RecordNumber),
			zap.Int("part", w.Part),
		)
	}
}
