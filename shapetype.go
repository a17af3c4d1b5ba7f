package shapefile

import (
	"fmt"

	"github.com/twpayne/go-geom"
)

// A ShapeType is a shape type.
type ShapeType uint

// Shape types.
const (
	ShapeTypeNull        ShapeType = 0
	ShapeTypePoint       ShapeType = 1
	ShapeTypePolyLine    ShapeType = 3
	ShapeTypePolygon     ShapeType = 5
	ShapeTypeMultiPoint  ShapeType = 8
	ShapeTypePointZ      ShapeType = 11
	ShapeTypePolyLineZ   ShapeType = 13
	ShapeTypePolygonZ    ShapeType = 15
	ShapeTypeMultiPointZ ShapeType = 18
	ShapeTypePointM      ShapeType = 21
	ShapeTypePolyLineM   ShapeType = 23
	ShapeTypePolygonM    ShapeType = 25
	ShapeTypeMultiPointM ShapeType = 28
	ShapeTypeMultiPatch  ShapeType = 31

	// ShapeTypeUndefined is returned by ShapeTypeForCode for unknown codes.
	ShapeTypeUndefined ShapeType = ^ShapeType(0)
)

var shapeTypeNames = map[ShapeType]string{
	ShapeTypeNull:        "Null",
	ShapeTypePoint:       "Point",
	ShapeTypePolyLine:    "PolyLine",
	ShapeTypePolygon:     "Polygon",
	ShapeTypeMultiPoint:  "MultiPoint",
	ShapeTypePointZ:      "PointZ",
	ShapeTypePolyLineZ:   "PolyLineZ",
	ShapeTypePolygonZ:    "PolygonZ",
	ShapeTypeMultiPointZ: "MultiPointZ",
	ShapeTypePointM:      "PointM",
	ShapeTypePolyLineM:   "PolyLineM",
	ShapeTypePolygonM:    "PolygonM",
	ShapeTypeMultiPointM: "MultiPointM",
	ShapeTypeMultiPatch:  "MultiPatch",
}

// handlers maps each supported shape type to its handler. It is never
// modified after initialization.
var handlers = map[ShapeType]shapeHandler{
	ShapeTypeNull:        nullHandler{},
	ShapeTypePoint:       pointHandler{shapeType: ShapeTypePoint},
	ShapeTypePointZ:      pointHandler{shapeType: ShapeTypePointZ},
	ShapeTypePointM:      pointHandler{shapeType: ShapeTypePointM},
	ShapeTypeMultiPoint:  multiPointHandler{shapeType: ShapeTypeMultiPoint},
	ShapeTypeMultiPointZ: multiPointHandler{shapeType: ShapeTypeMultiPointZ},
	ShapeTypeMultiPointM: multiPointHandler{shapeType: ShapeTypeMultiPointM},
	ShapeTypePolyLine:    polyLineHandler{shapeType: ShapeTypePolyLine},
	ShapeTypePolyLineZ:   polyLineHandler{shapeType: ShapeTypePolyLineZ},
	ShapeTypePolyLineM:   polyLineHandler{shapeType: ShapeTypePolyLineM},
	ShapeTypePolygon:     polygonHandler{shapeType: ShapeTypePolygon},
	ShapeTypePolygonZ:    polygonHandler{shapeType: ShapeTypePolygonZ},
	ShapeTypePolygonM:    polygonHandler{shapeType: ShapeTypePolygonM},
}

// An UnsupportedShapeTypeError is returned when there is no handler for a
// shape type.
type UnsupportedShapeTypeError struct {
	ShapeType ShapeType
}

func (e *UnsupportedShapeTypeError) Error() string {
	if e.ShapeType == ShapeTypeUndefined {
		return "undefined shape type"
	}
	return fmt.Sprintf("%s: unsupported shape type", e.ShapeType)
}

// ShapeTypeForCode returns the ShapeType with the given code, or
// ShapeTypeUndefined if there is none.
func ShapeTypeForCode(code int) ShapeType {
	if code < 0 {
		return ShapeTypeUndefined
	}
	if _, ok := shapeTypeNames[ShapeType(code)]; !ok {
		return ShapeTypeUndefined
	}
	return ShapeType(code)
}

func (t ShapeType) String() string {
	if name, ok := shapeTypeNames[t]; ok {
		return name
	}
	if t == ShapeTypeUndefined {
		return "Undefined"
	}
	return fmt.Sprintf("ShapeType(%d)", uint(t))
}

// IsMulti returns if t is multi-point-like, i.e. each record can hold more
// than one vertex.
func (t ShapeType) IsMulti() bool {
	switch t {
	case ShapeTypeNull, ShapeTypePoint, ShapeTypePointZ, ShapeTypePointM, ShapeTypeUndefined:
		return false
	default:
		_, ok := shapeTypeNames[t]
		return ok
	}
}

// HasZ returns if records of type t carry Z values.
func (t ShapeType) HasZ() bool {
	switch t {
	case ShapeTypePointZ, ShapeTypePolyLineZ, ShapeTypePolygonZ, ShapeTypeMultiPointZ, ShapeTypeMultiPatch:
		return true
	default:
		return false
	}
}

// HasM returns if records of type t may carry M values.
func (t ShapeType) HasM() bool {
	switch t {
	case ShapeTypePointM, ShapeTypePolyLineM, ShapeTypePolygonM, ShapeTypeMultiPointM:
		return true
	default:
		return t.HasZ()
	}
}

// base returns the XY shape type of t's category.
func (t ShapeType) base() ShapeType {
	switch t {
	case ShapeTypePoint, ShapeTypePointZ, ShapeTypePointM:
		return ShapeTypePoint
	case ShapeTypePolyLine, ShapeTypePolyLineZ, ShapeTypePolyLineM:
		return ShapeTypePolyLine
	case ShapeTypePolygon, ShapeTypePolygonZ, ShapeTypePolygonM:
		return ShapeTypePolygon
	case ShapeTypeMultiPoint, ShapeTypeMultiPointZ, ShapeTypeMultiPointM:
		return ShapeTypeMultiPoint
	default:
		return t
	}
}

// withLayout returns the shape type in t's category for layout.
func (t ShapeType) withLayout(layout geom.Layout) ShapeType {
	base := t.base()
	switch layout {
	case geom.XYZ, geom.XYZM:
		return base + 10
	case geom.XYM:
		return base + 20
	default:
		return base
	}
}

// handlerFor returns the handler for t.
func handlerFor(t ShapeType) (shapeHandler, error) {
	handler, ok := handlers[t]
	if !ok {
		return nil, &UnsupportedShapeTypeError{ShapeType: t}
	}
	return handler, nil
}

// ShapeTypeOf returns the shape type used to write g. nil and empty
// geometries are null shapes.
func ShapeTypeOf(g geom.T) (ShapeType, error) {
	if isEmpty(g) {
		return ShapeTypeNull, nil
	}
	var base ShapeType
	switch g.(type) {
	case *geom.Point:
		base = ShapeTypePoint
	case *geom.MultiPoint:
		base = ShapeTypeMultiPoint
	case *geom.LineString, *geom.MultiLineString:
		base = ShapeTypePolyLine
	case *geom.Polygon, *geom.MultiPolygon:
		base = ShapeTypePolygon
	default:
		return ShapeTypeUndefined, &UnsupportedGeometryError{Geom: g}
	}
	switch layout := g.Layout(); layout {
	case geom.XY, geom.XYM, geom.XYZ, geom.XYZM:
		return base.withLayout(layout), nil
	default:
		return ShapeTypeUndefined, &UnsupportedGeometryError{Geom: g}
	}
}

// An UnsupportedGeometryError is returned when a geometry cannot be written
// to a shapefile.
type UnsupportedGeometryError struct {
	Geom geom.T
}

func (e *UnsupportedGeometryError) Error() string {
	return fmt.Sprintf("%T: unsupported geometry (layout %s)", e.Geom, e.Geom.Layout())
}

// isEmpty returns if g has no coordinates.
func isEmpty(g geom.T) bool {
	switch g := g.(type) {
	case nil:
		return true
	case *geom.Point:
		return g == nil || len(g.FlatCoords()) == 0
	case *geom.MultiPoint:
		return g == nil || len(g.FlatCoords()) == 0
	case *geom.LineString:
		return g == nil || len(g.FlatCoords()) == 0
	case *geom.MultiLineString:
		return g == nil || len(g.FlatCoords()) == 0
	case *geom.Polygon:
		return g == nil || len(g.FlatCoords()) == 0
	case *geom.MultiPolygon:
		return g == nil || len(g.FlatCoords()) == 0
	case *geom.GeometryCollection:
		return g == nil || g.NumGeoms() == 0
	default:
		return false
	}
}
