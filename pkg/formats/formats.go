// Package formats provides parsers for Wavefront OBJ/MTL text mesh files.
package formats

// Note: OBJ geometry parsing is implemented in obj.go
// Note: MTL material libraries are implemented in mtl.go
