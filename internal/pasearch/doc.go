// Package pasearch reads the flat files produced by a particle analysis (PA)
// search: the EDAX stub export, the ImageJ particle table, the stub summary
// header and the reference marker positions.
//
// # Directory Layout
//
// A PA search run is a directory holding "Stub Summary.txt":
//
//	<sample>/
//	    Stub Summary.txt          key: value header block
//	    <name>stub01.csv          EDAX export (14 preamble lines, // comments)
//	    IJ<name>.csv              ImageJ "Analyze Particles" table
//	    refmarkers/marker_pos.txt reference markers (4 preamble lines)
//	    fields/fld0001.png        one image per field
//	    cropped/                  thumbnails written by the imaging package
//
// # Coordinates
//
// EDAX particles carry their own stage position (StgX, StgY, mm) and the
// stage origin of their field (X_stage, Y_stage, µm). ImageJ particles only
// carry pixel centroids; the reconcile package maps them onto the stage.
//
// # Errors
//
// Malformed rows return *errors.ParseError with the file and 1-based line.
// Empty cells are read as NaN, the way the instrument tables are usually
// loaded, and propagate through later arithmetic.
package pasearch
