// Package imaging crops particle thumbnails out of SEM field images and
// draws diagnostic overlays on them.
//
// # Coordinate System
//
// Pixel coordinates are 0-based with (0,0) at the top-left corner, X
// increasing rightward and Y increasing downward. Windows are half-open
// rectangles: Min is inclusive, Max is exclusive.
//
// EDAX exports measure centroids from the bottom-left corner of the field.
// Functions taking a flipY flag mirror the centroid about the image height
// before use. ImageJ centroids are already top-left based.
//
// # Thumbnails
//
// Every particle gets a crop centred on its centroid, shifted back inside
// the image when it would cross an edge, and magnified DefaultScale times
// with nearest-neighbour sampling. Thumbnails are named after the field
// and the 1-based position of the particle on that field (ThumbnailName),
// which is how the report finds them.
//
// # Field Images
//
// Field images live in a fields directory as fld%04d with the configured
// extension. PNG, JPEG, GIF, BMP and TIFF decode through ImageCache, which
// is safe for concurrent use.
//
// # Colours
//
// ColorMap maps composition values onto the Viridis palette for the report
// and for annotated fields; NaN values get NaNColor.
package imaging
