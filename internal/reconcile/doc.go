// Package reconcile maps the ImageJ particle list onto the EDAX stage frame
// and pairs particles detected independently by the two systems.
//
// # Stage Frame
//
// EDAX records carry stage positions in mm. ImageJ records carry pixel
// centroids within a field image whose y axis points down and whose sensor
// region is offset from the EDAX field centre. Frame.ToStage converts an
// ImageJ centroid using the stage origin of the same field taken from the
// EDAX table. Field numbering is shared between the two exports; positions,
// not ids, decide whether two records are the same particle.
//
// # Matching
//
// Pair visits EDAX fields in ascending order, EDAX particles in table order
// and ImageJ candidates on the same field in table order. Two strategies are
// available:
//
//   - StrategyFirst accepts the first candidate closer than the threshold.
//     It is order dependent and may assign one ImageJ particle to several
//     EDAX particles.
//   - StrategyMutual accepts a pair only when each is the other's nearest
//     neighbour within the threshold. Pairs are exclusive.
//
// NaN positions (a field without an EDAX origin) never match.
package reconcile
