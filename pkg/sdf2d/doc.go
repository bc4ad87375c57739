// Package sdf2d implements extruded planar signed distance layers. Shapes
// live in the XY plane; each chunk keeps a square of quantized samples,
// traces the zero contour with marching squares and extrudes it along Z
// into front, back and cut faces.
//
// Chunk (i, j) covers the square from (i, j)*ChunkSize to
// (i+1, j+1)*ChunkSize.
package sdf2d
