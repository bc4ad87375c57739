// Package sdf3d implements volumetric signed distance layers: the shape
// library, the quantized sample array each chunk owns, the marching cubes
// mesh writer and the Dimension that plugs 3D chunks into a world.World.
//
// Coordinates are float32 with Z up. Chunk (i, j, k) covers the cube from
// (i, j, k)*ChunkSize to (i+1, j+1, k+1)*ChunkSize.
package sdf3d
