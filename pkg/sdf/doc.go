// Package sdf holds the dimension-independent pieces of the signed distance
// field world: chunk quality, byte quantization of distances, edit operators,
// the resource library shared by chunks, the ordinal shape type registry and
// the little-endian binary codec used for replication and snapshots.
//
// Distances are negative inside a surface, zero on it and positive outside.
// They are stored one byte per sample, clamped to [-MaxDistance, MaxDistance],
// so 0 means deep inside, 255 means far outside and the surface sits at 127.5.
package sdf
