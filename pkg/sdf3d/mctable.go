package sdf3d

// triangleTable maps a cube configuration (bit i set when corner i is inside)
// to triangles over edge ids, three per triangle. Generated; do not edit.
var triangleTable = [256][]uint8{
	nil,
	{0, 1, 2},
	{0, 4, 3},
	{3, 1, 2, 4, 3, 2},
	{5, 6, 1},
	{5, 6, 2, 0, 5, 2},
	{5, 6, 1, 0, 4, 3},
	{5, 6, 2, 3, 5, 2, 4, 3, 2},
	{5, 3, 7},
	{0, 1, 2, 5, 3, 7},
	{0, 4, 7, 5, 0, 7},
	{7, 5, 1, 4, 7, 1, 4, 1, 2},
	{7, 6, 1, 3, 7, 1},
	{3, 7, 6, 3, 6, 2, 0, 3, 2},
	{7, 6, 1, 4, 7, 1, 0, 4, 1},
	{7, 6, 2, 4, 7, 2},
	{8, 2, 9},
	{0, 1, 9, 8, 0, 9},
	{8, 2, 9, 0, 4, 3},
	{4, 3, 1, 4, 1, 9, 8, 4, 9},
	{5, 6, 1, 8, 2, 9},
	{5, 6, 9, 0, 5, 9, 8, 0, 9},
	{5, 6, 1, 8, 2, 9, 0, 4, 3},
	{4, 3, 5, 5, 6, 9, 4, 5, 9, 8, 4, 9},
	{8, 2, 9, 5, 3, 7},
	{0, 1, 9, 8, 0, 9, 5, 3, 7},
	{8, 2, 9, 0, 4, 7, 5, 0, 7},
	{5, 1, 9, 7, 5, 9, 4, 7, 9, 8, 4, 9},
	{7, 6, 1, 3, 7, 1, 8, 2, 9},
	{3, 7, 6, 0, 3, 6, 0, 6, 9, 8, 0, 9},
	{7, 6, 1, 4, 7, 1, 0, 4, 1, 8, 2, 9},
	{7, 6, 9, 4, 7, 9, 8, 4, 9},
	{8, 10, 4},
	{0, 1, 2, 8, 10, 4},
	{8, 10, 3, 0, 8, 3},
	{3, 1, 2, 10, 3, 2, 8, 10, 2},
	{5, 6, 1, 8, 10, 4},
	{5, 6, 2, 0, 5, 2, 8, 10, 4},
	{5, 6, 1, 8, 10, 3, 0, 8, 3},
	{5, 6, 2, 3, 5, 2, 10, 3, 2, 8, 10, 2},
	{5, 3, 7, 8, 10, 4},
	{0, 1, 2, 5, 3, 7, 8, 10, 4},
	{8, 10, 7, 0, 8, 7, 5, 0, 7},
	{10, 7, 5, 5, 1, 2, 10, 5, 2, 8, 10, 2},
	{7, 6, 1, 3, 7, 1, 8, 10, 4},
	{3, 7, 6, 3, 6, 2, 0, 3, 2, 8, 10, 4},
	{10, 7, 6, 8, 10, 6, 8, 6, 1, 0, 8, 1},
	{10, 7, 6, 10, 6, 2, 8, 10, 2},
	{4, 2, 9, 10, 4, 9},
	{0, 1, 9, 4, 0, 9, 10, 4, 9},
	{3, 0, 2, 10, 3, 2, 10, 2, 9},
	{3, 1, 9, 10, 3, 9},
	{5, 6, 1, 4, 2, 9, 10, 4, 9},
	{5, 6, 9, 0, 5, 9, 4, 0, 9, 10, 4, 9},
	{5, 6, 1, 3, 0, 2, 10, 3, 2, 10, 2, 9},
	{3, 5, 6, 10, 3, 6, 10, 6, 9},
	{4, 2, 9, 10, 4, 9, 5, 3, 7},
	{0, 1, 9, 4, 0, 9, 10, 4, 9, 5, 3, 7},
	{0, 2, 9, 5, 0, 9, 7, 5, 9, 10, 7, 9},
	{5, 1, 9, 7, 5, 9, 10, 7, 9},
	{7, 6, 1, 3, 7, 1, 4, 2, 9, 10, 4, 9},
	{3, 7, 6, 0, 3, 6, 0, 6, 9, 4, 0, 9, 10, 4, 9},
	{2, 9, 10, 0, 2, 10, 0, 10, 7, 0, 7, 6, 0, 6, 1},
	{7, 6, 9, 10, 7, 9},
	{11, 9, 6},
	{0, 1, 2, 11, 9, 6},
	{11, 9, 6, 0, 4, 3},
	{3, 1, 2, 4, 3, 2, 11, 9, 6},
	{11, 9, 1, 5, 11, 1},
	{11, 9, 2, 5, 11, 2, 0, 5, 2},
	{11, 9, 1, 5, 11, 1, 0, 4, 3},
	{11, 9, 2, 5, 11, 2, 3, 5, 2, 4, 3, 2},
	{11, 9, 6, 5, 3, 7},
	{0, 1, 2, 11, 9, 6, 5, 3, 7},
	{11, 9, 6, 0, 4, 7, 5, 0, 7},
	{7, 5, 1, 4, 7, 1, 4, 1, 2, 11, 9, 6},
	{11, 9, 1, 7, 11, 1, 3, 7, 1},
	{3, 7, 11, 11, 9, 2, 3, 11, 2, 0, 3, 2},
	{11, 9, 1, 7, 11, 1, 4, 7, 1, 0, 4, 1},
	{7, 11, 9, 4, 7, 9, 4, 9, 2},
	{8, 2, 6, 11, 8, 6},
	{0, 1, 6, 8, 0, 6, 11, 8, 6},
	{8, 2, 6, 11, 8, 6, 0, 4, 3},
	{4, 3, 1, 8, 4, 1, 8, 1, 6, 11, 8, 6},
	{8, 2, 1, 11, 8, 1, 5, 11, 1},
	{11, 8, 0, 5, 11, 0},
	{8, 2, 1, 11, 8, 1, 5, 11, 1, 0, 4, 3},
	{8, 4, 3, 11, 8, 3, 5, 11, 3},
	{8, 2, 6, 11, 8, 6, 5, 3, 7},
	{0, 1, 6, 8, 0, 6, 11, 8, 6, 5, 3, 7},
	{8, 2, 6, 11, 8, 6, 0, 4, 7, 5, 0, 7},
	{7, 5, 1, 4, 7, 1, 8, 4, 1, 8, 1, 6, 11, 8, 6},
	{8, 2, 1, 11, 8, 1, 7, 11, 1, 3, 7, 1},
	{0, 3, 7, 8, 0, 7, 11, 8, 7},
	{8, 2, 1, 11, 8, 1, 7, 11, 1, 4, 7, 1, 0, 4, 1},
	{8, 4, 7, 11, 8, 7},
	{11, 9, 6, 8, 10, 4},
	{0, 1, 2, 11, 9, 6, 8, 10, 4},
	{11, 9, 6, 8, 10, 3, 0, 8, 3},
	{3, 1, 2, 10, 3, 2, 8, 10, 2, 11, 9, 6},
	{11, 9, 1, 5, 11, 1, 8, 10, 4},
	{11, 9, 2, 5, 11, 2, 0, 5, 2, 8, 10, 4},
	{11, 9, 1, 5, 11, 1, 8, 10, 3, 0, 8, 3},
	{11, 9, 2, 5, 11, 2, 3, 5, 2, 10, 3, 2, 8, 10, 2},
	{11, 9, 6, 5, 3, 7, 8, 10, 4},
	{0, 1, 2, 11, 9, 6, 5, 3, 7, 8, 10, 4},
	{11, 9, 6, 8, 10, 7, 0, 8, 7, 5, 0, 7},
	{10, 7, 5, 5, 1, 2, 10, 5, 2, 8, 10, 2, 11, 9, 6},
	{11, 9, 1, 7, 11, 1, 3, 7, 1, 8, 10, 4},
	{3, 7, 11, 11, 9, 2, 3, 11, 2, 0, 3, 2, 8, 10, 4},
	{8, 10, 7, 11, 9, 1, 7, 11, 1, 8, 7, 1, 0, 8, 1},
	{11, 9, 2, 7, 11, 2, 10, 7, 2, 8, 10, 2},
	{10, 4, 2, 10, 2, 6, 11, 10, 6},
	{10, 4, 0, 0, 1, 6, 10, 0, 6, 11, 10, 6},
	{0, 2, 6, 3, 0, 6, 10, 3, 6, 11, 10, 6},
	{3, 1, 6, 10, 3, 6, 11, 10, 6},
	{10, 4, 2, 11, 10, 2, 11, 2, 1, 5, 11, 1},
	{11, 10, 4, 5, 11, 4, 0, 5, 4},
	{3, 0, 2, 10, 3, 2, 11, 10, 2, 11, 2, 1, 5, 11, 1},
	{11, 10, 3, 5, 11, 3},
	{10, 4, 2, 10, 2, 6, 11, 10, 6, 5, 3, 7},
	{10, 4, 0, 0, 1, 6, 10, 0, 6, 11, 10, 6, 5, 3, 7},
	{7, 5, 0, 10, 7, 0, 10, 0, 2, 10, 2, 6, 11, 10, 6},
	{7, 5, 1, 10, 7, 1, 10, 1, 6, 11, 10, 6},
	{10, 4, 2, 11, 10, 2, 11, 2, 1, 7, 11, 1, 3, 7, 1},
	{10, 4, 0, 11, 10, 0, 11, 0, 3, 11, 3, 7},
	{0, 2, 1, 11, 10, 7},
	{11, 10, 7},
	{11, 7, 10},
	{0, 1, 2, 11, 7, 10},
	{0, 4, 3, 11, 7, 10},
	{3, 1, 2, 4, 3, 2, 11, 7, 10},
	{5, 6, 1, 11, 7, 10},
	{5, 6, 2, 0, 5, 2, 11, 7, 10},
	{5, 6, 1, 0, 4, 3, 11, 7, 10},
	{5, 6, 2, 3, 5, 2, 4, 3, 2, 11, 7, 10},
	{5, 3, 10, 11, 5, 10},
	{0, 1, 2, 5, 3, 10, 11, 5, 10},
	{0, 4, 10, 5, 0, 10, 11, 5, 10},
	{5, 1, 2, 11, 5, 2, 10, 11, 2, 4, 10, 2},
	{10, 11, 6, 3, 10, 6, 3, 6, 1},
	{11, 6, 2, 10, 11, 2, 3, 10, 2, 0, 3, 2},
	{4, 10, 11, 11, 6, 1, 4, 11, 1, 0, 4, 1},
	{11, 6, 2, 10, 11, 2, 4, 10, 2},
	{8, 2, 9, 11, 7, 10},
	{0, 1, 9, 8, 0, 9, 11, 7, 10},
	{8, 2, 9, 0, 4, 3, 11, 7, 10},
	{4, 3, 1, 4, 1, 9, 8, 4, 9, 11, 7, 10},
	{5, 6, 1, 8, 2, 9, 11, 7, 10},
	{5, 6, 9, 0, 5, 9, 8, 0, 9, 11, 7, 10},
	{5, 6, 1, 8, 2, 9, 0, 4, 3, 11, 7, 10},
	{4, 3, 5, 5, 6, 9, 4, 5, 9, 8, 4, 9, 11, 7, 10},
	{8, 2, 9, 5, 3, 10, 11, 5, 10},
	{0, 1, 9, 8, 0, 9, 5, 3, 10, 11, 5, 10},
	{8, 2, 9, 0, 4, 10, 5, 0, 10, 11, 5, 10},
	{10, 11, 5, 4, 10, 5, 4, 5, 1, 4, 1, 9, 8, 4, 9},
	{10, 11, 6, 3, 10, 6, 3, 6, 1, 8, 2, 9},
	{10, 11, 6, 3, 10, 6, 0, 3, 6, 0, 6, 9, 8, 0, 9},
	{4, 10, 11, 11, 6, 1, 4, 11, 1, 0, 4, 1, 8, 2, 9},
	{10, 11, 6, 4, 10, 6, 4, 6, 9, 8, 4, 9},
	{11, 7, 4, 8, 11, 4},
	{0, 1, 2, 11, 7, 4, 8, 11, 4},
	{11, 7, 3, 8, 11, 3, 0, 8, 3},
	{7, 3, 1, 11, 7, 1, 11, 1, 2, 8, 11, 2},
	{5, 6, 1, 11, 7, 4, 8, 11, 4},
	{5, 6, 2, 0, 5, 2, 11, 7, 4, 8, 11, 4},
	{5, 6, 1, 11, 7, 3, 8, 11, 3, 0, 8, 3},
	{11, 7, 3, 5, 6, 2, 3, 5, 2, 11, 3, 2, 8, 11, 2},
	{5, 3, 4, 11, 5, 4, 8, 11, 4},
	{0, 1, 2, 5, 3, 4, 11, 5, 4, 8, 11, 4},
	{5, 0, 8, 11, 5, 8},
	{5, 1, 2, 11, 5, 2, 8, 11, 2},
	{11, 6, 1, 8, 11, 1, 4, 8, 1, 3, 4, 1},
	{4, 8, 11, 3, 4, 11, 3, 11, 6, 3, 6, 2, 0, 3, 2},
	{11, 6, 1, 8, 11, 1, 0, 8, 1},
	{11, 6, 2, 8, 11, 2},
	{4, 2, 9, 7, 4, 9, 11, 7, 9},
	{0, 1, 9, 4, 0, 9, 7, 4, 9, 11, 7, 9},
	{7, 3, 0, 0, 2, 9, 7, 0, 9, 11, 7, 9},
	{7, 3, 1, 7, 1, 9, 11, 7, 9},
	{5, 6, 1, 4, 2, 9, 7, 4, 9, 11, 7, 9},
	{5, 6, 9, 0, 5, 9, 4, 0, 9, 7, 4, 9, 11, 7, 9},
	{5, 6, 1, 7, 3, 0, 0, 2, 9, 7, 0, 9, 11, 7, 9},
	{5, 6, 9, 3, 5, 9, 7, 3, 9, 11, 7, 9},
	{3, 4, 2, 5, 3, 2, 5, 2, 9, 11, 5, 9},
	{5, 3, 4, 0, 1, 9, 4, 0, 9, 5, 4, 9, 11, 5, 9},
	{0, 2, 9, 5, 0, 9, 11, 5, 9},
	{5, 1, 9, 11, 5, 9},
	{2, 9, 11, 4, 2, 11, 3, 4, 11, 3, 11, 6, 3, 6, 1},
	{11, 6, 9, 0, 3, 4},
	{2, 9, 11, 0, 2, 11, 0, 11, 6, 0, 6, 1},
	{11, 6, 9},
	{10, 9, 6, 7, 10, 6},
	{0, 1, 2, 10, 9, 6, 7, 10, 6},
	{10, 9, 6, 7, 10, 6, 0, 4, 3},
	{3, 1, 2, 4, 3, 2, 10, 9, 6, 7, 10, 6},
	{7, 10, 9, 7, 9, 1, 5, 7, 1},
	{7, 10, 9, 5, 7, 9, 5, 9, 2, 0, 5, 2},
	{7, 10, 9, 7, 9, 1, 5, 7, 1, 0, 4, 3},
	{7, 10, 9, 5, 7, 9, 5, 9, 2, 3, 5, 2, 4, 3, 2},
	{10, 9, 6, 3, 10, 6, 5, 3, 6},
	{0, 1, 2, 10, 9, 6, 3, 10, 6, 5, 3, 6},
	{4, 10, 9, 0, 4, 9, 0, 9, 6, 5, 0, 6},
	{9, 6, 5, 10, 9, 5, 4, 10, 5, 4, 5, 1, 4, 1, 2},
	{10, 9, 1, 3, 10, 1},
	{10, 9, 2, 3, 10, 2, 0, 3, 2},
	{4, 10, 9, 4, 9, 1, 0, 4, 1},
	{10, 9, 2, 4, 10, 2},
	{8, 2, 6, 10, 8, 6, 7, 10, 6},
	{0, 1, 6, 8, 0, 6, 10, 8, 6, 7, 10, 6},
	{8, 2, 6, 10, 8, 6, 7, 10, 6, 0, 4, 3},
	{4, 3, 1, 8, 4, 1, 8, 1, 6, 10, 8, 6, 7, 10, 6},
	{7, 10, 8, 8, 2, 1, 7, 8, 1, 5, 7, 1},
	{5, 7, 10, 0, 5, 10, 8, 0, 10},
	{7, 10, 8, 8, 2, 1, 7, 8, 1, 5, 7, 1, 0, 4, 3},
	{7, 10, 8, 5, 7, 8, 5, 8, 4, 5, 4, 3},
	{8, 2, 6, 10, 8, 6, 3, 10, 6, 5, 3, 6},
	{0, 1, 6, 8, 0, 6, 10, 8, 6, 3, 10, 6, 5, 3, 6},
	{0, 4, 10, 8, 2, 6, 10, 8, 6, 0, 10, 6, 5, 0, 6},
	{5, 1, 6, 8, 4, 10},
	{10, 8, 2, 3, 10, 2, 3, 2, 1},
	{0, 3, 10, 8, 0, 10},
	{8, 2, 1, 10, 8, 1, 4, 10, 1, 0, 4, 1},
	{8, 4, 10},
	{4, 8, 9, 7, 4, 9, 7, 9, 6},
	{0, 1, 2, 4, 8, 9, 7, 4, 9, 7, 9, 6},
	{8, 9, 6, 0, 8, 6, 3, 0, 6, 7, 3, 6},
	{9, 6, 7, 8, 9, 7, 8, 7, 3, 8, 3, 1, 8, 1, 2},
	{8, 9, 1, 4, 8, 1, 7, 4, 1, 5, 7, 1},
	{4, 8, 9, 7, 4, 9, 5, 7, 9, 5, 9, 2, 0, 5, 2},
	{3, 0, 8, 7, 3, 8, 7, 8, 9, 7, 9, 1, 5, 7, 1},
	{8, 9, 2, 5, 7, 3},
	{3, 4, 8, 8, 9, 6, 3, 8, 6, 5, 3, 6},
	{0, 1, 2, 3, 4, 8, 8, 9, 6, 3, 8, 6, 5, 3, 6},
	{8, 9, 6, 0, 8, 6, 5, 0, 6},
	{9, 6, 5, 8, 9, 5, 8, 5, 1, 8, 1, 2},
	{8, 9, 1, 4, 8, 1, 3, 4, 1},
	{4, 8, 9, 3, 4, 9, 3, 9, 2, 0, 3, 2},
	{8, 9, 1, 0, 8, 1},
	{8, 9, 2},
	{4, 2, 6, 7, 4, 6},
	{4, 0, 1, 7, 4, 1, 7, 1, 6},
	{0, 2, 6, 3, 0, 6, 7, 3, 6},
	{3, 1, 6, 7, 3, 6},
	{4, 2, 1, 7, 4, 1, 5, 7, 1},
	{5, 7, 4, 0, 5, 4},
	{3, 0, 2, 7, 3, 2, 7, 2, 1, 5, 7, 1},
	{5, 7, 3},
	{3, 4, 2, 3, 2, 6, 5, 3, 6},
	{0, 1, 6, 4, 0, 6, 3, 4, 6, 5, 3, 6},
	{0, 2, 6, 5, 0, 6},
	{5, 1, 6},
	{4, 2, 1, 3, 4, 1},
	{0, 3, 4},
	{0, 2, 1},
	nil,
}
