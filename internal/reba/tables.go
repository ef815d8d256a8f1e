package reba

// The three lookup tables below are transcribed verbatim from the published
// REBA method (Hignett & McAtamney, 2000). They are fixed data: built once,
// never mutated. Any edit here is a correctness defect.

// tableA combines trunk, neck and leg scores.
// Indexed [trunk-1][neck-1][leg-1] with leg collapsed to two columns.
var tableA = [5][3][2]int{
	{ // trunk = 1
		{1, 2},
		{2, 3},
		{3, 4},
	},
	{ // trunk = 2
		{2, 3},
		{3, 4},
		{4, 5},
	},
	{ // trunk = 3
		{3, 4},
		{4, 5},
		{4, 5},
	},
	{ // trunk = 4
		{4, 5},
		{5, 6},
		{5, 6},
	},
	{ // trunk = 5
		{5, 6},
		{6, 7},
		{6, 7},
	},
}

// tableB combines upper arm, forearm and wrist scores.
// Indexed [upperArm-1][forearm-1][wrist-1].
var tableB = [6][2][3]int{
	{ // upper arm = 1
		{1, 2, 2},
		{1, 2, 3},
	},
	{ // upper arm = 2
		{1, 2, 3},
		{2, 3, 4},
	},
	{ // upper arm = 3
		{3, 4, 5},
		{4, 5, 5},
	},
	{ // upper arm = 4
		{4, 5, 5},
		{5, 6, 7},
	},
	{ // upper arm = 5
		{7, 8, 8},
		{8, 9, 9},
	},
	{ // upper arm = 6
		{8, 9, 9},
		{9, 9, 9},
	},
}

// tableC combines score A and score B into the pre-activity REBA score.
// Indexed [scoreA-1][scoreB-1].
var tableC = [12][12]int{
	{1, 1, 1, 2, 3, 3, 4, 5, 6, 7, 7, 7},
	{1, 2, 2, 3, 4, 4, 5, 6, 6, 7, 7, 8},
	{2, 3, 3, 3, 4, 5, 6, 7, 7, 8, 8, 8},
	{3, 4, 4, 4, 5, 6, 7, 8, 8, 9, 9, 9},
	{4, 4, 4, 5, 6, 7, 8, 8, 9, 9, 9, 9},
	{6, 6, 6, 7, 8, 8, 9, 9, 10, 10, 10, 10},
	{7, 7, 7, 8, 9, 9, 9, 10, 10, 11, 11, 11},
	{8, 8, 8, 9, 10, 10, 10, 10, 10, 11, 11, 11},
	{9, 9, 9, 10, 10, 10, 11, 11, 11, 12, 12, 12},
	{10, 10, 10, 11, 11, 11, 11, 12, 12, 12, 12, 12},
	{11, 11, 11, 11, 12, 12, 12, 12, 12, 12, 12, 12},
	{12, 12, 12, 12, 12, 12, 12, 12, 12, 12, 12, 12},
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// LookupTableA returns the group A posture score. Inputs outside their
// documented ranges are clamped, so indexing is in-bounds by construction.
func LookupTableA(trunk, neck, leg int) int {
	t := clamp(trunk, 1, 5) - 1
	n := clamp(neck, 1, 3) - 1
	l := clamp(leg, 1, 2) - 1
	return tableA[t][n][l]
}

// LookupTableB returns the group B posture score.
func LookupTableB(upperArm, forearm, wrist int) int {
	u := clamp(upperArm, 1, 6) - 1
	f := clamp(forearm, 1, 2) - 1
	w := clamp(wrist, 1, 3) - 1
	return tableB[u][f][w]
}

// LookupTableC combines score A and score B.
func LookupTableC(scoreA, scoreB int) int {
	a := clamp(scoreA, 1, 12) - 1
	b := clamp(scoreB, 1, 12) - 1
	return tableC[a][b]
}
