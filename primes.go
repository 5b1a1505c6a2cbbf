// The MIT License (MIT)
//
// # Copyright (c) 2016 xtaci
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package mumblepad

// primeTable holds the 256 fixed primes consumed by the subkey schedule. The
// values and their order are part of the cipher definition: any permutation
// of this table produces a different, incompatible key schedule.
var primeTable = [256]uint32{
	2609, 3571, 2287, 3167, 499, 1087, 43, 2293,
	2213, 1049, 3169, 907, 223, 2633, 1213, 2441,
	937, 1327, 281, 3257, 311, 1019, 887, 4091,
	2999, 2143, 1823, 1867, 3259, 1543, 1201, 101,
	1933, 1297, 1231, 3617, 1097, 1723, 947, 859,
	2069, 4027, 1847, 487, 167, 3271, 3413, 2657,
	1279, 283, 67, 2063, 3209, 787, 1609, 3833,
	1259, 2137, 2687, 131, 1051, 2273, 1801, 3691,
	911, 701, 1889, 1733, 1307, 1831, 1451, 307,
	2917, 2207, 3527, 653, 2087, 83, 1471, 3847,
	683, 3491, 401, 3533, 463, 1753, 2153, 1973,
	73, 47, 2621, 3851, 3917, 1427, 17, 1171,
	1277, 19, 1301, 1009, 1061, 7, 2957, 2903,
	1627, 2683, 3943, 373, 2819, 13, 733, 1193,
	3677, 2347, 2389, 853, 2707, 2351, 571, 3559,
	757, 631, 199, 1069, 523, 3823, 4007, 2753,
	2437, 1031, 1289, 1249, 3803, 257, 3797, 89,
	1153, 3673, 2593, 3767, 2203, 1091, 137, 3181,
	227, 467, 2557, 163, 3449, 1361, 2311, 1373,
	2711, 2477, 1291, 2677, 2393, 643, 3727, 3631,
	2521, 3407, 2663, 1481, 2053, 3343, 613, 2333,
	3607, 2749, 1553, 431, 2099, 191, 2719, 3931,
	971, 2179, 41, 2713, 1531, 3049, 4001, 2693,
	857, 61, 4003, 4051, 691, 3881, 443, 3221,
	521, 1129, 3929, 1931, 2971, 2269, 3217, 149,
	4049, 1697, 2221, 719, 1747, 811, 127, 2341,
	677, 3011, 2381, 2417, 2003, 1601, 509, 773,
	211, 1993, 2729, 233, 1223, 2791, 1409, 241,
	1483, 3709, 1777, 3779, 2371, 3761, 3, 3301,
	3121, 709, 1997, 37, 3907, 3137, 3313, 4057,
	2447, 1523, 673, 4093, 2399, 797, 251, 593,
	2083, 3613, 109, 1871, 1811, 3469, 1787, 2777,
}
