// Package cipher implements the letter-shift transform used to obscure chat
// text on the wire.
//
// The transform is a Caesar shift. It hides nothing from anyone who looks at
// the bytes; peers use it only so that both ends agree on the wire format.
package cipher

// DefaultShift is the shift every peer uses unless configured otherwise.
const DefaultShift = 3

const alphabetSize = 26

// Normalize maps any integer key onto the range [0, 26).
func Normalize(key int) int {
	k := key % alphabetSize
	if k < 0 {
		k += alphabetSize
	}
	return k
}

// Obscure shifts every ASCII letter in text forward by key positions,
// wrapping within its own case. All other runes are copied unchanged.
func Obscure(text string, key int) string {
	return shift(text, Normalize(key))
}

// Reveal reverses Obscure for the same key.
func Reveal(text string, key int) string {
	// Negating before normalizing overflows for math.MinInt.
	return shift(text, (alphabetSize-Normalize(key))%alphabetSize)
}

// shift works on bytes: UTF-8 continuation and lead bytes are never in the
// ASCII letter ranges, so multi-byte runes pass through intact.
func shift(text string, k int) string {
	if k == 0 || text == "" {
		return text
	}
	out := []byte(text)
	for i, b := range out {
		switch {
		case b >= 'a' && b <= 'z':
			out[i] = 'a' + (b-'a'+byte(k))%alphabetSize
		case b >= 'A' && b <= 'Z':
			out[i] = 'A' + (b-'A'+byte(k))%alphabetSize
		}
	}
	return string(out)
}
