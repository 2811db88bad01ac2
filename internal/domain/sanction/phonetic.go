package sanction

import "strings"

// soundexCodes maps consonants to their Soundex digit.  Vowels and the
// letters h/w/y reset the repeat guard but emit nothing.
var soundexCodes = map[byte]byte{
	'b': '1', 'f': '1', 'p': '1', 'v': '1',
	'c': '2', 'g': '2', 'j': '2', 'k': '2', 'q': '2', 's': '2', 'x': '2', 'z': '2',
	'd': '3', 't': '3',
	'l': '4',
	'm': '5', 'n': '5',
	'r': '6',
}

// Soundex encodes one normalized token as a four-character phonetic code.
// Classic American Soundex: first letter kept, consonants mapped to digits,
// adjacent duplicates collapsed, padded with zeros.  It is deliberately
// coarse — that coarseness is what lets "mohammed" and "muhammad" collide.
func Soundex(token string) string {
	token = strings.ToLower(token)
	var first byte
	for i := 0; i < len(token); i++ {
		if token[i] >= 'a' && token[i] <= 'z' {
			first = token[i]
			token = token[i+1:]
			break
		}
	}
	if first == 0 {
		return ""
	}

	code := []byte{first - 'a' + 'A'}
	prev := soundexCodes[first]
	for i := 0; i < len(token) && len(code) < 4; i++ {
		c := token[i]
		d, mapped := soundexCodes[c]
		if !mapped {
			// h and w are transparent to the repeat guard; vowels reset it.
			if c != 'h' && c != 'w' {
				prev = 0
			}
			continue
		}
		if d != prev {
			code = append(code, d)
			prev = d
		}
	}
	for len(code) < 4 {
		code = append(code, '0')
	}
	return string(code)
}

// PhoneticCodes encodes each token and returns the deduplicated code set.
func PhoneticCodes(tokens []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		if c := Soundex(tok); c != "" {
			codes[c] = struct{}{}
		}
	}
	return codes
}
