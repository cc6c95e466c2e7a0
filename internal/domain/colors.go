package domain

import "strings"

// wubrg is the canonical color order used for shard keys and identity
// comparison. Identities serialize in this order regardless of how the
// upstream API ordered them.
const wubrg = "WUBRG"

// ColorlessKey is the shard key for cards with an empty color identity.
const ColorlessKey = "colorless"

// ColorKey canonicalizes a color identity into a WUBRG-ordered string,
// or ColorlessKey for the empty set.
func ColorKey(identity []string) string {
	if len(identity) == 0 {
		return ColorlessKey
	}
	var b strings.Builder
	for _, c := range wubrg {
		for _, have := range identity {
			if strings.EqualFold(have, string(c)) {
				b.WriteRune(c)
				break
			}
		}
	}
	if b.Len() == 0 {
		return ColorlessKey
	}
	return b.String()
}

// SameColorIdentity reports whether two identities contain exactly the
// same colors, regardless of order or case.
func SameColorIdentity(a, b []string) bool {
	return len(a) == len(b) && ColorKey(a) == ColorKey(b)
}

// ColorSubset reports whether every color in sub is present in super.
func ColorSubset(sub, super []string) bool {
	for _, c := range sub {
		found := false
		for _, s := range super {
			if strings.EqualFold(c, s) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
