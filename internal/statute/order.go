package statute

import (
	"regexp"
	"strconv"
	"strings"
)

var articleNumPat = regexp.MustCompile(`第(\d+)(?:-(\d+))?條`)

// CompareIDs orders statute citations by article number, so hyphenated
// articles land between their neighbours (民法第190條 < 民法第191-2條 <
// 民法第193條第1項). Citations sharing an article fall back to plain
// string order. Returns -1, 0 or 1.
func CompareIDs(a, b string) int {
	aArt, aSub := articleNumber(a)
	bArt, bSub := articleNumber(b)
	if aArt != bArt {
		if aArt < bArt {
			return -1
		}
		return 1
	}
	if aSub != bSub {
		if aSub < bSub {
			return -1
		}
		return 1
	}
	return strings.Compare(a, b)
}

func articleNumber(id string) (article, sub int) {
	m := articleNumPat.FindStringSubmatch(id)
	if m == nil {
		return 0, 0
	}
	article, _ = strconv.Atoi(m[1])
	if m[2] != "" {
		sub, _ = strconv.Atoi(m[2])
	}
	return article, sub
}
