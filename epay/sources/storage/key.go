package storage

import (
	"crypto/rand"
	"math/big"
	"path"
	"strconv"
	"strings"
	"time"
)

const (
	suffixLen      = 9
	base36Alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
)

var now = time.Now

// ObjectKey builds "<folder>/<unix-millis>_<9 base36 chars>.<ext>". The
// caller does not enforce uniqueness, so the random suffix carries it.
func ObjectKey(folder, fileName string) string {
	name := strconv.FormatInt(now().UnixMilli(), 10) + "_" + randomSuffix(suffixLen)
	if ext := extension(fileName); ext != "" {
		name += "." + ext
	}
	folder = strings.Trim(folder, "/")
	if folder == "" {
		return name
	}
	return folder + "/" + name
}

func extension(fileName string) string {
	ext := strings.TrimPrefix(path.Ext(path.Base(fileName)), ".")
	return strings.ToLower(ext)
}

func randomSuffix(n int) string {
	var b strings.Builder
	max := big.NewInt(int64(len(base36Alphabet)))
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand does not fail on supported platforms
			panic(err)
		}
		b.WriteByte(base36Alphabet[idx.Int64()])
	}
	return b.String()
}
