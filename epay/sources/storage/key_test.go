package storage

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestObjectKey(t *testing.T) {
	fixed := time.UnixMilli(1700000000123)
	now = func() time.Time { return fixed }
	t.Cleanup(func() { now = time.Now })

	tests := []struct {
		folder, file string
		pattern      string
	}{
		{"chat", "photo.PNG", `^chat/1700000000123_[0-9a-z]{9}\.png$`},
		{"/uploads/", "archive.tar.gz", `^uploads/1700000000123_[0-9a-z]{9}\.gz$`},
		{"", "noext", `^1700000000123_[0-9a-z]{9}$`},
		{"chat", "../../etc/passwd.jpg", `^chat/1700000000123_[0-9a-z]{9}\.jpg$`},
	}
	for _, tt := range tests {
		assert.Regexp(t, regexp.MustCompile(tt.pattern), ObjectKey(tt.folder, tt.file))
	}
}

func TestObjectKeyIsCollisionResistant(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 1000; i++ {
		k := ObjectKey("chat", "a.png")
		assert.False(t, seen[k], "duplicate key %s", k)
		seen[k] = true
	}
}

func TestPublicObjectURL(t *testing.T) {
	assert.Equal(t,
		"https://cdn.example.com/images/chat/1_abc.png",
		PublicObjectURL("https://cdn.example.com/", "images", "chat/1_abc.png"))
	assert.Equal(t,
		"http://localhost:9000/images/chat/a%20b.png",
		PublicObjectURL("http://localhost:9000", "images", "chat/a b.png"))
}
