package realtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFilter(t *testing.T) {
	tests := []struct {
		in      string
		want    Filter
		wantErr bool
	}{
		{in: "", want: Filter{}},
		{in: "user_id=eq.abc", want: Filter{Column: "user_id", Value: "abc"}},
		{in: "user_id=eq.", want: Filter{Column: "user_id", Value: ""}},
		{in: "user_id=neq.abc", wantErr: true},
		{in: "=eq.abc", wantErr: true},
		{in: "user_id", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFilter(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			if !got.IsZero() {
				assert.Equal(t, tt.in, got.String())
			}
		})
	}
}

func TestFilterMatches(t *testing.T) {
	e, err := NewInsertEvent(TableMessages, map[string]interface{}{"user_id": "u1", "is_admin": true, "content": nil})
	require.NoError(t, err)

	assert.True(t, Filter{}.Matches(e))
	assert.True(t, Eq("user_id", "u1").Matches(e))
	assert.False(t, Eq("user_id", "u2").Matches(e))
	assert.True(t, Eq("is_admin", "true").Matches(e))
	assert.False(t, Eq("content", "").Matches(e))
	assert.False(t, Eq("missing", "x").Matches(e))

	bad := &InsertEvent{Table: TableMessages, Record: []byte(`[1,2]`)}
	assert.False(t, Eq("user_id", "u1").Matches(bad))
	assert.True(t, Filter{}.Matches(bad))
}
