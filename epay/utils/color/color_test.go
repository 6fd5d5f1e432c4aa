package color

import (
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
)

func TestColorsPassThroughWithoutTTY(t *testing.T) {
	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })

	assert.Equal(t, "hi", ColorPrompt("hi"))
	assert.Equal(t, "hi", ColorError("hi"))
	assert.Equal(t, "agent: ok", ColorAgentResponse("agent: ok"))
}
