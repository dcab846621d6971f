package commands

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchChoices(t *testing.T) {
	t.Parallel()

	names := []string{"memes", "art", "smart-art", "Meme-Review"}

	assert.Equal(t, []string{"art", "smart-art"}, matchChoices(names, "art"))
	assert.Equal(t, []string{"memes", "Meme-Review"}, matchChoices(names, "MEME"))
	assert.Equal(t, names, matchChoices(names, ""))
	assert.Empty(t, matchChoices(names, "xyz"))

	many := make([]string, 40)
	for i := range many {
		many[i] = fmt.Sprintf("board-%02d", i)
	}
	assert.Len(t, matchChoices(many, "board"), maxChoices)
}

func TestCompleteStaticOptions(t *testing.T) {
	t.Parallel()

	h := newTestHandler()

	names, err := h.complete(context.Background(), 0, "/starboards/edit", optSetting)
	require.NoError(t, err)
	assert.Equal(t, settingNames(), names)

	names, err = h.complete(context.Background(), 0, "/autostar/edit", optSetting)
	require.NoError(t, err)
	assert.Equal(t, autostarSettingNames(), names)

	names, err = h.complete(context.Background(), 0, "/filters/set", optCondition)
	require.NoError(t, err)
	assert.Equal(t, conditionNames(), names)

	names, err = h.complete(context.Background(), 0, "/starboards/edit", optStarboard)
	require.NoError(t, err)
	assert.Empty(t, names)
}
