package session

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/rand/loop/types"
)

func TestAddAndGetMessages(t *testing.T) {
	ctx := NewContext("s1")

	require.NoError(t, ctx.AddMessage("user", "hello"))
	require.NoError(t, ctx.AddMessage("assistant", "hi there"))

	messages := ctx.Messages()
	require.Len(t, messages, 2)
	assert.Equal(t, "user", messages[0].Role)
	assert.Equal(t, "hello", messages[0].Content)
	assert.Equal(t, "assistant", messages[1].Role)
	assert.False(t, messages[0].Timestamp.IsZero())
}

func TestAddMessageValidation(t *testing.T) {
	ctx := NewContext("s1")
	err := ctx.AddMessage("", "no role")
	assert.Equal(t, ErrCodeInvalidItem, types.ErrorCodeOf(err))
}

func TestMessagesReturnsCopy(t *testing.T) {
	ctx := NewContext("s1")
	require.NoError(t, ctx.AddMessageWithMetadata("user", "hello", map[string]any{"k": "v"}))

	messages := ctx.Messages()
	messages[0].Content = "mutated"
	messages[0].Metadata["k"] = "other"

	again := ctx.Messages()
	assert.Equal(t, "hello", again[0].Content)
	assert.Equal(t, "v", again[0].Metadata["k"])
}

func TestLastMessages(t *testing.T) {
	ctx := NewContext("s1")
	for i := 0; i < 5; i++ {
		require.NoError(t, ctx.AddMessage("user", fmt.Sprintf("msg %d", i)))
	}

	last := ctx.LastMessages(2)
	require.Len(t, last, 2)
	assert.Equal(t, "msg 3", last[0].Content)
	assert.Equal(t, "msg 4", last[1].Content)

	assert.Len(t, ctx.LastMessages(100), 5)
	assert.Nil(t, ctx.LastMessages(0))
}

func TestCacheFile(t *testing.T) {
	ctx := NewContext("s1")

	require.NoError(t, ctx.CacheFile("main.go", "package main"))

	content, ok := ctx.CachedFileContent("main.go")
	assert.True(t, ok)
	assert.Equal(t, "package main", content)

	// replacing keeps a single entry
	require.NoError(t, ctx.CacheFile("main.go", "package main // v2"))
	assert.Len(t, ctx.CachedFiles(), 1)

	_, ok = ctx.CachedFileContent("missing.go")
	assert.False(t, ok)

	assert.True(t, ctx.EvictFile("main.go"))
	assert.False(t, ctx.EvictFile("main.go"))
}

func TestCacheFileValidation(t *testing.T) {
	ctx := NewContext("s1")
	err := ctx.CacheFile("", "content")
	assert.Equal(t, ErrCodeInvalidItem, types.ErrorCodeOf(err))
}

func TestToolOutputs(t *testing.T) {
	ctx := NewContext("s1")

	require.NoError(t, ctx.AddToolOutput("build", "ok", 0))
	require.NoError(t, ctx.AddToolOutput("test", "2 failures", 1))

	outputs := ctx.ToolOutputs()
	require.Len(t, outputs, 2)
	assert.Equal(t, "build", outputs[0].Tool)
	assert.Equal(t, 0, outputs[0].ExitCode)
	assert.Equal(t, 1, outputs[1].ExitCode)

	err := ctx.AddToolOutput("", "anonymous", 0)
	assert.Equal(t, ErrCodeInvalidItem, types.ErrorCodeOf(err))
}

func TestTrimToolOutputs(t *testing.T) {
	ctx := NewContext("s1")
	for i := 0; i < 5; i++ {
		require.NoError(t, ctx.AddToolOutput("tool", fmt.Sprintf("run %d", i), 0))
	}

	dropped := ctx.TrimToolOutputs(2)
	assert.Equal(t, 3, dropped)

	outputs := ctx.ToolOutputs()
	require.Len(t, outputs, 2)
	assert.Equal(t, "run 3", outputs[0].Output)
	assert.Equal(t, "run 4", outputs[1].Output)

	assert.Equal(t, 0, ctx.TrimToolOutputs(10), "trimming to a larger count drops nothing")
}

func TestApproxTokens(t *testing.T) {
	ctx := NewContext("s1")
	assert.Equal(t, 0, ctx.ApproxTokens())

	// 4 chars role + 40 chars content = 44 chars -> 11 tokens
	require.NoError(t, ctx.AddMessage("user", strings.Repeat("a", 40)))
	assert.Equal(t, 11, ctx.ApproxTokens())
}

func TestTokenBudget(t *testing.T) {
	ctx := NewContext("s1").WithTokenLimit(10)

	require.NoError(t, ctx.AddMessage("u", strings.Repeat("a", 30)))

	err := ctx.AddMessage("u", strings.Repeat("b", 30))
	assert.Equal(t, ErrCodeTokenLimit, types.ErrorCodeOf(err))
	assert.Len(t, ctx.Messages(), 1, "rejected message is not recorded")

	err = ctx.CacheFile("big.txt", strings.Repeat("c", 100))
	assert.Equal(t, ErrCodeTokenLimit, types.ErrorCodeOf(err))
}

func TestClearWorkingMemory(t *testing.T) {
	ctx := NewContext("s1")
	require.NoError(t, ctx.AddMessage("user", "hello"))
	require.NoError(t, ctx.CacheFile("f.go", "content"))
	require.NoError(t, ctx.AddToolOutput("tool", "out", 0))

	ctx.ClearWorkingMemory()

	assert.Empty(t, ctx.Messages())
	assert.Empty(t, ctx.CachedFiles())
	assert.Empty(t, ctx.ToolOutputs())
	assert.Equal(t, 0, ctx.ApproxTokens())
}

func TestConcurrentContextAccess(t *testing.T) {
	ctx := NewContext("s1")

	var g errgroup.Group
	for i := 0; i < 4; i++ {
		i := i
		g.Go(func() error {
			for j := 0; j < 50; j++ {
				if err := ctx.AddMessage("user", fmt.Sprintf("w%d m%d", i, j)); err != nil {
					return err
				}
			}
			return nil
		})
		g.Go(func() error {
			for j := 0; j < 50; j++ {
				ctx.Messages()
				ctx.ApproxTokens()
				ctx.LastMessages(5)
			}
			return nil
		})
	}

	require.NoError(t, g.Wait())
	assert.Len(t, ctx.Messages(), 200)
}
