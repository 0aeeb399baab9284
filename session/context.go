// Package session tracks the working context of a single reasoning session:
// the message history, cached file contents, and tool outputs an agent has
// accumulated, with approximate token accounting. It holds no durable state;
// long-lived knowledge belongs in the memory store.
package session

import (
	"sync"
	"time"
)

// Message is one entry in the ordered conversation history.
type Message struct {
	Role      string         `json:"role"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// CachedFile is a file whose contents were read into the session.
type CachedFile struct {
	Path     string    `json:"path"`
	Content  string    `json:"content"`
	CachedAt time.Time `json:"cached_at"`
}

// ToolOutput is the captured result of one tool invocation.
type ToolOutput struct {
	Tool      string    `json:"tool"`
	Output    string    `json:"output"`
	ExitCode  int       `json:"exit_code"`
	Timestamp time.Time `json:"timestamp"`
}

// approximate tokens per character, the usual len/4 heuristic
const charsPerToken = 4

// Context is the mutable working state of one session. All methods are safe
// for concurrent use; getters return copies.
type Context struct {
	mu sync.RWMutex

	sessionID   string
	messages    []Message
	files       map[string]CachedFile
	toolOutputs []ToolOutput

	// maxTokens caps the approximate token total; 0 means unlimited.
	maxTokens int
}

// NewContext creates an empty session context with no token cap.
func NewContext(sessionID string) *Context {
	return &Context{
		sessionID: sessionID,
		files:     make(map[string]CachedFile),
	}
}

// WithTokenLimit sets the approximate token budget and returns the context
// for chaining.
func (c *Context) WithTokenLimit(maxTokens int) *Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.maxTokens = maxTokens
	return c
}

// SessionID returns the session identifier.
func (c *Context) SessionID() string {
	return c.sessionID
}

// AddMessage appends a message to the history. Fails with
// SESSION_INVALID_ITEM on an empty role and SESSION_TOKEN_LIMIT when the
// addition would exceed the budget.
func (c *Context) AddMessage(role, content string) error {
	if role == "" {
		return NewInvalidItemError("message role cannot be empty")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkBudget(len(role) + len(content)); err != nil {
		return err
	}

	c.messages = append(c.messages, Message{
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
	})
	return nil
}

// AddMessageWithMetadata appends a message carrying extra metadata.
func (c *Context) AddMessageWithMetadata(role, content string, metadata map[string]any) error {
	if role == "" {
		return NewInvalidItemError("message role cannot be empty")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkBudget(len(role) + len(content)); err != nil {
		return err
	}

	copied := make(map[string]any, len(metadata))
	for k, v := range metadata {
		copied[k] = v
	}

	c.messages = append(c.messages, Message{
		Role:      role,
		Content:   content,
		Metadata:  copied,
		Timestamp: time.Now().UTC(),
	})
	return nil
}

// Messages returns a copy of the full message history in order.
func (c *Context) Messages() []Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return copyMessages(c.messages)
}

// LastMessages returns a copy of the most recent n messages in order.
// n <= 0 returns nil.
func (c *Context) LastMessages(n int) []Message {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if n <= 0 {
		return nil
	}
	if n > len(c.messages) {
		n = len(c.messages)
	}
	return copyMessages(c.messages[len(c.messages)-n:])
}

// CacheFile stores (or replaces) a file's contents in the session cache.
func (c *Context) CacheFile(path, content string) error {
	if path == "" {
		return NewInvalidItemError("file path cannot be empty")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	previous := 0
	if existing, ok := c.files[path]; ok {
		previous = len(existing.Path) + len(existing.Content)
	}
	if err := c.checkBudget(len(path) + len(content) - previous); err != nil {
		return err
	}

	c.files[path] = CachedFile{
		Path:     path,
		Content:  content,
		CachedAt: time.Now().UTC(),
	}
	return nil
}

// CachedFileContent returns a cached file's content and whether it was present.
func (c *Context) CachedFileContent(path string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	file, ok := c.files[path]
	return file.Content, ok
}

// CachedFiles returns a copy of every cached file.
func (c *Context) CachedFiles() []CachedFile {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]CachedFile, 0, len(c.files))
	for _, file := range c.files {
		result = append(result, file)
	}
	return result
}

// EvictFile drops a file from the cache, reporting whether it was present.
func (c *Context) EvictFile(path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.files[path]
	delete(c.files, path)
	return ok
}

// AddToolOutput records the result of a tool invocation.
func (c *Context) AddToolOutput(tool, output string, exitCode int) error {
	if tool == "" {
		return NewInvalidItemError("tool name cannot be empty")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkBudget(len(tool) + len(output)); err != nil {
		return err
	}

	c.toolOutputs = append(c.toolOutputs, ToolOutput{
		Tool:      tool,
		Output:    output,
		ExitCode:  exitCode,
		Timestamp: time.Now().UTC(),
	})
	return nil
}

// ToolOutputs returns a copy of the recorded tool outputs in order.
func (c *Context) ToolOutputs() []ToolOutput {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]ToolOutput, len(c.toolOutputs))
	copy(result, c.toolOutputs)
	return result
}

// TrimToolOutputs keeps only the most recent n tool outputs and returns the
// number dropped.
func (c *Context) TrimToolOutputs(n int) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if n < 0 {
		n = 0
	}
	if n >= len(c.toolOutputs) {
		return 0
	}

	dropped := len(c.toolOutputs) - n
	kept := make([]ToolOutput, n)
	copy(kept, c.toolOutputs[dropped:])
	c.toolOutputs = kept
	return dropped
}

// ClearWorkingMemory drops everything: messages, cached files, tool outputs.
func (c *Context) ClearWorkingMemory() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.messages = nil
	c.toolOutputs = nil
	c.files = make(map[string]CachedFile)
}

// ApproxTokens estimates the context's token footprint using the len/4
// heuristic over all held text.
func (c *Context) ApproxTokens() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.approxChars() / charsPerToken
}

func (c *Context) approxChars() int {
	total := 0
	for _, m := range c.messages {
		total += len(m.Role) + len(m.Content)
	}
	for _, f := range c.files {
		total += len(f.Path) + len(f.Content)
	}
	for _, t := range c.toolOutputs {
		total += len(t.Tool) + len(t.Output)
	}
	return total
}

// checkBudget must be called with the lock held.
func (c *Context) checkBudget(additionalChars int) error {
	if c.maxTokens <= 0 {
		return nil
	}
	projected := (c.approxChars() + additionalChars) / charsPerToken
	if projected > c.maxTokens {
		return NewTokenLimitError("session token budget exceeded")
	}
	return nil
}

func copyMessages(messages []Message) []Message {
	result := make([]Message, len(messages))
	copy(result, messages)
	for i := range result {
		if messages[i].Metadata != nil {
			md := make(map[string]any, len(messages[i].Metadata))
			for k, v := range messages[i].Metadata {
				md[k] = v
			}
			result[i].Metadata = md
		}
	}
	return result
}
