// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/rigrun-chat/internal/chat"
	"github.com/jeranaias/rigrun-chat/internal/config"
	"github.com/jeranaias/rigrun-chat/internal/model"
	"github.com/jeranaias/rigrun-chat/internal/ollama"
)

// =============================================================================
// FAKE OLLAMA SERVER
// =============================================================================

const tagsBody = `{"models":[
	{"name":"llama3.2:latest","size":2019393189,"details":{"family":"llama","parameter_size":"3.2B","quantization_level":"Q4_K_M"}},
	{"name":"qwen2.5:7b","size":4683087332,"details":{"family":"qwen2","parameter_size":"7.6B","quantization_level":"Q4_K_M"}}
]}`

// fakeOllama records generate requests and answers every streamed prompt
// with "Hello world" and every title request with a quoted title.
type fakeOllama struct {
	*httptest.Server

	mu       sync.Mutex
	prompts  []string
	titleReq int
}

func newFakeOllama(t *testing.T) *fakeOllama {
	t.Helper()
	f := &fakeOllama{}

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		_, _ = io.WriteString(w, "Ollama is running")
	})
	mux.HandleFunc("/api/tags", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, tagsBody)
	})
	mux.HandleFunc("/api/generate", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) {
			return
		}

		f.mu.Lock()
		defer f.mu.Unlock()

		if stream, ok := req["stream"]; ok && stream == false {
			f.titleReq++
			_, _ = io.WriteString(w, `{"response":"\"Trip Planning\"","done":true}`)
			return
		}

		f.prompts = append(f.prompts, req["prompt"].(string))
		for _, line := range []string{
			`{"response":"Hello","done":false}`,
			`{"response":" world","done":false}`,
			`{"response":"","done":true,"eval_count":2,"eval_duration":1000000000}`,
		} {
			_, _ = io.WriteString(w, line+"\n")
		}
	})

	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Close)
	return f
}

func (f *fakeOllama) Prompts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.prompts...)
}

func (f *fakeOllama) TitleRequests() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.titleReq
}

// =============================================================================
// HELPERS
// =============================================================================

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{config.EnvOllamaURL, config.EnvModel, config.EnvTimeout} {
		t.Setenv(key, "")
	}
}

// runCmd executes the root command with args against a config path that
// does not exist, so only defaults and flags apply.
func runCmd(t *testing.T, stdin string, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	clearEnv(t)

	var out, errOut bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append([]string{"--config", filepath.Join(t.TempDir(), "absent.toml")}, args...))

	err = root.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func newTestApp(t *testing.T, url string) (*app, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer

	cfg := config.Default()
	cfg.Ollama.URL = url
	client := ollama.NewClientWithConfig(cfg.ClientConfig())
	storeCfg := cfg.StoreConfig()
	storeCfg.Logger = log.New(io.Discard, "", 0)

	return &app{
		cfg:    cfg,
		client: client,
		store:  chat.NewStore(client, storeCfg),
		out:    &out,
		errOut: &out,
	}, &out
}

// =============================================================================
// ASK
// =============================================================================

func TestAsk_StreamsAnswer(t *testing.T) {
	server := newFakeOllama(t)

	stdout, stderr, err := runCmd(t, "", "--url", server.URL, "-m", "llama3.2", "ask", "Say", "hello")

	require.NoError(t, err)
	assert.Equal(t, "Hello world\n", stdout)
	assert.Empty(t, stderr)
	assert.Equal(t, []string{"Say hello"}, server.Prompts())
}

func TestAsk_PromptFromStdin(t *testing.T) {
	server := newFakeOllama(t)

	_, _, err := runCmd(t, "  piped prompt\n", "--url", server.URL, "-m", "llama3.2", "ask")

	require.NoError(t, err)
	assert.Equal(t, []string{"piped prompt"}, server.Prompts())
}

func TestAsk_Stats(t *testing.T) {
	server := newFakeOllama(t)

	_, stderr, err := runCmd(t, "", "--url", server.URL, "-m", "llama3.2", "ask", "--stats", "hi")

	require.NoError(t, err)
	assert.Contains(t, stderr, "2 tokens | 2.0 tok/s")
}

func TestAsk_NoModel(t *testing.T) {
	server := newFakeOllama(t)

	_, _, err := runCmd(t, "", "--url", server.URL, "ask", "hi")

	assert.ErrorIs(t, err, chat.ErrNoModelSelected)
	assert.Empty(t, server.Prompts())
}

func TestAsk_NoPrompt(t *testing.T) {
	server := newFakeOllama(t)

	_, _, err := runCmd(t, "   \n", "--url", server.URL, "-m", "llama3.2", "ask")

	assert.ErrorIs(t, err, errNoPrompt)
}

func TestAsk_InvalidURL(t *testing.T) {
	_, _, err := runCmd(t, "", "--url", "ftp://example.com", "-m", "llama3.2", "ask", "hi")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "ollama.url")
}

func TestAsk_ServerDown(t *testing.T) {
	server := newFakeOllama(t)
	url := server.URL
	server.Close()

	_, _, err := runCmd(t, "", "--url", url, "-m", "llama3.2", "ask", "hi")

	require.Error(t, err)
	assert.True(t, ollama.IsNotRunning(err))
	assert.Contains(t, describeError(err), "ollama serve")
}

// =============================================================================
// MODELS / TITLE / VERSION
// =============================================================================

func TestModels_Table(t *testing.T) {
	server := newFakeOllama(t)

	stdout, _, err := runCmd(t, "", "--url", server.URL, "-m", "llama3.2", "models")

	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(stdout, "\n"), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "  NAME"))
	assert.True(t, strings.HasPrefix(lines[1], "* llama3.2:latest"), "selected model is marked")
	assert.True(t, strings.HasPrefix(lines[2], "  qwen2.5:7b"))
	assert.Contains(t, lines[1], "1.9 GB")

	// Columns line up.
	assert.Equal(t, strings.Index(lines[0], "SIZE"), strings.Index(lines[2], "4.4 GB"))
}

func TestPrintModels_Empty(t *testing.T) {
	var out bytes.Buffer
	printModels(&out, nil, "")
	assert.Contains(t, out.String(), "No models installed.")
}

func TestTitle(t *testing.T) {
	server := newFakeOllama(t)

	stdout, _, err := runCmd(t, "", "--url", server.URL, "-m", "llama3.2", "title", "plan", "a", "trip")

	require.NoError(t, err)
	assert.Equal(t, "Trip Planning\n", stdout)
	assert.Equal(t, 1, server.TitleRequests())
}

func TestVersion(t *testing.T) {
	stdout, _, err := runCmd(t, "", "version")

	require.NoError(t, err)
	assert.Contains(t, stdout, "rigrun-chat "+Version)
}

// =============================================================================
// CONFIG
// =============================================================================

// runWithConfig is runCmd with a caller-chosen config path.
func runWithConfig(t *testing.T, path string, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	clearEnv(t)

	var out, errOut bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(append([]string{"--config", path}, args...))

	err = root.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func TestConfigReset_WritesLoadableFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "config.toml")

	stdout, _, err := runWithConfig(t, path, "--url", "http://gpu-box:11434", "-m", "qwen2.5:7b", "config", "reset")
	require.NoError(t, err)
	assert.Contains(t, stdout, "[OK] Configuration reset to defaults")
	assert.Contains(t, stdout, path)

	loaded, err := config.LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "http://gpu-box:11434", loaded.Ollama.URL)
	assert.Equal(t, "qwen2.5:7b", loaded.Ollama.Model)
	assert.Equal(t, config.DefaultTimeoutSecs, loaded.Ollama.TimeoutSecs)
}

func TestConfigReset_RejectsInvalidFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	_, _, err := runWithConfig(t, path, "--url", "ftp://nope", "config", "reset")

	require.Error(t, err)
	assert.NoFileExists(t, path)
}

func TestConfigShow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	_, _, err := runWithConfig(t, path, "-m", "mistral", "config", "reset")
	require.NoError(t, err)

	stdout, _, err := runWithConfig(t, path, "--url", "http://other:11434", "config", "show")

	require.NoError(t, err)
	assert.Contains(t, stdout, "# rigrun-chat configuration file")
	assert.Contains(t, stdout, `model = "mistral"`)
	assert.Contains(t, stdout, `url = "http://other:11434"`, "flags override the file")
}

func TestConfigPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	stdout, stderr, err := runWithConfig(t, path, "config", "path")

	require.NoError(t, err)
	assert.Equal(t, path+"\n", stdout)
	assert.Contains(t, stderr, "does not exist")
}

// =============================================================================
// CHAT SESSION
// =============================================================================

func TestChatSession_SendStreamsAndTitlesOnce(t *testing.T) {
	server := newFakeOllama(t)
	a, out := newTestApp(t, server.URL)
	a.store.SelectModel(model.SelectedModel{Name: "llama3.2"})
	session := newChatSession(a)

	keepGoing, err := session.handleLine(context.Background(), "plan a trip")
	require.NoError(t, err)
	assert.True(t, keepGoing)

	assert.Contains(t, out.String(), "Assistant>")
	assert.Contains(t, out.String(), "Hello world\n")
	assert.Contains(t, out.String(), "2 tokens")
	assert.Contains(t, out.String(), "Title: Trip Planning")
	assert.Equal(t, "Trip Planning", a.store.Title())

	_, err = session.handleLine(context.Background(), "and the budget?")
	require.NoError(t, err)
	assert.Equal(t, 1, server.TitleRequests())
	assert.Equal(t, 4, a.store.Len())
}

func TestChatSession_NoModel(t *testing.T) {
	server := newFakeOllama(t)
	a, _ := newTestApp(t, server.URL)
	session := newChatSession(a)

	keepGoing, err := session.handleLine(context.Background(), "hello?")

	assert.True(t, keepGoing)
	assert.ErrorIs(t, err, chat.ErrNoModelSelected)
	assert.Zero(t, a.store.Len())
}

func TestChatSession_SlashCommands(t *testing.T) {
	server := newFakeOllama(t)
	a, out := newTestApp(t, server.URL)
	session := newChatSession(a)
	ctx := context.Background()

	tests := []struct {
		name      string
		line      string
		keepGoing bool
		wantErr   func(error) bool
		wantOut   string
	}{
		{name: "help", line: "/help", keepGoing: true, wantOut: "/model [NAME]"},
		{name: "no model yet", line: "/model", keepGoing: true, wantOut: "No model selected."},
		{name: "switch model", line: "/model llama3.2", keepGoing: true, wantOut: "Switched to llama3.2:latest (llama, 3.2B, Q4_K_M)"},
		{name: "show model", line: "/m", keepGoing: true, wantOut: "Model: llama3.2:latest"},
		{name: "unknown model", line: "/model ghost", keepGoing: true, wantErr: ollama.IsModelNotFound},
		{name: "models", line: "/models", keepGoing: true, wantOut: "* llama3.2:latest"},
		{name: "empty history", line: "/history", keepGoing: true, wantOut: "No messages yet."},
		{name: "default title", line: "/title", keepGoing: true, wantOut: "Title: New Chat"},
		{name: "unknown", line: "/bogus", keepGoing: true, wantErr: func(err error) bool {
			return err != nil && strings.Contains(err.Error(), "unknown command: /bogus")
		}},
		{name: "blank", line: "   ", keepGoing: true},
		{name: "quit", line: "/quit", keepGoing: false},
		{name: "bare exit", line: "EXIT", keepGoing: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			out.Reset()
			keepGoing, err := session.handleLine(ctx, tc.line)

			assert.Equal(t, tc.keepGoing, keepGoing)
			if tc.wantErr != nil {
				assert.True(t, tc.wantErr(err), "unexpected error: %v", err)
			} else {
				assert.NoError(t, err)
			}
			assert.Contains(t, out.String(), tc.wantOut)
		})
	}

	assert.Equal(t, "llama3.2:latest", a.store.SelectedModel().Name, "failed switch keeps the model")
}

func TestChatSession_HistoryAndTitle(t *testing.T) {
	server := newFakeOllama(t)
	a, out := newTestApp(t, server.URL)
	a.store.SelectModel(model.SelectedModel{Name: "llama3.2"})
	session := newChatSession(a)
	ctx := context.Background()

	_, err := session.handleLine(ctx, "first question")
	require.NoError(t, err)

	out.Reset()
	_, err = session.handleLine(ctx, "/history")
	require.NoError(t, err)
	assert.Contains(t, out.String(), "You: first question")
	assert.Contains(t, out.String(), "Assistant: Hello world")

	out.Reset()
	_, err = session.handleLine(ctx, "/title")
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Title: Trip Planning")
	assert.Equal(t, 1, server.TitleRequests(), "an existing title is not derived again")
}

// scriptedInput feeds fixed lines to the REPL, then reports EOF.
type scriptedInput struct {
	lines []string
}

func (s *scriptedInput) ReadInput(string) (string, error) {
	if len(s.lines) == 0 {
		return "", io.EOF
	}
	line := s.lines[0]
	s.lines = s.lines[1:]
	return line, nil
}

func TestChatSession_Run(t *testing.T) {
	server := newFakeOllama(t)
	a, out := newTestApp(t, server.URL)
	a.store.SelectModel(model.SelectedModel{Name: "llama3.2"})
	session := newChatSession(a)

	err := session.run(&scriptedInput{lines: []string{"hi", "/nope", "/quit", "never read"}})

	require.NoError(t, err)
	assert.Contains(t, out.String(), "rigrun-chat")
	assert.Contains(t, out.String(), "Server: "+server.URL)
	assert.Contains(t, out.String(), "unknown command: /nope")
	assert.Contains(t, out.String(), "Trip Planning: 2 messages")
	assert.Equal(t, []string{"hi"}, server.Prompts())
}

func TestChatSession_RunEndsOnEOF(t *testing.T) {
	server := newFakeOllama(t)
	a, out := newTestApp(t, server.URL)

	err := newChatSession(a).run(&scriptedInput{})

	require.NoError(t, err)
	assert.Contains(t, out.String(), "New Chat: 0 messages")
}

func TestResolveModel(t *testing.T) {
	server := newFakeOllama(t)
	a, out := newTestApp(t, server.URL)

	a.store.SelectModel(model.SelectedModel{Name: "qwen2.5:7b"})
	newChatSession(a).resolveModel(context.Background())
	assert.Equal(t, "qwen2", a.store.SelectedModel().Family)

	a.store.SelectModel(model.SelectedModel{Name: "ghost"})
	newChatSession(a).resolveModel(context.Background())
	assert.Equal(t, "ghost", a.store.SelectedModel().Name)
	assert.Contains(t, out.String(), "[Warning]")
}

func TestStartChatSession(t *testing.T) {
	server := newFakeOllama(t)
	a, _ := newTestApp(t, server.URL)
	a.store.SelectModel(model.SelectedModel{Name: "llama3.2"})

	session, err := startChatSession(context.Background(), a)

	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, "llama3.2:latest", a.store.SelectedModel().Name)
}

func TestStartChatSession_ServerDown(t *testing.T) {
	server := newFakeOllama(t)
	url := server.URL
	server.Close()
	a, out := newTestApp(t, url)
	a.store.SelectModel(model.SelectedModel{Name: "llama3.2"})

	session, err := startChatSession(context.Background(), a)

	require.Error(t, err)
	assert.Nil(t, session)
	assert.True(t, ollama.IsNotRunning(err), "got %v", err)
	assert.Contains(t, describeError(err), "ollama serve")
	assert.Empty(t, out.String(), "nothing is printed before the check fails")
}

func TestChatCmd_ServerDown(t *testing.T) {
	server := newFakeOllama(t)
	url := server.URL
	server.Close()

	stdout, _, err := runCmd(t, "", "--url", url, "-m", "llama3.2", "chat")

	assert.True(t, ollama.IsNotRunning(err), "got %v", err)
	assert.Empty(t, stdout)
}

func TestTUICmd_ServerDown(t *testing.T) {
	server := newFakeOllama(t)
	url := server.URL
	server.Close()

	_, _, err := runCmd(t, "", "--url", url, "-m", "llama3.2", "tui")

	assert.True(t, ollama.IsNotRunning(err), "got %v", err)
	assert.Contains(t, describeError(err), "ollama serve")
}

// =============================================================================
// HELPERS
// =============================================================================

func TestReadPrompt(t *testing.T) {
	got, err := readPrompt(strings.NewReader("ignored"), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, "a b", got)

	got, err = readPrompt(strings.NewReader("\n  from stdin \n"), nil)
	require.NoError(t, err)
	assert.Equal(t, "from stdin", got)

	_, err = readPrompt(nil, nil)
	assert.ErrorIs(t, err, errNoPrompt)
}

func TestDescribeError(t *testing.T) {
	assert.Contains(t, describeError(chat.ErrNoModelSelected), "--model")
	assert.Contains(t, describeError(ollama.ErrModelNotFound), "rigrun-chat models")
	assert.Contains(t, describeError(ollama.ErrTimeout), config.EnvTimeout)
	assert.Equal(t, "plain", describeError(errors.New("plain")))
}

func TestFormatRow(t *testing.T) {
	assert.Equal(t, "ab    c", formatRow([]string{"ab", "c", ""}, []int{4, 1, 3}))
}
