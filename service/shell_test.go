package service

import (
	"context"
	"encoding/base64"
	"sync"
	"testing"
	"time"

	"github.com/ezlinkai/ai-image-generator/relay/imagegen"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGenerator struct {
	mu       sync.Mutex
	calls    int
	prompts  []string
	counts   []int
	payloads []string
	err      error
	started  chan struct{}
	release  chan struct{}
}

func (g *fakeGenerator) GenerateImages(ctx context.Context, prompt string, count int) ([]string, error) {
	g.mu.Lock()
	g.calls++
	g.prompts = append(g.prompts, prompt)
	g.counts = append(g.counts, count)
	g.mu.Unlock()
	if g.started != nil {
		g.started <- struct{}{}
	}
	if g.release != nil {
		<-g.release
	}
	if g.err != nil {
		return nil, g.err
	}
	return g.payloads, nil
}

func (g *fakeGenerator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

type fakeSelector struct {
	hasKey  bool
	openErr error
	opened  int
}

func (s *fakeSelector) HasSelectedKey(ctx context.Context) (bool, error) {
	return s.hasKey, nil
}

func (s *fakeSelector) OpenSelectKey(ctx context.Context) error {
	s.opened++
	return s.openErr
}

var fixedNow = time.Date(2024, 5, 6, 7, 8, 9, 123000000, time.UTC)

func newTestShell(gen ImageGenerator, opts ...ShellOption) *Shell {
	opts = append([]ShellOption{
		WithAuthKeywords("requested entity was not found\napi key not valid"),
		WithMaxImages(4),
		WithClock(func() time.Time { return fixedNow }),
	}, opts...)
	return NewShell(gen, &fakeSelector{hasKey: true}, opts...)
}

func TestSubmitMapsPayloadsInOrder(t *testing.T) {
	gen := &fakeGenerator{payloads: []string{"QQ==", "Qg==", "Qw=="}}
	shell := newTestShell(gen)

	state, err := shell.Submit(context.Background(), "a cat", 3)
	require.NoError(t, err)

	require.Len(t, state.Images, 3)
	for i, want := range gen.payloads {
		assert.Equal(t, want, state.Images[i].EncodedData)
		assert.Equal(t, "a cat", state.Images[i].SourcePrompt)
	}
	assert.Equal(t, "data:image/jpeg;base64,QQ==", state.Images[0].Src())
	assert.False(t, state.Loading)
	assert.Empty(t, state.Error)
	assert.Equal(t, 3, state.Count)
	assert.Equal(t, fixedNow.UnixMilli(), state.BatchTimestamp)
	assert.Equal(t, []int{3}, gen.counts)
}

func TestSubmitBlankPromptDoesNotCallGenerator(t *testing.T) {
	for _, prompt := range []string{"", "   ", "\n\t"} {
		gen := &fakeGenerator{payloads: []string{"QQ=="}}
		shell := newTestShell(gen)

		state, err := shell.Submit(context.Background(), prompt, 1)
		assert.ErrorIs(t, err, ErrEmptyPrompt)
		assert.Equal(t, EmptyPromptMessage, state.Error)
		assert.False(t, state.Loading)
		assert.Equal(t, 0, gen.callCount())
	}
}

func TestSubmitRejectsCountOutOfRange(t *testing.T) {
	gen := &fakeGenerator{payloads: []string{"QQ=="}}
	shell := newTestShell(gen)

	for _, count := range []int{0, -1, 5} {
		state, err := shell.Submit(context.Background(), "a cat", count)
		assert.ErrorIs(t, err, ErrInvalidCount)
		assert.Equal(t, "Please choose between 1 and 4 images.", state.Error)
		assert.False(t, state.Loading)
	}
	assert.Equal(t, 0, gen.callCount())
}

func TestSubmitClearsPreviousResultsAndError(t *testing.T) {
	gen := &fakeGenerator{payloads: []string{"QQ=="}, started: make(chan struct{}), release: make(chan struct{})}
	shell := newTestShell(gen, WithState(ShellState{
		Error:         "old error",
		Images:        []GeneratedImage{{EncodedData: "b2xk", SourcePrompt: "old"}},
		HasCredential: true,
	}))

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = shell.Submit(context.Background(), "new", 1)
	}()

	<-gen.started
	during := shell.Snapshot()
	assert.True(t, during.Loading)
	assert.Empty(t, during.Error)
	assert.Empty(t, during.Images)

	close(gen.release)
	<-done
	after := shell.Snapshot()
	assert.False(t, after.Loading)
	require.Len(t, after.Images, 1)
	assert.Equal(t, "new", after.Images[0].SourcePrompt)
}

func TestSubmitWhileLoadingIsRejected(t *testing.T) {
	gen := &fakeGenerator{payloads: []string{"QQ=="}, started: make(chan struct{}), release: make(chan struct{})}
	shell := newTestShell(gen)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = shell.Submit(context.Background(), "first", 1)
	}()
	<-gen.started

	_, err := shell.Submit(context.Background(), "second", 1)
	assert.ErrorIs(t, err, ErrGenerationInProgress)

	close(gen.release)
	<-done
	assert.Equal(t, 1, gen.callCount())
}

func TestSubmitErrors(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		wantMessage   string
		wantKind      string
		hasCredential bool
	}{
		{
			name:          "auth error",
			err:           &imagegen.GenerationError{Kind: imagegen.KindAuth, Message: "Failed to generate images: API Error (401): bad key"},
			wantMessage:   AuthErrorMessage,
			wantKind:      "auth_error",
			hasCredential: false,
		},
		{
			name:          "upstream error shown verbatim",
			err:           &imagegen.GenerationError{Kind: imagegen.KindUpstream, Message: "Failed to generate images: API Error (500): overloaded"},
			wantMessage:   "Failed to generate images: API Error (500): overloaded",
			wantKind:      "upstream_error",
			hasCredential: true,
		},
		{
			name:          "empty result",
			err:           &imagegen.GenerationError{Kind: imagegen.KindEmptyResult, Message: "Failed to generate images: The API did not return any images."},
			wantMessage:   "Failed to generate images: The API did not return any images.",
			wantKind:      "empty_result_error",
			hasCredential: true,
		},
		{
			name:          "configuration error",
			err:           &imagegen.GenerationError{Kind: imagegen.KindConfiguration, Message: imagegen.MissingKeyMessage},
			wantMessage:   imagegen.MissingKeyMessage,
			wantKind:      "configuration_error",
			hasCredential: true,
		},
		{
			name:          "untyped credential error",
			err:           errors.New("Requested entity was not found."),
			wantMessage:   AuthErrorMessage,
			wantKind:      "auth_error",
			hasCredential: false,
		},
		{
			name:          "untyped error shown verbatim",
			err:           errors.New("boom"),
			wantMessage:   "boom",
			wantKind:      "unknown_error",
			hasCredential: true,
		},
		{
			name:          "untyped error without message",
			err:           errors.New(""),
			wantMessage:   UnexpectedMessage,
			wantKind:      "unknown_error",
			hasCredential: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shell := newTestShell(&fakeGenerator{err: tt.err})
			state, err := shell.Submit(context.Background(), "p", 2)
			assert.Equal(t, tt.err, err)
			assert.Equal(t, tt.wantMessage, state.Error)
			assert.Equal(t, tt.wantKind, state.ErrorKind)
			assert.Equal(t, tt.hasCredential, state.HasCredential)
			assert.False(t, state.Loading)
			assert.Empty(t, state.Images)
		})
	}
}

func TestSelectKey(t *testing.T) {
	selector := &fakeSelector{}
	shell := NewShell(&fakeGenerator{}, selector, WithState(ShellState{Error: AuthErrorMessage, HasCredential: false}))

	state, err := shell.SelectKey(context.Background())
	require.NoError(t, err)
	assert.True(t, state.HasCredential)
	assert.Empty(t, state.Error)
	assert.Equal(t, 1, selector.opened)

	selector.openErr = errors.New("dialog unavailable")
	shell = NewShell(&fakeGenerator{}, selector, WithState(ShellState{HasCredential: false}))
	state, err = shell.SelectKey(context.Background())
	assert.Error(t, err)
	assert.False(t, state.HasCredential)
}

func TestRefreshCredential(t *testing.T) {
	selector := &fakeSelector{hasKey: false}
	shell := NewShell(&fakeGenerator{}, selector)

	state, err := shell.RefreshCredential(context.Background())
	require.NoError(t, err)
	assert.False(t, state.HasCredential)
}

func TestDismissPromo(t *testing.T) {
	changes := 0
	shell := newTestShell(&fakeGenerator{}, WithOnChange(func(ctx context.Context, state ShellState) { changes++ }))
	assert.True(t, shell.Snapshot().ShowPromo)

	state := shell.DismissPromo(context.Background())
	assert.False(t, state.ShowPromo)
	shell.DismissPromo(context.Background())
	assert.Equal(t, 1, changes)
}

func TestRestoredShellIsNotLoading(t *testing.T) {
	shell := newTestShell(&fakeGenerator{}, WithState(ShellState{Loading: true}))
	assert.False(t, shell.Loading())
}

func TestSnapshotIsACopy(t *testing.T) {
	shell := newTestShell(&fakeGenerator{payloads: []string{"QQ=="}})
	_, err := shell.Submit(context.Background(), "p", 1)
	require.NoError(t, err)

	snapshot := shell.Snapshot()
	snapshot.Images[0].EncodedData = "changed"
	assert.Equal(t, "QQ==", shell.Snapshot().Images[0].EncodedData)
}

func TestDownload(t *testing.T) {
	payloads := []string{
		base64.StdEncoding.EncodeToString([]byte("first")),
		base64.StdEncoding.EncodeToString([]byte("second")),
		base64.StdEncoding.EncodeToString([]byte("third")),
	}
	shell := newTestShell(&fakeGenerator{payloads: payloads})
	_, err := shell.Submit(context.Background(), "p", 3)
	require.NoError(t, err)

	name, data, err := shell.Download(1, fixedNow)
	require.NoError(t, err)
	assert.Equal(t, "ai-image-2024-05-06T07-08-09-123Z-02.jpg", name)
	assert.Equal(t, []byte("second"), data)

	_, _, err = shell.Download(3, fixedNow)
	assert.ErrorIs(t, err, ErrImageNotFound)
	_, _, err = shell.Download(-1, fixedNow)
	assert.ErrorIs(t, err, ErrImageNotFound)
}

type panickingGenerator struct {
	calls int
}

func (g *panickingGenerator) GenerateImages(ctx context.Context, prompt string, count int) ([]string, error) {
	g.calls++
	if g.calls == 1 {
		panic("generator exploded")
	}
	return []string{base64.StdEncoding.EncodeToString([]byte("ok"))}, nil
}

func TestSubmitClearsLoadingWhenGeneratorPanics(t *testing.T) {
	gen := &panickingGenerator{}
	var saved []ShellState
	shell := NewShell(gen, &fakeSelector{hasKey: true}, WithOnChange(func(ctx context.Context, state ShellState) {
		saved = append(saved, state)
	}))

	assert.PanicsWithValue(t, "generator exploded", func() {
		_, _ = shell.Submit(context.Background(), "p", 1)
	})
	assert.False(t, shell.Loading())
	snapshot := shell.Snapshot()
	assert.Equal(t, UnexpectedMessage, snapshot.Error)
	assert.Equal(t, "unknown_error", snapshot.ErrorKind)
	require.NotEmpty(t, saved)
	assert.False(t, saved[len(saved)-1].Loading)

	state, err := shell.Submit(context.Background(), "p", 1)
	require.NoError(t, err)
	assert.False(t, state.Loading)
	assert.Len(t, state.Images, 1)
}
