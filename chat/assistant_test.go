package chat

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartlibrary/library"
)

type fakeGenerator struct {
	response string
	err      error
	prompt   string
}

func (f *fakeGenerator) GenerateText(_ context.Context, prompt string) (string, error) {
	f.prompt = prompt
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func books() []library.Book {
	return []library.Book{
		{Title: "1984", Author: "George Orwell", Genre: "Fiction"},
		{Title: "Dune", Author: "Frank Herbert", Genre: "Sci-Fi"},
	}
}

func TestGreetingSeedsTranscript(t *testing.T) {
	a := NewAssistant(&fakeGenerator{}, books())
	msgs := a.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, SenderBot, msgs[0].Sender)
	assert.Contains(t, msgs[0].Content, "library assistant")
}

func TestBookQuestionUsesSummaryPrompt(t *testing.T) {
	gen := &fakeGenerator{response: "A dystopian classic about surveillance."}
	a := NewAssistant(gen, books())

	reply, err := a.Ask(context.Background(), "1984")
	require.NoError(t, err)
	assert.Equal(t, gen.response, reply)

	assert.Contains(t, gen.prompt, "detailed summary")
	assert.Contains(t, gen.prompt, `"1984"`)
	assert.Contains(t, gen.prompt, "George Orwell")
	assert.Contains(t, gen.prompt, "Fiction genre")
}

func TestAuthorQuestionMatchesBook(t *testing.T) {
	gen := &fakeGenerator{response: "ok"}
	a := NewAssistant(gen, books())

	_, err := a.Ask(context.Background(), "herbert")
	require.NoError(t, err)
	assert.Contains(t, gen.prompt, `"Dune"`)
}

func TestGeneralQuestionListsCollection(t *testing.T) {
	gen := &fakeGenerator{response: "Try some science fiction!"}
	a := NewAssistant(gen, books())

	_, err := a.Ask(context.Background(), "what should I read next winter?")
	require.NoError(t, err)

	assert.Contains(t, gen.prompt, "helpful library assistant")
	assert.Contains(t, gen.prompt, `"1984" by George Orwell`)
	assert.Contains(t, gen.prompt, `"Dune" by Frank Herbert`)
}

func TestApologyOnCollaboratorFailure(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("timeout")}
	a := NewAssistant(gen, books())

	reply, err := a.Ask(context.Background(), "what should I read?")
	require.Error(t, err)
	assert.Contains(t, reply, "I apologize")

	// Both the user message and the apology land in the transcript.
	msgs := a.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, SenderUser, msgs[1].Sender)
	assert.Equal(t, SenderBot, msgs[2].Sender)
	assert.Equal(t, reply, msgs[2].Content)
}

func TestEmptyMessageRejected(t *testing.T) {
	a := NewAssistant(&fakeGenerator{}, books())
	_, err := a.Ask(context.Background(), "   ")
	assert.Error(t, err)
	assert.Len(t, a.Messages(), 1, "rejected input must not grow the transcript")
}
