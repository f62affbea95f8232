package translator

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/MimeLyc/batch-sub-translator/internal/llm"
)

type mockCompleter struct {
	mock.Mock
}

func (m *mockCompleter) Complete(ctx context.Context, req llm.CompletionRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func TestLLMGatewayTranslate(t *testing.T) {
	completer := &mockCompleter{}
	completer.On("Complete", mock.Anything, mock.MatchedBy(func(req llm.CompletionRequest) bool {
		return req.System == "Translate to French." &&
			req.Model == "m1" &&
			req.JSON &&
			req.User != ""
	})).Return(`{"translations": ["Bonjour", "Au revoir"]}`, nil).Once()

	gw := NewLLMGateway(completer)
	results, err := gw.Translate(context.Background(), Request{
		Texts:          []string{"Hello", "Goodbye"},
		TargetLanguage: "French",
		Prompt:         "Translate to {language}.",
		Model:          "m1",
	})
	require.NoError(t, err)
	assert.Equal(t, []Result{{Text: "Bonjour"}, {Text: "Au revoir"}}, results)
	completer.AssertExpectations(t)
}

func TestLLMGatewayUserMessageCarriesContext(t *testing.T) {
	var seen llm.CompletionRequest
	completer := &mockCompleter{}
	completer.On("Complete", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { seen = args.Get(1).(llm.CompletionRequest) }).
		Return(`["x"]`, nil)

	_, err := NewLLMGateway(completer).Translate(context.Background(), Request{
		Texts:          []string{"line\nbreak"},
		TargetLanguage: "Japanese",
		Context:        "Context from previous subtitles:\nOriginal: a\nTranslation: b\n\nNow translate the following subtitles:",
	})
	require.NoError(t, err)
	assert.Contains(t, seen.User, "Original: a\nTranslation: b")
	assert.Contains(t, seen.User, "to Japanese")
	assert.Contains(t, seen.User, `["line\nbreak"]`)
	assert.Equal(t, RenderPrompt("", "Japanese"), seen.System)
}

func TestLLMGatewayClassifiesErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "429", err: &llm.StatusError{StatusCode: http.StatusTooManyRequests}, want: ErrRateLimited},
		{name: "401", err: &llm.StatusError{StatusCode: http.StatusUnauthorized}, want: ErrFatal},
		{name: "403", err: &llm.StatusError{StatusCode: http.StatusForbidden}, want: ErrFatal},
		{name: "cancel", err: context.Canceled, want: context.Canceled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			completer := &mockCompleter{}
			completer.On("Complete", mock.Anything, mock.Anything).Return("", tt.err)

			_, err := NewLLMGateway(completer).Translate(context.Background(), Request{Texts: []string{"a"}})
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	completer := &mockCompleter{}
	completer.On("Complete", mock.Anything, mock.Anything).Return("", errors.New("boom"))
	_, err := NewLLMGateway(completer).Translate(context.Background(), Request{Texts: []string{"a"}})
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrFatal))
	assert.False(t, errors.Is(err, ErrRateLimited))
}

func TestLLMGatewayEmptyInput(t *testing.T) {
	completer := &mockCompleter{}
	results, err := NewLLMGateway(completer).Translate(context.Background(), Request{})
	require.NoError(t, err)
	assert.Empty(t, results)
	completer.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
}

func TestRenderPrompt(t *testing.T) {
	assert.Equal(t, "Into German please", RenderPrompt("Into {language} please", "German"))
	assert.Contains(t, RenderPrompt("  ", "German"), "subtitle to German.")
}
