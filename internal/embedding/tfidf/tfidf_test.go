package tfidf

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{name: "lowercases and drops stop words", in: "The Vacation Policy is strict", want: []string{"vacation", "policy", "strict"}},
		{name: "drops single characters", in: "a b cd e", want: []string{"cd"}},
		{name: "keeps digits and underscores", in: "form_w2 2024 x", want: []string{"form_w2", "2024"}},
		{name: "splits on punctuation", in: "pay-rate, overtime.", want: []string{"pay", "rate", "overtime"}},
		{name: "unicode letters", in: "Überstunden café", want: []string{"überstunden", "café"}},
		{name: "empty", in: "   ", want: nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Tokenize(tc.in))
		})
	}
}

func TestIsStopWord(t *testing.T) {
	assert.True(t, IsStopWord("the"))
	assert.True(t, IsStopWord("yourselves"))
	assert.False(t, IsStopWord("vacation"))
	assert.False(t, IsStopWord("The"))
}

func TestFit_Errors(t *testing.T) {
	_, err := Fit(nil)
	assert.ErrorIs(t, err, ErrEmptyCorpus)

	_, err = Fit([]string{"the and of", "   "})
	assert.ErrorIs(t, err, ErrNoTerms)
}

func TestFit_VocabularyAndIDF(t *testing.T) {
	m, err := Fit([]string{"apple banana", "apple cherry", "apple"})
	require.NoError(t, err)

	assert.Equal(t, []string{"apple", "banana", "cherry"}, m.Terms())
	assert.Equal(t, 3, m.Dimension())

	// n=3: apple df=3, banana df=1, cherry df=1.
	assert.InDelta(t, 1.0, m.IDF()[0], 1e-12)
	assert.InDelta(t, math.Log(4.0/2.0)+1, m.IDF()[1], 1e-12)
	assert.InDelta(t, math.Log(4.0/2.0)+1, m.IDF()[2], 1e-12)
}

func TestTransform_WeightsAndNormalization(t *testing.T) {
	m, err := Fit([]string{"apple banana", "apple cherry", "apple"})
	require.NoError(t, err)

	v := m.Transform("apple apple banana")

	require.Equal(t, []int32{0, 1}, v.Indices)
	wApple := 2 * 1.0
	wBanana := 1 * (math.Log(2) + 1)
	norm := math.Sqrt(wApple*wApple + wBanana*wBanana)
	assert.InDelta(t, wApple/norm, v.Values[0], 1e-12)
	assert.InDelta(t, wBanana/norm, v.Values[1], 1e-12)
	assert.InDelta(t, 1.0, v.Norm(), 1e-12)
}

func TestTransform_OutOfVocabularyIgnored(t *testing.T) {
	m, err := Fit([]string{"apple banana"})
	require.NoError(t, err)

	assert.True(t, m.Transform("durian elderberry").IsZero())
	assert.True(t, m.Transform("").IsZero())
	assert.Equal(t, m.Transform("banana"), m.Transform("banana durian"))
}

func TestFit_Deterministic(t *testing.T) {
	corpus := []string{
		"vacation policy requires two weeks notice",
		"overtime pay is calculated at one point five times hourly rate",
		"notice periods apply to resignation and vacation",
	}
	a, err := Fit(corpus)
	require.NoError(t, err)
	b, err := Fit(corpus)
	require.NoError(t, err)

	assert.Equal(t, a.Terms(), b.Terms())
	assert.Equal(t, a.IDF(), b.IDF())
	for _, text := range corpus {
		assert.Equal(t, a.Transform(text), b.Transform(text))
	}
}

func TestNewModel_RoundTripsFittedModel(t *testing.T) {
	fitted, err := Fit([]string{"apple banana", "cherry"})
	require.NoError(t, err)

	restored, err := NewModel(fitted.Terms(), fitted.IDF())
	require.NoError(t, err)

	assert.Equal(t, fitted.Transform("banana cherry"), restored.Transform("banana cherry"))
}

func TestNewModel_Validation(t *testing.T) {
	_, err := NewModel([]string{"a1"}, nil)
	assert.Error(t, err)

	_, err = NewModel(nil, nil)
	assert.ErrorIs(t, err, ErrNoTerms)

	_, err = NewModel([]string{"zz", "aa"}, []float64{1, 1})
	assert.Error(t, err)

	_, err = NewModel([]string{"aa", "bb"}, []float64{1, math.NaN()})
	assert.Error(t, err)
}

func TestWordSpans_AgreeWithTokenize(t *testing.T) {
	text := "The Vacation-policy: 2 weeks' notice, Überstunden 40h."

	var words []string
	for _, sp := range WordSpans(text) {
		w := strings.ToLower(text[sp[0]:sp[1]])
		if !IsStopWord(w) {
			words = append(words, w)
		}
	}

	assert.Equal(t, Tokenize(text), words)
}
