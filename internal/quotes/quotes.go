// Package quotes serves the static writing quotes shown on the landing page.
package quotes

import "math/rand/v2"

// Quote is an immutable text/author pair.
type Quote struct {
	Text   string `json:"text"`
	Author string `json:"author"`
}

var writingQuotes = []Quote{
	{Text: "Thoughts are but ephemeral sculptures, carved in the marble of momentary perception.", Author: "Anonymous"},
	{Text: "Fill your paper with the breathings of your heart.", Author: "William Wordsworth"},
	{Text: "There is nothing to writing. All you do is sit down at a typewriter and bleed.", Author: "Ernest Hemingway"},
	{Text: "We write to taste life twice, in the moment and in retrospect.", Author: "Anaïs Nin"},
	{Text: "A word after a word after a word is power.", Author: "Margaret Atwood"},
	{Text: "The scariest moment is always just before you start.", Author: "Stephen King"},
	{Text: "Write what should not be forgotten.", Author: "Isabel Allende"},
}

// Random draws one quote at random.
func Random() Quote {
	return writingQuotes[rand.IntN(len(writingQuotes))]
}

// All returns a copy of the full quote set.
func All() []Quote {
	out := make([]Quote, len(writingQuotes))
	copy(out, writingQuotes)
	return out
}
