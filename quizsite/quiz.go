package quizsite

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
)

// Question is one multiple choice question. Answer is one of Options.
type Question struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
	Answer   string   `json:"answer"`
}

// Validate checks that the question has options and a valid answer.
func (q Question) Validate() error {
	if q.Question == "" {
		return errors.New("empty question")
	}
	if len(q.Options) < 2 {
		return fmt.Errorf("question %q has fewer than two options", q.Question)
	}
	for _, o := range q.Options {
		if o == q.Answer {
			return nil
		}
	}
	return fmt.Errorf("answer %q of question %q is not one of its options", q.Answer, q.Question)
}

// Bank is an ordered question bank.
type Bank []Question

// LoadBank decodes and validates a JSON array of questions.
func LoadBank(r io.Reader) (Bank, error) {
	var b Bank
	if err := json.NewDecoder(r).Decode(&b); err != nil {
		return nil, fmt.Errorf("decoding question bank: %w", err)
	}
	if len(b) == 0 {
		return nil, errors.New("question bank is empty")
	}
	seen := make(map[string]struct{}, len(b))
	for _, q := range b {
		if err := q.Validate(); err != nil {
			return nil, err
		}
		if _, ok := seen[q.Question]; ok {
			return nil, fmt.Errorf("duplicate question %q", q.Question)
		}
		seen[q.Question] = struct{}{}
	}
	return b, nil
}

// Shuffle returns a copy of b in random order (Fisher-Yates). b is left
// untouched.
func (b Bank) Shuffle(rng *rand.Rand) Bank {
	out := make(Bank, len(b))
	copy(out, b)
	for i := len(out) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// Take returns the first n questions, or all of them when n is not
// positive or exceeds the bank size.
func (b Bank) Take(n int) Bank {
	if n <= 0 || n >= len(b) {
		return b
	}
	return b[:n]
}

// Answer is a submitted answer, keyed by question text.
type Answer struct {
	Question string `json:"question"`
	Selected string `json:"selected"`
}

// Result is the score of an answer sheet.
type Result struct {
	Correct  int     `json:"correct"`
	Answered int     `json:"answered"`
	Total    int     `json:"total"`
	Percent  float64 `json:"percent"`
}

// Score grades answers against b. Unknown questions are ignored and a
// question answered twice counts once, with its first answer. total is the
// number of questions the quiz was taken with; it defaults to the number of
// answered questions.
func (b Bank) Score(answers []Answer, total int) Result {
	byText := make(map[string]string, len(b))
	for _, q := range b {
		byText[q.Question] = q.Answer
	}
	var res Result
	seen := make(map[string]struct{}, len(answers))
	for _, a := range answers {
		want, ok := byText[a.Question]
		if !ok {
			continue
		}
		if _, dup := seen[a.Question]; dup {
			continue
		}
		seen[a.Question] = struct{}{}
		res.Answered++
		if a.Selected == want {
			res.Correct++
		}
	}
	res.Total = total
	if res.Total < res.Answered {
		res.Total = res.Answered
	}
	if res.Total > 0 {
		res.Percent = math.Round(float64(res.Correct)/float64(res.Total)*1000) / 10
	}
	return res
}
