package game

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"math/big"
	"strconv"

	"arebasic/internal/domain"
)

var ErrNoPrompts = errors.New("prompt bank is empty")

// DefaultPrompts is the built-in question bank
var DefaultPrompts = []string{
	"What's your favorite book?",
	"What's your favorite movie?",
	"What's a hobby you enjoy?",
	"What's your favorite food?",
	"Where would you like to travel?",
	"What's your dream job?",
	"What's something you're proud of?",
	"What's a skill you'd like to learn?",
	"What's your favorite season and why?",
	"What's your favorite way to relax?",
	"What's something that everyone thinks is overrated?",
	"What's your unpopular opinion?",
	"What would you do with a million dollars?",
	"If you could have any superpower, what would it be?",
	"What's the most basic thing about modern culture?",
}

// PromptBank hands out a random question per round
type PromptBank struct {
	prompts []domain.Prompt
}

// NewPromptBank builds a bank; ids are stable hashes of the question index
func NewPromptBank(texts []string) *PromptBank {
	prompts := make([]domain.Prompt, 0, len(texts))
	for i, text := range texts {
		sum := sha256.Sum256([]byte("question" + strconv.Itoa(i)))
		prompts = append(prompts, domain.Prompt{
			ID:   hex.EncodeToString(sum[:8]),
			Text: text,
		})
	}
	return &PromptBank{prompts: prompts}
}

// Len returns the number of prompts in the bank
func (b *PromptBank) Len() int {
	return len(b.prompts)
}

// Next picks a prompt (crypto/rand, same as the other games)
func (b *PromptBank) Next(ctx context.Context) (domain.Prompt, error) {
	if err := ctx.Err(); err != nil {
		return domain.Prompt{}, err
	}
	if len(b.prompts) == 0 {
		return domain.Prompt{}, ErrNoPrompts
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(b.prompts))))
	if err != nil {
		n = big.NewInt(0)
	}
	return b.prompts[n.Int64()], nil
}
