package llm

import (
	"context"
	"errors"
	"log"
)

// FallbackClient retries once on the fallback model when the primary model is
// overloaded. Other errors pass through untouched.
type FallbackClient struct {
	next          Client
	fallbackModel string
}

func NewFallbackClient(next Client, fallbackModel string) *FallbackClient {
	return &FallbackClient{next: next, fallbackModel: fallbackModel}
}

func (f *FallbackClient) Generate(ctx context.Context, p Prompt) (string, error) {
	out, err := f.next.Generate(ctx, p)
	if err == nil || !errors.Is(err, ErrUnavailable) || p.Model == f.fallbackModel {
		return out, err
	}
	log.Printf("[LLM] Primary model overloaded (%v), trying fallback %s", err, f.fallbackModel)
	p.Model = f.fallbackModel
	out, fbErr := f.next.Generate(ctx, p)
	if fbErr != nil {
		log.Printf("[LLM] Fallback also failed: %v", fbErr)
		return "", fbErr
	}
	return out, nil
}
