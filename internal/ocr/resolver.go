// Package ocr resolves captcha images to text. Resolvers never report an
// error for merely unreadable input; that yields an empty string. Errors
// are reserved for resolver failures such as a missing file or an
// unreachable backend.
package ocr

import "context"

// Resolver turns a locally materialized image into answer text.
type Resolver interface {
	Resolve(ctx context.Context, imagePath string) (string, error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(ctx context.Context, imagePath string) (string, error)

func (f ResolverFunc) Resolve(ctx context.Context, imagePath string) (string, error) {
	return f(ctx, imagePath)
}
