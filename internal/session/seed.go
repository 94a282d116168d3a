package session

import (
	"context"
	"fmt"

	"github.com/akhil-rao/ap2-aani-demo/internal/mandate"
)

// Seed issues each request in order through CreateMandate, so seeded
// mandates carry the same audit trail as ones a user creates.
func Seed(ctx context.Context, s *Session, reqs []mandate.NewRequest) error {
	for i, req := range reqs {
		if _, err := s.CreateMandate(ctx, req); err != nil {
			return fmt.Errorf("seed[%d]: %w", i, err)
		}
	}
	return nil
}
