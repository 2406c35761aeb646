package service

import (
	"context"

	"interview-transcriber/repository"
)

type GapDetector interface {
	FindGaps(ctx context.Context, sessionID string) ([]int, error)
}

type gapDetector struct {
	repo repository.Repository
}

func NewGapDetector(repo repository.Repository) GapDetector {
	return &gapDetector{repo: repo}
}

// FindGaps returns the missing sequence indices between the lowest and
// highest index seen so far, ascending. A session with no chunks has no
// gaps.
func (g *gapDetector) FindGaps(ctx context.Context, sessionID string) ([]int, error) {
	indices, err := g.repo.ListChunkIndices(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if len(indices) == 0 {
		return []int{}, nil
	}

	existing := make(map[int]struct{}, len(indices))
	for _, idx := range indices {
		existing[idx] = struct{}{}
	}

	// ListChunkIndices orders ascending, so min and max are the ends.
	missing := []int{}
	for i := indices[0]; i <= indices[len(indices)-1]; i++ {
		if _, ok := existing[i]; !ok {
			missing = append(missing, i)
		}
	}
	return missing, nil
}
