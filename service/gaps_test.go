package service

import (
	"context"
	"reflect"
	"testing"

	"github.com/google/uuid"

	"interview-transcriber/constant"
	"interview-transcriber/entities"
)

func TestFindGaps(t *testing.T) {
	tests := []struct {
		name    string
		indices []int
		want    []int
	}{
		{name: "hole in the middle", indices: []int{0, 1, 3, 4}, want: []int{2}},
		{name: "contiguous", indices: []int{0, 1, 2, 3}, want: []int{}},
		{name: "no chunks", indices: nil, want: []int{}},
		{name: "multiple holes", indices: []int{1, 4, 7}, want: []int{2, 3, 5, 6}},
		{name: "single chunk", indices: []int{5}, want: []int{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMemRepo()
			for _, idx := range tt.indices {
				err := repo.UpsertChunk(context.Background(), &entities.Chunk{
					ID:                  uuid.New(),
					SessionID:           "session-1",
					SequenceIndex:       idx,
					UploadStatus:        constant.UploadStatusUploaded,
					TranscriptionStatus: constant.TranscriptionStatusPending,
				})
				if err != nil {
					t.Fatalf("seed chunk %d: %v", idx, err)
				}
			}

			got, err := NewGapDetector(repo).FindGaps(context.Background(), "session-1")
			if err != nil {
				t.Fatalf("FindGaps: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("FindGaps = %v, want %v", got, tt.want)
			}
		})
	}
}
