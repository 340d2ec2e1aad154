package service

import (
	"context"

	"github.com/pixel-tales-export-api/internal/models"
	"github.com/pixel-tales-export-api/internal/repository"
	"github.com/rs/zerolog"
)

const maxListLimit = 500

type storyService struct {
	stories repository.StoryRepository
	log     zerolog.Logger
}

func newStoryService(stories repository.StoryRepository, log zerolog.Logger) *storyService {
	return &storyService{
		stories: stories,
		log:     log.With().Str("service", "story").Logger(),
	}
}

// ListStories returns summaries in library order
func (s *storyService) ListStories(ctx context.Context, limit, offset int) ([]models.StorySummary, error) {
	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return s.stories.List(ctx, limit, offset)
}

// GetStory returns one story with its pages or ErrStoryNotFound
func (s *storyService) GetStory(ctx context.Context, id string) (*models.Story, error) {
	story, err := s.stories.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if story == nil {
		return nil, ErrStoryNotFound
	}
	return story, nil
}

func (s *storyService) CountStories(ctx context.Context) (int, error) {
	return s.stories.Count(ctx)
}
