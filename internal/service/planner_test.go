package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"social_autoposter/internal/config"
	"social_autoposter/internal/domain"
	"social_autoposter/internal/service/mocks"
)

type fixedSlot struct{ at time.Time }

func (f fixedSlot) NextOptimalTime(domain.Platform, time.Time) time.Time { return f.at }

type PlannerServiceTestSuite struct {
	suite.Suite
	ctrl *gomock.Controller

	posts     *mocks.MockPostStore
	generator *mocks.MockGenerator

	service *PlannerService
	slot    time.Time
}

func (s *PlannerServiceTestSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())

	s.posts = mocks.NewMockPostStore(s.ctrl)
	s.generator = mocks.NewMockGenerator(s.ctrl)
	s.slot = time.Date(2024, 5, 1, 17, 23, 0, 0, time.UTC)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	s.service = NewPlannerService(
		s.posts,
		s.generator,
		fixedSlot{at: s.slot},
		nil,
		logger,
		config.BatchConfig{PerCombination: 2, Concurrency: 2},
	)
}

func (s *PlannerServiceTestSuite) TearDownTest() {
	s.ctrl.Finish()
}

func TestPlannerServiceTestSuite(t *testing.T) {
	suite.Run(t, new(PlannerServiceTestSuite))
}

func (s *PlannerServiceTestSuite) TestRun_StoresEveryGeneratedPiece() {
	ctx := context.Background()

	s.generator.EXPECT().Generate(ctx, gomock.Any(), "technology").Return(&domain.Content{Text: "hello"}, nil).Times(4)
	s.posts.EXPECT().Create(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, post *domain.PostRecord) error {
			s.Equal(domain.StatusScheduled, post.Status)
			s.Equal(s.slot, *post.ScheduledTime)
			s.Equal("technology", post.Theme)
			return nil
		},
	).Times(4)

	stats, err := s.service.Run(ctx, []domain.Platform{domain.Twitter, domain.LinkedIn}, []string{"technology"})

	s.NoError(err)
	s.Equal(4, stats.Requested)
	s.Equal(4, stats.Generated)
	s.Equal(4, stats.Stored)
	s.Equal(0, stats.Failed)
}

func (s *PlannerServiceTestSuite) TestRun_FailedGenerationsAreExcluded() {
	ctx := context.Background()

	s.generator.EXPECT().Generate(ctx, gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, p domain.Platform, _ string) (*domain.Content, error) {
			switch p {
			case domain.Facebook:
				return nil, errors.New("timeout")
			case domain.Instagram:
				panic("bad response")
			default:
				return &domain.Content{Text: "hello"}, nil
			}
		},
	).Times(6)
	s.posts.EXPECT().Create(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, post *domain.PostRecord) error {
			s.Equal(domain.Twitter, post.Platform)
			return nil
		},
	).Times(2)

	stats, err := s.service.Run(ctx, []domain.Platform{domain.Twitter, domain.Facebook, domain.Instagram}, []string{"business"})

	s.NoError(err)
	s.Equal(6, stats.Requested)
	s.Equal(2, stats.Generated)
	s.Equal(2, stats.Stored)
	s.Equal(4, stats.Failed)
}

func (s *PlannerServiceTestSuite) TestRun_StoreErrorCountsAsFailed() {
	ctx := context.Background()

	s.generator.EXPECT().Generate(ctx, domain.Twitter, "lifestyle").Return(&domain.Content{Text: "hello"}, nil).Times(2)
	gomock.InOrder(
		s.posts.EXPECT().Create(ctx, gomock.Any()).Return(nil),
		s.posts.EXPECT().Create(ctx, gomock.Any()).Return(errors.New("disk full")),
	)

	stats, err := s.service.Run(ctx, []domain.Platform{domain.Twitter}, []string{"lifestyle"})

	s.NoError(err)
	s.Equal(2, stats.Generated)
	s.Equal(1, stats.Stored)
	s.Equal(1, stats.Failed)
}

func (s *PlannerServiceTestSuite) TestRun_CancelledContext() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.service.Run(ctx, []domain.Platform{domain.Twitter}, []string{"technology"})

	s.ErrorIs(err, context.Canceled)
}
