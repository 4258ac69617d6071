package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"social_autoposter/internal/domain"
	"social_autoposter/internal/service/mocks"
)

type DispatchServiceTestSuite struct {
	suite.Suite
	ctrl *gomock.Controller

	posts     *mocks.MockPostStore
	generator *mocks.MockGenerator
	publisher *mocks.MockPublisher
	limiter   *mocks.MockRateLimiter
	events    *mocks.MockEventPublisher

	service *DispatchService
	now     time.Time
	logger  *slog.Logger
}

func (s *DispatchServiceTestSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())

	s.posts = mocks.NewMockPostStore(s.ctrl)
	s.generator = mocks.NewMockGenerator(s.ctrl)
	s.publisher = mocks.NewMockPublisher(s.ctrl)
	s.limiter = mocks.NewMockRateLimiter(s.ctrl)
	s.events = mocks.NewMockEventPublisher(s.ctrl)

	s.now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s.logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	s.publisher.EXPECT().Platform().Return(domain.Twitter).AnyTimes()

	s.service = NewDispatchService(
		s.posts,
		s.generator,
		[]Publisher{s.publisher},
		s.limiter,
		s.events,
		nil,
		s.logger,
	)
	s.service.now = func() time.Time { return s.now }
	s.service.pick = func(int) int { return 1 }
}

func (s *DispatchServiceTestSuite) TearDownTest() {
	s.ctrl.Finish()
}

func TestDispatchServiceTestSuite(t *testing.T) {
	suite.Run(t, new(DispatchServiceTestSuite))
}

// expectCreate assigns id to the created record and hands it back through got.
func (s *DispatchServiceTestSuite) expectCreate(ctx context.Context, id int64, got **domain.PostRecord) {
	s.posts.EXPECT().Create(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, post *domain.PostRecord) error {
			s.Equal(domain.StatusScheduled, post.Status)
			s.Equal(s.now, *post.ScheduledTime)
			post.ID = id
			*got = post
			return nil
		},
	)
}

func (s *DispatchServiceTestSuite) expectPosted(id int64, platformPostID string) {
	s.limiter.EXPECT().RecordPost(gomock.Any(), domain.Twitter, s.now).Return(nil)
	s.posts.EXPECT().MarkPosted(gomock.Any(), id, platformPostID, s.now).Return(nil)
	s.events.EXPECT().Publish(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, post *domain.PostRecord) error {
			s.Equal(domain.StatusPosted, post.Status)
			return nil
		},
	)
}

func (s *DispatchServiceTestSuite) TestRun_SkipsWhenRateLimited() {
	ctx := context.Background()

	s.limiter.EXPECT().ShouldPost(ctx, domain.Twitter).Return(false, nil)

	res := s.service.Run(ctx, domain.Twitter, "technology")

	s.Equal(domain.OutcomeSkipped, res.Outcome)
	s.NoError(res.Err)
}

func (s *DispatchServiceTestSuite) TestRun_RateLimitErrorIsReported() {
	ctx := context.Background()

	s.limiter.EXPECT().ShouldPost(ctx, domain.Twitter).Return(false, errors.New("redis down"))

	res := s.service.Run(ctx, domain.Twitter, "technology")

	s.Equal(domain.OutcomeError, res.Outcome)
	s.ErrorContains(res.Err, "redis down")
}

func (s *DispatchServiceTestSuite) TestRun_UnknownPlatform() {
	ctx := context.Background()

	res := s.service.Run(ctx, domain.Facebook, "technology")

	s.Equal(domain.OutcomeError, res.Outcome)
	s.ErrorIs(res.Err, ErrPlatformUnavailable)
}

func (s *DispatchServiceTestSuite) TestRun_ReusesDueScheduledPost() {
	ctx := context.Background()
	scheduledAt := s.now.Add(-time.Hour)
	due := &domain.PostRecord{
		ID:            5,
		Content:       "Pre-planned post",
		Platform:      domain.Twitter,
		Theme:         "business",
		Hashtags:      []string{"business"},
		Status:        domain.StatusScheduled,
		ScheduledTime: &scheduledAt,
	}

	s.limiter.EXPECT().ShouldPost(ctx, domain.Twitter).Return(true, nil)
	s.posts.EXPECT().NextDue(ctx, domain.Twitter, s.now).Return(due, nil)
	s.publisher.EXPECT().Publish(ctx, "Pre-planned post", []string{"business"}, nil).Return("tw_5", nil)
	s.expectPosted(5, "tw_5")

	res := s.service.Run(ctx, domain.Twitter, "technology")

	s.Equal(domain.OutcomePosted, res.Outcome)
	s.True(res.Reused)
	s.Equal(int64(5), res.PostID)
	s.Equal("tw_5", *due.PlatformPostID)
	s.NoError(due.CheckInvariants())
}

func (s *DispatchServiceTestSuite) TestRun_GeneratesWhenNothingDue() {
	ctx := context.Background()
	content := &domain.Content{
		Text:             "Ship small, ship often.",
		Hashtags:         []string{"devops"},
		MediaSuggestions: []string{"pipeline screenshot"},
	}
	var created *domain.PostRecord

	s.limiter.EXPECT().ShouldPost(ctx, domain.Twitter).Return(true, nil)
	s.posts.EXPECT().NextDue(ctx, domain.Twitter, s.now).Return(nil, nil)
	s.generator.EXPECT().Generate(ctx, domain.Twitter, "technology").Return(content, nil)
	s.expectCreate(ctx, 9, &created)
	s.publisher.EXPECT().Publish(ctx, content.Text, content.Hashtags, content.MediaSuggestions).Return("tw_9", nil)
	s.expectPosted(9, "tw_9")

	res := s.service.Run(ctx, domain.Twitter, "technology")

	s.Equal(domain.OutcomePosted, res.Outcome)
	s.False(res.Reused)
	s.False(res.Fallback)
	s.Equal(int64(9), res.PostID)
	s.Equal(domain.StatusPosted, created.Status)
}

func (s *DispatchServiceTestSuite) TestRun_FallbackIsDeterministic() {
	ctx := context.Background()
	var created *domain.PostRecord

	s.limiter.EXPECT().ShouldPost(ctx, domain.Twitter).Return(true, nil)
	s.posts.EXPECT().NextDue(ctx, domain.Twitter, s.now).Return(nil, nil)
	s.generator.EXPECT().Generate(ctx, domain.Twitter, "motivation").Return(nil, errors.New("quota exceeded"))
	s.expectCreate(ctx, 3, &created)
	s.publisher.EXPECT().Publish(ctx, fallbackContent["motivation"][1], gomock.Any(), gomock.Any()).Return("tw_3", nil)
	s.expectPosted(3, "tw_3")

	res := s.service.Run(ctx, domain.Twitter, "motivation")

	s.Equal(domain.OutcomePosted, res.Outcome)
	s.True(res.Fallback)
	s.Equal("Success is not final, failure is not fatal. It's the courage to continue that counts.", created.Content)
	s.Equal([]string{"motivation", "inspiration", "success", "goals", "mindset"}, created.Hashtags)
}

func (s *DispatchServiceTestSuite) TestRun_GeneratorPanicFallsBack() {
	ctx := context.Background()
	var created *domain.PostRecord

	s.limiter.EXPECT().ShouldPost(ctx, domain.Twitter).Return(true, nil)
	s.posts.EXPECT().NextDue(ctx, domain.Twitter, s.now).Return(nil, nil)
	s.generator.EXPECT().Generate(ctx, domain.Twitter, "lifestyle").DoAndReturn(
		func(context.Context, domain.Platform, string) (*domain.Content, error) {
			panic("nil map")
		},
	)
	s.expectCreate(ctx, 4, &created)
	s.publisher.EXPECT().Publish(ctx, fallbackContent["lifestyle"][1], gomock.Any(), gomock.Any()).Return("tw_4", nil)
	s.expectPosted(4, "tw_4")

	res := s.service.Run(ctx, domain.Twitter, "lifestyle")

	s.Equal(domain.OutcomePosted, res.Outcome)
	s.True(res.Fallback)
}

func (s *DispatchServiceTestSuite) TestRun_EmptyGeneratedTextFallsBack() {
	ctx := context.Background()
	var created *domain.PostRecord

	s.limiter.EXPECT().ShouldPost(ctx, domain.Twitter).Return(true, nil)
	s.posts.EXPECT().NextDue(ctx, domain.Twitter, s.now).Return(nil, nil)
	s.generator.EXPECT().Generate(ctx, domain.Twitter, "business").Return(&domain.Content{Text: "   "}, nil)
	s.expectCreate(ctx, 6, &created)
	s.publisher.EXPECT().Publish(ctx, fallbackContent["business"][1], gomock.Any(), gomock.Any()).Return("tw_6", nil)
	s.expectPosted(6, "tw_6")

	res := s.service.Run(ctx, domain.Twitter, "business")

	s.True(res.Fallback)
}

func (s *DispatchServiceTestSuite) TestRun_PublishFailureMarksPostFailed() {
	ctx := context.Background()
	var created *domain.PostRecord

	s.limiter.EXPECT().ShouldPost(ctx, domain.Twitter).Return(true, nil)
	s.posts.EXPECT().NextDue(ctx, domain.Twitter, s.now).Return(nil, nil)
	s.generator.EXPECT().Generate(ctx, domain.Twitter, "technology").Return(&domain.Content{Text: "hello"}, nil)
	s.expectCreate(ctx, 11, &created)
	s.publisher.EXPECT().Publish(ctx, "hello", gomock.Any(), gomock.Any()).Return("", errors.New("duplicate content"))
	s.posts.EXPECT().MarkFailed(gomock.Any(), int64(11), "duplicate content").Return(nil)
	s.events.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil)

	res := s.service.Run(ctx, domain.Twitter, "technology")

	s.Equal(domain.OutcomeFailed, res.Outcome)
	s.ErrorContains(res.Err, "duplicate content")
	s.Equal(domain.StatusFailed, created.Status)
	s.Equal("duplicate content", *created.ErrorMessage)
	s.NoError(created.CheckInvariants())
}

func (s *DispatchServiceTestSuite) TestRun_EmptyPlatformPostIDIsAFailure() {
	ctx := context.Background()
	var created *domain.PostRecord

	s.limiter.EXPECT().ShouldPost(ctx, domain.Twitter).Return(true, nil)
	s.posts.EXPECT().NextDue(ctx, domain.Twitter, s.now).Return(nil, nil)
	s.generator.EXPECT().Generate(ctx, domain.Twitter, "technology").Return(&domain.Content{Text: "hello"}, nil)
	s.expectCreate(ctx, 12, &created)
	s.publisher.EXPECT().Publish(ctx, "hello", gomock.Any(), gomock.Any()).Return("", nil)
	s.posts.EXPECT().MarkFailed(gomock.Any(), int64(12), errEmptyPostID.Error()).Return(nil)
	s.events.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil)

	res := s.service.Run(ctx, domain.Twitter, "technology")

	s.Equal(domain.OutcomeFailed, res.Outcome)
}

func (s *DispatchServiceTestSuite) TestRun_EventFailureDoesNotFailDispatch() {
	ctx := context.Background()
	var created *domain.PostRecord

	s.limiter.EXPECT().ShouldPost(ctx, domain.Twitter).Return(true, nil)
	s.posts.EXPECT().NextDue(ctx, domain.Twitter, s.now).Return(nil, nil)
	s.generator.EXPECT().Generate(ctx, domain.Twitter, "technology").Return(&domain.Content{Text: "hello"}, nil)
	s.expectCreate(ctx, 13, &created)
	s.publisher.EXPECT().Publish(ctx, "hello", gomock.Any(), gomock.Any()).Return("tw_13", nil)
	s.limiter.EXPECT().RecordPost(gomock.Any(), domain.Twitter, s.now).Return(nil)
	s.posts.EXPECT().MarkPosted(gomock.Any(), int64(13), "tw_13", s.now).Return(nil)
	s.events.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(errors.New("channel closed"))

	res := s.service.Run(ctx, domain.Twitter, "technology")

	s.Equal(domain.OutcomePosted, res.Outcome)
}

func (s *DispatchServiceTestSuite) TestRun_StoreFailureIsError() {
	ctx := context.Background()

	s.limiter.EXPECT().ShouldPost(ctx, domain.Twitter).Return(true, nil)
	s.posts.EXPECT().NextDue(ctx, domain.Twitter, s.now).Return(nil, errors.New("connection refused"))

	res := s.service.Run(ctx, domain.Twitter, "technology")

	s.Equal(domain.OutcomeError, res.Outcome)
	s.ErrorContains(res.Err, "connection refused")
}

func (s *DispatchServiceTestSuite) TestRun_PanicIsRecovered() {
	ctx := context.Background()

	s.limiter.EXPECT().ShouldPost(ctx, domain.Twitter).DoAndReturn(
		func(context.Context, domain.Platform) (bool, error) {
			panic("limiter bug")
		},
	)

	var res *domain.DispatchResult
	s.NotPanics(func() {
		res = s.service.Run(ctx, domain.Twitter, "technology")
	})
	s.Equal(domain.OutcomeError, res.Outcome)
	s.ErrorContains(res.Err, "limiter bug")
}

func (s *DispatchServiceTestSuite) TestDispatchNow_RejectsEmptyContent() {
	_, err := s.service.DispatchNow(context.Background(), domain.Twitter, "  ", nil)
	s.ErrorIs(err, ErrEmptyContent)
}

func (s *DispatchServiceTestSuite) TestDispatchNow_BypassesLimiterButCountsTowardIt() {
	ctx := context.Background()
	var created *domain.PostRecord

	s.expectCreate(ctx, 21, &created)
	s.publisher.EXPECT().Publish(ctx, "Manual post", []string{"news"}, nil).Return("tw_21", nil)
	s.expectPosted(21, "tw_21")

	id, err := s.service.DispatchNow(ctx, domain.Twitter, "Manual post", []string{"news"})

	s.NoError(err)
	s.Equal("tw_21", id)
	s.Equal("manual", created.Theme)
}

func (s *DispatchServiceTestSuite) TestDispatchNow_PublishError() {
	ctx := context.Background()
	var created *domain.PostRecord

	s.expectCreate(ctx, 22, &created)
	s.publisher.EXPECT().Publish(ctx, "Manual post", gomock.Any(), gomock.Any()).Return("", errors.New("forbidden"))
	s.posts.EXPECT().MarkFailed(gomock.Any(), int64(22), "forbidden").Return(nil)
	s.events.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil)

	_, err := s.service.DispatchNow(ctx, domain.Twitter, "Manual post", nil)

	s.ErrorContains(err, "forbidden")
	s.Equal(domain.StatusFailed, created.Status)
}

func (s *DispatchServiceTestSuite) TestRun_RecordsOutcomeAfterCallerCancels() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var created *domain.PostRecord

	live := func(ctx context.Context) {
		s.NoError(ctx.Err(), "status write ran on a cancelled context")
	}

	s.limiter.EXPECT().ShouldPost(ctx, domain.Twitter).Return(true, nil)
	s.posts.EXPECT().NextDue(ctx, domain.Twitter, s.now).Return(nil, nil)
	s.generator.EXPECT().Generate(ctx, domain.Twitter, "technology").Return(&domain.Content{Text: "hello"}, nil)
	s.expectCreate(ctx, 41, &created)
	s.publisher.EXPECT().Publish(ctx, "hello", gomock.Any(), gomock.Any()).DoAndReturn(
		func(context.Context, string, []string, []string) (string, error) {
			// The platform accepted the post just as the scheduler stopped.
			cancel()
			return "tw_41", nil
		},
	)
	s.limiter.EXPECT().RecordPost(gomock.Any(), domain.Twitter, s.now).DoAndReturn(
		func(ctx context.Context, _ domain.Platform, _ time.Time) error {
			live(ctx)
			return nil
		},
	)
	s.posts.EXPECT().MarkPosted(gomock.Any(), int64(41), "tw_41", s.now).DoAndReturn(
		func(ctx context.Context, _ int64, _ string, _ time.Time) error {
			live(ctx)
			return nil
		},
	)
	s.events.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil)

	res := s.service.Run(ctx, domain.Twitter, "technology")

	s.Equal(domain.OutcomePosted, res.Outcome)
	s.NoError(res.Err)
	s.Equal(domain.StatusPosted, created.Status)
}

func (s *DispatchServiceTestSuite) TestRun_FailureRecordedAfterCallerCancels() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var created *domain.PostRecord

	s.limiter.EXPECT().ShouldPost(ctx, domain.Twitter).Return(true, nil)
	s.posts.EXPECT().NextDue(ctx, domain.Twitter, s.now).Return(nil, nil)
	s.generator.EXPECT().Generate(ctx, domain.Twitter, "technology").Return(&domain.Content{Text: "hello"}, nil)
	s.expectCreate(ctx, 42, &created)
	s.publisher.EXPECT().Publish(ctx, "hello", gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, _ string, _, _ []string) (string, error) {
			cancel()
			return "", ctx.Err()
		},
	)
	s.posts.EXPECT().MarkFailed(gomock.Any(), int64(42), context.Canceled.Error()).DoAndReturn(
		func(ctx context.Context, _ int64, _ string) error {
			s.NoError(ctx.Err())
			return nil
		},
	)
	s.events.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil)

	res := s.service.Run(ctx, domain.Twitter, "technology")

	s.Equal(domain.OutcomeFailed, res.Outcome)
	s.Equal(domain.StatusFailed, created.Status)
}

func (s *DispatchServiceTestSuite) TestDispatchNow_ScheduledRunWaitsForManualPublish() {
	ctx := context.Background()
	var created *domain.PostRecord
	var manualDone atomic.Bool

	publishing := make(chan struct{})
	release := make(chan struct{})

	s.expectCreate(ctx, 31, &created)
	s.publisher.EXPECT().Publish(ctx, "Manual post", gomock.Any(), gomock.Any()).DoAndReturn(
		func(context.Context, string, []string, []string) (string, error) {
			close(publishing)
			<-release
			return "tw_31", nil
		},
	)
	s.limiter.EXPECT().RecordPost(gomock.Any(), domain.Twitter, s.now).Return(nil)
	s.posts.EXPECT().MarkPosted(gomock.Any(), int64(31), "tw_31", s.now).Return(nil)
	s.events.EXPECT().Publish(gomock.Any(), gomock.Any()).DoAndReturn(
		func(context.Context, *domain.PostRecord) error {
			manualDone.Store(true)
			return nil
		},
	)
	// The scheduled run may only look for due records once the manual record
	// is terminal; rate limited here so it stops right after the check.
	s.limiter.EXPECT().ShouldPost(ctx, domain.Twitter).DoAndReturn(
		func(context.Context, domain.Platform) (bool, error) {
			s.True(manualDone.Load(), "scheduled dispatch overlapped a manual publish")
			return false, nil
		},
	)

	manualErr := make(chan error, 1)
	go func() {
		_, err := s.service.DispatchNow(ctx, domain.Twitter, "Manual post", nil)
		manualErr <- err
	}()
	<-publishing

	runRes := make(chan *domain.DispatchResult, 1)
	go func() {
		runRes <- s.service.Run(ctx, domain.Twitter, "technology")
	}()

	time.Sleep(50 * time.Millisecond)
	close(release)

	s.NoError(<-manualErr)
	s.Equal(domain.OutcomeSkipped, (<-runRes).Outcome)
	s.Equal(domain.StatusPosted, created.Status)
}
