package app

import (
	"context"
	"sync"
	"time"

	"title_rotation_bot/internal/domain/leaderboard"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const topListSize = 10

// PointsService accrues leaderboard points from guild message activity.
// A per-(guild,user) rate limiter caps how often messages count, so
// rapid-fire spam earns a single award per cooldown window.
type PointsService struct {
	board    leaderboard.Repository
	logger   *logrus.Entry
	perMsg   int64
	cooldown time.Duration
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func NewPointsService(board leaderboard.Repository, perMsg int64, cooldown time.Duration, logger *logrus.Entry) *PointsService {
	return &PointsService{
		board:    board,
		logger:   logger,
		perMsg:   perMsg,
		cooldown: cooldown,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (s *PointsService) limiter(key string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.limiters[key]
	if !ok {
		l = rate.NewLimiter(rate.Every(s.cooldown), 1)
		s.limiters[key] = l
	}
	return l
}

// HandleMessage awards points for one guild message if the author is
// outside their cooldown window. Accrual is best effort; a store error
// is logged and dropped.
func (s *PointsService) HandleMessage(ctx context.Context, guildID, userID string) {
	if s.perMsg <= 0 {
		return
	}
	if !s.limiter(guildID + ":" + userID).Allow() {
		return
	}
	if err := s.board.AddPoints(ctx, guildID, userID, s.perMsg); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"guild_id": guildID,
			"user_id":  userID,
		}).Error("Failed to record points")
	}
}

// Top returns the guild's current leaderboard for display.
func (s *PointsService) Top(ctx context.Context, guildID string) ([]leaderboard.Entry, error) {
	return s.board.Top(ctx, guildID, topListSize)
}

// Score returns one user's current points.
func (s *PointsService) Score(ctx context.Context, guildID, userID string) (int64, error) {
	return s.board.Score(ctx, guildID, userID)
}
