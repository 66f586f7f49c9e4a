package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/weiawesome/cycredit-chat/internal/domain"
	"github.com/weiawesome/cycredit-chat/pkg/log"
)

// GormLeaderboardRepository implements LeaderboardRepository using GORM.
type GormLeaderboardRepository struct {
	db *gorm.DB
}

func NewGormLeaderboardRepository(db *gorm.DB) *GormLeaderboardRepository {
	return &GormLeaderboardRepository{db: db}
}

func (r *GormLeaderboardRepository) FindByUserID(ctx context.Context, userID string) (*domain.LeaderboardScore, error) {
	var model LeaderboardScoreModel
	err := r.db.WithContext(ctx).First(&model, "user_id = ?", userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	score := model.ToDomain()
	return &score, nil
}

func (r *GormLeaderboardRepository) Top(ctx context.Context, limit int) ([]domain.LeaderboardScore, error) {
	l := log.Ctx(ctx)

	var models []LeaderboardScoreModel
	err := r.db.WithContext(ctx).
		Order("score DESC").
		Order("updated_at ASC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		l.Error().Err(err).Msg("failed to query leaderboard")
		return nil, err
	}

	scores := make([]domain.LeaderboardScore, len(models))
	for i := range models {
		scores[i] = models[i].ToDomain()
	}
	return scores, nil
}

func (r *GormLeaderboardRepository) Update(ctx context.Context, userID string, mutate func(*domain.LeaderboardScore)) (*domain.LeaderboardScore, error) {
	var result domain.LeaderboardScore

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx
		// SQLite has no row locks; the transaction alone serialises writers there.
		if tx.Dialector.Name() != "sqlite" {
			q = tx.Clauses(clause.Locking{Strength: "UPDATE"})
		}

		var model LeaderboardScoreModel
		err := q.First(&model, "user_id = ?", userID).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			model = LeaderboardScoreModel{UserID: userID}
		case err != nil:
			return err
		}

		score := model.ToDomain()
		mutate(&score)

		model.DisplayName = score.DisplayName
		model.Score = score.Score
		model.UpdatedAt = time.Now().UTC()
		if err := tx.Save(&model).Error; err != nil {
			return err
		}
		result = model.ToDomain()
		return nil
	})
	if err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Str(log.FieldUserID, userID).Msg("failed to update leaderboard score")
		return nil, err
	}
	return &result, nil
}
