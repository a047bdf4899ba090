package repository

import (
	"backtomatic/internal/model"

	"gorm.io/gorm"
)

type HistoryRepository struct {
	db *gorm.DB
}

func NewHistoryRepository(db *gorm.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

func (r *HistoryRepository) Save(record *model.BackupRecord) error {
	return r.db.Create(record).Error
}

type Stats struct {
	Total     int64 `json:"total"`
	Success   int64 `json:"success"`
	Failed    int64 `json:"failed"`
	Cancelled int64 `json:"cancelled"`
}

func (r *HistoryRepository) GetStats() (Stats, error) {
	var stats Stats
	if err := r.db.Model(&model.BackupRecord{}).Count(&stats.Total).Error; err != nil {
		return stats, err
	}

	if err := r.db.Model(&model.BackupRecord{}).
		Where("status = ?", model.StatusSuccess).
		Count(&stats.Success).Error; err != nil {
		return stats, err
	}

	if err := r.db.Model(&model.BackupRecord{}).
		Where("status = ?", model.StatusCancelled).
		Count(&stats.Cancelled).Error; err != nil {
		return stats, err
	}

	stats.Failed = stats.Total - stats.Success - stats.Cancelled
	return stats, nil
}

func (r *HistoryRepository) GetRecent(limit int) ([]model.BackupRecord, error) {
	var records []model.BackupRecord
	result := r.db.
		Order("finished_at desc").
		Order("id desc").
		Limit(limit).
		Find(&records)

	return records, result.Error
}

func (r *HistoryRepository) GetFailed() ([]model.BackupRecord, error) {
	var records []model.BackupRecord
	result := r.db.
		Where("status = ?", model.StatusFailed).
		Order("finished_at desc").
		Find(&records)

	return records, result.Error
}
