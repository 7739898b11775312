package catalog

import (
	"github.com/RecyclifyApp/Backend-sub000/internal/domain/quest"
	"github.com/RecyclifyApp/Backend-sub000/internal/domain/task"
)

// QuestModel maps the quests table.
type QuestModel struct {
	QuestID               string `gorm:"column:quest_id;primaryKey;size:64"`
	Title                 string `gorm:"column:title;not null;size:200"`
	Description           string `gorm:"column:description;type:text"`
	Points                int    `gorm:"column:points;not null;default:0"`
	Type                  string `gorm:"column:type;not null;size:50;index"`
	TotalAmountToComplete int    `gorm:"column:total_amount_to_complete;not null"`
}

// TableName specifies the table name for QuestModel.
func (QuestModel) TableName() string {
	return "quests"
}

// ToDomain converts the row to a catalog record.
func (m QuestModel) ToDomain() quest.Quest {
	return quest.Quest{
		ID:                    m.QuestID,
		Title:                 m.Title,
		Description:           m.Description,
		Points:                m.Points,
		Type:                  quest.Type(m.Type),
		TotalAmountToComplete: m.TotalAmountToComplete,
	}
}

// TaskModel maps the tasks table.
type TaskModel struct {
	TaskID                            string `gorm:"column:task_id;primaryKey;size:64"`
	Title                             string `gorm:"column:title;not null;size:200"`
	Description                       string `gorm:"column:description;type:text"`
	Points                            int    `gorm:"column:points;not null;default:0"`
	QuestContributionAmountOnComplete int    `gorm:"column:quest_contribution_amount_on_complete;not null;default:0"`
	AssociatedQuestID                 string `gorm:"column:associated_quest_id;not null;size:64;index"`
}

// TableName specifies the table name for TaskModel.
func (TaskModel) TableName() string {
	return "tasks"
}

// ToDomain converts the row to a catalog record.
func (m TaskModel) ToDomain() task.Task {
	return task.Task{
		ID:                m.TaskID,
		Title:             m.Title,
		Description:       m.Description,
		Points:            m.Points,
		QuestContribution: m.QuestContributionAmountOnComplete,
		QuestID:           m.AssociatedQuestID,
	}
}
