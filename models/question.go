package models

import "gorm.io/datatypes"

type Question struct {
	ID          uint                        `json:"id" gorm:"primaryKey;autoIncrement"`
	Text        string                      `json:"question" gorm:"column:question;type:text;not null"`
	Answer      string                      `json:"answer" gorm:"type:text;not null"`
	Choices     datatypes.JSONSlice[string] `json:"choices" gorm:"type:text;not null"` // JSON array
	Explanation string                      `json:"explanation" gorm:"type:text;not null"`
	Difficulty  int                         `json:"difficulty" gorm:"not null"`
	CreatedAt   int64                       `json:"created_at" gorm:"not null;autoCreateTime:false"`
	CourseID    uint                        `json:"course_id" gorm:"not null;index"`
}

func (Question) TableName() string {
	return "question"
}

// IsCorrect reports whether choices[index] is the answer. index must be in range.
func (q *Question) IsCorrect(index int) bool {
	return q.Choices[index] == q.Answer
}
