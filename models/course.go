package models

import "gorm.io/gorm"

type Course struct {
	ID          uint   `json:"id" gorm:"primaryKey;autoIncrement"`
	Name        string `json:"name" gorm:"type:text;not null"`
	Description string `json:"description" gorm:"type:text;not null"`
	CreatedAt   int64  `json:"created_at" gorm:"not null;autoCreateTime:false;index"` // unix seconds

	// Relationships
	Questions []Question `json:"questions,omitempty" gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE"`
}

func (Course) TableName() string {
	return "course"
}

// CourseSummary is one row of the course list.
type CourseSummary struct {
	ID        uint   `json:"id"`
	Name      string `json:"name"`
	CreatedAt int64  `json:"created_at"`
}

// Migrate creates the course and question tables if they are absent.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&Course{}, &Question{})
}
