package models

type User struct {
	BaseModel
	Email        string `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	PasswordHash string `gorm:"not null" json:"-"`
	FullName     string `gorm:"type:varchar(255)" json:"full_name"`

	// Relations
	Subscription *Subscription `gorm:"foreignKey:UserID" json:"subscription,omitempty"`
}
