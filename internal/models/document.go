package models

type Document struct {
	BaseModel
	UserID     string `gorm:"type:varchar(36);not null;index" json:"user_id"`
	Filename   string `gorm:"type:varchar(255);not null" json:"filename"`
	FileSize   int64  `gorm:"not null" json:"file_size"`
	MimeType   string `gorm:"type:varchar(127)" json:"mime_type"`
	StorageKey string `gorm:"type:varchar(512);uniqueIndex;not null" json:"-"`
}
