package models

// Company is an outbound call campaign owned by a user.
type Company struct {
	ID          uint               `gorm:"primaryKey" json:"id"`
	Name        string             `json:"name"`
	ComLimit    int                `json:"com_limit"`
	DayLimit    int                `json:"day_limit"`
	SoundFileID uint               `json:"sound_file_id"`
	Status      int                `json:"status"`
	StartTime   string             `json:"start_time"` // HH:MM:SS
	EndTime     string             `json:"end_time"`
	Days        []int              `gorm:"serializer:json" json:"days"`
	Reaction    map[string]*string `gorm:"serializer:json" json:"reaction"`
	PhonesID    uint               `json:"phones_id"`
	UserID      uint               `gorm:"index" json:"user_id"`
}

type PhoneList struct {
	ID     uint     `gorm:"primaryKey" json:"id"`
	Name   string   `json:"name"`
	Phones []string `gorm:"serializer:json" json:"phones"`
	UserID uint     `gorm:"index" json:"user_id"`
}

type SoundFile struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	Name     string `json:"name"`
	FilePath string `json:"file_path"`
	UserID   uint   `gorm:"index" json:"user_id"`
}
