// internal/models/audit.go
package models

type AuditLog struct {
	BaseModel
	Principal    string `json:"principal" gorm:"size:42;index"`
	Role         Role   `json:"role" gorm:"type:varchar(20)"`
	Action       string `json:"action" gorm:"size:100;not null;index"`
	ResourceType string `json:"resource_type" gorm:"size:50;not null;index"`
	ResourceID   string `json:"resource_id" gorm:"size:66;index"`
	RequestID    string `json:"request_id" gorm:"size:36"`
	Status       int    `json:"status"`
	NewValues    JSONB  `json:"new_values" gorm:"type:jsonb"`
	IPAddress    string `json:"ip_address" gorm:"size:45"`
	UserAgent    string `json:"user_agent" gorm:"type:text"`
}
